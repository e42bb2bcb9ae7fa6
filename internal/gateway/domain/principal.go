package domain

import "time"

// Principal is the identity the gateway resolved from the provider's ID
// token. It is what session tokens assert and what handlers see.
type Principal struct {
	ID          string   // provider subject (sub)
	DisplayName string   // human-readable name
	UPN         string   // user principal name / login identifier
	Roles       []string // authorization roles carried into the session
}

// LoginRecord tracks an active sign-in for a principal. One row per
// principal; re-login replaces it, logout deletes it.
type LoginRecord struct {
	PrincipalID string
	DisplayName string
	UPN         string
	SourceIP    string
	LoggedInAt  time.Time
	UpdatedAt   time.Time
}
