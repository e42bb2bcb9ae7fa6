/*
Package gatesdk provides a client SDK for the AdminBridge authentication
gateway.

# Overview

The gateway is an OAuth2 relying party: it drives the authorization-code flow
with PKCE against the upstream identity provider and issues its own signed
session tokens. This package holds the wire types and error codes shared
between the gateway's handlers and its clients, plus a small HTTP client.

Begin a login and redeem the resulting authorization code:

	client := gatesdk.NewClient("https://gateway.example.com")

	login, err := client.BeginLogin(ctx)
	// send the browser to login.AuthorizeURL ...

	session, err := client.ExchangeCode(ctx, code, login.State)

Session-scoped operations take the session token explicitly:

	status, err := client.Status(ctx, session.Token)
	fresh, err := client.Refresh(ctx, session.Token, gatesdk.RefreshRequest{})
	err = client.Logout(ctx, session.Token)

# Error Handling

Gateway errors decode into *APIError carrying the machine-readable code:

	var apiErr *gatesdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == gatesdk.CodeTokenExpired {
		// re-authenticate
	}
*/
package gatesdk
