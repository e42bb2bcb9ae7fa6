package httpx

import (
	"net/http"
	"slices"
	"strings"

	"github.com/adminbridge/authgate/pkg/gatesdk"
)

// RoleAdministrator implicitly satisfies every role requirement.
const RoleAdministrator = "admin"

// Decision is the typed outcome of a role check. Handlers never inspect the
// request to re-derive it; the gate is the single authorization verdict.
type Decision struct {
	Allowed bool
}

// Allow and Deny are the two possible decisions.
var (
	Allow = Decision{Allowed: true}
	Deny  = Decision{Allowed: false}
)

// DecideRoles grants access iff the held roles intersect the required set or
// include the administrator role. An empty required set always allows.
func DecideRoles(held, required []string) Decision {
	if len(required) == 0 {
		return Allow
	}
	if slices.Contains(held, RoleAdministrator) {
		return Allow
	}
	for _, role := range held {
		if slices.Contains(required, role) {
			return Allow
		}
	}
	return Deny
}

// RequireAnyRole rejects with 403 unless the authenticated principal holds at
// least one of the required roles. The response never reveals which role was
// missing; the full requested-vs-held detail goes to the audit hook.
func RequireAnyRole(hook AuthEventHook, required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if d := DecideRoles(rolesFromContext(ctx), required); !d.Allowed {
				held := rolesFromContext(ctx)
				record(ctx, hook, gatesdk.CodeInsufficientPermissions,
					PrincipalIDFromContext(ctx), IPKeyExtractor(r),
					"required="+strings.Join(required, ",")+" held="+strings.Join(held, ","))
				gatesdk.ErrInsufficientPermissions.WriteError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
