package rbac

import (
	"context"
	"net/http"

	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/contextkeys"
	"github.com/platinummonkey/hookrelay/pkg/httputil"
)

// PrincipalMiddleware resolves the authenticated user into a Principal for
// the handlers downstream
type PrincipalMiddleware struct {
	resolver *Resolver
}

// NewPrincipalMiddleware creates a new principal middleware
func NewPrincipalMiddleware(resolver *Resolver) *PrincipalMiddleware {
	return &PrincipalMiddleware{resolver: resolver}
}

// Handler wraps an HTTP handler with principal resolution
func (pm *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *auth.User
		if authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext); ok && authCtx != nil {
			user = authCtx.User
		}

		principal, err := pm.resolver.Resolve(r.Context(), user)
		if err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal returns the request's principal, anonymous when none was resolved
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal); ok && p != nil {
		return p
	}
	return Anonymous()
}
