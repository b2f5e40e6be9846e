package httpmw

import (
	"context"
	"errors"
	"net/http"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/security"
	"github.com/cwrk-planet/session-service/internal/transport/http/httpx"

	"github.com/samber/lo"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

type Validator interface {
	Validate(token string) (domain.Principal, error)
}

// RequireRole admits requests whose bearer token carries one of roles.
func RequireRole(v Validator, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := v.Validate(security.BearerFromRequest(r))
			if err != nil {
				msg := "invalid token"
				switch {
				case errors.Is(err, security.ErrMissingToken):
					msg = "missing bearer token"
				case errors.Is(err, security.ErrTokenExpired):
					msg = "token expired"
				}
				httpx.Error(w, http.StatusUnauthorized, msg)
				return
			}
			if !lo.Contains(roles, p.Role) {
				httpx.Error(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyPrincipal, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func PrincipalFromCtx(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(domain.Principal)
	return p, ok
}
