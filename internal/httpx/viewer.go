package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type viewerKey struct{}

// Viewer reads the caller identity set by the gateway. Requests without a
// user ID are anonymous; unknown roles are treated as customers.
func Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := shop.Viewer{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID))}
		if !v.Anonymous() {
			switch role := shop.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))); role {
			case shop.RoleManager, shop.RoleAdmin:
				v.Role = role
			default:
				v.Role = shop.RoleCustomer
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey{}, v)))
	})
}

func viewerFrom(ctx context.Context) shop.Viewer {
	v, _ := ctx.Value(viewerKey{}).(shop.Viewer)
	return v
}

func requireSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := viewerFrom(r.Context()).RequireSupervisor(); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
