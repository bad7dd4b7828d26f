package middleware

import (
	"net/http"
	"strings"

	"github.com/mercatohq/mercato-backend/pkg/logger"
)

// CartSessionHeader carries the opaque anonymous-cart token on the wire. The
// contract is symmetric: the client echoes the last value it received, and
// every response whose handler touched a cart writes the current value back.
const CartSessionHeader = "X-Cart-Session"

// CartSession lifts the inbound session token into the request context.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithCartToken(r.Context(), token)
			if logg != nil {
				ctx = logg.WithField(ctx, "cart_session", "present")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
