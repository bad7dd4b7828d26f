package handlers

import (
	"net/http"

	"github.com/mercatohq/mercato-backend/api/middleware"
	"github.com/mercatohq/mercato-backend/api/responses"
	"github.com/mercatohq/mercato-backend/api/validators"
	"github.com/mercatohq/mercato-backend/internal/cart"
	"github.com/mercatohq/mercato-backend/internal/customers"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/logger"
)

// AuthTokenHeader carries the minted JWT back to the client.
const AuthTokenHeader = "X-Mercato-Token"

func Register(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body customers.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(AuthTokenHeader, result.AccessToken)
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Login authenticates a customer and, when the request carries an anonymous
// cart token, folds that cart into the customer's cart right away.
func Login(svc customers.Service, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body customers.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ClientIP = clientIP(r)

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if carts != nil {
			if token := middleware.CartTokenFromContext(r.Context()); token != nil {
				customerID := result.Customer.ID
				if _, err := carts.ResolveCart(r.Context(), cart.ResolveHint{
					SessionToken: token,
					CustomerID:   &customerID,
				}); err != nil {
					// login succeeded; a merge conflict surfaces on the next
					// cart call, not here
					if logg != nil {
						logg.Warn(logg.WithField(r.Context(), "customer_id", customerID.String()), "cart merge on login failed")
					}
				}
			}
		}

		w.Header().Set(AuthTokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

func StaffLogin(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body customers.StaffLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ClientIP = clientIP(r)

		result, err := svc.StaffLogin(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(AuthTokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

// Me returns the profile of the authenticated customer.
func Me(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.ActorIDFromContext(r.Context())
		if customerID == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		profile, err := svc.GetCustomer(r.Context(), *customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return validators.SanitizeString(fwd, 64)
	}
	return r.RemoteAddr
}
