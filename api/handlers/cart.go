package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mercatohq/mercato-backend/api/middleware"
	"github.com/mercatohq/mercato-backend/api/responses"
	"github.com/mercatohq/mercato-backend/api/validators"
	"github.com/mercatohq/mercato-backend/internal/cart"
	"github.com/mercatohq/mercato-backend/pkg/logger"
)

// cartHint assembles the resolver input from whatever identity the
// request carries: the X-Cart-Session token, the authed customer, or both.
func cartHint(r *http.Request) cart.ResolveHint {
	return cart.ResolveHint{
		SessionToken: middleware.CartTokenFromContext(r.Context()),
		CustomerID:   middleware.ActorIDFromContext(r.Context()),
	}
}

// writeCartSnapshot echoes the session token back on every cart response
// so anonymous clients can persist it for their next request.
func writeCartSnapshot(w http.ResponseWriter, status int, snap *cart.Snapshot) {
	if snap.SessionToken != nil {
		w.Header().Set(middleware.CartSessionHeader, *snap.SessionToken)
	}
	responses.WriteSuccessStatus(w, status, snap)
}

func GetCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.ResolveCart(r.Context(), cartHint(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartSnapshot(w, http.StatusOK, snap)
	}
}

type addCartItemPayload struct {
	VariantID uuid.UUID `json:"variantId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addCartItemPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.AddItem(r.Context(), cartHint(r), cart.AddItemInput{
			VariantID: body.VariantID,
			Quantity:  body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartSnapshot(w, http.StatusOK, snap)
	}
}

type updateCartItemPayload struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

func UpdateCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateCartItemPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.UpdateItem(r.Context(), cartHint(r), variantID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartSnapshot(w, http.StatusOK, snap)
	}
}

func RemoveCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.RemoveItem(r.Context(), cartHint(r), variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartSnapshot(w, http.StatusOK, snap)
	}
}
