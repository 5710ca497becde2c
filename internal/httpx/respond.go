package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

type apiError struct {
	Kind    shop.Kind `json:"errorKind"`
	Message string    `json:"message"`
}

type envelope struct {
	Data  any       `json:"data"`
	Error *apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Data: data})
}

func toAPIError(err error) *apiError {
	return &apiError{Kind: shop.KindOf(err), Message: shop.PublicMessage(err)}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(shop.KindOf(err)), envelope{Error: toAPIError(err)})
}

// writePartial answers 200 with whatever data there is and the error
// alongside it.
func writePartial(w http.ResponseWriter, data any, err error) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Error: toAPIError(err)})
}

func statusFor(k shop.Kind) int {
	switch k {
	case shop.KindNotFound:
		return http.StatusNotFound
	case shop.KindForbidden:
		return http.StatusForbidden
	case shop.KindInvalidInput, shop.KindInvalidQuantity:
		return http.StatusBadRequest
	case shop.KindCouponInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return shop.InvalidInput("invalid json")
	}
	return nil
}
