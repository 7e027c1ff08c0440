package backoffice

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ajeen-pos/customer-display/internal/common"
)

// Handlers exposes back-office data through the display daemon's API so the
// front of house never needs direct back-office credentials.
type Handlers struct {
	Client *Client
}

// Routes mounts the proxy endpoints.
func (h Handlers) Routes(r chi.Router) {
	r.Get("/locations", h.listLocations)
	r.Get("/terminal-readers", h.listReaders)
	r.Get("/payments/{paymentID}", h.getPayment)
}

func (h Handlers) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Client.ListLocations(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (h Handlers) listReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := h.Client.ListTerminalReaders(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"readers": readers})
}

func (h Handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.Client.GetPayment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, payment)
}

func (h Handlers) upstreamError(w http.ResponseWriter, err error) {
	if appErr, ok := common.AsAppError(err); ok {
		if appErr.Retryable {
			common.JSONRetryable(w, appErr.HTTPStatus, appErr.Code, appErr.Message)
			return
		}
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
		return
	}
	common.JSONRetryable(w, http.StatusBadGateway, "BACKOFFICE_ERROR", "back office request failed")
}
