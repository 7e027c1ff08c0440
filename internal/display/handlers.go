package display

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ajeen-pos/customer-display/internal/common"
	"github.com/ajeen-pos/customer-display/internal/flow"
)

// Handlers exposes the display state and the customer's touch actions over
// HTTP. The front end is a thin renderer: it polls the snapshot and posts
// the customer's choices here.
type Handlers struct {
	Session  *Session
	Validate *validator.Validate
}

// NewHandlers wires the HTTP surface around a session.
func NewHandlers(session *Session) Handlers {
	return Handlers{Session: session, Validate: validator.New()}
}

// Routes mounts the display endpoints.
func (h Handlers) Routes(r chi.Router) {
	r.Get("/state", h.getState)
	r.Post("/tip/select", h.selectTip)
	r.Post("/tip/custom", h.customTip)
	r.Post("/tip/confirm", h.confirmTip)
	r.Post("/tip/skip", h.skipTip)
	r.Post("/rewards/submit", h.submitRewards)
	r.Post("/rewards/decline", h.declineRewards)
	r.Post("/payment/retry", h.retryPayment)
}

func (h Handlers) getState(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, h.Session.Snapshot())
}

type selectTipRequest struct {
	Percentage int `json:"percentage" validate:"required,oneof=15 18 20 25"`
}

func (h Handlers) selectTip(w http.ResponseWriter, r *http.Request) {
	tip := h.Session.Engine().Tip()
	if tip == nil {
		h.stepUnavailable(w, flow.StepTip)
		return
	}
	var req selectTipRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount := tip.SelectPercentage(req.Percentage)
	common.JSON(w, http.StatusOK, map[string]any{"tipAmount": amount, "tipPercentage": req.Percentage})
}

type customTipRequest struct {
	Amount float64 `json:"amount"`
}

func (h Handlers) customTip(w http.ResponseWriter, r *http.Request) {
	tip := h.Session.Engine().Tip()
	if tip == nil {
		h.stepUnavailable(w, flow.StepTip)
		return
	}
	var req customTipRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := tip.SetCustomAmount(req.Amount); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_TIP", "tip amount must be zero or greater", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"tipAmount": tip.Amount()})
}

func (h Handlers) confirmTip(w http.ResponseWriter, _ *http.Request) {
	tip := h.Session.Engine().Tip()
	if tip == nil {
		h.stepUnavailable(w, flow.StepTip)
		return
	}
	tip.Confirm()
	common.JSON(w, http.StatusAccepted, map[string]any{"status": "confirmed"})
}

func (h Handlers) skipTip(w http.ResponseWriter, _ *http.Request) {
	tip := h.Session.Engine().Tip()
	if tip == nil {
		h.stepUnavailable(w, flow.StepTip)
		return
	}
	tip.Skip()
	common.JSON(w, http.StatusAccepted, map[string]any{"status": "skipped"})
}

func (h Handlers) submitRewards(w http.ResponseWriter, r *http.Request) {
	rewards := h.Session.Engine().Rewards()
	if rewards == nil {
		h.stepUnavailable(w, flow.StepRewards)
		return
	}
	var form flow.RewardsForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := rewards.Submit(form); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "signup details are incomplete", fieldErrors(verr))
			return
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "signup details are incomplete", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"status": "enrolled"})
}

func (h Handlers) declineRewards(w http.ResponseWriter, _ *http.Request) {
	rewards := h.Session.Engine().Rewards()
	if rewards == nil {
		h.stepUnavailable(w, flow.StepRewards)
		return
	}
	rewards.Decline()
	common.JSON(w, http.StatusAccepted, map[string]any{"status": "declined"})
}

func (h Handlers) retryPayment(w http.ResponseWriter, _ *http.Request) {
	card := h.Session.Engine().Card()
	if card == nil {
		h.stepUnavailable(w, flow.StepPayment)
		return
	}
	if err := card.Retry(); err != nil {
		common.JSONError(w, http.StatusConflict, "RETRY_UNAVAILABLE", "payment is not in a retryable state", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"status": "retrying"})
}

func (h Handlers) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return false
	}
	if err := h.Validate.Struct(target); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "request failed validation", fieldErrors(verr))
			return false
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "request failed validation", nil)
		return false
	}
	return true
}

func (h Handlers) stepUnavailable(w http.ResponseWriter, step string) {
	common.JSONError(w, http.StatusConflict, "STEP_NOT_ACTIVE", "the "+step+" step is not active", nil)
}

func fieldErrors(verr validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verr))
	for _, fe := range verr {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
