package display_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/display"
	"github.com/ajeen-pos/customer-display/internal/flow"
)

func newHandlerFixture(t *testing.T) (*sessionFixture, http.Handler) {
	t.Helper()
	f := newSessionFixture(t)
	router := chi.NewRouter()
	router.Route("/display", display.NewHandlers(f.session).Routes)
	return f, router
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetStateReturnsSnapshot(t *testing.T) {
	_, router := newHandlerFixture(t)
	rec := doJSON(t, router, http.MethodGet, "/display/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap display.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, display.ModeWelcome, snap.Mode)
}

func TestTipEndpointsOutsideTipStep(t *testing.T) {
	_, router := newHandlerFixture(t)
	rec := doJSON(t, router, http.MethodPost, "/display/tip/select", `{"percentage":18}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "STEP_NOT_ACTIVE")
}

func TestTipSelectAndConfirm(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.send(t, display.TypeStartFlow, map[string]any{
		"currentStep":          flow.StepTip,
		"orderId":              "ord_1",
		"currentPaymentAmount": 19.99,
	})

	rec := doJSON(t, router, http.MethodPost, "/display/tip/select", `{"percentage":18}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.InDelta(t, 3.60, resp["tipAmount"], 0.0001)

	rec = doJSON(t, router, http.MethodPost, "/display/tip/confirm", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.completions(), 1)
}

func TestTipSelectRejectsUnknownPercentage(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.send(t, display.TypeStartFlow, map[string]any{
		"currentStep":          flow.StepTip,
		"currentPaymentAmount": 19.99,
	})

	rec := doJSON(t, router, http.MethodPost, "/display/tip/select", `{"percentage":30}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestCustomTipRejectsNegativeAmount(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.send(t, display.TypeStartFlow, map[string]any{
		"currentStep":          flow.StepTip,
		"currentPaymentAmount": 19.99,
	})

	rec := doJSON(t, router, http.MethodPost, "/display/tip/custom", `{"amount":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_TIP")
}

func TestRewardsSubmitValidation(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.send(t, display.TypeStartFlow, map[string]any{"currentStep": flow.StepRewards})

	rec := doJSON(t, router, http.MethodPost, "/display/rewards/submit", `{"firstName":"Nadia"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	require.Empty(t, f.completions())

	body := `{"firstName":"Nadia","lastName":"Haddad","phone":"+15105550101","email":"nadia@example.com"}`
	rec = doJSON(t, router, http.MethodPost, "/display/rewards/submit", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.completions(), 1)
}

func TestPaymentRetryOnlyFromErrorState(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.send(t, display.TypeStartFlow, map[string]any{
		"currentStep":          flow.StepPayment,
		"paymentMethod":        flow.MethodCredit,
		"currentPaymentAmount": 19.99,
	})

	rec := doJSON(t, router, http.MethodPost, "/display/payment/retry", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "RETRY_UNAVAILABLE")
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.send(t, display.TypeStartFlow, map[string]any{
		"currentStep":          flow.StepTip,
		"currentPaymentAmount": 19.99,
	})

	rec := doJSON(t, router, http.MethodPost, "/display/tip/select", `{{nope`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "BAD_REQUEST")
}
