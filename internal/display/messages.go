package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message types pushed from the opener to the display.
const (
	TypeDisplayUpdate    = "CUSTOMER_DISPLAY_UPDATE"
	TypeShowCart         = "SHOW_CART"
	TypeShowWelcome      = "SHOW_WELCOME"
	TypeStartFlow        = "START_CUSTOMER_FLOW"
	TypeUpdateFlow       = "UPDATE_CUSTOMER_FLOW"
	TypeDirectCashUpdate = "DIRECT_CASH_UPDATE"
)

// Signals sent from the display back to the opener.
const (
	TypeDisplayReady = "CUSTOMER_DISPLAY_READY"
	TypeStepComplete = "CUSTOMER_FLOW_STEP_COMPLETE"
)

// knownTypes lists every message type either side of the channel emits.
var knownTypes = map[string]struct{}{
	TypeDisplayUpdate:    {},
	TypeShowCart:         {},
	TypeShowWelcome:      {},
	TypeStartFlow:        {},
	TypeUpdateFlow:       {},
	TypeDirectCashUpdate: {},
	TypeDisplayReady:     {},
	TypeStepComplete:     {},
}

// ErrUnknownSender marks an envelope rejected because it did not originate
// from the expected opener. This is a boundary-trust check between the two
// halves of one POS station, not a security control.
var ErrUnknownSender = errors.New("display: message from unknown sender")

// ErrMalformed marks payloads that could not be decoded.
var ErrMalformed = errors.New("display: malformed message")

// Envelope is the wire unit exchanged over the channel.
type Envelope struct {
	Sender  string          `json:"sender"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// DecodeEnvelope parses and validates a raw payload, enforcing the expected
// sender when one is configured.
func DecodeEnvelope(payload []byte, expectedSender string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if _, ok := knownTypes[env.Type]; !ok {
		return Envelope{}, fmt.Errorf("%w: type %q", ErrMalformed, env.Type)
	}
	if expectedSender != "" && env.Sender != expectedSender {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownSender, env.Sender)
	}
	return env, nil
}

// ContentData decodes the envelope content into a merge-friendly document.
// Missing content yields an empty document, not an error.
func (e Envelope) ContentData() (Data, error) {
	if len(e.Content) == 0 {
		return Data{}, nil
	}
	var data Data
	if err := json.Unmarshal(e.Content, &data); err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrMalformed, err)
	}
	if data == nil {
		data = Data{}
	}
	return data, nil
}

// StepCompletion is the payload of a CUSTOMER_FLOW_STEP_COMPLETE signal.
type StepCompletion struct {
	Step string `json:"step"`
	Data Data   `json:"data"`
}

// EncodeEnvelope marshals an envelope with the given content.
func EncodeEnvelope(sender, msgType string, content any) ([]byte, error) {
	env := Envelope{Sender: sender, Type: msgType}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, err
		}
		env.Content = raw
	}
	return json.Marshal(env)
}
