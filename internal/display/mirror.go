package display

import (
	"encoding/json"
	"fmt"
)

// mirrorDocument is the persisted cart snapshot shape: the opener's cart
// module writes {"state": {...}} under a namespaced key.
type mirrorDocument struct {
	State Data `json:"state"`
}

// ParseMirrorState extracts the cart state from a raw mirror value. A nil or
// empty value returns an empty document; malformed JSON returns an error the
// caller logs before falling back to whatever state it already has.
func ParseMirrorState(raw []byte) (Data, error) {
	if len(raw) == 0 {
		return Data{}, nil
	}
	var doc mirrorDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: mirror: %v", ErrMalformed, err)
	}
	if doc.State == nil {
		return Data{}, nil
	}
	return doc.State, nil
}
