package display

// Data is the JSON-shaped document the display holds for the duration of a
// checkout. Updates arrive as partial documents and are merged, never
// replaced, so duplicate delivery of the same message cannot corrupt state.
type Data map[string]any

// Clone returns a copy one level deep. Nested maps referenced by both copies
// are never mutated in place by the merge functions below.
func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the string at key, or "" when absent or not a string.
func (d Data) String(key string) string {
	if d == nil {
		return ""
	}
	s, _ := d[key].(string)
	return s
}

// Float returns the number at key. JSON numbers decode as float64.
func (d Data) Float(key string) float64 {
	if d == nil {
		return 0
	}
	f, _ := d[key].(float64)
	return f
}

// Bool returns the boolean at key, false when absent.
func (d Data) Bool(key string) bool {
	if d == nil {
		return false
	}
	b, _ := d[key].(bool)
	return b
}

// Child returns the nested document at key, nil when absent or mistyped.
func (d Data) Child(key string) Data {
	if d == nil {
		return nil
	}
	switch v := d[key].(type) {
	case Data:
		return v
	case map[string]any:
		return Data(v)
	default:
		return nil
	}
}

// Merge overlays patch onto old, new fields winning. Neither input is
// mutated. Applying the same patch twice yields the same result as once.
func Merge(old, patch Data) Data {
	out := old.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// MergeFlowUpdate applies an UPDATE_CUSTOMER_FLOW content document: a
// shallow merge, except cartData which is merged one level deep (new fields
// over old), and orderId which falls back to the previously known value when
// the update omits it.
func MergeFlowUpdate(old, patch Data) Data {
	out := Merge(old, patch)
	oldCart := old.Child("cartData")
	patchCart := patch.Child("cartData")
	if oldCart != nil || patchCart != nil {
		out["cartData"] = map[string]any(Merge(oldCart, patchCart))
	}
	if patch.String("orderId") == "" && old.String("orderId") != "" {
		out["orderId"] = old["orderId"]
	}
	return out
}

// MergeFlowStart builds the document for START_CUSTOMER_FLOW. The message
// content wins field by field over mirrored cart data; orderId resolves by
// priority: message content, mirrored cart, then the session fallback.
func MergeFlowStart(content, mirrorCart Data, fallbackOrderID string) Data {
	orderID := content.String("orderId")
	if orderID == "" {
		orderID = mirrorCart.String("orderId")
	}
	if orderID == "" {
		orderID = fallbackOrderID
	}
	cart := Merge(mirrorCart, content.Child("cartData"))
	if orderID != "" {
		cart["orderId"] = orderID
	}
	out := content.Clone()
	out["cartData"] = map[string]any(cart)
	if orderID != "" {
		out["orderId"] = orderID
	}
	return out
}
