package venue

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"polymarket-arb/pkg/types"
)

// parseOrderState decodes a venue order response tolerant of the
// field-name variants the venue is known to use across its status and
// submission response shapes.
func parseOrderState(raw json.RawMessage) (types.OrderState, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.OrderState{}, err
	}

	state := types.OrderState{}

	if id, ok := extractOrderID(doc); ok {
		state.OrderID = id
	}

	if status, ok := extractString(doc, "status", "orderStatus", "order_status"); ok {
		state.Status = types.OrderStatus(status)
		state.HasStatus = true
		state.IsTerminal = state.Status.IsTerminal()
		state.IsFilled = state.Status == types.StatusFilled
	}

	if v, ok := parseDecimalField(doc, "filled", "filledSize", "filled_size", "sizeFilled"); ok {
		state.FilledSize, state.HasFilled = v, true
	}
	if v, ok := parseDecimalField(doc, "remaining", "remainingSize", "remaining_size", "sizeRemaining"); ok {
		state.RemainingSize, state.HasRemaining = v, true
	}
	if v, ok := parseDecimalField(doc, "size", "originalSize", "original_size"); ok {
		state.OriginalSize, state.HasOriginal = v, true
	}

	return state, nil
}

// extractOrderID tries the venue's known order-id field-name variants at
// the top level, then recurses into common wrapper fields.
func extractOrderID(doc map[string]any) (string, bool) {
	for _, key := range []string{"orderID", "orderId", "order_id", "id"} {
		if s, ok := extractString(doc, key); ok {
			return s, true
		}
	}
	for _, key := range []string{"order", "data", "result"} {
		if nested, ok := doc[key].(map[string]any); ok {
			if id, ok := extractOrderID(nested); ok {
				return id, true
			}
		}
	}
	return "", false
}

func extractString(doc map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := doc[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// parseDecimalField tries each key in order, accepting either a JSON
// string or a JSON number, and returns the first that parses.
func parseDecimalField(doc map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := doc[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if d, err := decimal.NewFromString(val); err == nil {
				return d, true
			}
		case float64:
			return decimal.NewFromFloat(val), true
		}
	}
	return decimal.Zero, false
}
