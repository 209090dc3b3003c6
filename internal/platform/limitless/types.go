package limitless

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// orderRequest is the body of POST /orders.
type orderRequest struct {
	MarketID      string  `json:"marketId"`
	Side          string  `json:"side"`
	Outcome       string  `json:"outcome"`
	Amount        float64 `json:"amount"`
	ClientOrderID string  `json:"clientOrderId"`
	Nonce         int64   `json:"nonce,omitempty"`
	Expiration    int64   `json:"expiration,omitempty"`
	Maker         string  `json:"maker,omitempty"`
	Signature     string  `json:"signature,omitempty"`
}

// orderResponse accepts the field spellings the API has used.
type orderResponse struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"orderId"`
	Status      string       `json:"status"`
	Success     *bool        `json:"success"`
	Message     string       `json:"message"`
	Error       string       `json:"error"`
	FilledPrice *json.Number `json:"filledPrice"`
	Price       *json.Number `json:"price"`
}

func (r orderResponse) toDomain(clientID string) domain.OrderResult {
	res := domain.OrderResult{
		OrderID:  firstNonEmpty(r.OrderID, r.ID),
		ClientID: clientID,
		Status:   domain.OrderStatus(strings.ToLower(r.Status)),
		Message:  firstNonEmpty(r.Message, r.Error),
	}
	for _, n := range []*json.Number{r.FilledPrice, r.Price} {
		if n == nil {
			continue
		}
		if f, err := n.Float64(); err == nil {
			res.FilledPrice = f
			break
		}
	}

	res.Success = true
	if r.Success != nil && !*r.Success {
		res.Success = false
	}
	switch res.Status {
	case "failed", "rejected", "cancelled", "canceled", "expired":
		res.Success = false
	case "":
		res.Status = domain.OrderStatusOpen
	}
	if !res.Success {
		res.Status = domain.OrderStatusFailed
	}
	return res
}

// decodeMarkets accepts a bare array or an envelope with a data or markets
// array.
func decodeMarkets(body []byte) ([]domain.RawMarket, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var out []domain.RawMarket
		if err := unmarshalNumbers(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var env struct {
		Data    []domain.RawMarket `json:"data"`
		Markets []domain.RawMarket `json:"markets"`
	}
	if err := unmarshalNumbers(body, &env); err != nil {
		return nil, err
	}
	if env.Data != nil {
		return env.Data, nil
	}
	return env.Markets, nil
}

// decodeMarket accepts a bare object or {"data": {...}}.
func decodeMarket(body []byte) (domain.RawMarket, error) {
	var m domain.RawMarket
	if err := unmarshalNumbers(body, &m); err != nil {
		return nil, err
	}
	if inner, ok := m["data"].(map[string]any); ok {
		return domain.RawMarket(inner), nil
	}
	return m, nil
}

var balanceKeys = []string{"available", "balance", "free"}

// decodeBalance accepts a bare number or an object with one of
// balanceKeys, tried in order.
func decodeBalance(body []byte) (float64, error) {
	var v any
	if err := unmarshalNumbers(body, &v); err != nil {
		return 0, err
	}
	if obj, ok := v.(map[string]any); ok {
		if inner, ok := obj["data"].(map[string]any); ok {
			obj = inner
		}
		for _, k := range balanceKeys {
			if raw, ok := obj[k]; ok {
				return toFloat(raw)
			}
		}
		return 0, fmt.Errorf("balance: none of %v present", balanceKeys)
	}
	return toFloat(v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func unmarshalNumbers(body []byte, out any) error {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	return dec.Decode(out)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
