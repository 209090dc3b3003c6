package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// priceFields are tried in order; the trade stream uses "p", other
// sources send "price".
var priceFields = []string{"p", "price"}

var errBadPrice = errors.New("invalid price")

// ParsePrice extracts the last-trade price from a stream message. ok is
// false when the message carries no price field, which is not an error.
func ParsePrice(raw []byte) (price float64, ok bool, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, false, fmt.Errorf("decode message: %w", err)
	}

	var val json.RawMessage
	for _, name := range priceFields {
		v, found := fields[name]
		if !found || isEmpty(v) {
			continue
		}
		val = v
		break
	}
	if val == nil {
		return 0, false, nil
	}

	price, err = decodeNumber(val)
	if err != nil {
		return 0, false, err
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false, fmt.Errorf("%w: %v", errBadPrice, price)
	}
	return price, true, nil
}

func isEmpty(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte(`""`))
}

func decodeNumber(v json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errBadPrice, s)
		}
		return f, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("%w: %s", errBadPrice, string(v))
	}
	return f, nil
}
