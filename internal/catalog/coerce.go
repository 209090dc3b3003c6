package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

var (
	idKeys     = []string{"id", "market_id"}
	titleKeys  = []string{"title", "name"}
	yesKeys    = []string{"yes_price", "price_yes", "yes", "bid_yes"}
	noKeys     = []string{"no_price", "price_no", "no", "bid_no"}
	targetKeys = []string{"target_price", "strike_price", "target"}
	expiryKeys = []string{"expiry_time", "expiration", "end_time"}
)

var (
	errMissingID     = errors.New("missing market id")
	errMissingYes    = errors.New("missing yes price")
	errMissingTarget = errors.New("missing target price")
	errNonPositive   = errors.New("price must be positive")
)

// Coerce converts a raw venue record into a Market. It does not apply the
// catalog filters.
func Coerce(raw domain.RawMarket) (domain.Market, error) {
	id, ok := stringField(raw, idKeys)
	if !ok {
		return domain.Market{}, errMissingID
	}
	m := domain.Market{ID: id}
	m.Title, _ = stringField(raw, titleKeys)
	m.Status, _ = stringField(raw, []string{"status"})

	yes, found, err := priceField(raw, yesKeys)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: yes price: %w", id, err)
	}
	if !found {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, errMissingYes)
	}
	m.YesPrice = yes

	no, found, err := floatField(raw, noKeys)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: no price: %w", id, err)
	}
	if !found {
		no = 1 - yes
	}
	m.NoPrice = no

	target, found, err := priceField(raw, targetKeys)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: target price: %w", id, err)
	}
	if !found {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, errMissingTarget)
	}
	m.TargetPrice = target

	if v, ok := firstPresent(raw, expiryKeys); ok {
		m.ExpiryRaw = fmt.Sprint(v)
		m.ExpiresAt = parseExpiry(v)
	}
	return m, nil
}

func firstPresent(raw domain.RawMarket, keys []string) (any, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func stringField(raw domain.RawMarket, keys []string) (string, bool) {
	v, ok := firstPresent(raw, keys)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

func floatField(raw domain.RawMarket, keys []string) (float64, bool, error) {
	v, ok := firstPresent(raw, keys)
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, true, err
	}
	return f, true, nil
}

// priceField is floatField for prices: a zero value counts as absent and
// the next alias is tried, and a negative value is an error.
func priceField(raw domain.RawMarket, keys []string) (float64, bool, error) {
	for _, k := range keys {
		v, ok := firstPresent(raw, []string{k})
		if !ok {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return 0, true, err
		}
		if f == 0 {
			continue
		}
		if f < 0 {
			return 0, true, fmt.Errorf("%w: %s=%v", errNonPositive, k, f)
		}
		return f, true, nil
	}
	return 0, false, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", v)
	}
	return f, nil
}

// parseExpiry accepts RFC3339 strings and unix timestamps in seconds or
// milliseconds. Unparseable values yield the zero time.
func parseExpiry(v any) time.Time {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	f, err := toFloat(v)
	if err != nil || f <= 0 {
		return time.Time{}
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}
