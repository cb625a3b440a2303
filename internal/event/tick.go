package event

import (
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// PriceTick is the reference price carried by an EXTERNAL_PRICE event.
type PriceTick struct {
	TsMs     int64
	Mid      float64
	Provider string
	Symbol   string
}

type tickPayload struct {
	Mid      *float64 `mapstructure:"mid"`
	Provider string   `mapstructure:"provider"`
	Symbol   string   `mapstructure:"symbol"`
}

// ParsePriceTick extracts a PriceTick from an EXTERNAL_PRICE event. It
// returns false for other event types, a missing or non-numeric mid, or a
// non-finite mid. Numeric strings are accepted.
func ParsePriceTick(ev Event) (PriceTick, bool) {
	if ev.Type != ExternalPrice {
		return PriceTick{}, false
	}
	switch v := ev.Payload["mid"].(type) {
	case bool:
		return PriceTick{}, false
	case string:
		if strings.TrimSpace(v) == "" {
			return PriceTick{}, false
		}
	}

	var p tickPayload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return PriceTick{}, false
	}
	if err := dec.Decode(ev.Payload); err != nil {
		return PriceTick{}, false
	}
	if p.Mid == nil || math.IsNaN(*p.Mid) || math.IsInf(*p.Mid, 0) {
		return PriceTick{}, false
	}

	return PriceTick{
		TsMs:     ev.TsMs,
		Mid:      *p.Mid,
		Provider: p.Provider,
		Symbol:   p.Symbol,
	}, true
}

// PriceEvent builds an EXTERNAL_PRICE event in the shape the collectors emit.
func PriceEvent(tsMs int64, provider, symbol string, bid, ask float64) Event {
	return New(tsMs, ExternalPrice, map[string]any{
		"provider": provider,
		"symbol":   symbol,
		"bid":      bid,
		"ask":      ask,
		"mid":      (bid + ask) / 2,
	})
}
