package sim

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Side is the direction of an order intent.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// ContractYes is the default contract quoted by the strategy.
const ContractYes = "YES"

// Intent is an order the strategy wants placed. Price is in integer cents.
type Intent struct {
	Side     Side    `json:"side" mapstructure:"side"`
	Price    int     `json:"price" mapstructure:"price"`
	Qty      float64 `json:"qty" mapstructure:"qty"`
	Contract string  `json:"contract" mapstructure:"contract"`
}

// Payload returns the intent as an event payload object.
func (i Intent) Payload() map[string]any {
	return map[string]any{
		"side":     string(i.Side),
		"price":    i.Price,
		"qty":      i.Qty,
		"contract": i.Contract,
	}
}

// DecodeIntent reads an intent back from an event payload, for example the
// "intent" object of an ORDER_ACK. Numbers may be json.Number or strings.
func DecodeIntent(v any) (Intent, error) {
	var in Intent
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &in,
	})
	if err != nil {
		return Intent{}, err
	}
	if err := dec.Decode(v); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	if !in.Side.Valid() {
		return Intent{}, fmt.Errorf("decode intent: invalid side %q", in.Side)
	}
	return in, nil
}
