package book

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Shape identifies the schema a quote was read from.
type Shape int

const (
	ShapeNone       Shape = iota
	ShapeBidAsk           // raw.bid / raw.ask
	ShapeBestBidAsk       // raw.best_bid / raw.best_ask
	ShapeYesBidAsk        // raw.yes_bid / raw.yes_ask
)

func (s Shape) String() string {
	switch s {
	case ShapeBidAsk:
		return "bid_ask"
	case ShapeBestBidAsk:
		return "best_bid_ask"
	case ShapeYesBidAsk:
		return "yes_bid_ask"
	}
	return "none"
}

// Keys returns the bid and ask key names of the shape.
func (s Shape) Keys() (bid, ask string) {
	switch s {
	case ShapeBidAsk:
		return "bid", "ask"
	case ShapeBestBidAsk:
		return "best_bid", "best_ask"
	case ShapeYesBidAsk:
		return "yes_bid", "yes_ask"
	}
	return "", ""
}

// Shapes lists the shapes in detection order.
var Shapes = []Shape{ShapeBidAsk, ShapeBestBidAsk, ShapeYesBidAsk}

// Quote is a resolved top of book in integer cents.
type Quote struct {
	Shape Shape
	Bid   int
	Ask   int
}

// Resolve reads the top of book from payload["raw"]. It returns false when
// raw is missing or not an object, or when no shape has both keys parse as
// integers. A shape with only one usable key is skipped entirely.
func Resolve(payload map[string]any) (Quote, bool) {
	raw, ok := payload["raw"].(map[string]any)
	if !ok {
		return Quote{}, false
	}
	for _, s := range Shapes {
		bk, ak := s.Keys()
		bid, ok := Int(raw[bk])
		if !ok {
			continue
		}
		ask, ok := Int(raw[ak])
		if !ok {
			continue
		}
		return Quote{Shape: s, Bid: bid, Ask: ask}, true
	}
	return Quote{}, false
}

// Int converts a payload value to an integer. Floats truncate toward zero
// and strings may carry surrounding whitespace. Booleans, non-finite floats
// and non-integer strings are rejected.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return truncate(n)
	case float32:
		return truncate(float64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return truncate(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func truncate(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Trunc(f)), true
}
