package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
)

// Type identifies the kind of market or order event.
type Type string

const (
	ExternalPrice Type = "EXTERNAL_PRICE"
	VenueBook     Type = "VENUE_BOOK"
	VenueTrade    Type = "VENUE_TRADE"
	OrderSubmit   Type = "ORDER_SUBMIT"
	OrderAck      Type = "ORDER_ACK"
	OrderFill     Type = "ORDER_FILL"
	OrderCancel   Type = "ORDER_CANCEL"
	Connection    Type = "CONNECTION"
)

// Types lists every known event type.
var Types = []Type{
	ExternalPrice, VenueBook, VenueTrade,
	OrderSubmit, OrderAck, OrderFill, OrderCancel,
	Connection,
}

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	switch t {
	case ExternalPrice, VenueBook, VenueTrade, OrderSubmit, OrderAck, OrderFill, OrderCancel, Connection:
		return true
	}
	return false
}

// Errors returned by ParseLine.
var (
	ErrMalformed   = errors.New("malformed event line")
	ErrUnknownType = errors.New("unknown event type")
)

// Event is one timestamped record in the event log. Payload is owned by the
// event once constructed and must not be mutated by consumers.
type Event struct {
	TsMs    int64          `json:"ts_ms"`
	Type    Type           `json:"type"`
	Payload map[string]any `json:"payload"`
}

// New builds an event with a shallow copy of payload. A nil payload becomes
// an empty object.
func New(tsMs int64, typ Type, payload map[string]any) Event {
	p := make(map[string]any, len(payload))
	maps.Copy(p, payload)
	return Event{TsMs: tsMs, Type: typ, Payload: p}
}

// Emitter receives events produced by collectors and the paper engine.
type Emitter func(Event)

// MarshalLine encodes ev as a single JSON line including the trailing newline.
// HTML characters are not escaped so payload strings round-trip verbatim.
func MarshalLine(ev Event) ([]byte, error) {
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return buf.Bytes(), nil
}

// wireEvent is the loosely typed form used while validating a line.
type wireEvent struct {
	TsMs    json.Number     `json:"ts_ms"`
	Type    *string         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseLine decodes one log line. Numbers inside the payload are kept as
// json.Number so integers survive a read/write cycle unchanged.
func ParseLine(line []byte) (Event, error) {
	var w wireEvent
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// Anything after the object, including a second record, makes the
	// whole line malformed.
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return Event{}, fmt.Errorf("%w: trailing data after event", ErrMalformed)
	}

	if w.TsMs == "" {
		return Event{}, fmt.Errorf("%w: missing ts_ms", ErrMalformed)
	}
	ts, err := parseTimestamp(w.TsMs)
	if err != nil {
		return Event{}, err
	}

	if w.Type == nil {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	typ := Type(*w.Type)
	if !typ.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, *w.Type)
	}

	payload := map[string]any{}
	if len(w.Payload) > 0 && !bytes.Equal(bytes.TrimSpace(w.Payload), []byte("null")) {
		pdec := json.NewDecoder(bytes.NewReader(w.Payload))
		pdec.UseNumber()
		if err := pdec.Decode(&payload); err != nil {
			return Event{}, fmt.Errorf("%w: payload is not an object", ErrMalformed)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}

	return Event{TsMs: ts, Type: typ, Payload: payload}, nil
}

func parseTimestamp(n json.Number) (int64, error) {
	if ts, err := n.Int64(); err == nil {
		return ts, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: ts_ms %q is not an integer", ErrMalformed, n.String())
	}
	return int64(f), nil
}
