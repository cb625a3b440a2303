package candle

import (
	"errors"
	"fmt"
	"time"
)

// LabelLayout formats the local candle start with its UTC offset.
const LabelLayout = "2006-01-02T15:04:05-07:00"

// DefaultTimezone is the zone candles are aligned to unless configured.
const DefaultTimezone = "America/New_York"

// ErrInvalidWidth is returned for widths that do not tile an hour.
var ErrInvalidWidth = errors.New("candle width must be a whole number of minutes dividing 60")

// Bucketer maps tick timestamps to candle start times aligned to the wall
// clock of Loc.
type Bucketer struct {
	Width time.Duration
	Loc   *time.Location
}

// NewBucketer validates widthMinutes and loads tz.
func NewBucketer(widthMinutes int, tz string) (Bucketer, error) {
	if widthMinutes < 1 || 60%widthMinutes != 0 {
		return Bucketer{}, fmt.Errorf("%w: %d", ErrInvalidWidth, widthMinutes)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Bucketer{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return Bucketer{Width: time.Duration(widthMinutes) * time.Minute, Loc: loc}, nil
}

// Minutes returns the bucket width in minutes.
func (b Bucketer) Minutes() int {
	return int(b.Width / time.Minute)
}

// Bucket returns the candle start for tsMs as epoch milliseconds and as a
// local label. The local minute is floored to a multiple of the width and
// seconds are zeroed. The floored wall clock keeps the UTC offset in effect
// at the tick, so the start never lies after the tick, even across a DST
// transition.
func (b Bucketer) Bucket(tsMs int64) (int64, string) {
	loc := b.Loc
	if loc == nil {
		loc = time.UTC
	}
	w := b.Minutes()
	if w < 1 {
		w = 1
	}

	t := time.UnixMilli(tsMs).In(loc)
	name, offset := t.Zone()
	start := time.Date(
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute()-t.Minute()%w, 0, 0,
		time.FixedZone(name, offset),
	)
	return start.UnixMilli(), start.Format(LabelLayout)
}

// Kind returns the record discriminator for candles of the given width,
// e.g. CANDLE_5M.
func Kind(widthMinutes int) string {
	return fmt.Sprintf("CANDLE_%dM", widthMinutes)
}
