package market

import (
	"fmt"
	"time"
)

// Series is an ordered collection of bars for one instrument.
//
// Append enforces strictly increasing timestamps: gaps are allowed,
// duplicates are not. A Series is the only bar container the engine
// accepts, so ordering is checked once at ingestion and never again.
type Series struct {
	instrument string
	bars       []Bar
}

// NewSeries returns an empty series for the given instrument.
func NewSeries(instrument string) *Series {
	return &Series{instrument: instrument}
}

// SeriesFromBars builds a series from a pre-ordered slice of bars.
func SeriesFromBars(instrument string, bars []Bar) (*Series, error) {
	s := NewSeries(instrument)
	for _, b := range bars {
		if err := s.Append(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Series) Instrument() string { return s.instrument }

func (s *Series) Len() int { return len(s.bars) }

// At returns the bar at index i. Panics on out-of-range like a slice would.
func (s *Series) At(i int) Bar { return s.bars[i] }

// Bars returns the underlying slice. Callers must not mutate it.
func (s *Series) Bars() []Bar { return s.bars }

// Last returns the most recent bar, or false if the series is empty.
func (s *Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Append validates b and adds it to the series. The bar must belong to this
// series' instrument and carry a timestamp strictly after the previous bar.
func (s *Series) Append(b Bar) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Instrument != s.instrument {
		return fmt.Errorf("series %s: bar for %s", s.instrument, b.Instrument)
	}
	if last, ok := s.Last(); ok {
		if !b.Time.After(last.Time) {
			return fmt.Errorf("series %s: bar at %s not after previous bar at %s",
				s.instrument, b.Time.Format(time.RFC3339), last.Time.Format(time.RFC3339))
		}
	}
	s.bars = append(s.bars, b)
	return nil
}
