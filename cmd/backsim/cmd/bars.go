package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/backsim/market"
)

// loadBars reads a bar CSV (time,instrument,open,high,low,close,volume) into
// a series. A header row is detected and skipped. Timestamps are RFC3339.
func loadBars(path, instrument string) (*market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	series := market.NewSeries(instrument)
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line++

		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%s line %d: bad time %q", path, line, rec[0])
		}
		if rec[1] != instrument {
			continue
		}

		vals := make([]float64, 5)
		for i, field := range rec[2:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad number %q", path, line, field)
			}
			vals[i] = v
		}

		bar := market.Bar{
			Instrument: instrument,
			Time:       ts,
			Open:       vals[0],
			High:       vals[1],
			Low:        vals[2],
			Close:      vals[3],
			Volume:     vals[4],
		}
		if err := series.Append(bar); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}

	if series.Len() == 0 {
		return nil, fmt.Errorf("%s: no bars for %s", path, instrument)
	}
	return series, nil
}
