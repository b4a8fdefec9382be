//go:build blackbox

package blackbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeBars generates an hourly EUR_USD bar CSV with a rising then falling
// close so crossover strategies have something to trade.
func writeBars(t *testing.T, dir string, n int) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,instrument,open,high,low,close,volume\n")

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := 0.4
		if i > n/2 {
			drift = -0.6
		}
		open := price
		price += drift
		hi, lo := open, price
		if lo > hi {
			hi, lo = lo, hi
		}
		fmt.Fprintf(&b, "%s,EUR_USD,%.4f,%.4f,%.4f,%.4f,%.0f\n",
			base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339),
			open, hi+0.3, lo-0.3, price, 120.0)
	}

	path := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
