//go:build blackbox

package blackbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	out := run(t, "version")
	if !strings.Contains(out, "backsim version") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestRunNoop(t *testing.T) {
	dir := t.TempDir()
	bars := writeBars(t, dir, 24)

	out := run(t, "run", "--bars", bars, "--strategy", "noop")
	if !strings.Contains(out, "Simulation Result") {
		t.Fatalf("missing result block:\n%s", out)
	}
	if !strings.Contains(out, "Trades:        0") {
		t.Fatalf("noop should not trade:\n%s", out)
	}
}

func TestRunDeterministic(t *testing.T) {
	dir := t.TempDir()
	bars := writeBars(t, dir, 60)

	args := []string{"run", "--bars", bars,
		"--strategy", "ema-cross", "--fast", "5", "--slow", "12",
		"--quantity", "10", "--stop-dist", "1.5", "--seed", "42"}

	first := run(t, args...)
	second := run(t, args...)
	if first != second {
		t.Fatalf("same seed produced different output:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
	if !strings.Contains(first, "Simulation Result") {
		t.Fatalf("missing result block:\n%s", first)
	}
}

func TestRunWithSQLiteJournal(t *testing.T) {
	dir := t.TempDir()
	bars := writeBars(t, dir, 30)
	db := filepath.Join(dir, "journal.db")

	cfgPath := filepath.Join(dir, "sim.yaml")
	cfg := "account:\n  balance: 10000\njournal:\n  type: sqlite\n  db_path: " + db + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	run(t, "run", "--bars", bars, "--config", cfgPath, "--strategy", "open-once", "--quantity", "5")

	info, err := os.Stat(db)
	if err != nil {
		t.Fatalf("journal database not written: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("journal database is empty")
	}
}
