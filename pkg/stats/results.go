package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// RankSummary is one rank's lifetime totals, tallied by the scheduler
// as it runs and handed to WriteResults once the run completes.
type RankSummary struct {
	Rank        int32
	Ticks       uint64
	Admissions  int
	Discharges  int
	Deaths      int
	NoAttention int
	MigrantsIn  int
	MigrantsOut int
}

// WriteResults persists results.csv, the one cross-rank summary spec
// §6 names among the run's persisted outputs: one row per rank plus a
// final totals row.
func WriteResults(dir string, summaries []RankSummary) error {
	f, err := os.Create(filepath.Join(dir, "results.csv"))
	if err != nil {
		return fmt.Errorf("stats: creating results.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"rank", "ticks", "admissions", "discharges", "deaths", "no_attention", "migrants_in", "migrants_out"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("stats: writing results.csv header: %w", err)
	}

	var total RankSummary
	for _, s := range summaries {
		if err := w.Write(resultRow(strconv.FormatInt(int64(s.Rank), 10), s)); err != nil {
			return fmt.Errorf("stats: writing results.csv row: %w", err)
		}
		if s.Ticks > total.Ticks {
			total.Ticks = s.Ticks
		}
		total.Admissions += s.Admissions
		total.Discharges += s.Discharges
		total.Deaths += s.Deaths
		total.NoAttention += s.NoAttention
		total.MigrantsIn += s.MigrantsIn
		total.MigrantsOut += s.MigrantsOut
	}
	if err := w.Write(resultRow("total", total)); err != nil {
		return fmt.Errorf("stats: writing results.csv totals row: %w", err)
	}

	w.Flush()
	return w.Error()
}

func resultRow(label string, s RankSummary) []string {
	return []string{
		label,
		strconv.FormatUint(s.Ticks, 10),
		strconv.Itoa(s.Admissions),
		strconv.Itoa(s.Discharges),
		strconv.Itoa(s.Deaths),
		strconv.Itoa(s.NoAttention),
		strconv.Itoa(s.MigrantsIn),
		strconv.Itoa(s.MigrantsOut),
	}
}
