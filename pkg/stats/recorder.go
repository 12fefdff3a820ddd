// Package stats writes the per-process persisted outputs spec §6
// names: ICU occupancy and admission/release CSVs, a staff roster
// JSON document, a pathfinder cache-efficiency CSV, and a final
// results summary row. One Recorder is opened per rank and owns every
// file that rank's process writes, following the teacher's own
// per-instance file-suffix convention (kentwait-contagion's CSVLogger
// names each output "<base>.<instance>.<suffix>.csv").
package stats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sti-hpc/hospicon/pkg/agent"
)

// Recorder owns every output file one rank's process writes over the
// course of a simulation run.
type Recorder struct {
	rank int32

	icuStatusFile *os.File
	icuStatus     *csv.Writer

	icuEventsFile *os.File
	icuEvents     *csv.Writer

	pathfinderFile *os.File
	pathfinder     *csv.Writer

	dir string
}

// New opens every per-rank output file under dir, writing each one's
// header row, and returns a Recorder ready to accept ticks. dir is
// created if it does not already exist.
func New(dir string, rank int32) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stats: creating output dir: %w", err)
	}

	r := &Recorder{rank: rank, dir: dir}

	var err error
	if r.icuStatusFile, r.icuStatus, err = openCSV(dir, fmt.Sprintf("icu_status_in_process_%d.csv", rank),
		[]string{"tick", "beds_reserved", "beds_capacity"}); err != nil {
		return nil, err
	}
	if r.icuEventsFile, r.icuEvents, err = openCSV(dir, fmt.Sprintf("icu_admissions_and_releases_in_process_%d.csv", rank),
		[]string{"tick", "agent_id", "event"}); err != nil {
		return nil, err
	}
	if r.pathfinderFile, r.pathfinder, err = openCSV(dir, fmt.Sprintf("pathfinder.p%d.csv", rank),
		[]string{"tick", "cache_misses"}); err != nil {
		return nil, err
	}

	return r, nil
}

func openCSV(dir, name string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("stats: creating %s: %w", name, err)
	}
	w := csv.NewWriter(bufio.NewWriter(f))
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stats: writing %s header: %w", name, err)
	}
	return f, w, nil
}

// RecordICUStatus appends one sampled ICU occupancy row. Called once
// per tick after the synchronization barrier, only on the rank
// hosting the ICU authority.
func (r *Recorder) RecordICUStatus(tick uint64, reserved, capacity uint32) error {
	return r.icuStatus.Write([]string{
		strconv.FormatUint(tick, 10),
		strconv.FormatUint(uint64(reserved), 10),
		strconv.FormatUint(uint64(capacity), 10),
	})
}

// RecordICUEvent appends one admission or release event, event being
// "admission" or "release".
func (r *Recorder) RecordICUEvent(tick uint64, id agent.ID, event string) error {
	return r.icuEvents.Write([]string{
		strconv.FormatUint(tick, 10),
		id.String(),
		event,
	})
}

// RecordPathfinderSample appends one pathfinder cache-efficiency
// sample, sampled once per tick (spec §4.9 step 6 "optional stats
// sampling").
func (r *Recorder) RecordPathfinderSample(tick, cacheMisses uint64) error {
	return r.pathfinder.Write([]string{
		strconv.FormatUint(tick, 10),
		strconv.FormatUint(cacheMisses, 10),
	})
}

// staffRecord is one entry of the staff roster document persisted to
// staff.pN.json.
type staffRecord struct {
	ID       string  `json:"id"`
	Role     string  `json:"role"`
	Specialty string `json:"specialty,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// WriteStaff persists the full staff roster for this rank as
// staff.pN.json, once, at startup.
func (r *Recorder) WriteStaff(fx *agent.Fixtures) error {
	records := make([]staffRecord, 0, len(fx.Receptionists)+len(fx.TriageNurses)+len(fx.Doctors))
	add := func(f *agent.FixedPerson) {
		rec := staffRecord{ID: f.ID.String(), Role: f.Role.String(), Specialty: f.Specialty}
		rec.X, rec.Y = f.Location.X, f.Location.Y
		records = append(records, rec)
	}
	for _, f := range fx.Receptionists {
		add(f)
	}
	for _, f := range fx.TriageNurses {
		add(f)
	}
	for _, f := range fx.Doctors {
		add(f)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshaling staff roster: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("staff.p%d.json", r.rank))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("stats: writing %s: %w", path, err)
	}
	return nil
}

// Close flushes and closes every open output file. results.csv is not
// one of them: the package-level WriteResults writes it separately.
func (r *Recorder) Close() error {
	r.icuStatus.Flush()
	r.icuEvents.Flush()
	r.pathfinder.Flush()

	var firstErr error
	for _, err := range []error{r.icuStatus.Error(), r.icuEvents.Error(), r.pathfinder.Error()} {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range []*os.File{r.icuStatusFile, r.icuEventsFile, r.pathfinderFile} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
