package agent

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/golang/snappy"
	"golang.org/x/crypto/blake2b"

	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// PatientSnapshot is the wire form of a Patient crossing a rank
// boundary at a space migration barrier (spec §4.E). It carries the
// infection cycle's dynamic state but not its HumanParams flyweight;
// the importing rank supplies its own local copy of that (identical
// across ranks, since every process loads the same hospital document).
type PatientSnapshot struct {
	ID    ID
	State PatientState

	StateEnteredAt simclock.DateTime

	PreAdmittedInfected bool

	AssignedChair    *geometry.ContinuousCoord
	AssignedReceptor *geometry.ContinuousCoord
	AssignedTriage   *geometry.ContinuousCoord
	Specialty        string
	AssignedDoctor   *geometry.ContinuousCoord
	TimerDeadline    simclock.DateTime
	AssignedICU      *geometry.ContinuousCoord
	DiagnosedICU     bool

	ICUSleepUntil  simclock.DateTime
	SurvivalRolled bool
	Survived       bool

	Cycle infection.HumanCycleState
}

func toSnapshot(p *Patient) PatientSnapshot {
	return PatientSnapshot{
		ID:                  p.ID,
		State:               p.State,
		StateEnteredAt:      p.StateEnteredAt,
		PreAdmittedInfected: p.PreAdmittedInfected,
		AssignedChair:       p.AssignedChair,
		AssignedReceptor:    p.AssignedReceptor,
		AssignedTriage:      p.AssignedTriage,
		Specialty:           p.Specialty,
		AssignedDoctor:      p.AssignedDoctor,
		TimerDeadline:       p.TimerDeadline,
		AssignedICU:         p.AssignedICU,
		DiagnosedICU:        p.DiagnosedICU,
		ICUSleepUntil:       p.ICUSleepUntil,
		SurvivalRolled:      p.SurvivalRolled,
		Survived:            p.Survived,
		Cycle:               p.Cycle.Snapshot(),
	}
}

func fromSnapshot(s PatientSnapshot, params infection.HumanParams) *Patient {
	return &Patient{
		ID:                  s.ID,
		Cycle:               infection.RestoreHumanCycle(params, s.Cycle),
		State:               s.State,
		StateEnteredAt:      s.StateEnteredAt,
		PreAdmittedInfected: s.PreAdmittedInfected,
		AssignedChair:       s.AssignedChair,
		AssignedReceptor:    s.AssignedReceptor,
		AssignedTriage:      s.AssignedTriage,
		Specialty:           s.Specialty,
		AssignedDoctor:      s.AssignedDoctor,
		TimerDeadline:       s.TimerDeadline,
		AssignedICU:         s.AssignedICU,
		DiagnosedICU:        s.DiagnosedICU,
		ICUSleepUntil:       s.ICUSleepUntil,
		SurvivalRolled:      s.SurvivalRolled,
		Survived:            s.Survived,
	}
}

// checksumSize is blake2b-256's digest length, appended to every
// encoded payload so DeserializePatient can detect truncation or
// corruption before gob ever touches the bytes (spec §4.E).
const checksumSize = 32

// SerializePatient encodes a patient crossing a rank boundary:
// gob-encode the wire snapshot, snappy-compress it, then append a
// blake2b-256 checksum of the compressed bytes.
func SerializePatient(p *Patient) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toSnapshot(p)); err != nil {
		return nil, fmt.Errorf("serialize patient %v: encode: %w", p.ID, err)
	}
	compressed := snappy.Encode(nil, buf.Bytes())
	sum := blake2b.Sum256(compressed)
	return append(compressed, sum[:]...), nil
}

// DeserializePatient reverses SerializePatient, verifying the
// checksum before decompressing or decoding untrusted bytes, and
// reattaching the importing rank's local HumanParams flyweight.
func DeserializePatient(data []byte, params infection.HumanParams) (*Patient, error) {
	if len(data) < checksumSize {
		return nil, fmt.Errorf("deserialize patient: payload too short (%d bytes)", len(data))
	}
	split := len(data) - checksumSize
	compressed, wantSum := data[:split], data[split:]

	gotSum := blake2b.Sum256(compressed)
	if !bytes.Equal(gotSum[:], wantSum) {
		return nil, fmt.Errorf("deserialize patient: checksum mismatch, payload corrupted in transit")
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("deserialize patient: decompress: %w", err)
	}

	var snap PatientSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("deserialize patient: decode: %w", err)
	}
	return fromSnapshot(snap, params), nil
}
