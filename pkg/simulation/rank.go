// Package simulation wires every per-rank component (space, plan,
// pathfinder, resource managers, entry source, exit sink) into the
// single Rank value the scheduler drives once per tick (spec §4.9,
// §5). scheduler.Cluster composes many Ranks bound to a shared in-memory
// transport.Hub into one runnable process.
package simulation

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/entrysource"
	"github.com/sti-hpc/hospicon/pkg/exitsink"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/logging"
	"github.com/sti-hpc/hospicon/pkg/metrics"
	"github.com/sti-hpc/hospicon/pkg/pathfinder"
	"github.com/sti-hpc/hospicon/pkg/patientfsm"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/resourcemgr"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/space"
	"github.com/sti-hpc/hospicon/pkg/transport"
	"github.com/sti-hpc/hospicon/pkg/triage"
)

const secondsPerDay = 24 * 60 * 60

// Rank is every component one simulation process owns: its slice of
// the hospital grid, the agents currently resident in it, and
// whichever resource manager authorities or proxies its properties
// file assigned it.
type Rank struct {
	ID         int32
	Clock      *simclock.Clock
	Space      *space.Space
	Partition  *space.Partition
	Plan       *plan.Plan
	Pathfinder *pathfinder.Pathfinder
	Stream     *rng.Stream

	Patients           map[agent.IDKey]*agent.Patient
	Fixtures           *agent.Fixtures
	Factory            *agent.Factory
	StaffByID          map[agent.IDKey]*agent.FixedPerson
	ObjectsByID        map[agent.IDKey]*agent.Object
	MaxContagionRadius float64

	HumanParams    infection.HumanParams
	ObjectParams   map[string]infection.ObjectParams
	InfectedChance float64

	Chairs    resourcemgr.ChairManager
	Reception resourcemgr.ServiceQueue
	Triage    resourcemgr.ServiceQueue
	Doctors   resourcemgr.DoctorQueues
	ICU       resourcemgr.ICUAdmission
	ICUEnv    infection.Environment

	FSM *patientfsm.Context

	EntrySource *entrysource.Source
	ExitSink    *exitsink.Sink

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Config bundles everything NewRank needs beyond the transport handle
// each resource manager is bound through.
type Config struct {
	RankID      int32
	Properties  *config.Properties
	Hospital    *config.HospitalSpec
	Patients    *config.PatientDistributionSpec
	Partition   *space.Partition
	Transport   transport.RankTransport
	RNGSeedBase int64
	Logger      logging.Logger
	Metrics     *metrics.Registry
}

// NewRank builds one rank's full component graph from its share of
// the static hospital document plus the properties file's manager
// rank assignments (spec §6).
func NewRank(cfg Config) (*Rank, error) {
	p, err := plan.FromSpec(cfg.Hospital.Building)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
	}
	params := cfg.Hospital.Parameters

	humanParams, err := infection.HumanParamsFromSpec(params.Human)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
	}

	objectParams := make(map[string]infection.ObjectParams, len(params.Objects))
	for tag, spec := range params.Objects {
		op, err := infection.ObjectParamsFromSpec(tag, spec)
		if err != nil {
			return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
		}
		objectParams[tag] = op
	}

	clock, err := simclock.New(cfg.Properties.SecondsPerTick)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
	}

	sp := space.New(cfg.Partition, cfg.RankID)
	stream := rng.New(cfg.RNGSeedBase, int(cfg.RankID))
	pf := pathfinder.New(p)
	factory := agent.NewFactory(cfg.RankID)

	fixtures, err := agent.BuildFixtures(factory, p, &params, clock.Now())
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
	}
	placeFixtures(sp, fixtures)
	staffByID, objectsByID := indexFixtures(fixtures)

	maxRadius := humanParams.InfectDistance
	for _, op := range objectParams {
		if op.Radius > maxRadius {
			maxRadius = op.Radius
		}
	}

	chairs := buildChairManager(cfg, p, fixtures)
	reception := buildQueueManager(cfg, transport.TagReception, cfg.Properties.ReceptionManagerRank, receptionBoxes(p))
	triageMgr := buildQueueManager(cfg, transport.TagTriage, cfg.Properties.TriageManagerRank, triageBoxes(p))
	doctors := buildDoctorManager(cfg, p)
	icu, icuEnv := buildICUManager(cfg, params.ICU)

	diagnoser, err := triage.NewDiagnoser(p, params.ICU.ReferralProbability, simclock.TimeDelta(params.Triage.DiagnosisWindow.Seconds))
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
	}

	doctorDurations := make(map[string]simclock.TimeDelta, len(params.Doctors))
	for name, d := range params.Doctors {
		doctorDurations[name] = simclock.TimeDelta(d.AttentionDuration.Seconds)
	}

	r := &Rank{
		ID:                 cfg.RankID,
		Clock:              clock,
		Space:              sp,
		Partition:          cfg.Partition,
		Plan:               p,
		Pathfinder:         pf,
		Stream:             stream,
		Patients:           make(map[agent.IDKey]*agent.Patient),
		Fixtures:           fixtures,
		Factory:            factory,
		StaffByID:          staffByID,
		ObjectsByID:        objectsByID,
		MaxContagionRadius: maxRadius,
		HumanParams:        humanParams,
		ObjectParams:       objectParams,
		InfectedChance:     cfg.Properties.PatientInfectedChance,
		Chairs:             chairs,
		Reception:          reception,
		Triage:             triageMgr,
		Doctors:            doctors,
		ICU:                icu,
		ICUEnv:             icuEnv,
		Logger:             cfg.Logger,
		Metrics:            cfg.Metrics,
	}

	r.FSM = &patientfsm.Context{
		Clock:             clock,
		Space:             sp,
		Plan:              p,
		Stream:            stream,
		Pathfinder:        pf,
		Chairs:            chairs,
		Reception:         reception,
		Triage:            triageMgr,
		Doctors:           doctors,
		ICU:               icu,
		Diagnoser:         diagnoser,
		WalkSpeed:         params.Patient.WalkSpeed,
		ReceptionDuration: simclock.TimeDelta(params.Reception.AttentionTime.Seconds),
		TriageDuration:    simclock.TimeDelta(params.Triage.AttentionTime.Seconds),
		DoctorDuration:    doctorDurations,
		ICUSleepTime:      params.ICU.SleepTime,
		ICUDeathProb:      params.ICU.DeathProbability,
	}

	if cfg.Partition.OwnerOf(p.Entry) == cfg.RankID {
		if len(cfg.Patients.Daily) == 0 {
			return nil, fmt.Errorf("rank %d: entry-owning rank requires a non-empty patient distribution", cfg.RankID)
		}
		intervalLength := uint64(secondsPerDay) / uint64(len(cfg.Patients.Daily[0]))
		src, err := entrysource.New(p, cfg.Patients, intervalLength)
		if err != nil {
			return nil, fmt.Errorf("rank %d: %w", cfg.RankID, err)
		}
		r.EntrySource = src
	}

	if cfg.Partition.OwnerOf(p.Exit) == cfg.RankID {
		r.ExitSink = exitsink.New(p.Exit)
	}

	return r, nil
}

func placeFixtures(sp *space.Space, fx *agent.Fixtures) {
	for _, f := range fx.Receptionists {
		sp.AddAgent(f.ID, f.Location)
	}
	for _, f := range fx.Doctors {
		sp.AddAgent(f.ID, f.Location)
	}
	for _, c := range fx.Chairs {
		sp.AddAgent(c.ID, c.Location)
	}
	for _, b := range fx.ICUBeds {
		sp.AddAgent(b.ID, b.Location)
	}
}

func indexFixtures(fx *agent.Fixtures) (map[agent.IDKey]*agent.FixedPerson, map[agent.IDKey]*agent.Object) {
	staff := make(map[agent.IDKey]*agent.FixedPerson)
	for _, f := range fx.Receptionists {
		staff[f.ID.Key()] = f
	}
	for _, f := range fx.TriageNurses {
		staff[f.ID.Key()] = f
	}
	for _, f := range fx.Doctors {
		staff[f.ID.Key()] = f
	}

	objects := make(map[agent.IDKey]*agent.Object)
	for _, c := range fx.Chairs {
		objects[c.ID.Key()] = c
	}
	for _, b := range fx.ICUBeds {
		objects[b.ID.Key()] = b
	}
	return staff, objects
}

func receptionBoxes(p *plan.Plan) []geometry.ContinuousCoord {
	boxes := make([]geometry.ContinuousCoord, len(p.Receptionists))
	for i, r := range p.Receptionists {
		boxes[i] = r.PatientCell.ToContinuous()
	}
	return boxes
}

func triageBoxes(p *plan.Plan) []geometry.ContinuousCoord {
	boxes := make([]geometry.ContinuousCoord, len(p.Triages))
	for i, t := range p.Triages {
		boxes[i] = t.PatientCell.ToContinuous()
	}
	return boxes
}

func buildChairManager(cfg Config, p *plan.Plan, fx *agent.Fixtures) resourcemgr.ChairManager {
	if cfg.Properties.ChairManagerRank == int(cfg.RankID) {
		locs := make([]geometry.ContinuousCoord, len(fx.Chairs))
		for i, c := range fx.Chairs {
			locs[i] = c.Location
		}
		return resourcemgr.NewChairAuthority(cfg.Transport, locs)
	}
	return resourcemgr.NewChairProxy(cfg.Transport)
}

func buildQueueManager(cfg Config, tag transport.Tag, managerRank int, boxes []geometry.ContinuousCoord) resourcemgr.ServiceQueue {
	if managerRank == int(cfg.RankID) {
		return resourcemgr.NewQueueAuthority(cfg.Transport, tag, boxes)
	}
	return resourcemgr.NewQueueProxy(cfg.Transport, tag)
}

func buildDoctorManager(cfg Config, p *plan.Plan) resourcemgr.DoctorQueues {
	if cfg.Properties.DoctorsManagerRank == int(cfg.RankID) {
		locations := make(map[string][]geometry.ContinuousCoord)
		for _, d := range p.Doctors {
			locations[d.Specialty] = append(locations[d.Specialty], d.PatientCell.ToContinuous())
		}
		return resourcemgr.NewDoctorAuthority(cfg.Transport, locations)
	}
	return resourcemgr.NewDoctorProxy(cfg.Transport)
}

func buildICUManager(cfg Config, icuParams config.ICUParamsSpec) (resourcemgr.ICUAdmission, infection.Environment) {
	if cfg.Properties.ICUManagerRank == int(cfg.RankID) {
		auth := resourcemgr.NewICUAuthority(cfg.Transport, icuParams.Beds)
		env := infection.NewICUEnvironment(icuParams.Environment.InfectionChance, func() (uint32, uint32) {
			return auth.ReservedBeds(), auth.Capacity()
		})
		return auth, env
	}
	return resourcemgr.NewICUProxy(cfg.Transport), infection.ZeroEnvironment{}
}
