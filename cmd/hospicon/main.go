// Command hospicon runs a single-binary, multi-rank hospital
// contagion simulation. Usage (spec §6):
//
//	hospicon simulate <config_file> <properties_file> [--debug]
//
// config_file is the YAML run configuration (output location, RNG
// seed, observability endpoints, optional archival sinks);
// properties_file is the key=value properties document naming the
// tick length, process grid, resource-manager rank assignments, and
// the hospital/patient-distribution document paths. Exit code 0 on
// clean completion; non-zero on an unrecoverable validation error
// (probability out of range, distribution sum mismatch, plan load
// failure, JSON schema mismatch).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/exitsink"
	"github.com/sti-hpc/hospicon/pkg/logging"
	"github.com/sti-hpc/hospicon/pkg/metrics"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/resourcemgr"
	"github.com/sti-hpc/hospicon/pkg/scheduler"
	"github.com/sti-hpc/hospicon/pkg/simulation"
	"github.com/sti-hpc/hospicon/pkg/space"
	"github.com/sti-hpc/hospicon/pkg/stats"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

func main() {
	flags := flag.NewFlagSet("hospicon", flag.ExitOnError)
	debug := flags.Bool("debug", false, "pause at startup for a debugger to attach")

	if len(os.Args) < 2 || os.Args[1] != "simulate" {
		fmt.Fprintln(os.Stderr, "usage: hospicon simulate <config_file> <properties_file> [--debug]")
		os.Exit(2)
	}
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	args := flags.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hospicon simulate <config_file> <properties_file> [--debug]")
		os.Exit(2)
	}
	configPath, propertiesPath := args[0], args[1]

	if *debug {
		fmt.Fprintln(os.Stderr, "hospicon: --debug set, waiting for debugger attach (blocks until the process is killed)")
		select {}
	}

	if err := run(configPath, propertiesPath); err != nil {
		fmt.Fprintf(os.Stderr, "hospicon: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, propertiesPath string) error {
	runCfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading run config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(runCfg.LogLevel))

	props, err := config.LoadProperties(propertiesPath)
	if err != nil {
		return fmt.Errorf("loading properties: %w", err)
	}

	hospital, err := config.LoadHospitalSpec(props.PlanPath)
	if err != nil {
		return fmt.Errorf("loading hospital plan: %w", err)
	}
	if _, err := plan.FromSpec(hospital.Building); err != nil {
		return fmt.Errorf("validating hospital plan: %w", err)
	}

	patients, err := config.LoadPatientDistribution(props.PatientsPath)
	if err != nil {
		return fmt.Errorf("loading patient distribution: %w", err)
	}

	reg := metrics.NewRegistry()
	if runCfg.MetricsAddr != "" {
		startMetricsServer(logger, reg, runCfg.MetricsAddr)
	}

	partition := space.NewPartition(hospital.Building.Width, hospital.Building.Height, props.XProcess, props.YProcess)
	rankCount := props.XProcess * props.YProcess
	hub := transport.NewHub(rankCount, rankCount*4)

	if err := os.MkdirAll(runCfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	ranks := make([]*simulation.Rank, 0, rankCount)
	recorders := make(map[int32]*stats.Recorder, rankCount)
	for id := int32(0); id < int32(rankCount); id++ {
		r, err := simulation.NewRank(simulation.Config{
			RankID:      id,
			Properties:  props,
			Hospital:    hospital,
			Patients:    patients,
			Partition:   partition,
			Transport:   hub.For(id),
			RNGSeedBase: runCfg.RNGSeedBase,
			Logger:      logger.With(logging.Rank(id)),
			Metrics:     reg,
		})
		if err != nil {
			return fmt.Errorf("constructing rank %d: %w", id, err)
		}
		ranks = append(ranks, r)

		rec, err := stats.New(runCfg.OutputDir, id)
		if err != nil {
			return fmt.Errorf("opening stats recorder for rank %d: %w", id, err)
		}
		if err := rec.WriteStaff(r.Fixtures); err != nil {
			return fmt.Errorf("writing staff roster for rank %d: %w", id, err)
		}
		recorders[id] = rec
	}
	defer func() {
		for _, rec := range recorders {
			rec.Close()
		}
	}()

	cluster := scheduler.NewCluster(ranks)

	summaries := make(map[int32]*stats.RankSummary, len(ranks))
	for _, r := range ranks {
		summaries[r.ID] = &stats.RankSummary{Rank: r.ID}
	}

	for tick := uint64(0); tick < props.StopAt; tick++ {
		results, err := cluster.Tick()
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		if err := sampleOutputs(ranks, results, recorders, summaries); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}

	final := make([]stats.RankSummary, 0, len(summaries))
	for _, r := range ranks {
		final = append(final, *summaries[r.ID])
	}
	if err := stats.WriteResults(runCfg.OutputDir, final); err != nil {
		return fmt.Errorf("writing results.csv: %w", err)
	}

	if runCfg.StatsSQLitePath != "" {
		if err := archiveSQLite(runCfg.StatsSQLitePath, final); err != nil {
			return err
		}
	}
	if runCfg.StatsPostgresDSN != "" {
		if err := archivePostgres(runCfg.StatsPostgresDSN, final); err != nil {
			return err
		}
	}
	if runCfg.ArchiveS3Bucket != "" {
		if err := archiveS3(runCfg.ArchiveS3Bucket, runCfg.ArchiveS3Prefix, runCfg.OutputDir); err != nil {
			return err
		}
	}

	logger.Info("simulation complete", logging.Tick(props.StopAt), logging.Count(len(ranks)))
	return nil
}

// sampleOutputs appends this tick's per-rank ICU status, ICU
// admission/release, and pathfinder cache samples, and accumulates
// each rank's lifetime result summary.
func sampleOutputs(ranks []*simulation.Rank, results map[int32]scheduler.Result, recorders map[int32]*stats.Recorder, summaries map[int32]*stats.RankSummary) error {
	for _, r := range ranks {
		rec := recorders[r.ID]
		summary := summaries[r.ID]
		tick := r.Clock.Tick()

		if auth, ok := r.ICU.(*resourcemgr.ICUAuthority); ok {
			if err := rec.RecordICUStatus(tick, auth.ReservedBeds(), auth.Capacity()); err != nil {
				return err
			}
			for _, evt := range auth.DrainEvents() {
				if err := rec.RecordICUEvent(tick, evt.AgentID, evt.Kind); err != nil {
					return err
				}
			}
		}
		if err := rec.RecordPathfinderSample(tick, r.Pathfinder.CacheMisses()); err != nil {
			return err
		}

		res := results[r.ID]
		summary.Ticks = tick
		summary.Admissions += res.Admissions
		for _, dep := range res.Departures {
			if dep.Outcome == exitsink.OutcomeDeceased {
				summary.Deaths++
			} else {
				summary.Discharges++
			}
		}
		summary.MigrantsOut += len(res.Migrations)
		for _, mig := range res.Migrations {
			if destSummary, ok := summaries[mig.Event.NewRank]; ok {
				destSummary.MigrantsIn++
			}
		}
	}
	return nil
}

func startMetricsServer(logger logging.Logger, reg *metrics.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", logging.Error(err))
		}
	}()
}

func archiveSQLite(path string, summaries []stats.RankSummary) error {
	a, err := stats.OpenSQLiteArchive(path)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.WriteResults(summaries)
}

func archivePostgres(dsn string, summaries []stats.RankSummary) error {
	ctx := context.Background()
	a, err := stats.OpenPostgresArchive(ctx, dsn)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.WriteResults(ctx, fmt.Sprintf("run-%d", time.Now().UnixNano()), summaries)
}

func archiveS3(bucket, prefix, outputDir string) error {
	ctx := context.Background()
	a, err := stats.NewS3Archive(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	return a.UploadDir(ctx, outputDir)
}
