package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresArchive mirrors run results into Postgres for deployments
// that centralize output from many simulation processes, following
// the teacher's own pgxpool connection-pool setup (pkg/licensing's
// PGStore: bounded pool, migrate-on-connect, explicit ping).
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// OpenPostgresArchive connects to dsn and ensures the results table
// exists.
func OpenPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("stats: parsing postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("stats: creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("stats: postgres unreachable: %w", err)
	}

	a := &PostgresArchive{pool: pool}
	if err := a.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *PostgresArchive) migrate(ctx context.Context) error {
	const schema = `
create table if not exists hospicon_results (
	run_id text not null,
	rank integer not null,
	ticks bigint not null,
	admissions integer not null,
	discharges integer not null,
	deaths integer not null,
	no_attention integer not null,
	migrants_in integer not null,
	migrants_out integer not null,
	primary key (run_id, rank)
);
`
	_, err := a.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("stats: migrating postgres archive: %w", err)
	}
	return nil
}

// WriteResults mirrors the final per-rank summaries into Postgres
// under runID, so multiple runs can share one results table.
func (a *PostgresArchive) WriteResults(ctx context.Context, runID string, summaries []RankSummary) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stats: beginning postgres results transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range summaries {
		_, err := tx.Exec(ctx, `insert into hospicon_results
			(run_id, rank, ticks, admissions, discharges, deaths, no_attention, migrants_in, migrants_out)
			values($1, $2, $3, $4, $5, $6, $7, $8, $9)
			on conflict (run_id, rank) do update set
				ticks = excluded.ticks,
				admissions = excluded.admissions,
				discharges = excluded.discharges,
				deaths = excluded.deaths,
				no_attention = excluded.no_attention,
				migrants_in = excluded.migrants_in,
				migrants_out = excluded.migrants_out`,
			runID, s.Rank, s.Ticks, s.Admissions, s.Discharges, s.Deaths, s.NoAttention, s.MigrantsIn, s.MigrantsOut,
		)
		if err != nil {
			return fmt.Errorf("stats: writing postgres results row: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Close releases the connection pool.
func (a *PostgresArchive) Close() {
	a.pool.Close()
}
