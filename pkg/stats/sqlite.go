package stats

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteArchive mirrors the ICU status samples and the final per-rank
// results summaries into a single SQLite database (the ICU event and
// pathfinder CSVs are not mirrored), following the teacher pack's own per-run SQLite logger
// convention (contagion simulation's SQLiteLogger opens one database
// per output and issues plain Exec/Prepare calls inside a
// transaction).
type SQLiteArchive struct {
	db *sql.DB
}

// OpenSQLiteArchive opens (creating if necessary) the results database
// at path and ensures its tables exist.
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("stats: opening sqlite archive: %w", err)
	}
	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	const schema = `
create table if not exists icu_status (
	rank integer not null,
	tick integer not null,
	beds_reserved integer not null,
	beds_capacity integer not null
);
create table if not exists results (
	rank integer not null primary key,
	ticks integer not null,
	admissions integer not null,
	discharges integer not null,
	deaths integer not null,
	no_attention integer not null,
	migrants_in integer not null,
	migrants_out integer not null
);
`
	_, err := a.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("stats: migrating sqlite archive: %w", err)
	}
	return nil
}

// RecordICUStatus mirrors one ICU occupancy sample into the archive.
func (a *SQLiteArchive) RecordICUStatus(rank int32, tick uint64, reserved, capacity uint32) error {
	_, err := a.db.Exec(
		"insert into icu_status(rank, tick, beds_reserved, beds_capacity) values(?, ?, ?, ?)",
		rank, tick, reserved, capacity,
	)
	return err
}

// WriteResults mirrors the final per-rank summaries into the archive.
func (a *SQLiteArchive) WriteResults(summaries []RankSummary) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("stats: beginning sqlite results transaction: %w", err)
	}
	stmt, err := tx.Prepare(`insert or replace into results
		(rank, ticks, admissions, discharges, deaths, no_attention, migrants_in, migrants_out)
		values(?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("stats: preparing sqlite results insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range summaries {
		if _, err := stmt.Exec(s.Rank, s.Ticks, s.Admissions, s.Discharges, s.Deaths, s.NoAttention, s.MigrantsIn, s.MigrantsOut); err != nil {
			tx.Rollback()
			return fmt.Errorf("stats: writing sqlite results row: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
