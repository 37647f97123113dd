package cluster

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// zero-infrastructure driver for local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS venues (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	seq        INTEGER
);

CREATE TABLE IF NOT EXISTS clusters (
	id           TEXT PRIMARY KEY,
	lat          REAL NOT NULL,
	lng          REAL NOT NULL,
	radius       REAL NOT NULL,
	cluster_type INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	seq          INTEGER
);

CREATE INDEX IF NOT EXISTS idx_clusters_cluster_type ON clusters(cluster_type);
CREATE INDEX IF NOT EXISTS idx_clusters_coords ON clusters(cluster_type, lat, lng);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nextSeq keeps insertion order queryable; SQLite datetime resolution is one
// second, too coarse to order rows created within one run.
func (s *SQLiteStore) nextSeq(ctx context.Context, table string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM `+table).Scan(&seq)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: next seq for %s", table)
	}
	return seq.Int64 + 1, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, gen Generation) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE cluster_type = ?`, int(gen))
	return eris.Wrapf(err, "sqlite: clear generation %s", gen)
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, c *Cluster) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	seq, err := s.nextSeq(ctx, "clusters")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clusters (id, lat, lng, radius, cluster_type, seq) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Center.Lat, c.Center.Lng, c.Radius, int(c.Generation), seq,
	)
	return eris.Wrap(err, "sqlite: create cluster")
}

// Query implements Store.
func (s *SQLiteStore) Query(ctx context.Context, gens ...Generation) ([]Cluster, error) {
	if len(gens) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(gens))
	args := make([]any, len(gens))
	for i, g := range gens {
		placeholders[i] = "?"
		args[i] = int(g)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lat, lng, radius, cluster_type FROM clusters WHERE cluster_type IN (`+
			strings.Join(placeholders, ", ")+`) ORDER BY seq`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query clusters")
	}
	defer rows.Close()

	var clusters []Cluster
	for rows.Next() {
		var c Cluster
		var id string
		var clusterType int
		if err := rows.Scan(&id, &c.Center.Lat, &c.Center.Lng, &c.Radius, &clusterType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster row")
		}
		c.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse cluster id %s", id)
		}
		c.Generation = Generation(clusterType)
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "sqlite: iterate cluster rows")
}

// DeleteMatching implements Store.
func (s *SQLiteStore) DeleteMatching(ctx context.Context, gen Generation, points []geo.Point) (int64, error) {
	var deleted int64
	for _, p := range points {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM clusters WHERE cluster_type = ? AND lat = ? AND lng = ?`,
			int(gen), p.Lat, p.Lng,
		)
		if err != nil {
			return deleted, eris.Wrapf(err, "sqlite: delete matching clusters in %s", gen)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, eris.Wrap(err, "sqlite: rows affected")
		}
		deleted += n
	}
	return deleted, nil
}

// DeleteByIDs implements Store.
func (s *SQLiteStore) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM clusters WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete clusters by id")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// CountByGeneration implements Store.
func (s *SQLiteStore) CountByGeneration(ctx context.Context, gen Generation) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM clusters WHERE cluster_type = ?`, int(gen),
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count generation %s", gen)
	}
	return count, nil
}

// InsertVenues implements Store.
func (s *SQLiteStore) InsertVenues(ctx context.Context, venues []Venue) (int64, error) {
	if len(venues) == 0 {
		return 0, nil
	}

	seq, err := s.nextSeq(ctx, "venues")
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin venue insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO venues (id, name, lat, lng, seq) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare venue insert")
	}
	defer stmt.Close()

	var inserted int64
	for _, v := range venues {
		id := v.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, id.String(), v.Name, v.Location.Lat, v.Location.Lng, seq); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert venue")
		}
		seq++
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit venue insert")
	}
	return inserted, nil
}

// VenuePoints implements Store.
func (s *SQLiteStore) VenuePoints(ctx context.Context) ([]geo.Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lat, lng FROM venues ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query venue points")
	}
	defer rows.Close()

	var points []geo.Point
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan venue point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate venue rows")
}
