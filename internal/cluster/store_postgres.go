package cluster

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cgrafmuller/triphappy-clustering/internal/db"
	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// PostgresStore implements Store using a Postgres connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresStore wraps an existing pool. Used by tests and by callers that
// manage the pool themselves.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., migrations).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Close releases the connection pool if this store owns it.
func (s *PostgresStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Clear implements Store.
func (s *PostgresStore) Clear(ctx context.Context, gen Generation) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM clusters WHERE cluster_type = $1`, int(gen))
	return eris.Wrapf(err, "postgres: clear generation %s", gen)
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, c *Cluster) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clusters (id, lat, lng, radius, cluster_type) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Center.Lat, c.Center.Lng, c.Radius, int(c.Generation),
	)
	return eris.Wrap(err, "postgres: create cluster")
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, gens ...Generation) ([]Cluster, error) {
	types := make([]int, len(gens))
	for i, g := range gens {
		types[i] = int(g)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, lat, lng, radius, cluster_type FROM clusters WHERE cluster_type = ANY($1) ORDER BY created_at, id`,
		types,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query clusters")
	}
	defer rows.Close()

	var clusters []Cluster
	for rows.Next() {
		var c Cluster
		var clusterType int
		if err := rows.Scan(&c.ID, &c.Center.Lat, &c.Center.Lng, &c.Radius, &clusterType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster row")
		}
		c.Generation = Generation(clusterType)
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "postgres: iterate cluster rows")
}

// DeleteMatching implements Store.
func (s *PostgresStore) DeleteMatching(ctx context.Context, gen Generation, points []geo.Point) (int64, error) {
	var deleted int64
	for _, p := range points {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM clusters WHERE cluster_type = $1 AND lat = $2 AND lng = $3`,
			int(gen), p.Lat, p.Lng,
		)
		if err != nil {
			return deleted, eris.Wrapf(err, "postgres: delete matching clusters in %s", gen)
		}
		deleted += tag.RowsAffected()
	}
	return deleted, nil
}

// DeleteByIDs implements Store.
func (s *PostgresStore) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM clusters WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete clusters by id")
	}
	return tag.RowsAffected(), nil
}

// CountByGeneration implements Store.
func (s *PostgresStore) CountByGeneration(ctx context.Context, gen Generation) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM clusters WHERE cluster_type = $1`, int(gen),
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count generation %s", gen)
	}
	return count, nil
}

// InsertVenues implements Store using COPY for bulk speed.
func (s *PostgresStore) InsertVenues(ctx context.Context, venues []Venue) (int64, error) {
	rows := make([][]any, len(venues))
	for i, v := range venues {
		id := v.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		rows[i] = []any{id, v.Name, v.Location.Lat, v.Location.Lng}
	}
	n, err := db.CopyFrom(ctx, s.pool, "venues", []string{"id", "name", "lat", "lng"}, rows)
	return n, eris.Wrap(err, "postgres: insert venues")
}

// VenuePoints implements Store.
func (s *PostgresStore) VenuePoints(ctx context.Context) ([]geo.Point, error) {
	rows, err := s.pool.Query(ctx, `SELECT lat, lng FROM venues ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query venue points")
	}
	defer rows.Close()

	var points []geo.Point
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, eris.Wrap(err, "postgres: scan venue point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate venue rows")
}
