package cluster

import (
	"context"

	"github.com/google/uuid"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// Store persists clusters and venues. Implementations exist for Postgres and
// SQLite; the engine only depends on this interface.
type Store interface {
	// Clear deletes every cluster of the given generation.
	Clear(ctx context.Context, gen Generation) error

	// Create persists a new cluster.
	Create(ctx context.Context, c *Cluster) error

	// Query returns all clusters belonging to any of the given generations,
	// in creation order.
	Query(ctx context.Context, gens ...Generation) ([]Cluster, error)

	// DeleteMatching deletes clusters of the given generation whose center
	// exactly matches one of the given points. This is a legacy exact-float
	// match; prefer DeleteByIDs when IDs are available.
	DeleteMatching(ctx context.Context, gen Generation, points []geo.Point) (int64, error)

	// DeleteByIDs deletes clusters by ID regardless of generation.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)

	// CountByGeneration returns the number of stored clusters in a generation.
	CountByGeneration(ctx context.Context, gen Generation) (int64, error)

	// InsertVenues bulk-inserts venues and returns the number inserted.
	InsertVenues(ctx context.Context, venues []Venue) (int64, error)

	// VenuePoints returns the coordinates of all stored venues in a stable
	// order, so repeated clustering runs see an identical input list.
	VenuePoints(ctx context.Context) ([]geo.Point, error)
}

// PointSource supplies the initial point list for a generation's first
// iteration. The returned list may be empty.
type PointSource interface {
	Points(ctx context.Context) ([]geo.Point, error)
}

// VenueSource adapts a Store's venue table into a PointSource.
type VenueSource struct {
	store Store
}

// NewVenueSource creates a PointSource backed by the store's venues.
func NewVenueSource(store Store) *VenueSource {
	return &VenueSource{store: store}
}

// Points implements PointSource.
func (s *VenueSource) Points(ctx context.Context) ([]geo.Point, error) {
	return s.store.VenuePoints(ctx)
}
