package cluster

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// Default partitioning parameters for the merge pass.
const (
	DefaultMergeEpsilon   = 0.3
	DefaultMergeMinPoints = 1
)

// Merger collapses existing clusters into a coarser generation: each stored
// cluster's center becomes a point, the points are density-partitioned, and
// every resulting group becomes a GenerationMerged cluster. There is no size
// band and no recursion; lone centers (the partitioner's outlier bucket) are
// merged as single-member groups rather than skipped, so no input cluster is
// lost from the coarse view.
type Merger struct {
	store       Store
	partitioner Partitioner
	log         *zap.Logger

	epsilon        float64
	minPoints      int
	retire         bool
	preserveMerged bool
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithMergePartitioner replaces the default DBSCAN partitioner.
func WithMergePartitioner(p Partitioner) MergerOption {
	return func(m *Merger) { m.partitioner = p }
}

// WithMergeEpsilon overrides the neighborhood threshold (kilometers).
func WithMergeEpsilon(epsilon float64) MergerOption {
	return func(m *Merger) { m.epsilon = epsilon }
}

// WithMergeMinPoints overrides the minimum neighbor count.
func WithMergeMinPoints(minPoints int) MergerOption {
	return func(m *Merger) { m.minPoints = minPoints }
}

// KeepOriginals disables retirement of the input clusters that were absorbed
// into merged clusters.
func KeepOriginals() MergerOption {
	return func(m *Merger) { m.retire = false }
}

// PreserveMerged skips clearing GenerationMerged before the pass, so prior
// merged clusters survive and also feed the new pass as input points.
func PreserveMerged() MergerOption {
	return func(m *Merger) { m.preserveMerged = true }
}

// NewMerger creates a Merger with the default parameters: prior merged output
// is cleared first, and absorbed inputs are retired.
func NewMerger(store Store, opts ...MergerOption) *Merger {
	m := &Merger{
		store:       store,
		partitioner: DBSCAN{},
		log:         zap.L().With(zap.String("component", "cluster.merger")),
		epsilon:     DefaultMergeEpsilon,
		minPoints:   DefaultMergeMinPoints,
		retire:      true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes a single, non-recursive merge pass.
func (m *Merger) Run(ctx context.Context) error {
	if !m.preserveMerged {
		if err := m.store.Clear(ctx, GenerationMerged); err != nil {
			return eris.Wrap(err, "cluster: clear merged generation")
		}
	}

	inputs, err := m.store.Query(ctx, Generations()...)
	if err != nil {
		return eris.Wrap(err, "cluster: query merge inputs")
	}
	if len(inputs) == 0 {
		return nil
	}

	// Index input clusters by their exact center so absorbed inputs can be
	// retired. The partitioner passes point values through untouched, so the
	// float coordinates round-trip exactly.
	points := make([]geo.Point, len(inputs))
	byCenter := make(map[geo.Point][]Cluster, len(inputs))
	for i, c := range inputs {
		points[i] = c.Center
		byCenter[c.Center] = append(byCenter[c.Center], c)
	}

	groups := m.partitioner.Partition(points, m.epsilon, m.minPoints)
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}

		center := geo.Centroid(group)
		radius := geo.Radius(group, center)

		merged := &Cluster{
			ID:         uuid.New(),
			Center:     center,
			Radius:     radius,
			Generation: GenerationMerged,
		}
		if err := m.store.Create(ctx, merged); err != nil {
			return eris.Wrap(err, "cluster: create merged cluster")
		}

		m.log.Debug("created merged cluster",
			zap.String("id", merged.ID.String()),
			zap.Int("absorbed", len(group)),
			zap.Float64("radius", radius),
		)

		if m.retire {
			if err := m.retireAbsorbed(ctx, group, byCenter); err != nil {
				return err
			}
		}
	}

	return nil
}

// retireAbsorbed deletes the input clusters whose centers were consumed by a
// merged group. Clusters with IDs are deleted by ID; clusters without one
// fall back to the exact-coordinate delete, which silently deletes nothing
// when float drift prevents a match.
func (m *Merger) retireAbsorbed(ctx context.Context, group []geo.Point, byCenter map[geo.Point][]Cluster) error {
	var ids []uuid.UUID
	fallback := make(map[Generation][]geo.Point)

	for _, p := range group {
		for _, c := range byCenter[p] {
			if c.ID == uuid.Nil {
				fallback[c.Generation] = append(fallback[c.Generation], p)
				continue
			}
			ids = append(ids, c.ID)
		}
	}

	if len(ids) > 0 {
		if _, err := m.store.DeleteByIDs(ctx, ids); err != nil {
			return eris.Wrap(err, "cluster: retire absorbed clusters")
		}
	}
	for gen, pts := range fallback {
		if _, err := m.store.DeleteMatching(ctx, gen, pts); err != nil {
			return eris.Wrapf(err, "cluster: retire absorbed clusters in %s", gen)
		}
	}
	return nil
}
