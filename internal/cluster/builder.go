package cluster

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// Cluster size band in the units returned by geo.Distance. Upstream described
// these as kilometers; the values are applied unscaled either way.
const (
	minClusterRadius = 125
	maxClusterRadius = 900
)

// overlapFactor scales the sum of two radii when testing cluster overlap.
const overlapFactor = 0.9

// Default partitioning parameters per generation. Epsilon is in kilometers
// (see Partitioner).
const (
	DefaultVenueEpsilon    = 0.15
	DefaultVenueMinPoints  = 7
	venueEpsilonStep       = 0.025
	DefaultRefineEpsilon   = 0.3
	DefaultRefineMinPoints = 2
	refineEpsilonStep      = 0.1

	// epsilonReset restarts the epsilon decay once it bottoms out, while
	// minPoints keeps shrinking. Recursion depth is therefore bounded by the
	// initial minPoints.
	epsilonReset = 0.3
)

// Builder runs one generation of density clustering over a point source,
// recursively re-partitioning oversized groups with tighter parameters until
// they fit the size band or the parameters are exhausted.
//
// A run clears its generation first and then repopulates it, so re-running on
// unchanged input reproduces the same cluster set. The clear+rebuild sequence
// is not atomic: a crash mid-run can leave the generation partially
// populated. Callers must serialize runs against the same generation.
type Builder struct {
	store       Store
	source      PointSource
	partitioner Partitioner
	log         *zap.Logger

	generation   Generation
	epsilon      float64
	minPoints    int
	epsilonStep  float64
	recursion    bool
	checkOverlap bool
	strictMin    bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPartitioner replaces the default DBSCAN partitioner.
func WithPartitioner(p Partitioner) BuilderOption {
	return func(b *Builder) { b.partitioner = p }
}

// WithEpsilon overrides the initial neighborhood threshold (kilometers).
func WithEpsilon(epsilon float64) BuilderOption {
	return func(b *Builder) { b.epsilon = epsilon }
}

// WithMinPoints overrides the initial minimum neighbor count.
func WithMinPoints(minPoints int) BuilderOption {
	return func(b *Builder) { b.minPoints = minPoints }
}

// WithoutRecursion disables the shrink-and-retry pass; every group the
// partitioner returns is accepted regardless of radius.
func WithoutRecursion() BuilderOption {
	return func(b *Builder) { b.recursion = false }
}

// NewVenueBuilder creates the first-generation builder, which clusters raw
// venue coordinates into GenerationVenues.
func NewVenueBuilder(store Store, source PointSource, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:       store,
		source:      source,
		partitioner: DBSCAN{},
		log:         zap.L().With(zap.String("component", "cluster.builder"), zap.Stringer("generation", GenerationVenues)),
		generation:  GenerationVenues,
		epsilon:     DefaultVenueEpsilon,
		minPoints:   DefaultVenueMinPoints,
		epsilonStep: venueEpsilonStep,
		recursion:   true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewNonIntersectingBuilder creates the second-generation builder. It follows
// the same control flow as the venue builder but rejects any candidate that
// overlaps an already stored venue or non-intersecting cluster, and only
// accepts candidates strictly above the minimum radius.
func NewNonIntersectingBuilder(store Store, source PointSource, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:        store,
		source:       source,
		partitioner:  DBSCAN{},
		log:          zap.L().With(zap.String("component", "cluster.builder"), zap.Stringer("generation", GenerationNonIntersecting)),
		generation:   GenerationNonIntersecting,
		epsilon:      DefaultRefineEpsilon,
		minPoints:    DefaultRefineMinPoints,
		epsilonStep:  refineEpsilonStep,
		recursion:    true,
		checkOverlap: true,
		strictMin:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes one full build of the builder's generation. The boolean is
// false when some oversized subset could not be shrunk into the size band
// before the parameters ran out; clusters accepted before that point remain
// stored, and the caller decides whether partial results are acceptable.
// Store and source failures are returned as errors and are never retried.
func (b *Builder) Run(ctx context.Context) (bool, error) {
	points, err := b.source.Points(ctx)
	if err != nil {
		return false, eris.Wrap(err, "cluster: load source points")
	}
	return b.build(ctx, points, b.epsilon, b.minPoints, 1)
}

// build is one partitioning pass. iteration is 1-based and decides only
// whether the generation gets cleared; recursive calls pass iteration+1 so
// their results append to the same run.
func (b *Builder) build(ctx context.Context, points []geo.Point, epsilon float64, minPoints, iteration int) (bool, error) {
	if iteration == 1 {
		if err := b.store.Clear(ctx, b.generation); err != nil {
			return false, eris.Wrapf(err, "cluster: clear generation %s", b.generation)
		}
	}
	if len(points) == 0 {
		return true, nil
	}

	groups := b.partitioner.Partition(points, epsilon, minPoints)
	if len(groups) == 0 {
		return true, nil
	}

	// Index 0 holds the outlier bucket only when the partitioner's last group
	// is non-empty; otherwise index 0 is a real group. This mirrors the
	// partitioner's output convention exactly; changing the detection rule
	// changes which clusters get built.
	start := 0
	if len(groups[len(groups)-1]) > 0 {
		start = 1
	}

	ok := true
	for _, group := range groups[start:] {
		if len(group) == 0 {
			continue
		}

		center := geo.Centroid(group)
		radius := geo.Radius(group, center)

		if !b.recursion {
			if _, err := b.accept(ctx, center, radius); err != nil {
				return false, err
			}
			continue
		}

		if radius > maxClusterRadius {
			childOK, err := b.shrink(ctx, group, epsilon, minPoints, iteration)
			if err != nil {
				return false, err
			}
			ok = ok && childOK
			continue
		}

		if radius < minClusterRadius || (b.strictMin && radius == minClusterRadius) {
			// Too small to be a meaningful cluster; dropped on purpose.
			b.log.Debug("dropping undersized group",
				zap.Float64("radius", radius),
				zap.Int("points", len(group)),
			)
			continue
		}

		if _, err := b.accept(ctx, center, radius); err != nil {
			return false, err
		}
	}

	return ok, nil
}

// shrink re-partitions an oversized group with tighter parameters. Epsilon
// decays first; once it bottoms out it resets while minPoints keeps
// decaying; when both are exhausted the branch gives up.
func (b *Builder) shrink(ctx context.Context, group []geo.Point, epsilon float64, minPoints, iteration int) (bool, error) {
	switch {
	case epsilon > 0 && minPoints > 0:
		return b.build(ctx, group, epsilon-b.epsilonStep, minPoints-1, iteration+1)
	case epsilon <= 0 && minPoints > 0:
		return b.build(ctx, group, epsilonReset, minPoints-1, iteration+1)
	default:
		b.log.Warn("cluster parameters exhausted",
			zap.Int("points", len(group)),
			zap.Int("iteration", iteration),
		)
		return false, nil
	}
}

// accept persists a cluster for the candidate group unless the overlap check
// rejects it. The boolean reports whether a cluster was created.
func (b *Builder) accept(ctx context.Context, center geo.Point, radius float64) (bool, error) {
	if b.checkOverlap {
		existing, err := b.store.Query(ctx, GenerationVenues, GenerationNonIntersecting)
		if err != nil {
			return false, eris.Wrap(err, "cluster: query existing clusters")
		}
		for _, e := range existing {
			if geo.Distance(e.Center, center) < overlapFactor*(e.Radius+radius) {
				b.log.Debug("rejecting overlapping candidate",
					zap.Float64("lat", center.Lat),
					zap.Float64("lng", center.Lng),
					zap.Float64("radius", radius),
					zap.String("overlaps", e.ID.String()),
				)
				return false, nil
			}
		}
	}

	c := &Cluster{
		ID:         uuid.New(),
		Center:     center,
		Radius:     radius,
		Generation: b.generation,
	}
	if err := b.store.Create(ctx, c); err != nil {
		return false, eris.Wrap(err, "cluster: create cluster")
	}

	b.log.Debug("accepted cluster",
		zap.String("id", c.ID.String()),
		zap.Float64("lat", center.Lat),
		zap.Float64("lng", center.Lng),
		zap.Float64("radius", radius),
	)
	return true, nil
}
