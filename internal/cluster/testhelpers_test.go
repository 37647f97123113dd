package cluster

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

func init() {
	// Replace global logger with a no-op to avoid noisy test output.
	zap.ReplaceGlobals(zap.NewNop())
}

// memStore is an in-memory Store for engine tests.
type memStore struct {
	clusters []Cluster
	venues   []Venue

	clearCalls          []Generation
	deleteMatchingCalls int
	deleteByIDsCalls    int

	clearErr  error
	createErr error
	queryErr  error
}

func newMemStore() *memStore { return &memStore{} }

func (s *memStore) Clear(_ context.Context, gen Generation) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.clearCalls = append(s.clearCalls, gen)
	kept := s.clusters[:0]
	for _, c := range s.clusters {
		if c.Generation != gen {
			kept = append(kept, c)
		}
	}
	s.clusters = kept
	return nil
}

func (s *memStore) Create(_ context.Context, c *Cluster) error {
	if s.createErr != nil {
		return s.createErr
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.clusters = append(s.clusters, *c)
	return nil
}

func (s *memStore) Query(_ context.Context, gens ...Generation) ([]Cluster, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	want := make(map[Generation]bool, len(gens))
	for _, g := range gens {
		want[g] = true
	}
	var out []Cluster
	for _, c := range s.clusters {
		if want[c.Generation] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) DeleteMatching(_ context.Context, gen Generation, points []geo.Point) (int64, error) {
	s.deleteMatchingCalls++
	match := make(map[geo.Point]bool, len(points))
	for _, p := range points {
		match[p] = true
	}
	var deleted int64
	kept := s.clusters[:0]
	for _, c := range s.clusters {
		if c.Generation == gen && match[c.Center] {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.clusters = kept
	return deleted, nil
}

func (s *memStore) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	s.deleteByIDsCalls++
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var deleted int64
	kept := s.clusters[:0]
	for _, c := range s.clusters {
		if drop[c.ID] {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.clusters = kept
	return deleted, nil
}

func (s *memStore) CountByGeneration(_ context.Context, gen Generation) (int64, error) {
	var n int64
	for _, c := range s.clusters {
		if c.Generation == gen {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertVenues(_ context.Context, venues []Venue) (int64, error) {
	for _, v := range venues {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		s.venues = append(s.venues, v)
	}
	return int64(len(venues)), nil
}

func (s *memStore) VenuePoints(_ context.Context) ([]geo.Point, error) {
	points := make([]geo.Point, len(s.venues))
	for i, v := range s.venues {
		points[i] = v.Location
	}
	return points, nil
}

// byGeneration filters the stored clusters for assertions.
func (s *memStore) byGeneration(gen Generation) []Cluster {
	var out []Cluster
	for _, c := range s.clusters {
		if c.Generation == gen {
			out = append(out, c)
		}
	}
	return out
}

// staticSource is a PointSource over a fixed slice.
type staticSource []geo.Point

func (s staticSource) Points(context.Context) ([]geo.Point, error) { return s, nil }

// errSource is a PointSource that always fails.
type errSource struct{ err error }

func (s errSource) Points(context.Context) ([]geo.Point, error) { return nil, s.err }

// partitionCall records the parameters of one Partition invocation.
type partitionCall struct {
	points    []geo.Point
	epsilon   float64
	minPoints int
}

// scriptedPartitioner replays canned groups per call and records parameters.
type scriptedPartitioner struct {
	t       *testing.T
	scripts [][][]geo.Point
	calls   []partitionCall
}

func (p *scriptedPartitioner) Partition(points []geo.Point, epsilon float64, minPoints int) [][]geo.Point {
	p.calls = append(p.calls, partitionCall{points: points, epsilon: epsilon, minPoints: minPoints})
	if len(p.calls) > len(p.scripts) {
		p.t.Fatalf("unexpected Partition call %d (epsilon=%v minPoints=%d)", len(p.calls), epsilon, minPoints)
	}
	return p.scripts[len(p.calls)-1]
}

// span returns two points lngSpread degrees apart on the equator, so the
// resulting group has a predictable centroid and radius.
func span(lng, lngSpread float64) []geo.Point {
	return []geo.Point{
		{Lat: 0, Lng: lng - lngSpread/2},
		{Lat: 0, Lng: lng + lngSpread/2},
	}
}
