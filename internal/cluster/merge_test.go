package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

func venueCluster(lat, lng, radius float64) Cluster {
	return Cluster{
		ID:         uuid.New(),
		Center:     geo.Point{Lat: lat, Lng: lng},
		Radius:     radius,
		Generation: GenerationVenues,
	}
}

func TestMerger_MergesNeighborsAndKeepsLoners(t *testing.T) {
	store := newMemStore()
	store.clusters = []Cluster{
		venueCluster(0, 0, 0),
		venueCluster(0, 0.001, 0), // ~111 m from the first
		venueCluster(0, 50, 0),    // far from everything
	}

	err := NewMerger(store).Run(context.Background())
	require.NoError(t, err)

	merged := store.byGeneration(GenerationMerged)
	require.Len(t, merged, 2)

	// Only the merged generation survives; all inputs were retired.
	require.Len(t, store.clusters, 2)

	var near, lone *Cluster
	for i := range merged {
		if merged[i].Center.Lng > 1 {
			lone = &merged[i]
		} else {
			near = &merged[i]
		}
	}
	require.NotNil(t, near)
	require.NotNil(t, lone)

	// The pair collapses to its midpoint; the loner keeps its position. The
	// merged radius covers the member centers, not the members' own radii.
	assert.InDelta(t, 0.0005, near.Center.Lng, 1e-6)
	assert.InDelta(t, 55.6, near.Radius, 0.5)
	assert.InDelta(t, 50, lone.Center.Lng, 1e-9)
	assert.InDelta(t, 0, lone.Radius, 1e-9)
}

func TestMerger_RadiusIsMaxDistanceToMemberCenter(t *testing.T) {
	store := newMemStore()
	store.clusters = []Cluster{
		venueCluster(0, 0, 400),
		venueCluster(0, 0.002, 400),
	}

	err := NewMerger(store).Run(context.Background())
	require.NoError(t, err)

	merged := store.byGeneration(GenerationMerged)
	require.Len(t, merged, 1)

	centers := []geo.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.002}}
	want := geo.Radius(centers, geo.Centroid(centers))
	assert.InDelta(t, want, merged[0].Radius, 1e-9)
}

func TestMerger_NoSizeBand(t *testing.T) {
	store := newMemStore()
	// Centers ~2.2 km apart would be far beyond the builder's band, but still
	// merge when epsilon reaches them.
	store.clusters = []Cluster{
		venueCluster(0, 0, 0),
		venueCluster(0, 0.02, 0),
	}

	err := NewMerger(store, WithMergeEpsilon(3)).Run(context.Background())
	require.NoError(t, err)

	merged := store.byGeneration(GenerationMerged)
	require.Len(t, merged, 1)
	assert.Greater(t, merged[0].Radius, float64(maxClusterRadius))
}

func TestMerger_KeepOriginals(t *testing.T) {
	store := newMemStore()
	store.clusters = []Cluster{
		venueCluster(0, 0, 0),
		venueCluster(0, 0.001, 0),
	}

	err := NewMerger(store, KeepOriginals()).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.byGeneration(GenerationVenues), 2)
	assert.Len(t, store.byGeneration(GenerationMerged), 1)
	assert.Zero(t, store.deleteByIDsCalls)
	assert.Zero(t, store.deleteMatchingCalls)
}

func TestMerger_ClearsPriorMergedByDefault(t *testing.T) {
	store := newMemStore()
	stale := Cluster{ID: uuid.New(), Center: geo.Point{Lat: 5, Lng: 5}, Radius: 10, Generation: GenerationMerged}
	store.clusters = []Cluster{stale, venueCluster(0, 0, 0)}

	err := NewMerger(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Generation{GenerationMerged}, store.clearCalls)
	merged := store.byGeneration(GenerationMerged)
	require.Len(t, merged, 1)
	assert.InDelta(t, 0, merged[0].Center.Lat, 1e-9)
}

func TestMerger_PreserveMergedFeedsPriorOutputBackIn(t *testing.T) {
	store := newMemStore()
	prior := Cluster{ID: uuid.New(), Center: geo.Point{Lat: 0, Lng: 0.001}, Radius: 10, Generation: GenerationMerged}
	store.clusters = []Cluster{prior, venueCluster(0, 0, 0)}

	err := NewMerger(store, PreserveMerged()).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.clearCalls)

	// The prior merged cluster and the venue cluster sit ~111 m apart, so they
	// merge together and both get retired in favor of the new cluster.
	merged := store.byGeneration(GenerationMerged)
	require.Len(t, merged, 1)
	assert.NotEqual(t, prior.ID, merged[0].ID)
	assert.InDelta(t, 0.0005, merged[0].Center.Lng, 1e-6)
	assert.Len(t, store.clusters, 1)
}

func TestMerger_RetiresUnidentifiedClustersByCoordinates(t *testing.T) {
	store := newMemStore()
	anon := Cluster{Center: geo.Point{Lat: 0, Lng: 0}, Radius: 0, Generation: GenerationVenues}
	store.clusters = []Cluster{anon, venueCluster(0, 0.001, 0)}

	err := NewMerger(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, store.deleteByIDsCalls)
	assert.Equal(t, 1, store.deleteMatchingCalls)
	require.Len(t, store.clusters, 1)
	assert.Equal(t, GenerationMerged, store.clusters[0].Generation)
}

func TestMerger_EmptyStoreIsANoOp(t *testing.T) {
	store := newMemStore()

	err := NewMerger(store).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.clusters)
}

func TestMerger_QueryErrorPropagates(t *testing.T) {
	store := newMemStore()
	store.queryErr = errors.New("connection reset")

	err := NewMerger(store).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query merge inputs")
}
