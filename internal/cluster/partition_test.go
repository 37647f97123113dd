package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// At the equator one millidegree of longitude is about 111 m, so an epsilon of
// 0.15 km reaches one millidegree but not two.

func TestDBSCAN_EmptyInput(t *testing.T) {
	assert.Nil(t, DBSCAN{}.Partition(nil, 0.15, 2))
	assert.Nil(t, DBSCAN{}.Partition([]geo.Point{}, 0.15, 2))
}

func TestDBSCAN_SingleDenseGroup(t *testing.T) {
	points := []geo.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0, Lng: 0.002},
	}

	groups := DBSCAN{}.Partition(points, 0.15, 2)

	// No outliers, so the last bucket is empty and index 0 is a real group.
	require.Len(t, groups, 2)
	assert.Empty(t, groups[len(groups)-1])
	assert.ElementsMatch(t, points, groups[0])
}

func TestDBSCAN_OutliersComeFirst(t *testing.T) {
	points := []geo.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0, Lng: 0.002},
		{Lat: 50, Lng: 50}, // nowhere near the others
	}

	groups := DBSCAN{}.Partition(points, 0.15, 2)

	require.Len(t, groups, 2)
	assert.Equal(t, []geo.Point{{Lat: 50, Lng: 50}}, groups[0])
	assert.ElementsMatch(t, points[:3], groups[1])
	assert.NotEmpty(t, groups[len(groups)-1])
}

func TestDBSCAN_MinPointsExcludesSelf(t *testing.T) {
	// Two points ~111 m apart: each has exactly one neighbor besides itself.
	points := span(0, 0.001)

	groups := DBSCAN{}.Partition(points, 0.15, 1)
	require.Len(t, groups, 2)
	assert.ElementsMatch(t, points, groups[0])
	assert.Empty(t, groups[1])

	// Requiring two neighbors demotes both to noise.
	groups = DBSCAN{}.Partition(points, 0.15, 2)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, points, groups[0])
}

func TestDBSCAN_BorderPointsJoinTheGroup(t *testing.T) {
	// Colinear points ~130 m apart. The ends only reach the middle, so with
	// minPoints 2 only the middle is core; the ends join as border points.
	points := []geo.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.00117},
		{Lat: 0, Lng: 0.00234},
	}

	groups := DBSCAN{}.Partition(points, 0.15, 2)

	require.Len(t, groups, 2)
	assert.ElementsMatch(t, points, groups[0])
	assert.Empty(t, groups[1])
}

func TestDBSCAN_ChainSplitsWhenEpsilonShrinks(t *testing.T) {
	// Two pairs ~111 m wide, ~560 m apart. A generous epsilon links them into
	// one group; a tight one yields two.
	points := []geo.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0, Lng: 0.006},
		{Lat: 0, Lng: 0.007},
	}

	wide := DBSCAN{}.Partition(points, 0.6, 1)
	require.Len(t, wide, 2)
	assert.Len(t, wide[0], 4)

	tight := DBSCAN{}.Partition(points, 0.15, 1)
	require.Len(t, tight, 3)
	assert.ElementsMatch(t, points[:2], tight[0])
	assert.ElementsMatch(t, points[2:], tight[1])
	assert.Empty(t, tight[2])
}

func TestDBSCAN_DistanceIsHaversineNotEuclidean(t *testing.T) {
	// At latitude 60 a degree of longitude spans roughly half what it does at
	// the equator, so the same longitude offsets cluster there but not here.
	atLat := func(lat float64) []geo.Point {
		return []geo.Point{
			{Lat: lat, Lng: 0},
			{Lat: lat, Lng: 0.002},
		}
	}

	north := DBSCAN{}.Partition(atLat(60), 0.15, 1)
	require.Len(t, north, 2)
	assert.Len(t, north[0], 2)

	equator := DBSCAN{}.Partition(atLat(0), 0.15, 1)
	require.Len(t, equator, 1)
	assert.Len(t, equator[0], 2) // all noise
}

func TestDBSCAN_Deterministic(t *testing.T) {
	points := []geo.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0, Lng: 0.006},
		{Lat: 0, Lng: 0.007},
		{Lat: 50, Lng: 50},
	}

	first := DBSCAN{}.Partition(points, 0.15, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DBSCAN{}.Partition(points, 0.15, 1))
	}
}
