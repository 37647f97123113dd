// Package cluster groups venue coordinates into spatial clusters using
// density-based partitioning plus size-band, overlap, and merge heuristics.
package cluster

import (
	"github.com/google/uuid"

	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// Generation labels one of the three independent sets of stored clusters.
// The value is persisted as the cluster_type column.
type Generation int

const (
	// GenerationVenues holds clusters built directly from venue coordinates.
	GenerationVenues Generation = 0

	// GenerationNonIntersecting holds second-pass clusters that were accepted
	// only if they do not overlap any existing cluster.
	GenerationNonIntersecting Generation = 1

	// GenerationMerged holds coarse clusters produced by re-clustering the
	// centers of earlier generations.
	GenerationMerged Generation = 2
)

// String returns the human-readable generation name.
func (g Generation) String() string {
	switch g {
	case GenerationVenues:
		return "venues"
	case GenerationNonIntersecting:
		return "non-intersecting"
	case GenerationMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// Generations lists all generations in storage order.
func Generations() []Generation {
	return []Generation{GenerationVenues, GenerationNonIntersecting, GenerationMerged}
}

// Cluster is a stored cluster. Radius is the maximum distance from Center to
// any member point used to build the cluster; it is set at construction and
// never mutated independently.
type Cluster struct {
	ID         uuid.UUID  `json:"id"`
	Center     geo.Point  `json:"center"`
	Radius     float64    `json:"radius"`
	Generation Generation `json:"generation"`
}

// Venue is a stored venue whose coordinates feed the first cluster generation.
type Venue struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}
