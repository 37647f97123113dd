package cluster

import "github.com/cgrafmuller/triphappy-clustering/internal/geo"

// Partitioner groups points into dense neighborhoods plus an outlier bucket.
//
// Contract:
//   - epsilon is the neighborhood distance threshold in kilometers; minPoints
//     is the minimum neighbor count, exclusive of the point itself, required
//     to seed a group. (Epsilon is the one kilometer-denominated knob in this
//     package; cluster radii are meters. The mismatch is inherited from the
//     upstream parameter values and kept as-is.)
//   - the distance metric is the haversine distance from internal/geo, not
//     Euclidean distance on raw coordinates.
//   - output is ordered: when outliers exist they occupy index 0; when no
//     outliers exist, index 0 is a real group and a trailing empty bucket
//     marks the absent outlier set. Callers detect the outlier bucket by
//     checking whether the last group is non-empty.
//   - given an identical input list (including order) and parameters, the
//     output is reproducible.
type Partitioner interface {
	Partition(points []geo.Point, epsilon float64, minPoints int) [][]geo.Point
}

// DBSCAN is the reference Partitioner: a plain density-based spatial
// clustering pass with a quadratic neighbor scan, which is plenty for the
// venue counts this engine sees.
type DBSCAN struct{}

// Partition implements Partitioner.
func (DBSCAN) Partition(points []geo.Point, epsilon float64, minPoints int) [][]geo.Point {
	if len(points) == 0 {
		return nil
	}

	epsMeters := epsilon * 1000

	const (
		unvisited = -2
		noise     = -1
	)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(i int) []int {
		var nb []int
		for j := range points {
			if j == i {
				continue
			}
			if geo.Distance(points[i], points[j]) <= epsMeters {
				nb = append(nb, j)
			}
		}
		return nb
	}

	var groups [][]geo.Point
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		nb := neighbors(i)
		if len(nb) < minPoints {
			labels[i] = noise
			continue
		}

		// Seed a new group and expand it breadth-first.
		id := len(groups)
		labels[i] = id
		group := []geo.Point{points[i]}
		for k := 0; k < len(nb); k++ {
			j := nb[k]
			if labels[j] == noise {
				// Border point: reachable but not dense enough to expand.
				labels[j] = id
				group = append(group, points[j])
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id
			group = append(group, points[j])
			jnb := neighbors(j)
			if len(jnb) >= minPoints {
				nb = append(nb, jnb...)
			}
		}
		groups = append(groups, group)
	}

	var outliers []geo.Point
	for i, label := range labels {
		if label == noise {
			outliers = append(outliers, points[i])
		}
	}

	if len(outliers) > 0 {
		return append([][]geo.Point{outliers}, groups...)
	}
	return append(groups, nil)
}
