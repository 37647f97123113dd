package cluster

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ExportGeoJSON renders the stored clusters of the given generations as a
// GeoJSON FeatureCollection. Each cluster becomes a Point feature carrying
// its radius (meters, see geo.Distance) and cluster_type as properties, so
// the output maps directly onto the persisted schema.
func ExportGeoJSON(ctx context.Context, store Store, gens ...Generation) ([]byte, error) {
	clusters, err := store.Query(ctx, gens...)
	if err != nil {
		return nil, eris.Wrap(err, "cluster: query clusters for export")
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(clusters))}
	for _, c := range clusters {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.ID.String(),
			Geometry: geom.NewPointFlat(geom.XY, []float64{c.Center.Lng, c.Center.Lat}).SetSRID(4326),
			Properties: map[string]any{
				"radius":       c.Radius,
				"cluster_type": int(c.Generation),
				"generation":   c.Generation.String(),
			},
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "cluster: marshal feature collection")
	}
	return data, nil
}
