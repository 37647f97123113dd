// Package shapefile loads venue points from ESRI shapefiles.
package shapefile

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cgrafmuller/triphappy-clustering/internal/cluster"
	"github.com/cgrafmuller/triphappy-clustering/internal/geo"
)

// nameFields are the attribute names tried, in order, for the venue name.
var nameFields = []string{"name", "venue", "title"}

// ReadVenues reads point records from a shapefile and returns them as venues.
// Non-point geometries are skipped with a debug log rather than failing the
// whole import, since mixed-geometry files occur in the wild.
func ReadVenues(shpPath string) ([]cluster.Venue, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	nameIdx := -1
	for _, candidate := range nameFields {
		if idx, ok := fieldIdx[candidate]; ok {
			nameIdx = idx
			break
		}
	}

	var venues []cluster.Venue
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		point, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		var name string
		if nameIdx >= 0 {
			name = strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		}

		venues = append(venues, cluster.Venue{
			Name:     name,
			Location: geo.Point{Lat: point.Y, Lng: point.X},
		})
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped non-point records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return venues, nil
}
