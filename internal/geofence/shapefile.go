package geofence

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LoadShapefileArea reads a boundary polygon from a shapefile and returns
// a polygon ReferenceArea. The first polygon record's outer ring is used;
// additional records and inner rings (holes) are ignored, which is fine
// for the single-neighborhood boundaries this tool watches.
func LoadShapefileArea(name, shpPath string) (*ReferenceArea, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geofence: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			continue
		}

		// Outer ring is the first part.
		end := int32(len(poly.Points))
		if poly.NumParts > 1 {
			end = poly.Parts[1]
			zap.L().Debug("geofence: shapefile polygon has holes, keeping outer ring only",
				zap.String("path", shpPath),
				zap.Int32("parts", poly.NumParts),
			)
		}

		vertices := make([][2]float64, 0, end-poly.Parts[0])
		for i := poly.Parts[0]; i < end; i++ {
			vertices = append(vertices, [2]float64{poly.Points[i].Y, poly.Points[i].X})
		}
		return NewPolygonArea(name, vertices)
	}

	return nil, eris.Errorf("geofence: no polygon records in %s", shpPath)
}
