package refdata

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ShapeRecord is one ZIP boundary read from the cartographic boundary
// shapefile: the ZCTA code, its centroid, and optionally its outer rings.
type ShapeRecord struct {
	Zip   string
	Lat   float64
	Lon   float64
	Rings [][][2]float64
}

// ShapefileOptions configures boundary loading.
type ShapefileOptions struct {
	// IncludeBoundaries keeps simplified outer rings on each record.
	// Centroids are always computed.
	IncludeBoundaries bool
	// MaxRingPoints decimates each kept ring to at most this many
	// vertices (0 = keep all).
	MaxRingPoints int
}

// zctaField is the ZCTA identifier attribute in Census cartographic
// boundary files (2020 vintage).
const zctaField = "ZCTA5CE20"

// LoadShapefile reads the ZCTA cartographic boundary shapefile and
// returns one record per ZIP with an area-weighted centroid.
func LoadShapefile(path string, opts ShapefileOptions) ([]ShapeRecord, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	zipIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), zctaField) {
			zipIdx = i
			break
		}
	}
	if zipIdx < 0 {
		return nil, eris.Errorf("refdata: field %s not found in %s", zctaField, path)
	}

	var records []ShapeRecord
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		zip := PadZip(strings.TrimRight(reader.Attribute(zipIdx), "\x00"))
		if zip == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			skipped++
			continue
		}

		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		centroid, err := xy.Centroid(mp)
		if err != nil {
			// Degenerate geometry: fall back to the bounding box center.
			centroid = geom.Coord{
				(poly.Box.MinX + poly.Box.MaxX) / 2,
				(poly.Box.MinY + poly.Box.MaxY) / 2,
			}
		}

		rec := ShapeRecord{
			Zip: zip,
			Lat: centroid[1],
			Lon: centroid[0],
		}
		if opts.IncludeBoundaries {
			rec.Rings = extractRings(poly, opts.MaxRingPoints)
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Debug("refdata: skipped shapefile records", zap.Int("count", skipped))
	}
	if len(records) == 0 {
		return nil, eris.Errorf("refdata: no usable records in %s", path)
	}

	return records, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// extractRings returns each part of the shapefile polygon as a [lon, lat]
// ring, decimated to at most maxPoints vertices.
func extractRings(p *shp.Polygon, maxPoints int) [][][2]float64 {
	var rings [][][2]float64
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		n := int(end - start)
		if n < 3 {
			continue
		}

		step := 1
		if maxPoints > 0 && n > maxPoints {
			step = (n + maxPoints - 1) / maxPoints
		}

		ring := make([][2]float64, 0, n/step+1)
		for j := start; j < end; j += int32(step) {
			ring = append(ring, [2]float64{p.Points[j].X, p.Points[j].Y})
		}
		// Keep the ring closed after decimation.
		last := p.Points[end-1]
		if ring[len(ring)-1] != [2]float64{last.X, last.Y} {
			ring = append(ring, [2]float64{last.X, last.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}
