// Package geo loads commune boundary polygons and joins them to indicator
// results by commune code. Rendering is left to the caller.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"github.com/zalepa/indicadores/logger"
	"github.com/zalepa/indicadores/table"
)

// ErrNoFeatures is returned when a boundary file has no usable polygon.
var ErrNoFeatures = errors.New("no commune polygons")

// Boundary is the geometry of one commune.
type Boundary struct {
	Code     int
	Name     string
	Geometry geom.T
}

// LoadBoundaries reads a GeoJSON FeatureCollection. codeProp names the
// property holding the commune code; nameProp is optional. Features without
// a numeric code or without a Polygon/MultiPolygon geometry are skipped.
func LoadBoundaries(path, codeProp, nameProp string) ([]Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}

	var out []Boundary
	var skipped int
	for _, f := range fc.Features {
		code, ok := codeOf(f.Properties, codeProp)
		if !ok || f.Geometry == nil {
			skipped++
			continue
		}
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			skipped++
			continue
		}
		b := Boundary{Code: code, Geometry: f.Geometry}
		if nameProp != "" {
			if v, ok := lookupProp(f.Properties, nameProp); ok && v != nil {
				b.Name = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		out = append(out, b)
	}
	if skipped > 0 {
		logger.L().Warn("geo_features_skipped", "file", path, "skipped", skipped)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFeatures)
	}
	return out, nil
}

// lookupProp finds a property by exact then case-insensitive name;
// boundary files spell the code attribute "cod_comuna" or "COD_COMUNA".
func lookupProp(props map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := props[name]; ok {
		return v, true
	}
	for k, v := range props {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func codeOf(props map[string]interface{}, name string) (int, bool) {
	v, ok := lookupProp(props, name)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		return table.ParseCode(n)
	}
	return 0, false
}

// Outlines returns the exterior ring of every polygon in the boundary.
func (b Boundary) Outlines() [][]geom.Coord {
	switch g := b.Geometry.(type) {
	case *geom.Polygon:
		if g.NumLinearRings() == 0 {
			return nil
		}
		return [][]geom.Coord{g.LinearRing(0).Coords()}
	case *geom.MultiPolygon:
		var rings [][]geom.Coord
		for i := 0; i < g.NumPolygons(); i++ {
			p := g.Polygon(i)
			if p.NumLinearRings() > 0 {
				rings = append(rings, p.LinearRing(0).Coords())
			}
		}
		return rings
	}
	return nil
}

// Centroid returns the area-weighted centroid, used to place labels.
func (b Boundary) Centroid() (geom.Coord, error) {
	return xy.Centroid(b.Geometry)
}

// Extent returns the bounding box of all boundaries as minX, minY, maxX,
// maxY.
func Extent(bs []Boundary) (minX, minY, maxX, maxY float64) {
	first := true
	for _, b := range bs {
		bounds := b.Geometry.Bounds()
		if bounds.IsEmpty() {
			continue
		}
		if first {
			minX, minY, maxX, maxY = bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1)
			first = false
			continue
		}
		minX = min(minX, bounds.Min(0))
		minY = min(minY, bounds.Min(1))
		maxX = max(maxX, bounds.Max(0))
		maxY = max(maxY, bounds.Max(1))
	}
	return minX, minY, maxX, maxY
}
