package geo

import (
	"fmt"
	"math"
)

// TileCoordinate identifies a tile in the Web Mercator tile pyramid.
type TileCoordinate struct {
	Zoom int
	X    int
	Y    int
}

func (t TileCoordinate) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", t.Zoom, t.X, t.Y)
}

// TileAt returns the tile containing the given point at a zoom level.
func TileAt(lat, lon float64, zoom int) TileCoordinate {
	n := math.Pow(2, float64(zoom))
	latRad := lat * math.Pi / 180
	x := int((lon + 180.0) / 360.0 * n)
	y := int((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n)
	max := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > max {
		x = max
	}
	if y < 0 {
		y = 0
	} else if y > max {
		y = max
	}
	return TileCoordinate{Zoom: zoom, X: x, Y: y}
}

// Bounds returns the geographic extent of the tile.
func (t TileCoordinate) Bounds() BoundingBox {
	n := math.Pow(2, float64(t.Zoom))
	west := float64(t.X)/n*360.0 - 180.0
	east := float64(t.X+1)/n*360.0 - 180.0
	north := mercatorToLat(math.Pi * (1 - 2*float64(t.Y)/n))
	south := mercatorToLat(math.Pi * (1 - 2*float64(t.Y+1)/n))
	return BoundingBox{North: north, South: south, East: east, West: west}
}

// CoveringTiles returns every tile at the given zoom that intersects the box,
// in row-major order. Footprints are fetched and cached per tile so that
// overlapping viewports reuse previously fetched tiles.
func CoveringTiles(b BoundingBox, zoom int) []TileCoordinate {
	nw := TileAt(b.North, b.West, zoom)
	se := TileAt(b.South, b.East, zoom)
	tiles := make([]TileCoordinate, 0, (se.X-nw.X+1)*(se.Y-nw.Y+1))
	for y := nw.Y; y <= se.Y; y++ {
		for x := nw.X; x <= se.X; x++ {
			tiles = append(tiles, TileCoordinate{Zoom: zoom, X: x, Y: y})
		}
	}
	return tiles
}

func mercatorToLat(mercatorY float64) float64 {
	return 180.0 / math.Pi * math.Atan(math.Sinh(mercatorY))
}
