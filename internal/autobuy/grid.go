// Package autobuy drives repeated OS-level clicks on a stash grid cell to collect
// an item after a successful whisper.
package autobuy

import "fmt"

// Point is a screen position in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid maps stash cells to the pixel at the centre of each square.
type Grid struct {
	TopLeftX     int
	TopLeftY     int
	SquareWidth  int
	SquareHeight int
	Cols         int
	Rows         int
}

// DefaultGrid is a 12x12 stash tab at 1080p.
var DefaultGrid = Grid{
	TopLeftX:     415,
	TopLeftY:     300,
	SquareWidth:  70,
	SquareHeight: 70,
	Cols:         12,
	Rows:         12,
}

// PixelFor returns the centre of cell (x, y).
func (g Grid) PixelFor(x, y int) (Point, error) {
	if x < 0 || x >= g.Cols || y < 0 || y >= g.Rows {
		return Point{}, fmt.Errorf("invalid grid position (%d, %d) for %dx%d grid", x, y, g.Cols, g.Rows)
	}
	return Point{
		X: g.TopLeftX + g.SquareWidth*x + g.SquareWidth/2,
		Y: g.TopLeftY + g.SquareHeight*y + g.SquareHeight/2,
	}, nil
}
