package model

import (
	"fmt"
	"time"
)

// Coord is a map tile coordinate. Tiles are exclusive: a coordinate is
// owned by at most one clan at any time.
type Coord struct {
	X int32
	Y int32
}

// String formats the coordinate as "(x,y)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Neighbors returns the four cardinal neighbors of the tile.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{
		{c.X + 1, c.Y},
		{c.X - 1, c.Y},
		{c.X, c.Y + 1},
		{c.X, c.Y - 1},
	}
}

// Territory is a single claimed map tile.
type Territory struct {
	Coord
	ClanID    int32
	ClanTag   string // denormalized for display
	ClaimedBy int64  // character who claimed it
	ClaimedAt time.Time
}

// TileSet is a set of coordinates, used for adjacency and defense
// bonus computation.
type TileSet map[Coord]struct{}

// NewTileSet builds a set from a territory list.
func NewTileSet(tiles []Territory) TileSet {
	s := make(TileSet, len(tiles))
	for _, t := range tiles {
		s[t.Coord] = struct{}{}
	}
	return s
}

// Contains reports whether the set holds the coordinate.
func (s TileSet) Contains(c Coord) bool {
	_, ok := s[c]
	return ok
}

// AdjacentTo reports whether c touches any tile in the set on one of
// the four cardinal sides.
func (s TileSet) AdjacentTo(c Coord) bool {
	for _, n := range c.Neighbors() {
		if s.Contains(n) {
			return true
		}
	}
	return false
}
