package mines

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

type CellState int8

const (
	Exploded CellState = -3
	Hidden   CellState = -2
	Mine     CellState = -1
	/*
	 * Each cell of a grid holds one of the following values:
	 *
	 * 	- 0 to 8 mean the square is safe and has that many mines
	 * 	  among its neighbours.
	 *
	 * 	- -1 is a mine. In a visibility grid it only shows up after
	 * 	  the game is over.
	 *
	 * 	- -2 means the square is still covered.
	 *
	 * 	- -3 is the mine the player stepped on.
	 */
)

func (s CellState) String() string {
	switch {
	case s == Hidden:
		return "."
	case s == Mine:
		return "*"
	case s == Exploded:
		return "X"
	case 0 <= s && s <= 8:
		return strconv.Itoa(int(s))
	default:
		return "!"
	}
}

func (s CellState) Safe() bool {
	return 0 <= s && s <= 8
}

type Point struct {
	Row, Col int
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Col)
}

// Grid is a row-major rows×cols board.
type Grid struct {
	Rows, Cols int
	Cells      []CellState
}

func NewGrid(rows, cols int, fill CellState) Grid {
	cells := make([]CellState, rows*cols)
	for i := range cells {
		cells[i] = fill
	}
	return Grid{Rows: rows, Cols: cols, Cells: cells}
}

func (g Grid) InBounds(row, col int) bool {
	return 0 <= row && row < g.Rows && 0 <= col && col < g.Cols
}

func (g Grid) At(row, col int) CellState {
	return g.Cells[row*g.Cols+col]
}

func (g Grid) Set(row, col int, v CellState) {
	g.Cells[row*g.Cols+col] = v
}

// Neighbours yields the in-bounds Moore neighbourhood of row:col.
func (g Grid) Neighbours(row, col int) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				r, c := row+dr, col+dc
				if !g.InBounds(r, c) {
					continue
				}
				if !yield(r, c) {
					return
				}
			}
		}
	}
}

func (g Grid) Count(v CellState) (n int) {
	for _, c := range g.Cells {
		if c == v {
			n++
		}
	}
	return
}

func (g Grid) Clone() Grid {
	cells := make([]CellState, len(g.Cells))
	copy(cells, g.Cells)
	return Grid{Rows: g.Rows, Cols: g.Cols, Cells: cells}
}

// Rows2D returns the grid as a slice of rows of plain ints.
func (g Grid) Rows2D() [][]int {
	out := make([][]int, g.Rows)
	for r := range g.Rows {
		out[r] = make([]int, g.Cols)
		for c := range g.Cols {
			out[r][c] = int(g.At(r, c))
		}
	}
	return out
}

func (g Grid) String() string {
	var b strings.Builder
	for r := range g.Rows {
		for c := range g.Cols {
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(g.At(r, c).String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
