package mines

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// Generate places p.MineCount mines on a fresh board and returns the mine
// layout together with a fully hidden visibility grid.
func Generate(p GameParams, r *rand.Rand) (layout Grid, visibility Grid, err error) {
	if err := p.Validate(); err != nil {
		return Grid{}, Grid{}, err
	}
	rows, cols, mineCount := p.Unpack()

	layout = NewGrid(rows, cols, 0)

	/*
	 * Write down the list of possible mine locations, then pick
	 * mineCount of them off the list at random. Every pick shrinks the
	 * list, so this always terminates.
	 */
	candidates := make([]int, rows*cols)
	for i := range candidates {
		candidates[i] = i
	}
	k := len(candidates)
	for range mineCount {
		i := r.IntN(k)
		j := candidates[i]
		placeMine(layout, j/cols, j%cols)
		k--
		candidates[i] = candidates[k]
	}

	Log.WithFields(logrus.Fields{
		"seed":  p.Seed(),
		"mines": layout.Count(Mine),
	}).Debug("generated layout")

	return layout, NewGrid(rows, cols, Hidden), nil
}

// LayoutFromMines builds a layout with mines at exactly the given points.
func LayoutFromMines(rows, cols int, mines []Point) (Grid, error) {
	if err := validateSize(rows, cols); err != nil {
		return Grid{}, err
	}
	layout := NewGrid(rows, cols, 0)
	for _, m := range mines {
		if !layout.InBounds(m.Row, m.Col) {
			return Grid{}, fmt.Errorf("%w: mine at %s", ErrOutOfBounds, m)
		}
		if layout.At(m.Row, m.Col) == Mine {
			return Grid{}, fmt.Errorf(
				"%w: duplicate mine at %s", ErrInvalidConfiguration, m,
			)
		}
		placeMine(layout, m.Row, m.Col)
	}
	return layout, nil
}

// placeMine marks row:col as a mine and bumps the count of every neighbour
// that is not a mine itself.
func placeMine(layout Grid, row, col int) {
	layout.Set(row, col, Mine)
	for r, c := range layout.Neighbours(row, col) {
		if v := layout.At(r, c); v != Mine {
			layout.Set(r, c, v+1)
		}
	}
}
