package mines

import "fmt"

// Reveal copies row:col from layout into visibility. A zero cell also
// uncovers its immediate neighbours, one level deep. Reports true when the
// revealed cell is a mine, which is then marked [Exploded].
//
// Revealing an already visible cell copies the same values again.
func Reveal(row, col int, layout, visibility Grid) (bool, error) {
	if !layout.InBounds(row, col) || !visibility.InBounds(row, col) {
		return false, fmt.Errorf("%w: %d:%d", ErrOutOfBounds, row, col)
	}

	v := layout.At(row, col)
	visibility.Set(row, col, v)

	if v == 0 {
		for r, c := range layout.Neighbours(row, col) {
			visibility.Set(r, c, layout.At(r, c))
		}
	}

	if v == Mine {
		visibility.Set(row, col, Exploded)
		return true, nil
	}
	return false, nil
}

// CheckWin reports whether exactly mineCount cells are still hidden.
func CheckWin(visibility Grid, mineCount int) bool {
	return visibility.Count(Hidden) == mineCount
}

// FinalizeLoss shows every mine of the layout except the one at exploded,
// which keeps its [Exploded] marker.
func FinalizeLoss(layout, visibility Grid, exploded Point) {
	for r := range layout.Rows {
		for c := range layout.Cols {
			if layout.At(r, c) == Mine {
				visibility.Set(r, c, Mine)
			}
		}
	}
	visibility.Set(exploded.Row, exploded.Col, Exploded)
}

// FinalizeWin uncovers whatever is left hidden, which after a win is
// exactly the mines.
func FinalizeWin(layout, visibility Grid) {
	for i, v := range visibility.Cells {
		if v == Hidden {
			visibility.Cells[i] = layout.Cells[i]
		}
	}
}
