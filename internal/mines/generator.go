package mines

import (
	"fmt"
	"strings"
)

const (
	DefaultRows      = 9
	DefaultCols      = 9
	DefaultMineCount = 10

	MaxRows = 256
	MaxCols = 256
)

type GameParams struct {
	Rows, Cols, MineCount int
}

func DefaultGameParams() GameParams {
	return GameParams{
		Rows:      DefaultRows,
		Cols:      DefaultCols,
		MineCount: DefaultMineCount,
	}
}

func (p GameParams) Unpack() (rows int, cols int, mc int) {
	return p.Rows, p.Cols, p.MineCount
}

func validateSize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf(
			"%w: board must be at least 1x1 (have %dx%d)",
			ErrInvalidConfiguration, rows, cols,
		)
	}
	if rows > MaxRows || cols > MaxCols {
		return fmt.Errorf(
			"%w: board must be at most %dx%d (have %dx%d)",
			ErrInvalidConfiguration, MaxRows, MaxCols, rows, cols,
		)
	}
	return nil
}

// Validate rejects boards that are larger than MaxRows x MaxCols or cannot
// hold at least one safe cell.
func (p GameParams) Validate() error {
	if err := validateSize(p.Rows, p.Cols); err != nil {
		return err
	}
	if p.MineCount < 0 {
		return fmt.Errorf(
			"%w: negative mine count %d", ErrInvalidConfiguration, p.MineCount,
		)
	}
	if p.MineCount >= p.Rows*p.Cols {
		return fmt.Errorf(
			"%w: %d mines do not fit a %dx%d board",
			ErrInvalidConfiguration, p.MineCount, p.Rows, p.Cols,
		)
	}
	return nil
}

func (p GameParams) ValidatePoint(row, col int) bool {
	return 0 <= row && row < p.Rows && 0 <= col && col < p.Cols
}

func (p GameParams) Seed() string {
	return fmt.Sprintf("%d:%d:%d", p.Rows, p.Cols, p.MineCount)
}

func ParseSeed(seed string) (*GameParams, error) {
	p := &GameParams{}
	sseed := strings.ReplaceAll(seed, ":", " ")
	n, err := fmt.Sscanf(sseed, "%d %d %d", &p.Rows, &p.Cols, &p.MineCount)
	if n != 3 || err != nil {
		return nil, fmt.Errorf(
			`invalid game params seed (sseed = "%s", n = %d, err = %w)`,
			sseed, n, err,
		)
	}
	return p, nil
}
