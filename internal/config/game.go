package config

import (
	"github.com/spf13/viper"

	"github.com/vancomm/classic-minesweeper/internal/mines"
)

// GameDefaults reads GAME_ROWS, GAME_COLS and GAME_MINE_COUNT, falling back
// to a 9x9 board with 10 mines.
func GameDefaults() (mines.GameParams, error) {
	v := viper.New()
	v.SetEnvPrefix("game")
	v.SetDefault("rows", mines.DefaultRows)
	v.SetDefault("cols", mines.DefaultCols)
	v.SetDefault("mine_count", mines.DefaultMineCount)
	v.AutomaticEnv()

	params := mines.GameParams{
		Rows:      v.GetInt("rows"),
		Cols:      v.GetInt("cols"),
		MineCount: v.GetInt("mine_count"),
	}
	if err := params.Validate(); err != nil {
		return mines.GameParams{}, err
	}
	return params, nil
}
