package handlers

import (
	"fmt"
	"strconv"

	"github.com/gorilla/schema"

	"github.com/vancomm/classic-minesweeper/internal/mines"
	"github.com/vancomm/classic-minesweeper/internal/repository"
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

type NewGameDTO struct {
	Rows      int `schema:"rows"`
	Cols      int `schema:"cols"`
	MineCount int `schema:"mine_count"`
}

// ParseNewGameDTO fills whatever src leaves out from defaults.
func ParseNewGameDTO(src map[string][]string, defaults mines.GameParams) (mines.GameParams, error) {
	dto := NewGameDTO{
		Rows:      defaults.Rows,
		Cols:      defaults.Cols,
		MineCount: defaults.MineCount,
	}
	if err := decoder.Decode(&dto, src); err != nil {
		return mines.GameParams{}, fmt.Errorf("invalid game params: %w", err)
	}
	return mines.GameParams(dto), nil
}

type Position struct {
	Row int `schema:"row,required"`
	Col int `schema:"col,required"`
}

func ParsePosition(src map[string][]string) (Position, error) {
	var pos Position
	if err := decoder.Decode(&pos, src); err != nil {
		return Position{}, fmt.Errorf("invalid position: %w", err)
	}
	return pos, nil
}

type GameSessionDTO struct {
	GameSessionId string  `json:"game_session_id"`
	Grid          [][]int `json:"grid"`
	Rows          int     `json:"rows"`
	Cols          int     `json:"cols"`
	MineCount     int     `json:"mine_count"`
	Dead          bool    `json:"dead"`
	Won           bool    `json:"won"`
	Token         string  `json:"token,omitempty"`
}

// NewGameSessionDTO exposes what the player is allowed to see, never the
// mine layout itself.
func NewGameSessionDTO(session *repository.GameSession, g *mines.GameState) *GameSessionDTO {
	return &GameSessionDTO{
		GameSessionId: strconv.FormatInt(session.GameSessionId, 10),
		Grid:          g.Visibility.Rows2D(),
		Rows:          g.Rows,
		Cols:          g.Cols,
		MineCount:     g.MineCount,
		Dead:          g.Dead,
		Won:           g.Won,
	}
}
