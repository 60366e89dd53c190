package mines

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

type GameState struct {
	Dead, Won  bool
	Layout     Grid /* real mine points and counts */
	Visibility Grid /* player knowledge */
	GameParams
}

type Outcome struct {
	Dead, Won bool
}

func (o Outcome) Over() bool {
	return o.Dead || o.Won
}

func NewGame(params GameParams, r *rand.Rand) (*GameState, error) {
	layout, visibility, err := Generate(params, r)
	if err != nil {
		return nil, err
	}
	return &GameState{
		GameParams: params,
		Layout:     layout,
		Visibility: visibility,
	}, nil
}

// NewGameFromLayout starts a game on a prepared layout.
func NewGameFromLayout(layout Grid) *GameState {
	return &GameState{
		GameParams: GameParams{
			Rows:      layout.Rows,
			Cols:      layout.Cols,
			MineCount: layout.Count(Mine),
		},
		Layout:     layout,
		Visibility: NewGrid(layout.Rows, layout.Cols, Hidden),
	}
}

func DecodeGameState(buf []byte) (*GameState, error) {
	var game GameState
	err := gob.NewDecoder(bytes.NewBuffer(buf)).Decode(&game)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (s GameState) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(s)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *GameState) Outcome() Outcome {
	return Outcome{Dead: s.Dead, Won: s.Won}
}

// Reveal opens row:col. Once the game is over the state is left untouched
// and [ErrGameOver] is returned.
func (s *GameState) Reveal(row, col int) (Outcome, error) {
	if s.Dead || s.Won {
		return s.Outcome(), ErrGameOver
	}
	if !s.ValidatePoint(row, col) {
		return s.Outcome(), fmt.Errorf("%w: %d:%d", ErrOutOfBounds, row, col)
	}

	dead, err := Reveal(row, col, s.Layout, s.Visibility)
	if err != nil {
		return s.Outcome(), err
	}

	log := Log.WithFields(logrus.Fields{
		"row": row,
		"col": col,
	})

	if dead {
		/*
		 * The player has landed on a mine. Show all the others as
		 * well, keeping the one that went off marked.
		 */
		s.Dead = true
		FinalizeLoss(s.Layout, s.Visibility, Point{row, col})
		log.Debug("stepped on a mine")
		return s.Outcome(), nil
	}

	if CheckWin(s.Visibility, s.MineCount) {
		s.Won = true
		FinalizeWin(s.Layout, s.Visibility)
		log.Debug("all safe cells uncovered")
	}

	return s.Outcome(), nil
}

func (s GameState) String() string {
	return s.Visibility.String()
}
