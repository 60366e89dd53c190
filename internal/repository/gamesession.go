package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vancomm/classic-minesweeper/internal/mines"
)

type GameSession struct {
	GameSessionId int64              `db:"game_session_id"`
	Rows          int                `db:"rows"`
	Cols          int                `db:"cols"`
	MineCount     int                `db:"mine_count"`
	Dead          bool               `db:"dead"`
	Won           bool               `db:"won"`
	State         []byte             `db:"state"`
	Version       int64              `db:"version"`
	CreatedAt     pgtype.Timestamptz `db:"created_at"`
	UpdatedAt     pgtype.Timestamptz `db:"updated_at"`
}

func (s GameSession) GameState() (*mines.GameState, error) {
	game, err := mines.DecodeGameState(s.State)
	if err != nil {
		return nil, fmt.Errorf("invalid state of game session %d: %w", s.GameSessionId, err)
	}
	return game, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return fmt.Errorf("%w: %s", mines.ErrInvalidConfiguration, pgErr.ConstraintName)
	}
	return err
}

func collectSession(rows pgx.Rows, err error) (*GameSession, error) {
	if err != nil {
		return nil, mapError(err)
	}
	session, err := pgx.CollectExactlyOneRow(
		rows, pgx.RowToAddrOfStructByName[GameSession],
	)
	if err != nil {
		return nil, mapError(err)
	}
	return session, nil
}

func (q Queries) CreateGameSession(
	ctx context.Context, state *mines.GameState,
) (*GameSession, error) {
	b, err := state.Bytes()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.Query(
		ctx,
		`INSERT INTO game_session (rows, cols, mine_count, dead, won, state)
		VALUES (@rows, @cols, @mine_count, @dead, @won, @state)
		RETURNING *;`,
		pgx.NamedArgs{
			"rows":       state.Rows,
			"cols":       state.Cols,
			"mine_count": state.MineCount,
			"dead":       state.Dead,
			"won":        state.Won,
			"state":      b,
		},
	)
	return collectSession(rows, err)
}

func (q Queries) GetSession(ctx context.Context, gameSessionId int64) (*GameSession, error) {
	rows, err := q.db.Query(
		ctx,
		"SELECT * FROM game_session WHERE game_session_id = $1",
		gameSessionId,
	)
	return collectSession(rows, err)
}

// UpdateSession stores state only if the session is still at version, and
// bumps the version. A session changed since it was read gives [ErrStale].
func (q Queries) UpdateSession(
	ctx context.Context, gameSessionId, version int64, state *mines.GameState,
) (*GameSession, error) {
	b, err := state.Bytes()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.Query(
		ctx,
		`UPDATE game_session
		SET dead = @dead, won = @won, state = @state,
			version = version + 1, updated_at = NOW()
		WHERE game_session_id = @game_session_id AND version = @version
		RETURNING *;`,
		pgx.NamedArgs{
			"game_session_id": gameSessionId,
			"version":         version,
			"dead":            state.Dead,
			"won":             state.Won,
			"state":           b,
		},
	)
	session, err := collectSession(rows, err)
	if errors.Is(err, ErrNotFound) {
		if _, err := q.GetSession(ctx, gameSessionId); err != nil {
			return nil, err
		}
		return nil, ErrStale
	}
	return session, err
}
