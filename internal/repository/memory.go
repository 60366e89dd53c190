package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vancomm/classic-minesweeper/internal/mines"
)

// Memory keeps game sessions in process. It backs development runs without a
// database and the handler tests.
type Memory struct {
	mu       sync.Mutex
	lastId   int64
	sessions map[int64]GameSession
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[int64]GameSession)}
}

func (m *Memory) CreateGameSession(_ context.Context, state *mines.GameState) (*GameSession, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	b, err := state.Bytes()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastId++
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	session := GameSession{
		GameSessionId: m.lastId,
		Rows:          state.Rows,
		Cols:          state.Cols,
		MineCount:     state.MineCount,
		Dead:          state.Dead,
		Won:           state.Won,
		State:         b,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.sessions[session.GameSessionId] = session
	return &session, nil
}

func (m *Memory) GetSession(_ context.Context, gameSessionId int64) (*GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[gameSessionId]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (m *Memory) UpdateSession(
	_ context.Context, gameSessionId, version int64, state *mines.GameState,
) (*GameSession, error) {
	b, err := state.Bytes()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[gameSessionId]
	if !ok {
		return nil, ErrNotFound
	}
	if session.Version != version {
		return nil, ErrStale
	}
	session.Version++
	session.Dead = state.Dead
	session.Won = state.Won
	session.State = b
	session.UpdatedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.sessions[gameSessionId] = session
	return &session, nil
}
