package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"

	"github.com/vancomm/classic-minesweeper/internal/config"
	"github.com/vancomm/classic-minesweeper/internal/middleware"
	"github.com/vancomm/classic-minesweeper/internal/mines"
	"github.com/vancomm/classic-minesweeper/internal/repository"
)

const maxBatchBytes = 1 << 16

var ErrNotOwner = errors.New("session token does not own this game")

type SessionStore interface {
	CreateGameSession(ctx context.Context, state *mines.GameState) (*repository.GameSession, error)
	GetSession(ctx context.Context, gameSessionId int64) (*repository.GameSession, error)
	UpdateSession(ctx context.Context, gameSessionId, version int64, state *mines.GameState) (*repository.GameSession, error)
}

type GameHandler struct {
	logger   *slog.Logger
	store    SessionStore
	cookies  *config.Cookies
	ws       *config.WebSocket
	defaults mines.GameParams

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

func NewGameHandler(
	logger *slog.Logger,
	store SessionStore,
	cookies *config.Cookies,
	ws *config.WebSocket,
	defaults mines.GameParams,
	rnd *rand.Rand,
) *GameHandler {
	return &GameHandler{
		logger:   logger,
		store:    store,
		cookies:  cookies,
		ws:       ws,
		defaults: defaults,
		rnd:      rnd,
	}
}

func (g *GameHandler) newGame(params mines.GameParams) (*mines.GameState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return mines.NewGame(params, g.rnd)
}

func (g *GameHandler) NewGame(w http.ResponseWriter, r *http.Request) {
	params, err := ParseNewGameDTO(r.URL.Query(), g.defaults)
	if err != nil {
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, err)
		return
	}

	game, err := g.newGame(params)
	if errors.Is(err, mines.ErrInvalidConfiguration) {
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		internalError(w, g.logger, "unable to generate a new game", err)
		return
	}

	session, err := g.store.CreateGameSession(r.Context(), game)
	if errors.Is(err, mines.ErrInvalidConfiguration) {
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		internalError(w, g.logger, "unable to create game session", err)
		return
	}

	token, err := g.cookies.Grant(w, session.GameSessionId)
	if err != nil {
		internalError(w, g.logger, "unable to grant session token", err)
		return
	}

	g.logger.Debug(
		"created game session",
		slog.Int64("gameSessionId", session.GameSessionId),
		slog.String("seed", params.Seed()),
	)

	dto := NewGameSessionDTO(session, game)
	dto.Token = token
	sendJSONOrLog(w, g.logger, http.StatusCreated, dto)
}

// loadSession writes the error response itself when it fails.
func (g *GameHandler) loadSession(
	w http.ResponseWriter, r *http.Request,
) (*repository.GameSession, *mines.GameState, bool) {
	sessionId, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, fmt.Errorf("invalid game session id"))
		return nil, nil, false
	}

	session, err := g.store.GetSession(r.Context(), sessionId)
	if errors.Is(err, repository.ErrNotFound) {
		sendErrorOrLog(w, g.logger, http.StatusNotFound, err)
		return nil, nil, false
	}
	if err != nil {
		internalError(w, g.logger, "unable to fetch game session", err)
		return nil, nil, false
	}

	game, err := session.GameState()
	if err != nil {
		internalError(w, g.logger, "stored game session is unreadable", err)
		return nil, nil, false
	}

	return session, game, true
}

func (g *GameHandler) authorize(w http.ResponseWriter, r *http.Request, session *repository.GameSession) bool {
	claims, ok := middleware.GetSessionClaims(r.Context())
	if !ok || claims.GameSessionId != session.GameSessionId {
		sendErrorOrLog(w, g.logger, http.StatusForbidden, ErrNotOwner)
		return false
	}
	return true
}

// save stores game over the version of session it was loaded from. Once the
// game is over the session token is of no further use and its cookie is
// cleared.
func (g *GameHandler) save(
	w http.ResponseWriter, r *http.Request,
	session *repository.GameSession, game *mines.GameState,
) {
	updated, err := g.store.UpdateSession(r.Context(), session.GameSessionId, session.Version, game)
	if errors.Is(err, repository.ErrStale) {
		sendErrorOrLog(w, g.logger, http.StatusConflict, err)
		return
	}
	if err != nil {
		internalError(w, g.logger, "unable to update game session", err)
		return
	}
	if game.Outcome().Over() {
		g.cookies.Clear(w)
	}
	sendJSONOrLog(w, g.logger, http.StatusOK, NewGameSessionDTO(updated, game))
}

func (g *GameHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	session, game, ok := g.loadSession(w, r)
	if !ok {
		return
	}
	sendJSONOrLog(w, g.logger, http.StatusOK, NewGameSessionDTO(session, game))
}

func (g *GameHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	pos, err := ParsePosition(r.URL.Query())
	if err != nil {
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, err)
		return
	}

	session, game, ok := g.loadSession(w, r)
	if !ok || !g.authorize(w, r, session) {
		return
	}

	outcome, err := game.Reveal(pos.Row, pos.Col)
	switch {
	case errors.Is(err, mines.ErrOutOfBounds):
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, err)
		return
	case errors.Is(err, mines.ErrGameOver):
		sendErrorOrLog(w, g.logger, http.StatusConflict, err)
		return
	case err != nil:
		internalError(w, g.logger, "unable to reveal cell", err)
		return
	}

	if outcome.Over() {
		g.logger.Info(
			"game over",
			slog.Int64("gameSessionId", session.GameSessionId),
			slog.Bool("dead", outcome.Dead),
			slog.Bool("won", outcome.Won),
		)
	}

	g.save(w, r, session, game)
}

// Batch accepts newline-separated commands in the request body (see
// [parseCommands]). A malformed command rejects the whole batch with a
// [http.StatusBadRequest] naming its 1-based line; nothing is stored in that
// case.
func (g *GameHandler) Batch(w http.ResponseWriter, r *http.Request) {
	session, game, ok := g.loadSession(w, r)
	if !ok || !g.authorize(w, r, session) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		sendErrorOrLog(w, g.logger, http.StatusBadRequest, err)
		return
	}

	changed, err := executeCommands(game, string(body))
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		line := cmdErr.Line
		sendJSONOrLog(w, g.logger, http.StatusBadRequest, errorBody{
			Error: cmdErr.Err.Error(),
			Line:  &line,
		})
		return
	}
	if err != nil {
		internalError(w, g.logger, "unable to execute commands", err)
		return
	}

	if !changed {
		sendJSONOrLog(w, g.logger, http.StatusOK, NewGameSessionDTO(session, game))
		return
	}
	g.save(w, r, session, game)
}

func (g *GameHandler) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /game", g.NewGame)
	mux.HandleFunc("GET /game/{id}", g.Fetch)
	mux.HandleFunc("POST /game/{id}/reveal", g.Reveal)
	mux.HandleFunc("POST /game/{id}/batch", g.Batch)
	mux.HandleFunc("GET /game/{id}/connect", g.ConnectWS)
	return mux
}
