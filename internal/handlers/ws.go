package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vancomm/classic-minesweeper/internal/middleware"
	"github.com/vancomm/classic-minesweeper/internal/mines"
	"github.com/vancomm/classic-minesweeper/internal/repository"
)

// runBatch applies text to the stored session and stores the result. The
// session is read afresh, so moves made elsewhere in the meantime are seen.
func (g *GameHandler) runBatch(
	ctx context.Context, gameSessionId int64, text string,
) (*repository.GameSession, *mines.GameState, error) {
	session, err := g.store.GetSession(ctx, gameSessionId)
	if err != nil {
		return nil, nil, err
	}
	game, err := session.GameState()
	if err != nil {
		return nil, nil, err
	}

	changed, err := executeCommands(game, text)
	if err != nil || !changed {
		return session, game, err
	}

	session, err = g.store.UpdateSession(ctx, gameSessionId, session.Version, game)
	if err != nil {
		return nil, nil, err
	}
	return session, game, nil
}

// ConnectWS upgrades to a websocket. Every text message is a command batch;
// the reply is the game session after the batch, or an error body.
func (g *GameHandler) ConnectWS(w http.ResponseWriter, r *http.Request) {
	session, _, ok := g.loadSession(w, r)
	if !ok || !g.authorize(w, r, session) {
		return
	}
	sessionId := session.GameSessionId

	c, err := g.ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("unable to upgrade connection", slog.Any("error", err))
		return
	}
	defer c.Close()
	c.SetReadLimit(g.ws.ReadLimit)

	logger := g.logger.With(
		slog.Int64("gameSessionId", sessionId),
		slog.String("requestId", middleware.GetRequestId(r.Context())),
	)

	write := func(v any) bool {
		c.SetWriteDeadline(time.Now().Add(g.ws.WriteTimeout))
		if err := c.WriteJSON(v); err != nil {
			logger.Warn("unable to write message", slog.Any("error", err))
			return false
		}
		return true
	}

	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("unable to read message", slog.Any("error", err))
			}
			return
		}
		if mt != websocket.TextMessage {
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(
				websocket.CloseUnsupportedData, "text messages only",
			))
			return
		}

		logger.Debug("ws >", slog.String("message", string(message)))

		session, game, err := g.runBatch(r.Context(), sessionId, string(message))
		var cmdErr *CommandError
		switch {
		case errors.As(err, &cmdErr):
			line := cmdErr.Line
			if !write(errorBody{Error: cmdErr.Err.Error(), Line: &line}) {
				return
			}
			continue
		case errors.Is(err, repository.ErrStale):
			// the client may resend the batch against the new state
			if !write(wrapError(err)) {
				return
			}
			continue
		case err != nil:
			logger.Error("unable to run commands", slog.Any("error", err))
			write(errorBody{Error: "internal error"})
			return
		}

		if !write(NewGameSessionDTO(session, game)) {
			return
		}
	}
}
