package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/classic-minesweeper/internal/config"
	"github.com/vancomm/classic-minesweeper/internal/middleware"
	"github.com/vancomm/classic-minesweeper/internal/mines"
	"github.com/vancomm/classic-minesweeper/internal/repository"
)

// 9x9 board with ten mines; 4:4 has no adjacent mines.
var fixtureMines = []mines.Point{
	{Row: 0, Col: 0}, {Row: 0, Col: 8}, {Row: 1, Col: 5}, {Row: 2, Col: 2}, {Row: 2, Col: 7},
	{Row: 6, Col: 1}, {Row: 6, Col: 6}, {Row: 7, Col: 3}, {Row: 8, Col: 0}, {Row: 8, Col: 8},
}

type testEnv struct {
	handler http.Handler
	store   *repository.Memory
	jwt     *config.JWT
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, func(m *repository.Memory) SessionStore { return m })
}

// newTestEnvWithStore serves the handler from wrap(store), while env.store
// still reaches the underlying sessions directly.
func newTestEnvWithStore(t *testing.T, wrap func(*repository.Memory) SessionStore) *testEnv {
	t.Helper()
	for _, key := range []string{"COOKIES_DOMAIN", "COOKIES_SECURE", "COOKIES_SAMESITE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwt := config.NewJWTWithKey(key, &key.PublicKey, time.Hour)
	cookies, err := config.NewCookies(jwt)
	require.NoError(t, err)

	store := repository.NewMemory()
	g := NewGameHandler(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		wrap(store),
		cookies,
		config.NewWebSocket(),
		mines.DefaultGameParams(),
		mrand.New(mrand.NewPCG(1, 2)),
	)

	return &testEnv{
		handler: middleware.Wrap(g.ServeMux(), middleware.Auth(cookies)),
		store:   store,
		jwt:     jwt,
	}
}

// seed stores the fixture game and returns its id with an owner token.
func (e *testEnv) seed(t *testing.T) (int64, string) {
	t.Helper()
	layout, err := mines.LayoutFromMines(9, 9, fixtureMines)
	require.NoError(t, err)
	session, err := e.store.CreateGameSession(context.Background(), mines.NewGameFromLayout(layout))
	require.NoError(t, err)
	token, err := e.jwt.Sign(e.jwt.NewSessionClaims(session.GameSessionId))
	require.NoError(t, err)
	return session.GameSessionId, token
}

func (e *testEnv) do(method, target, token, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func gamePath(id int64, rest string) string {
	return "/game/" + strconv.FormatInt(id, 10) + rest
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) GameSessionDTO {
	t.Helper()
	var dto GameSessionDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto), w.Body.String())
	return dto
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func countCells(grid [][]int, v mines.CellState) (n int) {
	for _, row := range grid {
		for _, c := range row {
			if c == int(v) {
				n++
			}
		}
	}
	return
}

func TestNewGameDefaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/game", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	dto := decodeSession(t, w)
	assert.Equal(t, 9, dto.Rows)
	assert.Equal(t, 9, dto.Cols)
	assert.Equal(t, 10, dto.MineCount)
	assert.Equal(t, 81, countCells(dto.Grid, mines.Hidden))
	assert.False(t, dto.Dead)
	assert.False(t, dto.Won)
	assert.NotEmpty(t, dto.Token)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == config.SessionCookie {
			found = true
			assert.Equal(t, dto.Token, c.Value)
		}
	}
	assert.True(t, found, "session cookie is set")

	id, err := strconv.ParseInt(dto.GameSessionId, 10, 64)
	require.NoError(t, err)
	session, err := env.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	game, err := session.GameState()
	require.NoError(t, err)
	assert.Equal(t, 10, game.Layout.Count(mines.Mine))
}

func TestNewGameParams(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/game?rows=16&cols=30&mine_count=99", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dto := decodeSession(t, w)
	assert.Equal(t, 16, dto.Rows)
	assert.Equal(t, 30, dto.Cols)
	assert.Equal(t, 99, dto.MineCount)
	require.Len(t, dto.Grid, 16)
	assert.Len(t, dto.Grid[0], 30)
}

func TestNewGameInvalidParams(t *testing.T) {
	env := newTestEnv(t)

	for _, query := range []string{
		"?mine_count=81",
		"?rows=0",
		"?cols=-3",
		"?rows=abc",
		"?rows=257",
		"?rows=100000&cols=100000&mine_count=0",
		"?rows=4611686018427387905&cols=4&mine_count=0",
	} {
		w := env.do(http.MethodPost, "/game"+query, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		assert.NotEmpty(t, decodeError(t, w).Error, query)
	}
}

func TestFetch(t *testing.T) {
	env := newTestEnv(t)
	id, _ := env.seed(t)

	w := env.do(http.MethodGet, gamePath(id, ""), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	dto := decodeSession(t, w)
	assert.Equal(t, strconv.FormatInt(id, 10), dto.GameSessionId)
	assert.Equal(t, 81, countCells(dto.Grid, mines.Hidden))
	assert.Empty(t, dto.Token)

	w = env.do(http.MethodGet, gamePath(id+100, ""), "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/game/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRevealZeroCell(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.seed(t)

	w := env.do(http.MethodPost, gamePath(id, "/reveal?row=4&col=4"), token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	dto := decodeSession(t, w)
	assert.False(t, dto.Dead)
	assert.Equal(t, []int{1, 0, 0}, dto.Grid[3][3:6])
	assert.Equal(t, []int{0, 0, 0}, dto.Grid[4][3:6])
	assert.Equal(t, []int{0, 0, 1}, dto.Grid[5][3:6])
	assert.Equal(t, 72, countCells(dto.Grid, mines.Hidden))

	// the reveal is stored
	w = env.do(http.MethodGet, gamePath(id, ""), "", "")
	assert.Equal(t, 72, countCells(decodeSession(t, w).Grid, mines.Hidden))
}

func TestRevealMine(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.seed(t)

	w := env.do(http.MethodPost, gamePath(id, "/reveal?row=0&col=0"), token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	dto := decodeSession(t, w)
	assert.True(t, dto.Dead)
	assert.False(t, dto.Won)
	assert.Equal(t, int(mines.Exploded), dto.Grid[0][0])
	for _, m := range fixtureMines[1:] {
		assert.Equal(t, int(mines.Mine), dto.Grid[m.Row][m.Col], "mine %s", m)
	}

	w = env.do(http.MethodPost, gamePath(id, "/reveal?row=4&col=4"), token, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRevealRejects(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.seed(t)
	otherId, otherToken := env.seed(t)
	require.NotEqual(t, id, otherId)

	tests := []struct {
		name   string
		target string
		token  string
		status int
	}{
		{"no token", gamePath(id, "/reveal?row=1&col=1"), "", http.StatusForbidden},
		{"token of another game", gamePath(id, "/reveal?row=1&col=1"), otherToken, http.StatusForbidden},
		{"garbage token", gamePath(id, "/reveal?row=1&col=1"), "garbage", http.StatusForbidden},
		{"out of bounds", gamePath(id, "/reveal?row=9&col=1"), token, http.StatusBadRequest},
		{"negative", gamePath(id, "/reveal?row=-1&col=1"), token, http.StatusBadRequest},
		{"missing col", gamePath(id, "/reveal?row=1"), token, http.StatusBadRequest},
		{"unknown game", gamePath(id+100, "/reveal?row=1&col=1"), token, http.StatusNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := env.do(http.MethodPost, test.target, test.token, "")
			assert.Equal(t, test.status, w.Code, w.Body.String())
		})
	}

	// nothing above touched the board
	w := env.do(http.MethodGet, gamePath(id, ""), "", "")
	assert.Equal(t, 81, countCells(decodeSession(t, w).Grid, mines.Hidden))
}

func TestRevealWithCookie(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(http.MethodPost, "/game", "", "")
	require.Equal(t, http.StatusCreated, created.Code)
	dto := decodeSession(t, created)

	r := httptest.NewRequest(http.MethodPost, "/game/"+dto.GameSessionId+"/reveal?row=0&col=0", nil)
	for _, c := range created.Result().Cookies() {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Less(t, countCells(decodeSession(t, w).Grid, mines.Hidden), 81)
}

func TestBatch(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.seed(t)

	w := env.do(http.MethodPost, gamePath(id, "/batch"), token, "o 4 4\ng\no 8 4\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dto := decodeSession(t, w)
	assert.Equal(t, 71, countCells(dto.Grid, mines.Hidden))
	assert.Equal(t, 1, dto.Grid[8][4])

	// blank lines and an empty body are fine
	w = env.do(http.MethodPost, gamePath(id, "/batch"), token, "\n\ng\n\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(http.MethodPost, gamePath(id, "/batch"), token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 71, countCells(decodeSession(t, w).Grid, mines.Hidden))

	// stops at the first losing move
	w = env.do(http.MethodPost, gamePath(id, "/batch"), token, "o 0 0\no 0 1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dto = decodeSession(t, w)
	assert.True(t, dto.Dead)
	assert.Equal(t, int(mines.Hidden), dto.Grid[0][1])
}

func TestBatchRejectsMalformed(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.seed(t)

	for body, line := range map[string]int{
		"o 4 4\nx 1 2":       2,
		"o 4 4\no 1":         2,
		"g\ng\no 9 9":        3,
		"o four 4":           1,
		"o 1 1\n\n\no 2 x\n": 4,
	} {
		w := env.do(http.MethodPost, gamePath(id, "/batch"), token, body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		errBody := decodeError(t, w)
		require.NotNil(t, errBody.Line, body)
		assert.Equal(t, line, *errBody.Line, body)
	}

	w := env.do(http.MethodGet, gamePath(id, ""), "", "")
	assert.Equal(t, 81, countCells(decodeSession(t, w).Grid, mines.Hidden))

	w = env.do(http.MethodPost, gamePath(id, "/batch"), "", "o 4 4")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// interleavingStore runs interfere once, right after the first session read.
type interleavingStore struct {
	*repository.Memory
	interfere func()
}

func (s *interleavingStore) GetSession(ctx context.Context, id int64) (*repository.GameSession, error) {
	session, err := s.Memory.GetSession(ctx, id)
	if err == nil && s.interfere != nil {
		interfere := s.interfere
		s.interfere = nil
		interfere()
	}
	return session, err
}

func TestRevealRejectsStaleWrite(t *testing.T) {
	var store *interleavingStore
	env := newTestEnvWithStore(t, func(m *repository.Memory) SessionStore {
		store = &interleavingStore{Memory: m}
		return store
	})
	id, token := env.seed(t)

	// another request steps on a mine between our read and our write
	store.interfere = func() {
		ctx := context.Background()
		session, err := env.store.GetSession(ctx, id)
		require.NoError(t, err)
		game, err := session.GameState()
		require.NoError(t, err)
		_, err = game.Reveal(0, 0)
		require.NoError(t, err)
		_, err = env.store.UpdateSession(ctx, id, session.Version, game)
		require.NoError(t, err)
	}

	w := env.do(http.MethodPost, gamePath(id, "/reveal?row=4&col=4"), token, "")
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = env.do(http.MethodGet, gamePath(id, ""), "", "")
	dto := decodeSession(t, w)
	assert.True(t, dto.Dead)
	assert.Equal(t, int(mines.Hidden), dto.Grid[4][4])

	w = env.do(http.MethodPost, gamePath(id, "/reveal?row=4&col=4"), token, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGameOverClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.seed(t)

	reveal := func(row, col string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, gamePath(id, "/reveal?row="+row+"&col="+col), nil)
		r.AddCookie(&http.Cookie{Name: config.SessionCookie, Value: token})
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)
		return w
	}
	sessionCookie := func(w *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range w.Result().Cookies() {
			if c.Name == config.SessionCookie {
				return c
			}
		}
		return nil
	}

	w := reveal("4", "4")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, sessionCookie(w))

	w = reveal("0", "0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeSession(t, w).Dead)
	c := sessionCookie(w)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
	assert.NotEqual(t, token, c.Value)
}
