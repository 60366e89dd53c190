package app

import (
	"hash/maphash"
	"math/rand/v2"
	"net/http"

	"github.com/vancomm/classic-minesweeper/internal/handlers"
)

func createRand() *rand.Rand {
	return rand.New(rand.NewPCG(
		new(maphash.Hash).Sum64(), new(maphash.Hash).Sum64(),
	))
}

func (a *App) loadRoutes() http.Handler {
	game := handlers.NewGameHandler(
		a.logger, a.store, a.cookies, a.ws, a.defaults, createRand(),
	)
	router := game.ServeMux()
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
