package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/auth"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/repo"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/service"
)

type API struct {
	Repo    *repo.Repo
	Service *service.Service
	Auth    *auth.Manager
	Origins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/health", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)

		r.Get("/account", a.handleAccountSummary)
		r.Get("/account/transactions", a.handleListTransactions)
		r.Get("/account/checkins", a.handleListCheckins)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", a.handleListTasks)
			r.Post("/", a.handleCreateTask)
			r.Post("/{id}/complete", a.handleCompleteTask)
		})

		r.Post("/checkins", a.handleRecordCheckin)
		r.Post("/gems/adjust", a.handleAdjustGems)

		r.Route("/badges", func(r chi.Router) {
			r.Get("/", a.handleBadgeBoard)
			r.Get("/unlocks", a.handleListUnlocks)
			r.Post("/rules", a.handleCreateRule)
			r.Put("/rules/{id}", a.handleUpdateRule)
			r.Delete("/rules/{id}", a.handleDeactivateRule)
		})
	})

	return r
}
