package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	"github.com/AdamBeresnev/bracket-engine/internal/keylock"
	"github.com/AdamBeresnev/bracket-engine/internal/progression"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type app struct {
	tournaments *service.TournamentService
	matches     *service.MatchService
	swiss       *service.SwissService
}

func newApp(db *sqlx.DB, logger *slog.Logger) *app {
	tournamentStore := store.NewTournamentStore(db)
	matchStore := store.NewMatchStore(db)
	// one lock table so builds, completions and Swiss pairing on a stage
	// never interleave
	locks := keylock.New()
	swiss := service.NewSwissService(db, tournamentStore, matchStore, locks, logger)

	return &app{
		tournaments: service.NewTournamentService(db, tournamentStore, matchStore, locks, logger),
		matches:     service.NewMatchService(db, tournamentStore, matchStore, locks, swiss, logger),
		swiss:       swiss,
	}
}

type buildRequest struct {
	Format  bracket.Format      `json:"format"`
	Teams   []service.TeamInput `json:"teams"`
	Options bracket.Options     `json:"options"`
}

func urlID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		tournaments, err := a.tournaments.ListTournaments(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list tournaments", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, tournaments)
	})

	r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}
		tournament, err := a.tournaments.CreateTournament(r.Context(), req.Name)
		if err != nil {
			httputil.Error(w, "Failed to create tournament", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, tournament)
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}
		data, err := a.tournaments.GetTournamentData(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Tournament not found", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, data)
	})

	r.Post("/tournaments/{id}/stages", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}
		stage, err := a.tournaments.CreateStage(r.Context(), id, req.Name)
		if err != nil {
			httputil.Error(w, "Tournament not found", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, stage)
	})

	r.Route("/stages/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			data, err := a.tournaments.GetStageData(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Stage not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, data)
		})

		r.Post("/bracket", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			var req buildRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			res, err := a.tournaments.BuildBracket(r.Context(), id, req.Format, req.Teams, req.Options)
			if err != nil {
				httputil.Error(w, "Stage not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, res)
		})

		r.Post("/rebuild", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
			res, err := a.tournaments.RebuildBracket(r.Context(), id, force)
			if err != nil {
				httputil.Error(w, "Stage not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, res)
		})

		r.Get("/standings", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			rows, err := a.tournaments.GetStandings(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Stage not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, rows)
		})

		r.Post("/swiss/rounds/{round}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			round, err := strconv.Atoi(chi.URLParam(r, "round"))
			if err != nil || round < 1 {
				httputil.BadRequest(w, "Invalid round", err)
				return
			}
			matches, err := a.swiss.GenerateNextSwissRound(r.Context(), id, round)
			if err != nil {
				httputil.Error(w, "Stage not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, matches)
		})
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			detail, err := a.matches.GetMatchDetail(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Match not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, detail)
		})

		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			match, err := a.matches.StartMatch(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Match not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, match)
		})

		r.Post("/dispute", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			var req struct {
				Reason string `json:"reason"`
			}
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			match, err := a.matches.DisputeMatch(r.Context(), id, req.Reason)
			if err != nil {
				httputil.Error(w, "Match not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, match)
		})

		r.Post("/complete", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r)
			if !ok {
				return
			}
			var sub progression.Submission
			if err := httputil.DecodeJSON(r, &sub); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			res, err := a.matches.CompleteMatch(r.Context(), id, sub)
			if err != nil {
				httputil.Error(w, "Match not found", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, res)
		})
	})

	return r
}
