package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxIntakeBodySize = 1 << 20

// NewRouter exposes the repository over HTTP so a website form can post
// leads directly.
func NewRouter(repo *Repository) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/leads", handleCreate(repo))
	r.Get("/leads", handleList(repo))
	r.Get("/leads/{id}", handleGet(repo))
	return r
}

func handleCreate(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIntakeBodySize)
		defer r.Body.Close()

		var in NewLead
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		in.Status = ""
		lead, err := repo.Add(in)
		if err != nil {
			if errors.Is(err, ErrInvalidLead) {
				httpError(w, http.StatusBadRequest, "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		log.Printf("[intake] lead #%d %s (score %d)", lead.ID, lead.Name, lead.Score)
		writeJSON(w, http.StatusCreated, lead)
	}
}

func handleList(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := Filter{Status: q.Get("status"), Source: q.Get("source")}
		if v := q.Get("min_score"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid min_score %q", v)
				return
			}
			f.MinScore = n
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid limit %q", v)
				return
			}
			f.Limit = n
		}
		leads, err := repo.List(f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		if leads == nil {
			leads = []Lead{}
		}
		writeJSON(w, http.StatusOK, leads)
	}
}

func handleGet(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid id")
			return
		}
		lead, err := repo.Get(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				httpError(w, http.StatusNotFound, "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

// Serve runs the intake API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, repo *Repository) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(repo),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[intake] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("[intake] shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("intake server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": fmt.Sprintf(format, args...),
	})
}
