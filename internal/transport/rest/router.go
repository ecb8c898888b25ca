package rest

import (
	"context"
	"net/http"
	"time"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/logger"
	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/submissions"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readinessTimeout = 2 * time.Second

// Container holds everything the router needs.
type Container struct {
	Catalogs    *catalog.Registry
	Sessions    *Sessions
	Submissions *submissions.Service // nil when no database is configured
	Logger      logger.Logger

	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

func NewRouter(c *Container) http.Handler {
	errHandler := errors.NewErrorHandler(c.Logger)
	flows := NewFlowHandler(c.Catalogs, c.Sessions, errHandler)

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods("GET")
	r.HandleFunc("/ready", readyHandler(c.Checks)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Flows
	v1.HandleFunc("/flows/{flowType}/catalog", flows.Catalog).Methods("GET")
	v1.HandleFunc("/flows/{flowType}/sessions", flows.OpenSession).Methods("POST", "OPTIONS")

	// Sessions
	v1.HandleFunc("/sessions/{id}", flows.GetSession).Methods("GET")
	v1.HandleFunc("/sessions/{id}", flows.CloseSession).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/answers/{field}", flows.UpdateAnswer).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/next", flows.Next).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/back", flows.Back).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/seek", flows.Seek).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/restart", flows.Restart).Methods("POST", "OPTIONS")

	// Submissions
	if c.Submissions != nil {
		subs := NewSubmissionHandler(c.Submissions, errHandler)
		v1.HandleFunc("/uniqueness", subs.CheckUniqueness).Methods("POST", "OPTIONS")
		v1.HandleFunc("/flows/{flowType}/submissions", subs.Submit).Methods("POST", "OPTIONS")
	}

	return r
}

func readyHandler(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		ready := "ready"
		if status != http.StatusOK {
			ready = "not ready"
		}
		writeJSON(w, status, map[string]interface{}{"status": ready, "checks": results})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
