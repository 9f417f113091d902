package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/listing"
	"chepochem.org/internal/notify"
	"chepochem.org/internal/obs"
	"chepochem.org/internal/rbac"
	"chepochem.org/internal/reputation"
	"chepochem.org/internal/review"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps collects the services the HTTP layer exposes.
type Deps struct {
	Listings      *listing.Service
	Workflow      *listing.Workflow
	Reviews       *review.Service
	Reputation    *reputation.Aggregator
	Notifications notify.Store
	Stream        *notify.Stream
	Trail         *audit.Trail
	Engine        *rbac.Engine
}

// API — HTTP слой.
type API struct {
	mux           *http.ServeMux
	listings      *listing.Service
	workflow      *listing.Workflow
	reviews       *review.Service
	reputation    *reputation.Aggregator
	notifications notify.Store
	stream        *notify.Stream
	trail         *audit.Trail
	engine        *rbac.Engine
	readyProbe    ReadyProbe
	version       string
}

func New(deps Deps, rp ReadyProbe, version string) *API {
	a := &API{
		mux:           http.NewServeMux(),
		listings:      deps.Listings,
		workflow:      deps.Workflow,
		reviews:       deps.Reviews,
		reputation:    deps.Reputation,
		notifications: deps.Notifications,
		stream:        deps.Stream,
		trail:         deps.Trail,
		engine:        deps.Engine,
		readyProbe:    rp,
		version:       version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// listings and moderation
	a.mux.HandleFunc("/v1/listings", a.handleListingsCollection)
	a.mux.HandleFunc("/v1/listings/", a.handleListingResource)

	// reviews and reputation
	a.mux.HandleFunc("/v1/reviews", a.handleReviewsCollection)
	a.mux.HandleFunc("/v1/reviews/", a.handleReviewResource)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// notifications
	a.mux.HandleFunc("/v1/notifications", a.handleNotificationsCollection)
	a.mux.HandleFunc("/v1/notifications/stream", a.StreamNotifications)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationResource)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает http.Handler для сервера.
func (a *API) Handler() http.Handler {
	// метрики вокруг всего mux, аутентификация внутри
	return obs.Instrument(a.withAuth(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "chepochem-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "chepochem-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
