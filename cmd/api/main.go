package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/httpapi"
	"chepochem.org/internal/listing"
	"chepochem.org/internal/notify"
	"chepochem.org/internal/obs"
	"chepochem.org/internal/rbac"
	"chepochem.org/internal/reputation"
	"chepochem.org/internal/review"
	"chepochem.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CHEPOCHEM_COMMIT"))

	// Хранилище: Postgres при заданном DSN, иначе in-memory для локальной
	// разработки и тестов.
	var (
		pgStore       *pg.Store
		listingStore  listing.Store
		owners        rbac.OwnershipLookup
		reviewStore   review.Store
		repStore      reputation.Store
		auditStore    audit.Store
		notifications notify.Store
	)
	if dsn := os.Getenv("CHEPOCHEM_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		listingStore = pgStore
		owners = pgStore
		reviewStore = pgStore.Reviews()
		repStore = pgStore.Reputations()
		auditStore = pgStore
		notifications = pgStore
	} else {
		log.Println("CHEPOCHEM_PG_DSN is empty, using in-memory storage")
		memAudit := audit.NewMemoryStore()
		memListings := listing.NewMemoryStore(memAudit)
		listingStore = memListings
		owners = memListings
		reviewStore = review.NewMemoryStore(memAudit)
		repStore = reputation.NewMemoryStore()
		auditStore = memAudit
		notifications = notify.NewMemoryStore()
	}

	trail, err := audit.NewTrail(auditStore)
	if err != nil {
		log.Fatalf("audit trail: %v", err)
	}
	engine, err := rbac.NewEngine(rbac.NewCatalog(), owners, trail)
	if err != nil {
		log.Fatalf("rbac engine: %v", err)
	}

	// Уведомления: хранилище + SSE поток.
	stream := notify.NewStream()
	sink := notify.Multi{notifications, stream}

	listingSvc, err := listing.NewService(engine, listingStore, trail, sink)
	if err != nil {
		log.Fatalf("listing service: %v", err)
	}
	workflow, err := listing.NewWorkflow(engine, listingStore, sink)
	if err != nil {
		log.Fatalf("moderation workflow: %v", err)
	}
	aggregator, err := reputation.NewAggregator(reviewStore, repStore)
	if err != nil {
		log.Fatalf("reputation aggregator: %v", err)
	}
	reviewSvc, err := review.NewService(engine, reviewStore, aggregator, sink)
	if err != nil {
		log.Fatalf("review service: %v", err)
	}

	var probe httpapi.ReadyProbe
	if pgStore != nil {
		probe.DB = pgStore.DB()
	}
	api := httpapi.New(httpapi.Deps{
		Listings:      listingSvc,
		Workflow:      workflow,
		Reviews:       reviewSvc,
		Reputation:    aggregator,
		Notifications: notifications,
		Stream:        stream,
		Trail:         trail,
		Engine:        engine,
	}, probe, version)

	handler := httpapi.Logging(api.Handler())
	handler = httpapi.RequestID(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, 50, 25)

	addr := os.Getenv("CHEPOCHEM_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting chepochem-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
