package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"clawoffice.ai/internal/feed"
	"clawoffice.ai/internal/gateway"
	persistlog "clawoffice.ai/internal/persistence/log"
	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/office"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
	"clawoffice.ai/internal/transport/httpapi"
	"clawoffice.ai/internal/transport/observer"
	"clawoffice.ai/internal/transport/ws"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		layoutPath = flag.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		routesPath = flag.String("routes", "", "route catalog json (optional; generated from the layout when empty)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite movement index")
		gatewayURL = flag.String("gateway_url", os.Getenv("OFFICE_GATEWAY_URL"), "agent gateway base url to poll /api/memory (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	lp := strings.TrimSpace(*layoutPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "layout.yaml")
	}
	lay, err := layout.Load(lp)
	if err != nil {
		if !os.IsNotExist(err) || *layoutPath != "" {
			logger.Fatalf("load layout: %v", err)
		}
		logger.Printf("layout not found (%s); using defaults", lp)
		lay = layout.Defaults()
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) || *tuningPath != "" {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := buildStorageRuntime(ctx, *dataDir, logger)
	if err != nil {
		logger.Fatalf("init object store: %v", err)
	}
	defer store.Close()

	seed, storedCatalog := loadSeedRoutes(ctx, store, *routesPath, logger)

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	eventLog := persistlog.NewEventLogger(*dataDir, log.New(os.Stdout, "[eventlog] ", log.LstdFlags))
	if store.enabled {
		eventLog.OnClose(store.Enqueue)
	}
	defer eventLog.Close()

	sinks := events.Fanout{eventLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}

	feedCfg := feed.Config{Brokers: feed.ParseBrokers(os.Getenv("OFFICE_KAFKA_BROKERS"))}
	var pub *feed.Publisher
	if len(feedCfg.Brokers) > 0 {
		pub = feed.NewPublisher(feedCfg, log.New(os.Stdout, "[feed] ", log.LstdFlags))
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	off, err := office.New(office.Config{
		Layout: lay,
		Tuning: tune,
		Routes: seed,
		Sink:   sinks,
		Logger: log.New(os.Stdout, "[office] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("office: %v", err)
	}
	cat := off.Catalog()
	logger.Printf("route catalog ready: routes=%d digest=%s", cat.Len(), cat.Digest())
	if idx != nil {
		if err := idx.UpsertCatalogs(cat, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}
	if store.catalog != nil && !storedCatalog {
		if err := store.catalog.Save(ctx, cat.Routes()); err != nil {
			logger.Printf("object store: save catalog: %v", err)
		}
	}

	officeDone := make(chan struct{})
	go func() {
		defer close(officeDone)
		if err := off.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("office stopped: %v", err)
		}
	}()

	if len(feedCfg.Brokers) > 0 {
		consumer := feed.NewConsumer(feedCfg, off, log.New(os.Stdout, "[feed] ", log.LstdFlags))
		go consumer.Run(ctx)
		logger.Printf("kafka feed enabled: brokers=%s", strings.Join(feedCfg.Brokers, ","))
	}
	if u := strings.TrimSpace(*gatewayURL); u != "" {
		poller := gateway.NewPoller(gateway.Config{BaseURL: u}, off.Names(), log.New(os.Stdout, "[gateway] ", log.LstdFlags))
		go poller.Run(ctx, off)
		logger.Printf("polling gateway %s", u)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler(metricsSources{
		office:    off,
		index:     idx,
		mirror:    store,
		publisher: pub,
		eventLog:  eventLog,
	})).Methods(http.MethodGet)

	var apiOpts []httpapi.Option
	if store.catalog != nil {
		apiOpts = append(apiOpts, httpapi.WithCatalogStore(store.catalog))
	}
	if idx != nil {
		apiOpts = append(apiOpts, httpapi.WithHistory(idx))
	}
	httpapi.New(off, log.New(os.Stdout, "[api] ", log.LstdFlags), apiOpts...).Register(r)

	obsSrv := observer.NewServer(off, logger)
	obsSrv.AllowRemote = envBool("OFFICE_ALLOW_REMOTE_OBSERVERS", false)
	r.HandleFunc("/v1/bootstrap", obsSrv.BootstrapHandler())
	r.HandleFunc("/v1/observe", obsSrv.WSHandler())
	r.HandleFunc("/v1/gateway", ws.NewServer(off, logger).Handler())

	if envBool("OFFICE_ENABLE_PPROF_HTTP", false) {
		pp := r.PathPrefix("/debug/pprof").Subrouter()
		pp.Use(loopbackOnly)
		pp.HandleFunc("/cmdline", pprof.Cmdline)
		pp.HandleFunc("/profile", pprof.Profile)
		pp.HandleFunc("/symbol", pprof.Symbol)
		pp.HandleFunc("/trace", pprof.Trace)
		pp.PathPrefix("/").HandlerFunc(pprof.Index)
	} else {
		logger.Printf("pprof endpoints disabled (OFFICE_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Sinks are written from the office loop; close them only after it exits.
	cancel()
	<-officeDone
}

// loadSeedRoutes picks the initial catalog: the object store copy, then the
// -routes file. A nil result lets the office generate one from the layout.
func loadSeedRoutes(ctx context.Context, store *storageRuntime, path string, logger *log.Logger) ([]routes.Route, bool) {
	if store.catalog != nil {
		ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		rs, ok, err := store.catalog.Load(ctx2)
		switch {
		case err != nil:
			logger.Printf("object store: load catalog %s: %v", store.catalog.Key(), err)
		case ok:
			logger.Printf("loaded %d routes from object store", len(rs))
			return rs, true
		}
	}
	if p := strings.TrimSpace(path); p != "" {
		rs, err := routes.LoadFile(p)
		if err != nil {
			logger.Fatalf("load routes: %v", err)
		}
		logger.Printf("loaded %d routes from %s", len(rs), p)
		return rs, false
	}
	return nil, false
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
