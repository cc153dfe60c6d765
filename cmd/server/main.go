package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/clustermgr/engine/internal/api/grpcsvc"
	"github.com/clustermgr/engine/internal/api/middleware"
	"github.com/clustermgr/engine/internal/api/rest"
	"github.com/clustermgr/engine/internal/config"
	"github.com/clustermgr/engine/internal/dispatcher"
	"github.com/clustermgr/engine/internal/driver"
	"github.com/clustermgr/engine/internal/driver/k8sdriver"
	"github.com/clustermgr/engine/internal/driver/memdriver"
	"github.com/clustermgr/engine/internal/lockmgr"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/pkg/logger"
	"github.com/clustermgr/engine/internal/pkg/tracing"
	"github.com/clustermgr/engine/internal/policy"
	"github.com/clustermgr/engine/internal/registry"
	"github.com/clustermgr/engine/internal/service"
	"github.com/clustermgr/engine/internal/store"
	"github.com/clustermgr/engine/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.StdLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.EngineID == "" {
		cfg.EngineID = uuid.New().String()
	}
	log = logger.ForEngine(cfg.EngineID)
	log.Info("engine starting", "engine_id", cfg.EngineID, "port", cfg.Port,
		"db_driver", cfg.DatabaseDriver, "workers", cfg.DispatcherWorkers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		shutdown, err := tracing.Init(cfg.TracingServiceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	var st store.Store
	switch cfg.DatabaseDriver {
	case "postgres":
		st, err = store.NewPostgresStore(cfg.DatabaseDSN)
	default:
		st, err = store.NewSQLiteStore(cfg.DatabaseDSN)
	}
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	reg, err := buildRegistry(cfg, st, log)
	if err != nil {
		return err
	}

	locks := lockmgr.New(st, cfg.EngineID)
	disp := dispatcher.New(st, locks, reg, dispatcher.Config{
		EngineID:            cfg.EngineID,
		Workers:             cfg.DispatcherWorkers,
		PollInterval:        time.Duration(cfg.DispatcherPollIntervalMs) * time.Millisecond,
		MaxBackoff:          time.Duration(cfg.DispatcherMaxBackoffMs) * time.Millisecond,
		HeartbeatInterval:   time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		LockStealMultiplier: cfg.LockStealMultiplier,
	}, log)
	if err := disp.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer disp.Stop()

	var codec models.WebhookCodec
	if cfg.WebhookEncryptionKey != "" {
		codec, err = webhook.NewCodec(cfg.WebhookEncryptionKey)
		if err != nil {
			return fmt.Errorf("webhook codec: %w", err)
		}
	}

	svc := service.New(st, reg, disp, codec, log)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	rest.NewHandler(svc).Register(router)

	var handler http.Handler = router
	handler = middleware.StructuredLog(handler)
	handler = middleware.Auth(cfg)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(handler)
	}
	handler = middleware.RequestID(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(handler)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcsvc.New(st, cfg.EngineID, time.Duration(cfg.HeartbeatIntervalSec)*time.Second, log)

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(ctx, fmt.Sprintf(":%d", cfg.GRPCPort)); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	grpcSrv.Stop()
	return nil
}

// buildRegistry populates the environment registry once at startup: the
// reference profile driver (Kubernetes-backed when configured, in-process
// otherwise), the lb_member reference policy, and the alarm trigger. After
// this returns the registry is only read.
func buildRegistry(cfg *config.Config, st store.Store, log *slog.Logger) (*registry.Registry, error) {
	reg := registry.New()

	var profileDriver registry.ProfileDriver
	var lbaas driver.LBaaSDriver
	if cfg.DriverBackend == "kubernetes" {
		k8s, err := k8sdriver.New(cfg.KubeconfigPath, cfg.KubeNamespace,
			cfg.DriverRateLimitPerSec, cfg.DriverRateLimitBurst)
		if err != nil {
			log.Warn("kubernetes driver unavailable, falling back to memory driver", "error", err)
		} else {
			profileDriver = k8s
			lbaas = k8s
			log.Info("kubernetes driver ready", "namespace", cfg.KubeNamespace)
		}
	}
	if profileDriver == nil {
		mem := memdriver.New()
		profileDriver = mem
		lbaas = mem
	}

	if err := reg.RegisterProfile("container.pod@1.0", "container.pod", func(spec models.JSONMap) (registry.ProfileDriver, error) {
		return profileDriver, nil
	}); err != nil {
		return nil, err
	}

	lbFactory := policy.New(lbaas, st, st)
	if err := reg.RegisterPolicy(policy.TypeKey, "lb_member", func(policyID string, spec models.JSONMap) (registry.Policy, error) {
		return lbFactory(policyID, spec)
	}); err != nil {
		return nil, err
	}

	if err := reg.RegisterTrigger("alarm@1.0", "alarm", func(spec models.JSONMap) (registry.Trigger, error) {
		return alarmTrigger{}, nil
	}); err != nil {
		return nil, err
	}

	return reg, nil
}

// alarmTrigger accepts any spec carrying a non-empty "expression"; firing is
// driven by an external alarm source posting to the trigger's webhook.
type alarmTrigger struct{}

func (alarmTrigger) Validate(ctx context.Context, spec models.JSONMap) error {
	if v, ok := spec["expression"].(string); !ok || v == "" {
		return models.NewInvalidSpec("trigger spec requires a string \"expression\" field")
	}
	return nil
}
