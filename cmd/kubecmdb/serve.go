package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"kubecmdb/internal/adapter"
	"kubecmdb/internal/handler"
	"kubecmdb/internal/hub"
	"kubecmdb/internal/loader"
	"kubecmdb/internal/metrics"
	"kubecmdb/internal/reconcile"
	"kubecmdb/internal/repository"
	"kubecmdb/internal/service"
	"kubecmdb/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic sync loop and the status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			gateway, err := newGateway(cfg)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			eventBus := service.NewEventBus()
			controller := reconcile.NewController(repo, repo, controllerOptions(cfg))
			syncSvc := service.NewSyncService(controller, eventBus, metrics.New(reg))

			sseHub := hub.New()
			go sseHub.Run(ctx)
			events := make(chan service.Event, 64)
			eventBus.Subscribe(events)
			go forwardEvents(ctx, events, sseHub)

			registry := adapter.NewRegistry(syncSvc.Reconcile)
			registry.SetCollectEventHandler(syncSvc.PublishCollect)
			k8s := adapter.NewKubernetesAdapter(gateway, cfg.Source, adapter.AdapterTypePolling)
			if err := registry.Register(k8s, adapter.AdapterConfig{
				Enabled:      true,
				PollInterval: cfg.Sync.Interval.Duration(),
			}); err != nil {
				return err
			}

			h := handler.NewCMDBHandler(syncSvc, service.NewInventoryService(repo), cfg.Source)
			h.SetSyncTrigger(registry)
			h.SetPinger(repo)

			server := &http.Server{
				Addr:        cfg.Server.Addr,
				Handler:     handler.Routes(h, sseHub, reg),
				ReadTimeout: 10 * time.Second,
				IdleTimeout: 60 * time.Second,
			}

			watchCtx, stopWatch := context.WithCancel(ctx)
			defer stopWatch()
			var modelsWatch <-chan error
			if cfg.Models.Path != "" {
				modelsWatch = watchModels(watchCtx, cfg.Models.Path, repo)
			}

			if err := registry.Start(ctx); err != nil {
				return err
			}

			serverErr := make(chan error, 1)
			go func() {
				klog.InfoS("Server listening", "addr", cfg.Server.Addr)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			select {
			case <-ctx.Done():
			case err := <-serverErr:
				if err != nil {
					klog.ErrorS(err, "Server error")
				}
			}

			klog.InfoS("Shutting down")
			if err := registry.Stop(); err != nil {
				klog.ErrorS(err, "Adapter registry shutdown error")
			}
			stopWatch()
			if modelsWatch != nil {
				<-modelsWatch
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				klog.ErrorS(err, "Server shutdown error")
			}
			klog.InfoS("Server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

// forwardEvents relays event bus traffic to SSE clients
func forwardEvents(ctx context.Context, events <-chan service.Event, sseHub *hub.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			sseHub.Broadcast(string(e.Type), e.Payload)
		}
	}
}

// watchModels re-seeds the schema store whenever the models file changes,
// until ctx is done. A watch that cannot start or fails is logged and its
// error delivered on the returned channel, which closes when the watch ends.
func watchModels(ctx context.Context, path string, store repository.SchemaStore) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := watcher.New(path, func(ctx context.Context) error {
			models, err := loader.LoadYAML(path)
			if err != nil {
				return err
			}
			return loader.Seed(ctx, store, models)
		}).Watch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			klog.ErrorS(err, "Model schema watch stopped, reload disabled", "path", path)
			done <- err
		}
	}()
	return done
}
