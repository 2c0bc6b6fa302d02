package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"powertrade/internal/model"
	"powertrade/internal/notify"
	"powertrade/internal/obs"
	"powertrade/internal/ops"
	"powertrade/internal/order"
	"powertrade/internal/repository"
	"powertrade/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.Profiler.ServerAddress != "" {
		appName := cfg.Profiler.ApplicationName
		if appName == "" {
			appName = "powertrade-engine"
		}
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: appName,
			ServerAddress:   cfg.Profiler.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer profiler.Stop()
	}

	client, err := conn.New(cfg.Postgres)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	store := repository.NewGormStore(client.DB(), cfg.LockTimeout)
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("migrate schema: %v", err)
	}
	if err := seedProducts(ctx, store, cfg.Products); err != nil {
		log.Fatalf("seed product catalog: %v", err)
	}

	metrics := obs.NewMetrics()
	dispatcher := notify.NewDispatcher(cfg.QueueCapacity, metrics)
	defer dispatcher.Close()
	go dispatcher.Run(ctx, func(e notify.Event) {
		logs.Infof("lifecycle event %s, order %s, status %s", e.Kind, e.Order.ID, e.Order.Status)
	})

	usecase := order.NewUsecase(store, dispatcher, metrics)

	logs.Info("engine started")
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			snap := metrics.Snapshot()
			logs.Infof("engine stopped: accepted %d, rejected %d, fills %d, cancels %d, expired %d",
				snap.SubmitsAccepted, snap.SubmitsRejected, snap.FillsApplied, snap.CancelsApplied, snap.OrdersExpired)
			return
		case <-ticker.C:
			expired, err := usecase.ExpireDue(ctx, time.Now())
			if err != nil {
				logs.Errorf("expiry sweep, err: %+v", err)
				continue
			}
			if expired > 0 {
				logs.Infof("expiry sweep: %d orders expired", expired)
			}
		}
	}
}

func seedProducts(ctx context.Context, store *repository.GormStore, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	return store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		for i := range products {
			if err := tx.Products().Upsert(ctx, &products[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
