package main

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"paybot/internal/amqp"
	"paybot/internal/cli"
	"paybot/internal/config"
	apphttp "paybot/internal/http"
	applog "paybot/internal/log"
	"paybot/internal/services"
	"paybot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg)
	cli.MustValidate(logger, cfg.Validate, cfg.ValidateWorker)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting paybot-worker", applog.FieldBackend, cfg.DataBackend)

	factory, bcfg, res := cli.InitBackend(ctx, logger, cfg)

	backup, closeBackup, err := factory.CreateBackup(ctx, bcfg)
	if err != nil || backup == nil {
		logger.Error("Failed to initialize backup", applog.FieldError, err)
		_ = res.Cleanup()
		return
	}

	loc := cfg.Location()
	mirror := worker.NewMirrorWorker(res.Store, backup, loc, cfg.SyncBatchSize, logger)

	if cfg.AutoRestore {
		rs := services.NewRestoreService(backup, res.Store, loc, logger)
		if r, ran, err := rs.AutoRestoreIfEmpty(ctx); err != nil {
			logger.Error("Automatic restore failed", applog.FieldError, err)
		} else if ran {
			logger.Info("Automatic restore finished", "status", r.Status)
		}
	}

	logger.Info("Performing startup sync check...")
	if err := mirror.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	var consumer *amqp.Client
	if cfg.AMQPEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP, relying on periodic sync", applog.FieldError, err)
			consumer = nil
		}
	} else {
		logger.Info("AMQP disabled, relying on periodic sync")
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Store, logger)

	g, gctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeMirror(gctx, mirror.HandleMirrorMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error { return mirror.Run(gctx, cfg.SyncInterval) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}

	var closeConsumer func() error
	if consumer != nil {
		closeConsumer = consumer.Close
	}
	_ = cli.Cleanup(logger, cli.Close(closeConsumer), cli.Close(closeBackup), cli.Close(res.Cleanup))
	logger.Info("Worker shutdown complete")
}
