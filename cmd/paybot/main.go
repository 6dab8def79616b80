package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"paybot/internal/amqp"
	"paybot/internal/bot"
	"paybot/internal/cache"
	"paybot/internal/chat"
	"paybot/internal/cli"
	"paybot/internal/config"
	"paybot/internal/core"
	apphttp "paybot/internal/http"
	applog "paybot/internal/log"
	"paybot/internal/period"
	"paybot/internal/services"
	"paybot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg)
	cli.MustValidate(logger, cfg.Validate, cfg.ValidateBot)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	loc := cfg.Location()
	logger.Info("Starting paybot", applog.FieldBackend, cfg.DataBackend, "timezone", loc.String())

	factory, bcfg, res := cli.InitBackend(ctx, logger, cfg)

	sessions, closeSessions, err := factory.CreateSessionStore(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize session store", applog.FieldError, err)
		_ = res.Cleanup()
		return
	}

	// A broken backup must not stop the bot from recording.
	backup, closeBackup, err := factory.CreateBackup(ctx, bcfg)
	if err != nil {
		logger.Error("Backup unavailable, continuing without mirroring", applog.FieldError, err)
		backup, closeBackup = nil, nil
	}

	var (
		restorer chat.Restorer
		mirror   *worker.MirrorWorker
		opts     []services.IngestOption
	)
	if backup != nil {
		rs := services.NewRestoreService(backup, res.Store, loc, logger)
		restorer = rs
		if cfg.AutoRestore {
			if r, ran, err := rs.AutoRestoreIfEmpty(ctx); err != nil {
				logger.Error("Automatic restore failed", applog.FieldError, err)
			} else if ran {
				logger.Info("Automatic restore finished", "status", r.Status)
			}
		}
		mirror = worker.NewMirrorWorker(res.Store, backup, loc, cfg.SyncBatchSize, logger)
	}

	var publisher *amqp.Client
	if cfg.AMQPEnabled() {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP, falling back to inline mirroring", applog.FieldError, err)
			publisher = nil
		}
	}
	switch {
	case publisher != nil:
		opts = append(opts, services.WithPublisher(publisher))
		logger.Info("Mirroring through message queue", "queue", cfg.AMQPQueue)
	case mirror != nil:
		opts = append(opts, services.WithInlineMirror(mirror))
		logger.Info("Mirroring inline")
	}

	ingest := services.NewIngestService(core.NewParser(loc), res.Store, logger, opts...)
	summary := services.NewSummaryService(res.Store, logger)

	handler := chat.NewHandler(chat.Deps{
		Ingester:   ingest,
		Summarizer: summary,
		Restorer:   restorer,
		Navigator:  res.Store,
		Sessions:   sessions,
		Resolver:   period.NewResolver(loc, time.Now),
		Logger:     logger,
	})

	b, err := bot.New(cfg.TelegramToken, handler, cfg.BotWorkers, logger)
	if err != nil {
		logger.Error("Failed to connect to Telegram", applog.FieldError, err)
		_ = cli.Cleanup(logger, cli.Close(closeSessions), cli.Close(closeBackup), cli.Close(res.Cleanup))
		return
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Store, logger)

	caches := cache.NewManager(logger)
	caches.Register(res.Labels)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, time.Minute) })
	if publisher == nil && mirror != nil {
		g.Go(func() error {
			if err := mirror.StartupSyncCheck(gctx); err != nil {
				logger.Warn("Startup mirror check failed", applog.FieldError, err)
			}
			return mirror.Run(gctx, cfg.SyncInterval)
		})
	}
	g.Go(func() error {
		logger.Info("Starting health server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Bot stopped with error", applog.FieldError, err)
	}

	var closePublisher func() error
	if publisher != nil {
		closePublisher = publisher.Close
	}
	_ = cli.Cleanup(logger,
		cli.Close(closePublisher),
		cli.Close(closeSessions),
		cli.Close(closeBackup),
		cli.Close(res.Cleanup),
	)
	logger.Info("paybot stopped")
}
