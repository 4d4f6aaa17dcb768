package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tpepels/tidal-ui-sub001/internal/api"
	"github.com/tpepels/tidal-ui-sub001/internal/auth"
	"github.com/tpepels/tidal-ui-sub001/internal/config"
	"github.com/tpepels/tidal-ui-sub001/internal/download"
	apperrors "github.com/tpepels/tidal-ui-sub001/internal/errors"
	"github.com/tpepels/tidal-ui-sub001/internal/events"
	"github.com/tpepels/tidal-ui-sub001/internal/history"
	"github.com/tpepels/tidal-ui-sub001/internal/logger"
	"github.com/tpepels/tidal-ui-sub001/internal/metrics"
	"github.com/tpepels/tidal-ui-sub001/internal/storage"
	"github.com/tpepels/tidal-ui-sub001/internal/tag"
	"github.com/tpepels/tidal-ui-sub001/internal/transport"
	"github.com/tpepels/tidal-ui-sub001/internal/websocket"
)

// logNotifier surfaces user-facing notifications through structured logs
// and counts failures. A headless deployment has no alert dialogs; the
// log stream and metrics are its notification surfaces.
type logNotifier struct {
	log *logger.Logger
	m   *metrics.Metrics
}

func (n *logNotifier) Notify(kind download.NotificationKind, message string) {
	n.log.Info(context.Background(), message, map[string]interface{}{"surface": string(kind)})
}

func (n *logNotifier) RecordError(err error, details map[string]any) {
	n.m.IncCounter("downloads_failed")
	fields := make(map[string]interface{}, len(details))
	for k, v := range details {
		fields[k] = v
	}
	n.log.Error(context.Background(), "download error recorded", err, fields)
}

func main() {
	cfg := config.Load()

	appLog := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server")
	m := metrics.Default()

	// Object storage for the server-mediated strategy. Optional: without
	// it the direct-save strategy still works.
	var store *storage.Client
	minioClient, err := storage.New(&storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		appLog.Warn(context.Background(), "object storage unavailable, server strategy disabled", map[string]interface{}{"error": err.Error()})
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := minioClient.EnsureBucket(ctx); err != nil {
			appLog.Warn(ctx, "object storage unreachable, server strategy disabled", map[string]interface{}{"error": err.Error()})
		} else {
			store = minioClient
		}
		cancel()
	}

	coordinator := storage.NewCoordinator(&storage.CoordinatorConfig{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		UsePathStyle: cfg.S3UsePathStyle,
	})

	// Download history. Optional: the queue works without persistence.
	var historyRepo *history.Repository
	db, err := history.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		appLog.Warn(context.Background(), "history database unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		defer db.Close()
		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		historyRepo = history.NewRepository(db)
	}

	// Task surfaces: websocket push, optionally mirrored over Redis.
	hub := websocket.NewHub()
	go hub.Run()
	uiSinks := []download.TaskUI{websocket.NewTaskBroadcaster(hub)}

	publisher, err := events.NewPublisher(cfg.RedisAddr, appLog.WithComponent("events"))
	if err != nil {
		appLog.Warn(context.Background(), "redis unavailable, event fan-out disabled", map[string]interface{}{"error": err.Error()})
	} else {
		defer publisher.Close()
		uiSinks = append(uiSinks, publisher)
	}

	httpTransport := transport.New(0, nil)
	embedder := tag.NewEmbedder()

	strategies := map[download.StrategyKind]download.Strategy{
		download.StrategyClient:      download.NewClientStrategy(httpTransport, embedder, cfg.DownloadDir),
		download.StrategyCoordinator: download.NewCoordinatorStrategy(httpTransport, coordinator, ""),
	}
	if store != nil {
		strategies[download.StrategyServer] = download.NewServerStrategy(httpTransport, store, embedder, "")
	}

	notifier := &logNotifier{log: appLog.WithComponent("notify"), m: m}

	orchestrator := download.NewOrchestrator(&download.OrchestratorConfig{
		Resolver:       download.NewResolver(nil),
		Strategies:     strategies,
		UI:             download.MultiUI(uiSinks...),
		Notifier:       notifier,
		Logger:         appLog.WithComponent("download"),
		Preferences:    download.DefaultPreferences(),
		DownloadWeight: cfg.DownloadWeight,
	})

	executor := func(ctx context.Context, item *download.QueuedDownload) error {
		m.IncCounter("downloads_started")
		res := orchestrator.DownloadTrack(ctx, item.Target, item.Options)
		if res.Success {
			m.IncCounter("downloads_completed")
			recordHistory(historyRepo, appLog, item, res)
			return nil
		}
		if res.Err != nil && apperrors.IsCancellation(res.Err) {
			m.IncCounter("downloads_cancelled")
			// A user cancellation must not be retried by the queue.
			return nil
		}
		m.IncCounter("downloads_retried")
		return res.Err
	}

	queue := download.NewQueue(&download.QueueConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxRetries:    cfg.MaxRetries,
		Executor:      executor,
		Logger:        appLog.WithComponent("queue"),
		OnTerminalFailure: func(item download.QueuedDownload, err error) {
			notifier.Notify(download.KindAlert, fmt.Sprintf("Download of %s failed permanently", item.Target.Title))
		},
	})

	// Keep queue gauges fresh for the metrics endpoint.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			st := queue.GetStatus()
			m.SetQueueDepth(int64(st.Queued))
			m.SetActiveDownloads(int64(st.Running))
		}
	}()

	authService := auth.NewService(cfg.JWTSecret)
	wsHandler := websocket.NewHandler(hub, authService, appLog.WithComponent("websocket"))
	handlers := api.NewDownloadHandlers(queue, orchestrator, historyRepo, store, appLog.WithComponent("api"))
	router := api.NewRouter(authService, handlers, wsHandler, m)

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func recordHistory(repo *history.Repository, appLog *logger.Logger, item *download.QueuedDownload, res download.Result) {
	if repo == nil {
		return
	}

	prefs := download.DefaultPreferences()
	quality := prefs.Quality
	storageTarget := prefs.Storage
	if item.Options != nil {
		if item.Options.Quality != "" {
			quality = item.Options.Quality
		}
		if item.Options.Storage != "" {
			storageTarget = item.Options.Storage
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &history.Entry{
		TaskID:   res.TaskID,
		TrackID:  item.Target.ID,
		Title:    item.Target.Title,
		Artist:   sql.NullString{String: item.Target.Artist, Valid: item.Target.Artist != ""},
		Album:    sql.NullString{String: item.Target.Album, Valid: item.Target.Album != ""},
		Filename: res.Filename,
		Quality:  string(quality),
		Storage:  string(storageTarget),
	}
	if err := repo.Record(ctx, entry); err != nil {
		appLog.Warn(ctx, "failed to record download history", map[string]interface{}{"track_id": item.Target.ID})
	}
}
