package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/skaldhq/skald/internal/ai"
	"github.com/skaldhq/skald/internal/chunker"
	"github.com/skaldhq/skald/internal/config"
	"github.com/skaldhq/skald/internal/embedcache"
	"github.com/skaldhq/skald/internal/filestore"
	"github.com/skaldhq/skald/internal/handler"
	"github.com/skaldhq/skald/internal/job"
	"github.com/skaldhq/skald/internal/middleware"
	"github.com/skaldhq/skald/internal/schedule"
	"github.com/skaldhq/skald/internal/service"
	"github.com/skaldhq/skald/internal/source"
	"github.com/skaldhq/skald/internal/store"
)

const (
	embedCacheSize = 4096
	embedCacheTTL  = time.Hour
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "skald",
		Short: "skald knowledge engine",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run skald server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx := context.Background()
	rootLogger := logutil.GetLogger(ctx)

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := embedcache.WrapLruCacheToEmbedder(
		ai.NewEmbedder(provider, cfg.AI.Model), embedCacheSize, embedCacheTTL)

	// one probe call pins the vector dimension for the storage schema
	dim, err := ai.ProbeDimension(ctx, embedder)
	if err != nil {
		return err
	}
	rootLogger.Info("embedding model ready",
		zap.String("model", cfg.AI.Model), zap.Int("dimension", dim))

	var st store.Store
	switch cfg.Database.Driver {
	case "postgres":
		st, err = store.OpenPostgres(ctx, cfg.Database, dim)
	default:
		st, err = store.OpenSQLite(ctx, cfg.Database.Path, dim)
	}
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	st = store.WithBreaker(st, store.NewBreaker(
		cfg.Breaker.FailureThreshold,
		cfg.Breaker.SuccessThreshold,
		time.Duration(cfg.Breaker.CooldownSeconds)*time.Second,
	))

	files, err := filestore.New(cfg.FileStore.Dir)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	chunks := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	src := source.New(cfg.Sync.SourceURL, cfg.Sync.SourceToken)

	ingestService := service.NewIngestService(cfg.AgentID, st, files, src, embedder, chunks)
	searchService := service.NewSearchService(cfg.AgentID, st, embedder, cfg.Search.Limit, cfg.Search.Threshold)
	knowledgeService := service.NewKnowledgeService(cfg.AgentID, st, files, ingestService, searchService)

	registry := service.NewRegistry()
	registry.Put(knowledgeService)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduler *schedule.CronScheduler
	if cfg.Sync.Enabled {
		syncService := service.NewSyncService(cfg.AgentID, cfg.Sync.Owner, cfg.Sync.PageSize, st, files, src, ingestService)
		scheduler = schedule.NewCronScheduler()
		spec := fmt.Sprintf("@every %ds", cfg.Sync.IntervalSeconds)
		if err := scheduler.AddJob(job.NewKnowledgeSyncJob(syncService), spec); err != nil {
			return err
		}
		scheduler.Start(signalCtx)
		defer scheduler.Stop()
	}

	deps := handler.RouterDeps{
		Knowledge:   handler.NewKnowledgeHandler(registry, cfg.AgentID),
		WriteWindow: 100 * time.Millisecond,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	rootLogger.Info("http server listening", zap.Int("port", cfg.Port))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-signalCtx.Done()
	rootLogger.Info("server stopping...")
	return nil
}
