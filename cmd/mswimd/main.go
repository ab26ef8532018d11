// Command mswimd runs the MSWIM dropout-prevention service: the WebSocket
// ingestion/broadcast surface, the batching and evaluation pipeline, the
// intervention writer, and the drift-detection job scheduler, all wired
// against a single Postgres-backed store.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mswim/pkg/api"
	"github.com/codeready-toolchain/mswim/pkg/batcher"
	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/config"
	"github.com/codeready-toolchain/mswim/pkg/database"
	"github.com/codeready-toolchain/mswim/pkg/drift"
	"github.com/codeready-toolchain/mswim/pkg/evaluation"
	"github.com/codeready-toolchain/mswim/pkg/experiment"
	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/ingest"
	"github.com/codeready-toolchain/mswim/pkg/intervention"
	"github.com/codeready-toolchain/mswim/pkg/llmanalyst"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/mswim"
	"github.com/codeready-toolchain/mswim/pkg/scoringconfig"
	"github.com/codeready-toolchain/mswim/pkg/session"
	"github.com/codeready-toolchain/mswim/pkg/shadow"
	"github.com/codeready-toolchain/mswim/pkg/store"
	"github.com/codeready-toolchain/mswim/pkg/training"
	"github.com/codeready-toolchain/mswim/pkg/transport"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	log.Printf("Starting mswimd")
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()
	clk := clock.System{}
	logger := slog.Default()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("✓ Connected to PostgreSQL database")
	log.Println("✓ Database schema initialized")

	db := store.New(dbClient.DB())

	sessions := session.New(db.Sessions, clk)
	sessions.StartSweeper(ctx)
	defer sessions.Stop()

	registry := transport.New(nil, logger)

	catalog := frictioncatalog.Default()
	engine := mswim.New(catalog)
	resolver := experiment.New(db.Experiments, cfg.Experiments.Enabled)

	var analyst llmanalyst.Analyst
	if cfg.LLM.Endpoint == "" {
		analyst = &llmanalyst.Stub{}
	} else {
		timeout := llmanalyst.DefaultTimeout
		if cfg.LLM.TimeoutMs > 0 {
			timeout = time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond
		}
		analyst = llmanalyst.NewClient(cfg.LLM.Endpoint, http.DefaultClient, timeout)
	}

	fastEval := func(sessCtx mswim.SessionContext, cat *frictioncatalog.Catalog, scoringConfig models.ScoringConfig) mswim.Result {
		return evaluation.RunFast(sessCtx, cat, engine, scoringConfig)
	}
	shadowComparator := shadow.New(db.Shadow, catalog, fastEval, clk, logger)

	trainingSnapshotter := training.New(db.Interventions, db.Evaluations, sessions, db.Events, db.Training, clk, logger)

	interventionWriter := intervention.New(db.Interventions, sessions, registry, trainingSnapshotter, clk, logger)

	coordinator := evaluation.New(evaluation.Deps{
		Sessions:      sessions,
		Events:        db.Events,
		Evaluations:   db.Evaluations,
		Interventions: db.Interventions,
		Resolver:      resolver,
		Configs:       db.ScoringConfigs,
		Engine:        engine,
		Catalog:       catalog,
		Analyst:       analyst,
		Broadcaster:   registry,
		Writer:        interventionWriter,
		Shadow:        shadowComparator,
		ShadowEnabled: cfg.Shadow.Enabled,
		Clock:         clk,
		Config:        cfg.Evaluation,
		Log:           logger,
	})

	eventBatcher := batcher.New(
		batcher.Config{IntervalMs: cfg.Evaluation.BatchIntervalMs, MaxEvents: cfg.Evaluation.BatchMaxEvents},
		clk,
		func(sessionID string, eventIDs []string) {
			if _, err := coordinator.EvaluateEventBatch(context.Background(), sessionID, eventIDs); err != nil {
				logger.Warn("mswimd: batch evaluation failed", "sessionId", sessionID, "err", err)
			}
		},
		nil,
	)
	defer eventBatcher.FlushAll()

	ingestor := ingest.New(sessions, db.Events, eventBatcher, registry, clk, logger)

	registry.SetHandler(newFrameDispatcher(registry, ingestor, interventionWriter, logger))

	nightlyJob := newTrainingExportJob(db.Training, clk)
	driftRunner := drift.New(drift.Deps{
		Shadow:        db.Shadow,
		Interventions: db.Interventions,
		Evaluations:   db.Evaluations,
		Sites:         db.Sessions,
		Snapshots:     db.Drift,
		Alerts:        db.Drift,
		Jobs:          db.Jobs,
		NightlyBatch:  nightlyJob,
		Thresholds:    cfg.Drift.Thresholds(),
		Clock:         clk,
		Log:           logger,
	})
	if !cfg.Jobs.DisableScheduler {
		if err := driftRunner.Schedule(cfg.Jobs.NightlyBatchCron, cfg.Jobs.DriftCheckCron, cfg.Jobs.RolloutHealthCron); err != nil {
			log.Fatalf("Failed to schedule drift jobs: %v", err)
		}
		driftRunner.Start()
		defer driftRunner.Stop()
	}

	scoringConfigs := scoringconfig.New(db.ScoringConfigs, db.ScoringConfigs, db)

	server := api.New(api.Deps{
		Health:         dbClient,
		Registry:       registry,
		ScoringConfigs: scoringConfigs,
		Experiments:    db.Experiments,
		Jobs:           db.Jobs,
		Log:            logger,
	})
	log.Println("✓ Services initialized")

	httpPort := getEnv("HTTP_PORT", strconv.Itoa(cfg.Port))
	log.Printf("HTTP/WebSocket server listening on :%s", httpPort)
	log.Printf("Health check available at: http://localhost:%s/health", httpPort)
	if err := server.Router().Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
