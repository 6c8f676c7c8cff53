// selecta-pipeline-service
//
// Recruitment pipeline engine: two coupled stage machines with a scoring
// read model.
//   - application machine — nine-stage candidacy flow with guard rules
//     (hired only from offer, rejection requires a note, terminal stages)
//   - job machine — six-lane Kanban with the contratacao outcome rules
//   - score engine — five weighted components cached per application
//   - board views — per-job pipeline and the jobs Kanban
//
// Publishes EVENT_STAGE_CHANGED to Redis for Gateway SSE forward.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"selecta/pipeline-service/internal/board"
	"selecta/pipeline-service/internal/config"
	"selecta/pipeline-service/internal/db"
	"selecta/pipeline-service/internal/events"
	"selecta/pipeline-service/internal/httpapi"
	"selecta/pipeline-service/internal/jobflow"
	"selecta/pipeline-service/internal/pipeline"
	"selecta/pipeline-service/internal/rescore"
	"selecta/pipeline-service/internal/scoring"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[pipeline-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[pipeline-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[pipeline-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[pipeline-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[pipeline-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[pipeline-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[pipeline-service] Redis connected ✓")

	// ── Services ─────────────────────────────────────────────────────────────
	publisher := events.NewRedisPublisher(rdb)

	pipelineSvc := pipeline.NewService(
		pipeline.NewPGStore(pool),
		scoring.NewPGSource(pool),
		publisher,
	)
	jobSvc := jobflow.NewService(jobflow.NewPGStore(pool), publisher)
	boardSvc := board.NewService(board.NewPGReader(pool))

	// ── Rescore scheduler ────────────────────────────────────────────────────
	sweeper := rescore.New(pipelineSvc, cfg.RescoreIntervalHours)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("[pipeline-service] Scheduler: %v", err)
	}
	defer sweeper.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := httpapi.NewHandler(pipelineSvc, jobSvc, boardSvc)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[pipeline-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[pipeline-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[pipeline-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[pipeline-service] Shutdown error: %v", err)
	}
	log.Println("[pipeline-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "pipeline-service",
		"version": version,
	})
}
