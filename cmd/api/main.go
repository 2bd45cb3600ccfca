package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/agent-meeting/backend/internal/config"
	"github.com/zhouzirui/agent-meeting/backend/internal/handler"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/policy"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/ai"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/events"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/meeting"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	keywordPolicy, err := policy.LoadFile(cfg.Meeting.PolicyFile)
	if err != nil {
		log.Fatalf("failed to load keyword policy: %v", err)
	}

	// Initialize AI service. A nil generator keeps the API up; speak requests then fail with 503.
	var generator meeting.Generator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			generator = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	meetingService, err := meeting.NewService(generator, keywordPolicy, meeting.Options{
		ModeratorID:     cfg.Meeting.ModeratorID,
		MaxRounds:       cfg.Meeting.MaxRounds,
		HistoryLimit:    cfg.Meeting.MaxHistory,
		RoundWindow:     cfg.Meeting.RoundWindow,
		GenerateTimeout: cfg.Meeting.GenerateTimeout,
	})
	if err != nil {
		log.Fatalf("failed to initialize meeting service: %v", err)
	}

	hub := events.NewHub(0)
	defer hub.Close()

	router := handler.NewRouter(meetingService, hub, cfg.WebSocket, generator != nil)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Agent meeting backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
