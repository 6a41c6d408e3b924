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

	"github.com/pairing-buds/companion/internal/config"
	"github.com/pairing-buds/companion/internal/handler"
	"github.com/pairing-buds/companion/internal/ratelimit"
	"github.com/pairing-buds/companion/internal/service/ai"
	"github.com/pairing-buds/companion/internal/service/speech"
	"github.com/pairing-buds/companion/internal/service/turn"
	"github.com/pairing-buds/companion/internal/session"
	"github.com/pairing-buds/companion/internal/store"
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

	// Conversation and summary storage
	contexts, err := store.OpenSQLite(ctx, cfg.Store.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open context store: %v", err)
	}
	defer contexts.Close()

	// Profile storage: Postgres when configured, otherwise in-memory
	var profiles store.ProfileStore
	if cfg.Store.PostgresURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.Store.PostgresURL)
		if err != nil {
			log.Fatalf("failed to open profile store: %v", err)
		}
		defer pg.Close()
		profiles = pg
		log.Println("profile store backed by Postgres")
	} else {
		profiles = store.NewMemoryProfileStore(store.SeedProfiles()...)
		log.Println("DATABASE_URL not set, using in-memory seed profiles")
	}

	// Chat model and the AI service
	if !cfg.AI.Enabled() {
		log.Fatalf("chat model credentials missing: set ARK_API_KEY and ARK_MODEL")
	}
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}
	aiService, err := ai.NewService(ctx, chatModel)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	log.Println("AI service initialized successfully")

	// Speech: OpenAI-compatible STT/TTS when a key is configured
	var (
		transcriber speech.Transcriber
		synth       turn.Synthesizer
	)
	if cfg.Speech.Enabled {
		client, err := speech.NewOpenAIClient(speech.OpenAIConfig{
			APIKey:   cfg.Speech.APIKey,
			BaseURL:  cfg.Speech.BaseURL,
			STTModel: cfg.Speech.STTModel,
			TTSModel: cfg.Speech.TTSModel,
			TTSVoice: cfg.Speech.TTSVoice,
			Timeout:  cfg.Speech.Timeout,
		})
		if err != nil {
			log.Fatalf("failed to initialize speech client: %v", err)
		}
		transcriber = client
		synth = speech.NewPool(client, cfg.Limits.SynthWorkers)
		log.Println("speech service initialized successfully")
	} else {
		log.Println("speech credentials not configured, voice frames will be rejected")
	}

	limiter := ratelimit.NewDaily(cfg.Limits.DailyMessages)
	registry := session.NewRegistry(cfg.Limits.SilenceTimeout)
	orch := turn.NewOrchestrator(limiter, turn.NewAggregator(profiles, contexts), aiService, contexts, synth)
	defer orch.Wait()

	router := handler.NewRouter(registry, orch, contexts, transcriber)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("companion backend listening on %s", serverCfg.Addr)
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
