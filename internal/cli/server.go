package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quizbowl-practice/internal/app"
	"quizbowl-practice/internal/auth"
	"quizbowl-practice/internal/config"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/infra/googletts"
	"quizbowl-practice/internal/infra/memory"
	pgstore "quizbowl-practice/internal/infra/postgres"
	infraredis "quizbowl-practice/internal/infra/redis"
	"quizbowl-practice/internal/speech"
	transport "quizbowl-practice/internal/transport/http"
	"quizbowl-practice/internal/voice"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type practiceStore interface {
	app.SessionRepository
	app.ProgressStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := setLoader(cfg, pool)
	if err != nil {
		return err
	}

	setTTL := config.Duration(cfg.Sets.TTL, 10*time.Minute)
	var sets app.QuestionRepository
	if redisClient != nil {
		sets = infraredis.NewSetRepository(redisClient, loader, setTTL)
	} else {
		sets = memory.NewSetRepository(loader, setTTL)
	}

	var store practiceStore
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	source, synth := speechStack(ctx, cfg)
	if redisClient != nil && synth != nil && cfg.Voice.Provider != "device" {
		synth = infraredis.NewAudioCache(redisClient, synth, config.Duration(cfg.Redis.AudioTTL, 24*time.Hour))
	}
	registry := voice.NewRegistry(source, cfg.Voice.LanguagePrefix)
	// warm the voice list so the first client does not wait on it
	registry.OnReady(func(voices []domain.Voice) {
		log.Printf("voice list ready: %d voices", len(voices))
	})

	service := app.NewPracticeService(app.Dependencies{
		Sessions:    store,
		Progress:    store,
		Sets:        sets,
		Voices:      registry,
		Synthesizer: synth,
	}, app.SessionConfig{
		Countdown:      cfg.Practice.Countdown,
		FeedbackTTL:    config.Duration(cfg.Practice.FeedbackTTL, app.DefaultFeedbackTTL),
		WordsPerMinute: cfg.Practice.WordsPerMinute,
		Rate:           cfg.Practice.Rate,
	})

	sessionSecret := cfg.Auth.SessionSecret
	if sessionSecret == "" {
		sessionSecret = uuid.NewString()
		log.Printf("SESSION_SECRET not set, using an ephemeral secret; sessions will not survive a restart")
	}
	gate := auth.NewGate(auth.Config{
		SessionSecret:     sessionSecret,
		CustomTokenSecret: cfg.Auth.CustomTokenSecret,
		Issuer:            cfg.Auth.Issuer,
		SessionTTL:        config.Duration(cfg.Auth.SessionTTL, 24*time.Hour),
	}, nil)
	unsubscribe := gate.OnAuthStateChanged(func(change auth.Change) {
		if change.Session == nil {
			service.SignedOut(context.Background(), change.UserID)
		}
	})
	defer unsubscribe()

	router := transport.NewRouter(service, gate, transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AppID:          cfg.App.ID,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting practice server on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setLoader picks the backing store for question sets: postgres when
// configured, then the YAML sets file, then the built-in demo set.
func setLoader(cfg config.Config, pool *pgxpool.Pool) (memory.SetLoader, error) {
	if pool != nil {
		return pgstore.NewSetStore(pool), nil
	}
	if cfg.Sets.File != "" {
		loader, err := memory.LoadSetFile(cfg.Sets.File)
		if err == nil {
			return loader, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Printf("sets file %s not found, serving the demo set", cfg.Sets.File)
	}
	return memory.NewStaticSetLoader(demoSets()), nil
}

// speechStack builds the voice source and synthesizer for the configured
// provider. A misconfigured remote provider still starts the server; the
// failure shows up inline as a voice and speech error.
func speechStack(ctx context.Context, cfg config.Config) (voice.Source, speech.Synthesizer) {
	if cfg.Voice.Provider == "device" {
		return voice.NewStaticSource(cfg.Voice.Local), speech.DeviceSynthesizer{}
	}
	client, err := googletts.New(ctx, cfg.Voice.APIKey, cfg.Voice.Endpoint)
	if err != nil {
		log.Printf("text-to-speech unavailable: %v", err)
		return voice.Unavailable(err), nil
	}
	return client, client
}

func demoSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"demo": {
			ID:    "demo",
			Title: "Demo packet",
			Questions: []domain.Question{
				{ID: "demo-1", Text: "This inventor of the phonograph founded a laboratory at Menlo Park.", Answer: "Thomas Edison"},
				{ID: "demo-2", Text: "Name this capital city on the Seine.", Answer: "Paris"},
			},
		},
	}
}
