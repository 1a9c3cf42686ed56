package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gen62/genchat/internal/ai"
	"github.com/gen62/genchat/internal/audio"
	"github.com/gen62/genchat/internal/config"
	"github.com/gen62/genchat/internal/httpapi"
	"github.com/gen62/genchat/internal/persist"
	"github.com/gen62/genchat/internal/session"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	db, err := persist.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restored, err := db.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("restore state")
	}
	if restored.Model == "" {
		restored.Model = cfg.OllamaModel
	}
	if restored.BaseURL == "" {
		restored.BaseURL = ai.CleanBaseURL(cfg.OllamaBaseURL)
	}

	store := session.NewStore(restored, logger)
	defer store.Close()

	// The factory reads the base URL at call time so a reconfigured endpoint
	// takes effect without restarting anything.
	reg := ai.NewRegistry()
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		st := store.Snapshot()
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(st.BaseURL, m), nil
	})

	ctrl := session.NewController(store, reg, session.ControllerConfig{
		Timeout:     cfg.RequestTimeout,
		TitleMaxLen: cfg.TitleMaxLen,
	}, logger)

	reveal := session.NewRevealScheduler(store, ctrl.GeneratingFor, cfg.RevealInterval, cfg.RevealChunkSize, logger)

	var narrator audio.Narrator
	if n, err := audio.NewExecNarrator(logger); err != nil {
		logger.Warn().Err(err).Msg("narration muted")
		narrator = audio.SilentNarrator{}
	} else {
		narrator = n
	}
	transport := audio.NewTransport(narrator, audio.Config{
		TickInterval:   cfg.AudioTickInterval,
		CharsPerSecond: cfg.AudioCharsPerSecond,
		MinSeconds:     cfg.AudioMinSeconds,
		EndTolerance:   cfg.AudioEndTolerance,
	}, logger)

	router := httpapi.NewRouter(store, ctrl, transport, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reveal.Run(gctx)
	})

	g.Go(func() error {
		return store.OnChange(gctx, func(st session.State) {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Save(saveCtx, st); err != nil {
				logger.Error().Err(err).Msg("persist state")
			}
		})
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		ctrl.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("bye")
}
