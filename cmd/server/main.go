package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kiliankoe/gptdash-sub001/internal/ai"
	"github.com/kiliankoe/gptdash-sub001/internal/ai/ollama"
	"github.com/kiliankoe/gptdash-sub001/internal/ai/openai"
	"github.com/kiliankoe/gptdash-sub001/internal/config"
	"github.com/kiliankoe/gptdash-sub001/internal/correct"
	"github.com/kiliankoe/gptdash-sub001/internal/game"
	"github.com/kiliankoe/gptdash-sub001/internal/ws"
)

const version = "v1.0.0-dev"

func main() {
	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gptdash",
		Short:         "Host-moderated party game where players try to out-bluff an AI",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Finalize(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd)
	cmd.SetVersionTemplate("gptdash {{.Version}}\n")
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Gin setup with custom logger (skip /ws noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/ws") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	hub := ws.NewHub()
	session := game.NewSession(game.Settings{
		HostToken:         cfg.HostToken,
		BeamerToken:       cfg.BeamerToken,
		MinAnswerLength:   cfg.MinAnswerLength,
		PlayerTokenLength: cfg.PlayerTokenLength,
	}, hub)
	srv := ws.NewServer(session, hub)
	if p := buildProvider(cfg); p != nil {
		srv.SetProvider(p)
	}
	if cfg.LanguageToolURL != "" {
		srv.SetChecker(correct.NewLanguageTool(cfg.LanguageToolURL, cfg.Language))
	}
	srv.Mount(r)

	// the operator hands these out, clients never learn them unasked
	log.Info().
		Str("host_token", session.HostToken()).
		Str("beamer_token", session.BeamerToken()).
		Msg("session ready")

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)),
		Handler:           r,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpSrv.Addr).Str("version", version).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func buildProvider(cfg *config.Config) ai.Provider {
	switch cfg.Provider {
	case "openai":
		return openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.SystemPrompt)
	case "ollama":
		return ollama.New(cfg.OllamaHost, cfg.Model, cfg.SystemPrompt)
	}
	return nil
}
