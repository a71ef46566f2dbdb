package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/AvatarCoach/internal/adapters/heygen"
	router "github.com/dkeye/AvatarCoach/internal/adapters/http"
	"github.com/dkeye/AvatarCoach/internal/adapters/rtc"
	"github.com/dkeye/AvatarCoach/internal/adapters/token"
	"github.com/dkeye/AvatarCoach/internal/app/orch"
	"github.com/dkeye/AvatarCoach/internal/app/sfu"
	"github.com/dkeye/AvatarCoach/internal/config"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/locale"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	catalog, err := locale.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load copy catalog")
	}
	if catalog.Supported(cfg.DefaultLanguage) {
		catalog.Default = cfg.DefaultLanguage
	}

	api := heygen.NewAPI(cfg.BaseAPIURL, heygen.NewPooledHTTPClient(10, cfg.HTTPTimeout))
	issuer := heygen.NewTokenIssuer(api, cfg.APIKey)

	// Sessions fetch credentials the way a browser would: from the token
	// endpoint when one is configured, otherwise straight from the issuer.
	var sessionTokens core.TokenSource = issuer
	if cfg.TokenURL != "" {
		sessionTokens = token.NewHTTPSource(cfg.TokenURL, cfg.HTTPTimeout)
	}

	relays := sfu.NewRelayManager()
	playback := func(sid core.SessionID) (core.MediaConnection, error) {
		conn, err := rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(cfg.ICEServers), "visitor:"+string(sid))
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	o := orch.New(orch.Deps{
		Tokens:  sessionTokens,
		Factory: heygen.Factory(api, heygen.Options{ICEServers: cfg.ICEServers}),
		Catalog: catalog,
		Avatar:  cfg.Avatar,
		Limiter: orch.NewRateLimiter(cfg.StartLimit, cfg.StartWindow),
	}, relays, playback)

	r := router.SetupRouter(ctx, cfg, o, issuer)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("AvatarCoach server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	o.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
