package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"

	// Synthetic capture sources so the client runs without hardware.
	_ "github.com/pion/mediadevices/pkg/driver/audiotest"
	_ "github.com/pion/mediadevices/pkg/driver/videotest"

	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/media"
	"github.com/dkeye/Meet/internal/adapters/storage"
	"github.com/dkeye/Meet/internal/adapters/ui"
	"github.com/dkeye/Meet/internal/adapters/voicesdk"
	"github.com/dkeye/Meet/internal/app/controller"
	"github.com/dkeye/Meet/internal/app/devices"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
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
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	sessCfg, err := domain.NewSessionConfig(cfg.Domain, cfg.AppID, cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("bad session config")
	}

	codecs, err := newCodecSelector()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init encoders")
	}
	dev := media.NewDevices(codecs)

	sdk, err := voicesdk.New(voicesdk.InitOptions{
		DisableAudioLevels:        !cfg.AudioLevels,
		DisableThirdPartyRequests: !cfg.ThirdParties,
		LogLevel:                  cfg.SDKLogLevel,
		ICEServers:                cfg.ICEServers,
		PingPeriod:                cfg.PingPeriod,
		ReadLimit:                 cfg.ReadLimit,
	}, dev)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init sdk")
	}

	store, err := storage.Open(afero.NewOsFs(), cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("failed to open device store")
	}

	hub := ui.NewHub()
	page := ui.NewPage(hub)
	ctl := controller.New(
		sdk,
		dev,
		devices.NewPreferences(store),
		page,
		controller.NewSession(sessCfg, domain.SelectedDevices{}),
		controller.Options{
			ServiceURL: cfg.ServiceURL,
			P2P:        cfg.P2P,
			Resolution: cfg.Resolution,
		},
	)

	r := router.SetupRouter(ctx, cfg, ctl, page, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := ctl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("controller stopped")
		}
	})
	wg.Go(func() {
		log.Info().Str("addr", addr).Str("domain", cfg.Domain).Msg("Meet client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Client exited gracefully")
}

// newCodecSelector encodes published captures as VP8 and Opus, both of which
// the sdk's media engine registers.
func newCodecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000
	vpxParams.KeyFrameInterval = 30
	vpxParams.RateControlEndUsage = vpx.RateControlVBR

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.BitRate = 32_000
	opusParams.Latency = opus.Latency20ms

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}
