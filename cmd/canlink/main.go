package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/notnil/canlink"
	"github.com/notnil/canlink/internal/config"
	"github.com/notnil/canlink/socketcan"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "", "path to a yaml config file")
	mode := flag.String("mode", "dump", "dump | shell")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode); err != nil {
		log.Fatal().Err(err).Msg("canlink")
	}
}

func run(ctx context.Context, cfg *config.Config, mode string) error {
	transport, cleanup, err := newTransport(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	core := canlink.NewCore(transport,
		canlink.WithWorkers(cfg.Workers),
		canlink.WithLogger(log.Logger),
	)
	driver := canlink.NewThreaded(core, canlink.WithStartTimeout(cfg.StartTimeout))
	if err := driver.Init(cfg.Device, cfg.Loopback); err != nil {
		driver.Shutdown()
		return err
	}
	defer driver.Shutdown()
	log.Info().Str("device", cfg.Device).Str("driver", core.ID().String()).Msg("link ready")

	switch mode {
	case "dump":
		return dump(ctx, driver, filterFor(cfg))
	case "shell":
		return runShell(ctx, driver)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func newTransport(cfg *config.Config) (canlink.Transport, func(), error) {
	var (
		t       canlink.Transport
		cleanup = func() {}
	)
	switch cfg.Transport {
	case config.TransportLoopback:
		bus := canlink.NewLoopbackBus()
		t = bus.Transport()
		cleanup = func() { _ = bus.Close() }
	default:
		if cfg.Bitrate != 0 {
			bitrate := cfg.Bitrate
			if err := socketcan.ConfigureInterface(cfg.Device, socketcan.InterfaceOptions{Bitrate: &bitrate}); err != nil {
				return nil, nil, err
			}
		}
		if up, err := socketcan.IsInterfaceUp(cfg.Device); err == nil && !up {
			if err := socketcan.SetInterfaceUp(cfg.Device); err != nil {
				return nil, nil, err
			}
		}
		t = socketcan.New()
	}
	if cfg.LogFrames {
		t = canlink.NewLoggedTransport(t, log.Logger, zerolog.DebugLevel, canlink.LogAll, filterFor(cfg))
	}
	return t, cleanup, nil
}

func filterFor(cfg *config.Config) canlink.FrameFilter {
	if len(cfg.FilterIDs) == 0 {
		return nil
	}
	return canlink.ByIDs(cfg.FilterIDs...)
}

// dump prints frames until ctx is done or the link closes.
func dump(ctx context.Context, d canlink.Driver, filter canlink.FrameFilter) error {
	mux := canlink.NewMux(d)
	defer mux.Close()

	frames, cancel := mux.Subscribe(filter, 256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return fmt.Errorf("link closed: %v", d.State().TransportErr)
			}
			fmt.Println(f)
		}
	}
}
