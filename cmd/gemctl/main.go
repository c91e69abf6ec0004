package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/gemctl/internal/config"
	"github.com/danmuck/gemctl/internal/gateway"
	"github.com/danmuck/gemctl/internal/logging"
	"github.com/danmuck/gemctl/internal/navigator"
	"github.com/danmuck/gemctl/internal/observability"
	"github.com/danmuck/gemctl/internal/protocol/gemurl"
	"github.com/danmuck/gemctl/internal/protocol/session"
)

func main() {
	logging.ConfigureRuntime()
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("gemctl failed")
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "gemctl",
		Usage: "Gemini protocol client and HTTP gateway",
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "Load one document and print it",
				ArgsUsage: "[url]",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "source",
						Usage: "Print the raw decoded lines instead of parsed nodes",
					},
				},
				Action: fetch,
			},
			{
				Name:  "serve",
				Usage: "Serve a navigator over HTTP with an SSE event stream",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "gateway-config",
						Usage:   "Path to gateway config file",
						Sources: cli.EnvVars("GEMCTL_GATEWAY_CONFIG"),
					},
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Override the gateway listen address",
					},
				},
				Action: serve,
			},
			{
				Name:  "config",
				Usage: "Write or validate config files",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a config template",
						Flags: []cli.Flag{
							kindFlag(),
							&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path for the template"},
							&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
						},
						Action: configInit,
					},
					{
						Name:  "validate",
						Usage: "Validate an existing config file",
						Flags: []cli.Flag{
							kindFlag(),
							&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Config path to validate"},
						},
						Action: configValidate,
					},
				},
			},
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to client config file",
		Sources: cli.EnvVars("GEMCTL_CONFIG"),
	}
}

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "kind",
		Usage: "Config kind: client|gateway",
		Value: config.KindClient,
	}
}

func fetch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadClientConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	client, err := session.NewClient(cfg.Session)
	if err != nil {
		return err
	}
	nav := navigator.New(client, cfg.Navigator)
	defer nav.Close()

	target := cfg.Navigator.Home
	if raw := cmd.Args().First(); raw != "" {
		target, err = gemurl.Parse(raw)
		if err != nil {
			return err
		}
	}

	select {
	case <-nav.Open(target):
	case <-ctx.Done():
		return ctx.Err()
	}

	snap := nav.Snapshot()
	if !snap.Ready {
		if snap.Notice != "" {
			return errors.New(snap.Notice)
		}
		return fmt.Errorf("no document at %s", target)
	}
	return render(cmd.Root().Writer, snap, cmd.Bool("source"))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	logger := observability.InitLogger("gemctl")

	cfg, err := loadClientConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	gwCfg := config.DefaultGatewayConfig()
	if path := cmd.String("gateway-config"); path != "" {
		if gwCfg, err = config.LoadGatewayConfig(path); err != nil {
			return err
		}
	}
	if addr := cmd.String("addr"); addr != "" {
		gwCfg.Addr = addr
	}

	client, err := session.NewClient(cfg.Session)
	if err != nil {
		return err
	}
	cfg.Navigator.EventBuffer = gwCfg.EventBuffer
	nav := navigator.New(client, cfg.Navigator)
	defer nav.Close()
	srv := gateway.New(nav, config.GatewayOptions(gwCfg))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-nav.Load():
			snap := nav.Snapshot()
			logger.Info().Msgf("gemctl.Home address=%q ready=%t notice=%q", snap.Address, snap.Ready, snap.Notice)
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func configInit(_ context.Context, cmd *cli.Command) error {
	kind := cmd.String("kind")
	target := cmd.String("output")
	if target == "" {
		target = defaultConfigPath(kind)
	}
	if err := config.WriteTemplate(target, kind, cmd.Bool("force")); err != nil {
		return err
	}
	log.Info().Msgf("gemctl.ConfigInit kind=%q path=%q", kind, target)
	return nil
}

func configValidate(_ context.Context, cmd *cli.Command) error {
	kind := cmd.String("kind")
	path := cmd.String("input")
	if path == "" {
		path = defaultConfigPath(kind)
	}
	switch kind {
	case config.KindClient:
		if _, err := loadClientConfig(path); err != nil {
			return err
		}
	case config.KindGateway:
		if _, err := config.LoadGatewayConfig(path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
	log.Info().Msgf("gemctl.ConfigValidate kind=%q path=%q", kind, path)
	return nil
}

func defaultConfigPath(kind string) string {
	if kind == config.KindGateway {
		return "gateway.toml"
	}
	return "gemctl.toml"
}
