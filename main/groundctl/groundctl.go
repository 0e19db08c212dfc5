package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jd3nn1s/groundctl"
	"github.com/jd3nn1s/groundctl/console"
	"github.com/jd3nn1s/groundctl/forwarder"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := cli.NewApp()
	app.Name = "groundctl"
	app.Usage = "drive a field robot over its TCP telemetry link"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a TOML configuration file",
		},
		cli.StringFlag{
			Name:  "host",
			Usage: "robot address, overrides the configuration",
		},
		cli.IntFlag{
			Name:  "port",
			Usage: "robot telemetry port, overrides the configuration",
		},
		cli.StringFlag{
			Name:  "console",
			Usage: "operator console listen address, e.g. :8080",
		},
		cli.StringFlag{
			Name:  "mirror",
			Usage: "UDP mirror configuration file",
		},
		cli.BoolFlag{
			Name:  "reconnect",
			Usage: "reopen the robot links when they fail",
		},
		cli.BoolFlag{
			Name:  "testmode",
			Usage: "generate test data instead of connecting",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log at debug level",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (groundctl.Config, error) {
	cfg := groundctl.DefaultConfig()
	if path := c.GlobalString("config"); path != "" {
		var err error
		if cfg, err = groundctl.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if c.GlobalIsSet("host") {
		cfg.Host = c.GlobalString("host")
	}
	if c.GlobalIsSet("port") {
		cfg.Port = c.GlobalInt("port")
	}
	if c.GlobalIsSet("console") {
		cfg.ConsoleAddr = c.GlobalString("console")
	}
	if c.GlobalBool("reconnect") {
		cfg.Reconnect = true
	}
	if c.GlobalBool("debug") {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := groundctl.NewClient(cfg)
	client.SetTestMode(c.GlobalBool("testmode"))

	g, gctx := errgroup.WithContext(ctx)
	if path := c.GlobalString("mirror"); path != "" {
		fwder, err := forwarder.NewUDPForwarder(path)
		if err != nil {
			return errors.Wrap(err, "unable to load UDP forwarder")
		}
		defer fwder.Close()
		g.Go(func() error {
			return fwder.Start(gctx)
		})
		client.AddForwarder(fwder)
	}
	if cfg.ConsoleAddr != "" {
		srv := console.NewServer(client)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.ConsoleAddr)
		})
	}

	log.WithFields(log.Fields{
		"telemetry": cfg.TelemetryAddr(),
		"image":     cfg.ImageAddr(),
	}).Info("starting")
	client.Start(gctx)
	g.Go(client.Wait)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}
