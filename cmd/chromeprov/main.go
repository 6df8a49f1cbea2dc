// chromeprov provisions a matched headless Chrome / chromedriver pair into
// a persistent cache directory and publishes the browser's binary path for
// a downstream launcher.
//
// Usage:
//
//	chromeprov provision [--pin 140.0.7339.185]
//	chromeprov path
//	chromeprov status
//	chromeprov launch
//	chromeprov config init
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	chromeprov "github.com/porticus-lab/go-chrome-provision"
	"github.com/porticus-lab/go-chrome-provision/internal/config"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "chromeprov",
		Usage:   "provision headless Chrome and chromedriver into a persistent cache",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "cache-root",
				Usage: "Override the cache root `DIR`",
			},
		},
		Commands: []*cli.Command{
			provisionCommand(),
			pathCommand(),
			statusCommand(),
			launchCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// newLogger builds a console logger at the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

// newProvisioner assembles a Provisioner from the loaded config plus CLI
// overrides.
func newProvisioner(c *cli.Context) (*chromeprov.Provisioner, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log := newLogger(cfg.Log.Level)

	opts := []chromeprov.Option{chromeprov.WithLogger(log)}
	root := cfg.Cache.Root
	if c.String("cache-root") != "" {
		root = c.String("cache-root")
	}
	if root != "" {
		opts = append(opts, chromeprov.WithCacheRoot(root))
	}

	pin := cfg.Version.Pin
	if c.String("pin") != "" {
		pin = c.String("pin")
	}
	if pin != "" {
		opts = append(opts, chromeprov.WithPinnedVersion(pin))
	} else {
		opts = append(opts, chromeprov.WithChannel(cfg.Version.Endpoint, cfg.Version.Channel))
	}

	if !cfg.Driver.Enabled || c.Bool("no-driver") {
		opts = append(opts, chromeprov.WithoutDriver())
	}

	p, err := chromeprov.New(opts...)
	return p, log, err
}

func provisionCommand() *cli.Command {
	return &cli.Command{
		Name:  "provision",
		Usage: "Resolve, fetch, and install the browser/driver pair",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pin",
				Usage: "Pin the exact `VERSION` instead of resolving a channel",
			},
			&cli.BoolFlag{
				Name:  "no-driver",
				Usage: "Skip driver provisioning",
			},
		},
		Action: func(c *cli.Context) error {
			p, log, err := newProvisioner(c)
			if err != nil {
				return err
			}
			rep, err := p.Run(c.Context)
			if err != nil {
				return err
			}
			if rep.DriverDegraded() {
				log.Warn().Msg("run succeeded without a cached driver")
			}
			fmt.Println(rep.Browser.EntryPoint)
			return nil
		},
	}
}

func pathCommand() *cli.Command {
	return &cli.Command{
		Name:  "path",
		Usage: "Print the published browser binary path",
		Action: func(c *cli.Context) error {
			p, _, err := newProvisioner(c)
			if err != nil {
				return err
			}
			path, err := p.Cache().ResolvedBrowserPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Inspect cache presence for both artifact kinds",
		Action: func(c *cli.Context) error {
			p, _, err := newProvisioner(c)
			if err != nil {
				return err
			}
			cache := p.Cache()
			for _, kind := range []chromeprov.Kind{chromeprov.KindBrowser, chromeprov.KindDriver} {
				if !cache.Present(kind) {
					fmt.Printf("%-8s absent\n", kind)
					continue
				}
				entry, err := cache.Locate(kind)
				if err != nil {
					fmt.Printf("%-8s PRESENT BUT BROKEN: %v\n", kind, err)
					continue
				}
				fmt.Printf("%-8s installed: %s\n", kind, entry)
			}
			if path, err := cache.ResolvedBrowserPath(); err == nil {
				fmt.Printf("pointer  %s\n", path)
			}
			return nil
		},
	}
}

func launchCommand() *cli.Command {
	return &cli.Command{
		Name:  "launch",
		Usage: "Smoke-test the published browser over the DevTools protocol",
		Action: func(c *cli.Context) error {
			p, log, err := newProvisioner(c)
			if err != nil {
				return err
			}
			product, err := chromeprov.VerifyPointer(c.Context, p.Cache())
			if err != nil {
				return err
			}
			log.Info().Str("product", product).Msg("browser launched and responded over CDP")
			fmt.Println(product)
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = "chromeprov.toml"
					}
					if err := config.Init(path); err != nil {
						return err
					}
					fmt.Printf("wrote %s\n", path)
					return nil
				},
			},
		},
	}
}
