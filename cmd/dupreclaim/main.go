package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	dupreclaim "github.com/mattkeenan/dupreclaim/pkg"
)

const stateKey = "state"

// appState is built once per invocation by the app's Before hook
type appState struct {
	config   *dupreclaim.Config
	opts     dupreclaim.Options
	printer  *Printer
	notifier *Notifier
	stdout   io.Writer
	stderr   io.Writer
}

func stateFrom(c *cli.Context) (*appState, error) {
	st, ok := c.App.Metadata[stateKey].(*appState)
	if !ok {
		return nil, errors.New("application state not initialised")
	}
	return st, nil
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dupreclaim"
	}
	return filepath.Join(home, ".dupreclaim")
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:      "dupreclaim",
		Usage:     "find duplicate files and reclaim the space their extra copies use",
		Writer:    stdout,
		ErrWriter: stderr,
		Metadata:  map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "configuration directory",
				Value: defaultConfigDir(),
			},
			&cli.IntFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbosity level 0-3",
			},
			&cli.StringFlag{
				Name:  "debug",
				Usage: "comma separated debug flags (scan, hash, resolve, aggregate, session, cleanup)",
			},
			&cli.StringSliceFlag{
				Name:    "override",
				Aliases: []string{"o"},
				Usage:   "override a config value, as key:value",
			},
			&cli.IntFlag{
				Name:  "hash-workers",
				Usage: "concurrent hash workers",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: human, json or csv",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "do not print progress",
			},
		},
		Before: before,
		Commands: []*cli.Command{
			scanCommand(),
			groupsCommand(),
			cleanCommand(),
			exportsCommand(),
			configCommand(),
		},
	}
	return app
}

// before loads the configuration in precedence order: file, environment,
// -o overrides, then dedicated flags
func before(c *cli.Context) error {
	config, err := dupreclaim.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if err := config.ApplyEnvironment(); err != nil {
		return err
	}
	if err := config.ApplyOverrides(c.StringSlice("override")); err != nil {
		return err
	}

	var flagOverrides []string
	if c.IsSet("verbose") {
		flagOverrides = append(flagOverrides, "level:"+strconv.Itoa(c.Int("verbose")))
	}
	if c.IsSet("debug") {
		flagOverrides = append(flagOverrides, "debug:"+c.String("debug"))
	}
	if c.IsSet("hash-workers") {
		flagOverrides = append(flagOverrides, "hash_workers:"+strconv.Itoa(c.Int("hash-workers")))
	}
	if c.IsSet("format") {
		flagOverrides = append(flagOverrides, "format:"+c.String("format"))
	}
	if err := config.ApplyOverrides(flagOverrides); err != nil {
		return err
	}

	if err := config.Validate(); err != nil {
		return err
	}
	opts, err := config.Options()
	if err != nil {
		return err
	}

	verboseConfig := config.GetVerboseConfig()
	dupreclaim.SetLogOutput(c.App.ErrWriter)
	dupreclaim.SetVerboseLevel(verboseConfig.Level)
	dupreclaim.InitDebugFlags(verboseConfig.Debug)

	progressOut := c.App.ErrWriter
	if c.Bool("quiet") {
		progressOut = io.Discard
	}

	c.App.Metadata[stateKey] = &appState{
		config:   config,
		opts:     opts,
		printer:  NewPrinter(c.App.Writer, config.GetOutputConfig().Format),
		notifier: NewNotifier(progressOut),
		stdout:   c.App.Writer,
		stderr:   c.App.ErrWriter,
	}
	return nil
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dupreclaim: %v\n", err)
		os.Exit(1)
	}
}
