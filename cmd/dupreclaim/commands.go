package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	dupreclaim "github.com/mattkeenan/dupreclaim/pkg"
)

const exportsDirName = "exports"

func exportDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "export-dir",
		Usage: "directory holding CSV exports (default: <config>/exports)",
	}
}

func fromFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "from",
		Usage: "read records from an export instead of scanning",
	}
}

func groupingFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "grouping",
		Aliases: []string{"g"},
		Usage:   "group by full or partial hash",
		Value:   dupreclaim.FullHashContext,
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "scan directories for duplicate files",
		ArgsUsage: "ROOT...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "export", Aliases: []string{"e"}, Usage: "save the records as a CSV export"},
			exportDirFlag(),
			&cli.BoolFlag{Name: "groups", Usage: "also list the duplicate groups"},
			groupingFlag(),
		},
		Action: func(c *cli.Context) error {
			st, err := stateFrom(c)
			if err != nil {
				return err
			}
			roots := c.Args().Slice()
			records, sessionID, err := runScan(st, roots)
			if err != nil {
				return err
			}

			var exportPath string
			if c.Bool("export") {
				exporter, err := dupreclaim.NewExporter(exportDir(c, st))
				if err != nil {
					return err
				}
				exportPath, err = exporter.ExportSession(records, strings.Join(roots, " "), sessionID)
				if err != nil {
					return err
				}
			}

			agg := dupreclaim.NewAggregation(records)
			if err := st.printer.Summary(sessionID, agg, exportPath); err != nil {
				return err
			}
			if !c.Bool("groups") || agg.IsEmpty() {
				return nil
			}
			grouping, err := dupreclaim.ParseGrouping(c.String("grouping"))
			if err != nil {
				return err
			}
			rows, err := agg.Groups(grouping)
			if err != nil {
				return err
			}
			return st.printer.Groups(grouping, rows)
		},
	}
}

func groupsCommand() *cli.Command {
	return &cli.Command{
		Name:      "groups",
		Usage:     "list duplicate groups, or the members of one group",
		ArgsUsage: "[ROOT...]",
		Flags: []cli.Flag{
			groupingFlag(),
			&cli.StringFlag{Name: "members", Aliases: []string{"m"}, Usage: "list the members of the group with this hash"},
			fromFlag(),
			exportDirFlag(),
		},
		Action: func(c *cli.Context) error {
			st, err := stateFrom(c)
			if err != nil {
				return err
			}
			grouping, err := dupreclaim.ParseGrouping(c.String("grouping"))
			if err != nil {
				return err
			}
			agg, err := loadAggregation(c, st)
			if err != nil {
				return err
			}

			if hash := c.String("members"); hash != "" {
				views, err := agg.GroupMembers(hash, grouping)
				if err != nil {
					return noDuplicatesOK(st, err)
				}
				return st.printer.Records(views)
			}

			rows, err := agg.Groups(grouping)
			if err != nil {
				return noDuplicatesOK(st, err)
			}
			return st.printer.Groups(grouping, rows)
		},
	}
}

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "move or delete every copy except the one the keep policy retains",
		ArgsUsage: "[ROOT...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "keep", Aliases: []string{"k"}, Usage: "copy to keep: earliest or largest (default from config)"},
			&cli.StringFlag{Name: "move-to", Usage: "move excess copies into this directory"},
			&cli.BoolFlag{Name: "delete", Usage: "delete excess copies"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "report the plan without touching files"},
			&cli.StringFlag{Name: "log", Usage: "operation log for --delete (default: <config>/dupreclaim.log)"},
			fromFlag(),
			exportDirFlag(),
		},
		Action: func(c *cli.Context) error {
			st, err := stateFrom(c)
			if err != nil {
				return err
			}

			moveTo := c.String("move-to")
			del := c.Bool("delete")
			if (moveTo == "") == !del {
				return errors.New("exactly one of --move-to or --delete is required")
			}

			cleanupConfig := st.config.GetCleanupConfig()
			keepName := cleanupConfig.Keep
			if c.IsSet("keep") {
				keepName = c.String("keep")
			}
			policy, err := dupreclaim.ParseKeepPolicy(keepName)
			if err != nil {
				return err
			}
			opts := dupreclaim.CleanupOptions{DryRun: cleanupConfig.DryRun}
			if c.IsSet("dry-run") {
				opts.DryRun = c.Bool("dry-run")
			}

			agg, err := loadAggregation(c, st)
			if err != nil {
				return err
			}
			excess, err := agg.SelectExcess(policy)
			if err != nil {
				return noDuplicatesOK(st, err)
			}

			paths := make([]string, len(excess))
			for i, e := range excess {
				paths[i] = e.Path
			}
			// An export may be stale: keep only groups whose retained copy
			// still holds the content
			var rejected []dupreclaim.CleanupResult
			if c.String("from") != "" {
				hasher, err := dupreclaim.NewHasher(st.opts)
				if err != nil {
					return err
				}
				paths, rejected = dupreclaim.VerifyRetained(excess, hasher)
			}

			var summary *dupreclaim.CleanupSummary
			if del {
				logPath := c.String("log")
				if logPath == "" {
					logPath = filepath.Join(st.config.Dir(), dupreclaim.CleanupLogName)
				}
				summary, err = dupreclaim.DeleteFiles(paths, logPath, opts)
			} else {
				summary, err = dupreclaim.MoveFiles(paths, moveTo, opts)
			}
			if err != nil {
				return err
			}
			summary.Reject(rejected)

			for _, result := range summary.Results {
				st.notifier.CleanupResult(summary.Operation, result)
			}
			if err := st.printer.Cleanup(summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d %s operations failed", summary.Failed, len(summary.Results), summary.Operation)
			}
			return nil
		},
	}
}

func exportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "exports",
		Usage: "list and inspect saved CSV exports",
		Flags: []cli.Flag{exportDirFlag()},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list exports, oldest first",
				Action: func(c *cli.Context) error {
					st, err := stateFrom(c)
					if err != nil {
						return err
					}
					exporter, err := dupreclaim.NewExporter(exportDir(c, st))
					if err != nil {
						return err
					}
					entries, err := exporter.Index()
					if err != nil {
						return err
					}
					return st.printer.Exports(entries)
				},
			},
			{
				Name:      "show",
				Usage:     "print the records of one export",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					st, err := stateFrom(c)
					if err != nil {
						return err
					}
					if c.NArg() != 1 {
						return errors.New("exports show takes exactly one export file")
					}
					records, err := dupreclaim.ReadExport(exportPath(c, st, c.Args().First()))
					if err != nil {
						return err
					}
					agg := dupreclaim.NewAggregation(records)
					if agg.IsEmpty() {
						return st.printer.Summary("", agg, "")
					}
					return st.printer.Records(agg.Snapshot())
				},
			},
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "show or change the configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the effective configuration",
				Action: func(c *cli.Context) error {
					st, err := stateFrom(c)
					if err != nil {
						return err
					}
					return st.printer.Config(st.config.GetAllConfig())
				},
			},
			{
				Name:      "set",
				Usage:     "save key:value pairs to the config file",
				ArgsUsage: "KEY:VALUE...",
				Action: func(c *cli.Context) error {
					st, err := stateFrom(c)
					if err != nil {
						return err
					}
					if c.NArg() == 0 {
						return errors.New("config set needs at least one key:value pair")
					}

					// Reload so environment and flag overrides are not persisted
					config, err := dupreclaim.LoadConfig(st.config.Dir())
					if err != nil {
						return err
					}
					if err := config.ApplyOverrides(c.Args().Slice()); err != nil {
						return err
					}
					if err := config.Validate(); err != nil {
						return err
					}
					if err := config.Save(); err != nil {
						return err
					}
					fmt.Fprintf(st.stdout, "Saved %s\n", filepath.Join(config.Dir(), dupreclaim.ConfigFileName))
					return nil
				},
			},
		},
	}
}

// runScan runs one session to completion. SIGINT and SIGTERM cancel it.
func runScan(st *appState, roots []string) ([]dupreclaim.DuplicateRecord, string, error) {
	session, err := dupreclaim.NewSession(st.opts)
	if err != nil {
		return nil, "", err
	}
	events, err := session.Start(roots)
	if err != nil {
		return nil, "", err
	}

	shutdown, stop := setupSignalHandler(st.stderr)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-shutdown:
			session.Cancel()
		case <-done:
		}
	}()

	st.notifier.ScanStarted(session.ID(), roots)
	start := time.Now()
	records, err := dupreclaim.Wait(events, st.notifier)
	if err != nil {
		st.notifier.ScanFailed(err)
		return nil, session.ID(), err
	}
	st.notifier.ScanFinished(len(records), time.Since(start))
	return records, session.ID(), nil
}

// loadAggregation reads --from when given, else scans the arguments
func loadAggregation(c *cli.Context, st *appState) (*dupreclaim.Aggregation, error) {
	if from := c.String("from"); from != "" {
		if c.NArg() > 0 {
			return nil, errors.New("--from cannot be combined with scan roots")
		}
		records, err := dupreclaim.ReadExport(exportPath(c, st, from))
		if err != nil {
			return nil, err
		}
		return dupreclaim.NewAggregation(records), nil
	}

	records, _, err := runScan(st, c.Args().Slice())
	if err != nil {
		return nil, err
	}
	return dupreclaim.NewAggregation(records), nil
}

func exportDir(c *cli.Context, st *appState) string {
	if dir := c.String("export-dir"); dir != "" {
		return dir
	}
	return filepath.Join(st.config.Dir(), exportsDirName)
}

// exportPath resolves a bare export name against the export directory
func exportPath(c *cli.Context, st *appState, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(exportDir(c, st), name)
}

// noDuplicatesOK reports an empty record set as a message rather than a failure
func noDuplicatesOK(st *appState, err error) error {
	if errors.Is(err, dupreclaim.ErrNoDuplicates) {
		fmt.Fprintf(st.stdout, "No duplicate files found\n")
		return nil
	}
	return err
}
