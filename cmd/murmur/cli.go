package main

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/mcp"
	"github.com/hpungsan/murmur/internal/ops"
	"github.com/hpungsan/murmur/internal/web"
)

// newCLIApp creates the CLI application with all commands. st may be nil
// when only help or version output is needed.
func newCLIApp(st *state) *cli.App {
	app := &cli.App{
		Name:    "murmur",
		Usage:   "Scheduled comment worker with a deduplicating comment buffer",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Commands: []*cli.Command{
			runCmd(st),
			cycleCmd(st),
			statusCmd(st),
			historyCmd(st),
			bufferCmd(st),
			exclusionCmd(st),
			exportCmd(st),
			mcpCmd(st),
			uiCmd(st),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run work cycles during working hours until interrupted",
		Action: func(c *cli.Context) error {
			w, err := st.openWorker(c.Context)
			if err != nil {
				return outputError(err)
			}
			defer w.close()

			if err := w.runner.Loop(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// cycleCmd creates the cycle command.
func cycleCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "cycle",
		Usage: "Run a single work cycle now, ignoring working hours",
		Action: func(c *cli.Context) error {
			w, err := st.openWorker(c.Context)
			if err != nil {
				return outputError(err)
			}
			defer w.close()

			result, err := w.runner.RunCycle(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show buffer, exclusion and publish state",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(c.Context, st.db, st.buf, st.counter, time.Now())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List published comments, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(c.Context, st.db, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// bufferCmd creates the buffer command and its subcommands.
func bufferCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "buffer",
		Usage: "Inspect and edit the comment buffer",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show queued comments",
				Action: func(c *cli.Context) error {
					return outputJSON(st.buf.Stats(c.Context))
				},
			},
			{
				Name:      "add",
				Usage:     "Queue comments (arguments, or one per line from stdin)",
				ArgsUsage: "[comment...]",
				Action: func(c *cli.Context) error {
					comments := c.Args().Slice()
					if len(comments) == 0 && stdinHasData() {
						lines, err := readStdinLines()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						comments = lines
					}

					output, err := ops.BufferAdd(c.Context, st.buf, ops.BufferAddInput{Comments: comments})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "next",
				Usage: "Take the next comment out of the buffer",
				Action: func(c *cli.Context) error {
					output, err := ops.BufferNext(c.Context, st.buf)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every queued comment",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm clearing the buffer"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return outputError(errors.NewInvalidRequest("pass --yes to clear the buffer"))
					}
					output, err := ops.BufferClear(c.Context, st.buf)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "import",
				Usage: "Queue comments from a JSONL file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ImportComments(c.Context, st.buf, st.cfg, ops.ImportInput{Path: c.String("path")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// exclusionCmd creates the exclusion command and its subcommands.
func exclusionCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "exclusion",
		Usage: "Inspect or reset today's exclusion count",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show today's exclusion state",
				Action: func(c *cli.Context) error {
					output, err := ops.ExclusionShow(c.Context, st.counter)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "reset",
				Usage: "Reset today's count to the base value",
				Action: func(c *cli.Context) error {
					output, err := ops.ExclusionReset(c.Context, st.counter)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the publish log to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.murmur/exports/history-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportHistory(c.Context, st.db, st.cfg, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve buffer, exclusion and history tools over MCP stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(mcp.Deps{
				DB:      st.db,
				Config:  st.cfg,
				Buffer:  st.buf,
				Counter: st.counter,
			}, Version)
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the status dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8321, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(web.Deps{
				DB:      st.db,
				Config:  st.cfg,
				Buffer:  st.buf,
				Counter: st.counter,
				Logger:  st.log,
			}, Version, c.String("bind"), c.Int("port"))
			return web.Run(c.Context, srv, st.log)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var mErr *errors.MurmurError
	if stderrors.As(err, &mErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdinLines reads non-blank lines from stdin.
func readStdinLines() ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
