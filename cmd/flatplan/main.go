// Command flatplan works with magazine flat plans from the terminal: article
// layout reports, page-flip frames, inline share links and the local
// magazine database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"

	"github.com/flatplan/flatplan.go/pkg/logger"
)

// env is the state shared by subcommands once the root flags are parsed.
type env struct {
	logData *logger.LogData
	log     logger.Logger
}

func (e *env) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	build := logger.Build().Level(cmd.String("log-level")).FromBuffer(cmd.Root().ErrWriter)
	if path := cmd.String("log-file"); path != "" {
		build = build.FromPath(path)
	}
	logData, err := build.Make()
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	e.logData = logData
	e.log = logData.Logger()
	return ctx, nil
}

func (e *env) after(context.Context, *cli.Command) error {
	if e.logData == nil {
		return nil
	}
	return e.logData.Close()
}

func (e *env) logger() logger.Logger {
	return logger.OrNop(e.log)
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	e := &env{}
	return &cli.Command{
		Name:            "flatplan",
		Usage:           "magazine flat plan tools",
		HideHelpCommand: true,
		Writer:          stdout,
		ErrWriter:       stderr,
		Before:          e.before,
		After:           e.after,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "minimum log `LEVEL`"},
			&cli.StringFlag{Name: "log-file", Usage: "append logs to `FILE` instead of stderr"},
		},
		Commands: []*cli.Command{
			layoutCommand(e),
			flipCommand(e),
			shareCommand(e),
			magazinesCommand(e),
			generateCommand(e),
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return newApp(stdout, stderr).Run(ctx, args)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "flatplan:", err)
		stop()
		os.Exit(1)
	}
}
