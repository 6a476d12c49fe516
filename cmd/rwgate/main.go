// Package main implements the rwgate CLI tool.
//
// rwgate runs the readers-writers simulation: N reader tasks observe a
// shared buffer while M writer tasks shrink it one byte at a time, until
// the buffer is empty.
//
// Usage:
//
//	rwgate <readers> <writers> [options]
//	rwgate version
//	rwgate help
//
// Exit codes:
//
//	0  the run completed
//	1  bad arguments or configuration; no task was started
//	2  a task could not be started, aborted, or the run was interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kolkov/rwgate/internal/rw/supervisor"
	"github.com/kolkov/rwgate/rwgate"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 1 {
		switch args[0] {
		case "version", "--version", "-v":
			_, _ = fmt.Fprintf(stdout, "rwgate version %s\n", rwgate.Version)
			return exitOK
		case "help", "--help", "-h":
			printUsage(stdout)
			return exitOK
		}
	}

	cli, err := parseArgs(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := cli.config()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	s, err := supervisor.New(cfg, supervisor.Options{
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, supervisor.ErrInvalidConfig) {
			return exitUsage
		}
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := s.Run(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `rwgate - Readers-Writers Simulation

USAGE:
    rwgate <readers> <writers> [options]
    rwgate version
    rwgate help

ARGUMENTS:
    readers    Number of reader tasks (>= 1)
    writers    Number of writer tasks (>= 1)

OPTIONS:
    --config PATH          Load settings from a YAML file
    --buffer TEXT          Initial buffer content
    --read-pause DURATION  Pause after each read section (default 1s)
    --write-pause DURATION Pause after each write section (default 1s)
    --max-tasks N          Refuse to start more than N tasks (0 = no limit)
    --racy-loop-check      Check the buffer length outside every permit
    --no-race-check        Disable the happens-before checker
    --quiet                Print only the banner and the summary
    --log-level LEVEL      debug, info, warn or error (default info)

EXAMPLES:
    # Three readers, two writers, the original one second pauses
    rwgate 3 2

    # Fast run without progress lines
    rwgate 5 1 --read-pause 1ms --write-pause 1ms --quiet

    # Reproduce the unsynchronized loop check and see the race report
    rwgate 4 2 --read-pause 0s --write-pause 0s --racy-loop-check

`)
}
