// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// lattice-tasks is a command-line client for Lattice background tasks.
// It keeps a local task status cache in sync with the server's event
// stream and answers questions from it: what is the status of a task,
// what is the latest task acting on an entity, and what is changing
// right now. It can also revoke tasks.
//
// Configuration comes from the file named by --config or the
// LATTICE_CONFIG environment variable; see package config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lattice-ml/lattice/lib/version"
)

const binaryName = "lattice-tasks"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			if !errors.Is(err, errSilent) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags accepted before the subcommand.
type globalOptions struct {
	configPath string
	format     string
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = []command{
	{"status", "reconcile one task from the server and print it", runStatus},
	{"revoke", "ask the server to cancel a task", runRevoke},
	{"latest", "print the newest task acting on an entity", runLatest},
	{"watch", "stream task updates and connection health", runWatch},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var options globalOptions

	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&options.configPath, "config", "", "path to the config file (default: $LATTICE_CONFIG)")
	flagSet.StringVar(&options.format, "format", formatText, "output format: text, json, or cbor")
	showVersion := flagSet.Bool("version", false, "print version information")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return usageError("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if *showVersion {
		version.Print(stdout, binaryName)
		return nil
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		printHelp(stderr, flagSet)
		return usageError("no command given")
	}
	if !validFormat(options.format) {
		return usageError("unknown --format %q (want text, json, or cbor)", options.format)
	}

	name, commandArgs := remaining[0], remaining[1:]
	for _, candidate := range commands {
		if candidate.name != name {
			continue
		}
		env, err := newEnvironment(options, stdout, stderr)
		if err != nil {
			return err
		}
		defer env.close()
		return candidate.run(ctx, env, commandArgs)
	}
	return usageError("unknown command %q", name)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `%s: inspect and control Lattice background tasks.

Usage:
  %s [global flags] <command> [flags] [args]

Commands:
`, binaryName, binaryName)
	for _, candidate := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", candidate.name, candidate.summary)
	}
	fmt.Fprintf(w, `
Examples:
  # Follow all task updates
  %[1]s watch

  # Latest dataset generation task for dataset 3, as JSON
  %[1]s --format json latest --entity-type Dataset --entity-id 3 --job-type dataset_generation

  # Kill a runaway task and wait for the server to confirm
  %[1]s revoke --signal KILL --confirm 2s job-42

Global flags:
`, binaryName)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
