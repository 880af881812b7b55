// Package main provides the YOLOv3 weights and checkpoint CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/klauspost/cpuid/v2"
)

const version = "v0.1.0-dev"

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error
}

var commands = []command{
	{"version", "Show version and host CPU", runVersion},
	{"inspect", "Describe a darknet .weights or .born file", runInspect},
	{"convert", "Convert darknet weights to a .born checkpoint", runConvert},
	{"config", "Validate a YAML run configuration and print it resolved", runConfig},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("yolov3", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "verbose logging")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(stdout)
		return 0
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	name, rest := global.Arg(0), global.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, rest, stdout, logger); err != nil {
			logger.Error(name+" failed", "err", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n", name)
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "yolov3 - YOLOv3 darknet weights and training checkpoints")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Usage: yolov3 [-v] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
}

func runVersion(_ context.Context, _ []string, stdout io.Writer, logger *slog.Logger) error {
	fmt.Fprintf(stdout, "yolov3 %s\n", version)
	logger.Debug("host",
		"cpu", cpuid.CPU.BrandName,
		"cores", cpuid.CPU.PhysicalCores,
		"threads", cpuid.CPU.LogicalCores,
		"avx2", cpuid.CPU.Supports(cpuid.AVX2),
		"avx512", cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	)
	return nil
}
