package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/darknet"
	"github.com/born-ml/yolov3/internal/yolo"
)

func runInspect(_ context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	classes := fs.Int("classes", yolo.DefaultClasses, "class count to account darknet weights against")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("inspect: expected exactly one file")
	}
	path := fs.Arg(0)

	if filepath.Ext(path) == checkpoint.FileExt {
		return inspectCheckpoint(path, stdout)
	}
	return inspectDarknet(path, *classes, stdout, logger)
}

func inspectDarknet(path string, classes int, stdout io.Writer, logger *slog.Logger) error {
	l, err := darknet.Open(path, darknet.WithLogger(logger))
	if err != nil {
		return err
	}
	net, err := yolo.NewNetwork(classes)
	if err != nil {
		return err
	}

	h := l.Header()
	total := l.Stream().Len()
	full := net.NumElements(net.NumLayers())
	body := net.NumElements(net.NumBody())

	fmt.Fprintf(stdout, "file:      %s\n", path)
	fmt.Fprintf(stdout, "version:   %d.%d.%d (metadata %d bytes)\n", h.Major, h.Minor, h.Revision, h.MetadataSize())
	fmt.Fprintf(stdout, "floats:    %d\n", total)
	fmt.Fprintf(stdout, "model:     %d classes, %d layers, %d floats\n", classes, net.NumLayers(), full)
	fmt.Fprintf(stdout, "backbone:  %d layers, %d floats\n", net.NumBody(), body)

	switch {
	case total == full:
		fmt.Fprintln(stdout, "match:     full network")
	case total >= body:
		fmt.Fprintf(stdout, "match:     backbone (%d floats beyond it)\n", total-body)
	default:
		fmt.Fprintf(stdout, "match:     none (%d floats short of the backbone)\n", body-total)
	}
	return nil
}

func inspectCheckpoint(path string, stdout io.Writer) error {
	h, err := checkpoint.ReadHeader(path)
	if err != nil {
		return err
	}
	var floats int64
	for _, t := range h.Tensors {
		floats += t.Size / 4
	}

	fmt.Fprintf(stdout, "file:      %s\n", path)
	fmt.Fprintf(stdout, "format:    v%d (%s)\n", h.FormatVersion, h.WriterVersion)
	fmt.Fprintf(stdout, "model:     %s\n", h.ModelType)
	fmt.Fprintf(stdout, "created:   %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(stdout, "tensors:   %d (%d floats)\n", len(h.Tensors), floats)
	if m := h.CheckpointMeta; m != nil {
		fmt.Fprintf(stdout, "run:       %s\n", m.RunID)
		fmt.Fprintf(stdout, "epoch:     %d (step %d)\n", m.Epoch, m.Step)
		fmt.Fprintf(stdout, "loss:      %g\n", m.Loss)
		if m.OptimizerType != "" {
			fmt.Fprintf(stdout, "optimizer: %s (lr %g)\n", m.OptimizerType, m.LR)
		}
		names := make([]string, 0, len(m.Metrics))
		for k := range m.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(stdout, "metric:    %s = %g\n", k, m.Metrics[k])
		}
	}
	return nil
}
