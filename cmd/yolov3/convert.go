package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/config"
	"github.com/born-ml/yolov3/internal/darknet"
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
	"github.com/born-ml/yolov3/internal/yolo"
)

func runConvert(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML run configuration supplying classes and weight options")
	classes := fs.Int("classes", 0, "class count (overrides -config)")
	fileClasses := fs.Int("file-classes", 0, "class count the weight file was trained with (overrides -config)")
	backbone := fs.Bool("backbone", false, "load only the Darknet-53 backbone")
	skip := fs.Bool("skip-detector", false, "leave the detection convolutions at their initial values")
	out := fs.String("o", "", "output checkpoint path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "classes":
			cfg.Model.Classes = *classes
		case "file-classes":
			cfg.Weights.FileClasses = *fileClasses
		case "backbone":
			cfg.Weights.BackboneOnly = *backbone
		case "skip-detector":
			cfg.Weights.SkipDetector = *skip
		}
	})
	if fs.NArg() > 0 {
		cfg.Weights.Darknet = fs.Arg(0)
	}
	if cfg.Weights.Darknet == "" {
		return errors.New("convert: no darknet weight file given")
	}
	if *out == "" {
		return errors.New("convert: -o is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Weights.FileClasses != cfg.Model.Classes && !cfg.Weights.BackboneOnly && !cfg.Weights.SkipDetector {
		return errors.Errorf("convert: file has %d classes, model has %d: use -skip-detector or -backbone",
			cfg.Weights.FileClasses, cfg.Model.Classes)
	}

	net, err := yolo.NewNetwork(cfg.Model.Classes)
	if err != nil {
		return err
	}
	l, err := darknet.Open(cfg.Weights.Darknet,
		darknet.WithLogger(logger),
		darknet.WithFullSkips(detectorSkips(net, cfg.Weights.FileClasses)),
	)
	if err != nil {
		return err
	}

	var res *darknet.Result
	if cfg.Weights.BackboneOnly {
		res, err = l.LoadBackbone(net, false)
	} else {
		res, err = l.LoadFullNetwork(net, cfg.Weights.SkipDetector)
	}
	if err != nil {
		return errors.Wrapf(err, "convert %s", cfg.Weights.Darknet)
	}
	logger.Info("darknet weights loaded",
		"layers", res.Layers,
		"tensors", res.Tensors,
		"skipped", res.Skipped,
		"consumed", res.Consumed,
		"remaining", res.Remaining,
	)

	snap := &checkpoint.Snapshot{
		RunID:  cfg.RunID,
		Params: snapshotParams(net, cfg.Weights.BackboneOnly),
		Metadata: map[string]string{
			"source":        cfg.Weights.Darknet,
			"classes":       fmt.Sprint(cfg.Model.Classes),
			"backbone_only": fmt.Sprint(cfg.Weights.BackboneOnly),
		},
	}
	if err := checkpoint.Save(ctx, *out, snap); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d tensors)\n", *out, len(snap.Params))
	return nil
}

// detectorSkips sizes the detection layers of net as stored in a file
// trained with fileClasses classes.
func detectorSkips(net *yolo.Network, fileClasses int) darknet.SkipPolicy {
	in := make(map[int]int)
	for _, idx := range net.DetectionLayers() {
		in[idx] = net.Layers()[idx].InChannels
	}
	return darknet.HeadSkips(yolo.HeadFilters(fileClasses), in)
}

// snapshotParams keeps only the loaded layers: a backbone conversion leaves
// the head at its random initialisation.
func snapshotParams(net *yolo.Network, backboneOnly bool) map[string]*tensor.RawTensor {
	if backboneOnly {
		return nn.StateDictOf(net.BodyParameters())
	}
	return net.StateDict()
}

func runConfig(_ context.Context, args []string, stdout io.Writer, _ *slog.Logger) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if fs.NArg() > 0 {
		var err error
		if cfg, err = config.Load(fs.Arg(0)); err != nil {
			return err
		}
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
