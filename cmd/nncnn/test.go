package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nncnn/internal/checkpoint"
	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/train"
)

type testFlags struct {
	modelPath  string
	inputPath  string
	outputPath string
	workers    int
}

func newTestCmd() *cobra.Command {
	var f testFlags
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Label a corpus with a trained model and report accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTest(cmd, &f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.modelPath, "model", "", "checkpoint written by train")
	flags.StringVar(&f.inputPath, "input", "", "corpus to label")
	flags.StringVar(&f.outputPath, "output", "", "prediction file, stdout when empty")
	flags.IntVar(&f.workers, "workers", 0, "decoding workers, 0 uses every CPU")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runTest(cmd *cobra.Command, f *testFlags) error {
	ckpt, err := checkpoint.Load(f.modelPath)
	if err != nil {
		return err
	}
	klog.Infof("loaded %s (%s, %s)", f.modelPath, ckpt.Creator, ckpt.HyperParams.String())

	insts, err := instance.ReadFile(f.inputPath, 0)
	if err != nil {
		return err
	}
	evaluator := train.NewEvaluator(ckpt.Params, ckpt.HyperParams, f.workers)
	preds, metric, err := evaluator.Evaluate(cmd.Context(), insts)
	if err != nil {
		return err
	}

	if f.outputPath == "" {
		if err := train.WritePredictions(cmd.OutOrStdout(), insts, preds); err != nil {
			return err
		}
	} else {
		file, err := os.Create(f.outputPath)
		if err != nil {
			return errors.Wrap(err, "failed to create output")
		}
		if err := writeAndClose(file, insts, preds); err != nil {
			return errors.Wrapf(err, "output %s", f.outputPath)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "accuracy %s\n", metric)
	}
	klog.InfoS("decoding finished", "instances", len(insts), "accuracy", metric.String())
	return nil
}

// writeAndClose writes the predictions to w and closes it. A failed close is
// reported, since buffered data may not have reached the disk.
func writeAndClose(w io.WriteCloser, insts []*instance.Instance, preds []model.Prediction) error {
	if err := train.WritePredictions(w, insts, preds); err != nil {
		_ = w.Close()
		return err
	}
	return errors.Wrap(w.Close(), "failed to close predictions")
}
