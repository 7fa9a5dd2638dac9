package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nncnn/internal/config"
	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/train"
)

type trainFlags struct {
	trainPath  string
	devPath    string
	testPath   string
	configPath string
	modelPath  string
	wordEmb    string
	extEmb     string
	maxIter    int
	seed       uint64
	workers    int
	noProgress bool
}

func newTrainCmd() *cobra.Command {
	var f trainFlags
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and save the best checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, &f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.trainPath, "train", "", "training corpus")
	flags.StringVar(&f.devPath, "dev", "", "development corpus used to select the best epoch")
	flags.StringVar(&f.testPath, "test", "", "test corpus scored with the best dev model")
	flags.StringVar(&f.configPath, "config", "", "YAML file with model and train sections")
	flags.StringVar(&f.modelPath, "model", "", "checkpoint output path")
	flags.StringVar(&f.wordEmb, "word-emb", "", "pretrained vectors initializing the trained word table")
	flags.StringVar(&f.extEmb, "ext-emb", "", "pretrained vectors used as a fixed external word table")
	flags.IntVar(&f.maxIter, "max-iter", 0, "number of epochs, overrides the config")
	flags.Uint64Var(&f.seed, "seed", 0, "random seed, overrides the config")
	flags.IntVar(&f.workers, "workers", 0, "evaluation workers, overrides the config")
	flags.BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func runTrain(cmd *cobra.Command, f *trainFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.maxIter > 0 {
		cfg.Train.MaxIter = f.maxIter
	}
	if cmd.Flags().Changed("seed") {
		cfg.Train.Seed = f.seed
	}
	if f.workers > 0 {
		cfg.Train.EvalWorkers = f.workers
	}
	if f.noProgress {
		cfg.Train.Progress = false
	}

	var corpus train.Corpus
	if corpus.Train, err = readCorpus(f.trainPath, cfg.Train.MaxInstances); err != nil {
		return err
	}
	if corpus.Dev, err = readCorpus(f.devPath, cfg.Train.MaxInstances); err != nil {
		return err
	}
	if corpus.Test, err = readCorpus(f.testPath, cfg.Train.MaxInstances); err != nil {
		return err
	}
	klog.Infof("instances: train %d, dev %d, test %d", len(corpus.Train), len(corpus.Dev), len(corpus.Test))

	var emb train.Embeddings
	if f.wordEmb != "" {
		file, err := openEmbeddings(f.wordEmb)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		emb.Word = file
	}
	if f.extEmb != "" {
		file, err := openEmbeddings(f.extEmb)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		emb.Ext = file
	}

	trainer := train.New(cfg.Train, cfg.Model)
	trainer.ModelPath = f.modelPath
	trainer.Creator = "nncnn " + version
	if err := trainer.Init(corpus.Train, emb); err != nil {
		return err
	}

	res, err := trainer.Run(cmd.Context(), corpus)
	if err != nil {
		return err
	}
	if res.BestEpoch >= 0 {
		klog.InfoS("training finished", "bestEpoch", res.BestEpoch+1,
			"dev", res.BestDev.String(), "test", res.BestTest.String(), "model", f.modelPath)
	}
	return nil
}

func openEmbeddings(path string) (*os.File, error) {
	//nolint:gosec // G304: embedding path comes from the command line
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embeddings")
	}
	return file, nil
}

func readCorpus(path string, maxInstances int) ([]*instance.Instance, error) {
	if path == "" {
		return nil, nil
	}
	return instance.ReadFile(path, maxInstances)
}
