// Package main provides the nncnn command line: training, decoding and
// version reporting for the segment/attribute/evaluation/polarity classifier.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const version = "v0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nncnn",
		Short: "Train and run the segment/attribute/evaluation/polarity classifier",
		Long: `nncnn trains a feed-forward classifier over word segments, attribute
tags, evaluation spans and a polarity tag, and labels new instances with it.

Instance lines look like:
  label word word ... [a]attr [e]span [p]polarity`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	root.PersistentFlags().AddGoFlagSet(fs)

	root.AddCommand(newTrainCmd(), newTestCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nncnn %s\n", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		klog.ErrorS(err, "command failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
