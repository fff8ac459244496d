package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/inspector"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve project configuration without visiting a page",
	Long: `Resolve the configuration of one or more Optimizely projects directly
from the REST API, the CDN snippet and public datafiles.

The known identifier is probed alongside the given projects unless it is
disabled with --known-identifier "".

Examples:
  optiscope resolve --project 30018331732

  OPTIMIZELY_API_TOKEN=... optiscope resolve -p 123 -p 456 --format yaml`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	flags := resolveCmd.Flags()
	flags.StringSliceP("project", "p", nil, "project identifier(s) to resolve (can be repeated)")
	flags.Bool("running-only", false, "only report experiments whose status is running or active")
	addOutputFlags(flags)
}

func runResolve(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	projects, _ := cmd.Flags().GetStringSlice("project")
	projects = append(projects, args...)
	runningOnly, _ := cmd.Flags().GetBool("running-only")

	insp, err := newInspector(cmd.Flags())
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = insp.Close() }()

	writer, closeOut, err := openOutput(cmd.Flags())
	if err != nil {
		return err
	}
	defer closeOut()
	defer func() { _ = writer.Close() }()

	start := time.Now()
	res := insp.Resolve(ctx, projects...)
	logger.Info("projects resolved",
		"resolution_id", res.ID,
		"identifiers", len(res.Passes),
		"experiments", len(res.Configuration.Experiments),
		"errors", len(res.Configuration.Errors),
		"duration", time.Since(start))

	cfg := res.Configuration
	if len(res.Passes) == 0 {
		cfg = nil
	}
	if runningOnly {
		cfg = inspector.RunningOnly(cfg)
	}

	return writer.Write(&inspector.Report{
		FetchedAt:    start,
		Optimizely:   cfg,
		ResolutionID: res.ID,
	})
}
