package main

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"eavcore/internal/accessors/render"
	"eavcore/internal/core"
	"eavcore/internal/logger"
	"eavcore/internal/output"
)

func (a *app) warmupCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Write one accessor unit per family to the output sink",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			loaded, err := a.loadRegistry()
			if err != nil {
				return err
			}
			gen, err := a.generator(ctx, loaded)
			if err != nil {
				return err
			}
			r, err := render.New(a.cfg.Render.Format, render.Options{Package: a.cfg.Render.Package})
			if err != nil {
				return usage(err)
			}
			outCfg := a.outputConfig()
			if dryRun {
				outCfg.Driver = output.DriverMemory
			}
			sink, err := output.Open(ctx, outCfg)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			w, err := core.NewWarmer(loaded.Registry, gen, r, sink,
				core.WithPrefix(a.cfg.Output.Prefix),
				core.WithMetrics(core.NewMetrics(reg)),
				core.WithLogger(logger.Logger))
			if err != nil {
				return err
			}
			report, runErr := w.Run(ctx)
			if path := a.cfg.Metrics.Textfile; path != "" {
				if err := core.WriteTextfile(reg, path); err != nil && runErr == nil {
					runErr = err
				}
			}
			if runErr != nil {
				return runErr
			}
			if dryRun {
				for _, u := range report.Units {
					_, _ = fmt.Fprintf(a.stdout, "%s\t%d declarations\n", u.Key, u.Declarations)
				}
			}
			_, err = fmt.Fprintf(a.stdout, "wrote %d units (%d declarations, format %s) to %s\n",
				len(report.Units), report.Declarations(), report.Format, sink.Driver())
			return err
		},
	}
	f := cmd.Flags()
	f.String("format", "", "render format: "+strings.Join(render.Formats(), ", "))
	f.String("package", "", "Go package name for the go format")
	f.String("output", "", "output driver (fs, s3, memory)")
	f.String("out-dir", "", "root directory for the fs driver")
	f.String("prefix", "", "key prefix for written units")
	f.String("metrics-textfile", "", "write warm-up metrics to this node-exporter textfile")
	f.BoolVar(&dryRun, "dry-run", false, "render into memory and list the units instead of writing them")
	return cmd
}
