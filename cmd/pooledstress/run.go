package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jsouthworth.net/go/pooled/internal/workload"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	var (
		config  string
		seed    uint64
		ops     int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a workload and print a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := workload.Default()
			if config != "" {
				var err error
				if cfg, err = workload.Load(config); err != nil {
					return err
				}
			}
			fs := cmd.Flags()
			if fs.Changed("seed") {
				cfg.Seed = seed
			}
			if fs.Changed("ops") {
				cfg.Ops = ops
			}
			if fs.Changed("workers") {
				cfg.Workers = workers
			}
			log := root.logger(cmd.ErrOrStderr())
			log.Debug("starting workload", "seed", cfg.Seed, "ops", cfg.Ops, "workers", cfg.Workers)
			report, err := workload.Run(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&config, "config", "c", "", "workload YAML file")
	fs.Uint64Var(&seed, "seed", 1, "random seed")
	fs.IntVarP(&ops, "ops", "n", 100000, "total operations")
	fs.IntVarP(&workers, "workers", "w", 4, "parallel workers")
	return cmd
}

func printReport(w io.Writer, r workload.Report) {
	perSec := float64(r.Ops) / max(r.Elapsed.Seconds(), 1e-9)
	fmt.Fprintf(w, "operations:    %s in %v (%s/s) across %d workers\n",
		humanize.Comma(int64(r.Ops)), r.Elapsed.Round(time.Millisecond),
		humanize.SIWithDigits(perSec, 1, ""), r.Workers)
	fmt.Fprintf(w, "  vector:      %s\n", humanize.Comma(int64(r.VectorOps)))
	fmt.Fprintf(w, "  list:        %s\n", humanize.Comma(int64(r.ListOps)))
	fmt.Fprintf(w, "  map:         %s\n", humanize.Comma(int64(r.MapOps)))
	fmt.Fprintf(w, "out of memory: %s\n", humanize.Comma(int64(r.OutOfMemory)))
	fmt.Fprintf(w, "validations:   %s\n", humanize.Comma(int64(r.Validations)))
	fmt.Fprintf(w, "rehashes:      %s\n", humanize.Comma(int64(r.Rehashes)))
	fmt.Fprintf(w, "peak vector:   capacity %s\n", humanize.Comma(int64(r.PeakVectorCap)))
	fmt.Fprintf(w, "peak list:     %d blocks\n", r.PeakListBlocks)
	fmt.Fprintf(w, "peak map:      %s entries in %s bins, %s, longest chain %d\n",
		humanize.Comma(int64(r.PeakMapEntries)), humanize.Comma(int64(r.PeakMapBins)),
		humanize.IBytes(uint64(r.PeakMapBytes)), r.LongestMapChain)
}
