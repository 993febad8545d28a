package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/hashmap"
)

func newBinsCmd() *cobra.Command {
	var load float64
	cmd := &cobra.Command{
		Use:   "bins COUNT...",
		Short: "print the bin count picked for each element count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(load > 0) {
				return fmt.Errorf("%w: load %v must be positive", pooled.ErrInvalidArgument, load)
			}
			for _, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("%w: element count %q", pooled.ErrInvalidArgument, arg)
				}
				bins := hashmap.PickSize(n, load)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.2f\n",
					humanize.Comma(int64(n)), humanize.Comma(int64(bins)),
					float64(n)/float64(bins))
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&load, "load", "l", hashmap.DefaultOptimalLoad, "optimal load factor")
	return cmd
}
