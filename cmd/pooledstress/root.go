package main

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootFlags struct {
	logLevel *slog.LevelVar
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{logLevel: new(slog.LevelVar)}
	cmd := &cobra.Command{
		Use:          "pooledstress",
		Short:        "exercise pooled containers with randomized workloads",
		SilenceUsage: true,
	}
	addLogFlags(cmd.PersistentFlags(), flags)
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newBinsCmd())
	return cmd
}

func addLogFlags(fs *pflag.FlagSet, flags *rootFlags) {
	def := new(slog.LevelVar)
	def.Set(slog.LevelInfo)
	fs.TextVarP(flags.logLevel, "log-level", "L", def, "log level")
	fs.BoolVar(&flags.logJSON, "log-json", false, "use json logs")
}

func (f *rootFlags) logger(w io.Writer) *slog.Logger {
	if f.logJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: f.logLevel,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: f.logLevel,
	}))
}
