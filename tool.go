// Command srcmap maps positions in compiled files back to the original
// sources, using source maps collected from the compiler's output.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gopherjs/srcmap/build/cache"
	"github.com/gopherjs/srcmap/build/mapstore"
	"github.com/gopherjs/srcmap/internal/experiments"
	"github.com/gopherjs/srcmap/internal/ingest"
	"github.com/gopherjs/srcmap/internal/sourcemapx"
	"github.com/gopherjs/srcmap/sourcemap"
	"github.com/gopherjs/srcmap/stacktrace"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalOptions are the flags shared by all commands.
type globalOptions struct {
	StorePath string
	Verbose   bool
	Debug     bool
}

func (o *globalOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.StorePath, "store", mapstore.DefaultPath, "path to the source map store")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "print details about what is going on")
	flags.BoolVar(&o.Debug, "debug", false, "annotate remapped frames with their generated position or failure reason")
}

// openStore returns the store configured by the flags and the
// SRCMAP_EXPERIMENT environment variable.
func (o *globalOptions) openStore() *mapstore.Store {
	store := mapstore.New(o.StorePath)
	if experiments.Env.TableCache {
		store.TableCache = &cache.TableCache{}
	}
	return store
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "srcmap",
		Short: "Map compiled code positions back to original sources",
		Long: `srcmap collects inline source maps emitted by the compiler into a store,
and uses them to translate generated positions and stack traces back to the
original sources.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetLevel(log.WarnLevel)
			if opts.Verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(cmd.PersistentFlags())

	cmd.AddCommand(
		newIngestCommand(opts),
		newWatchCommand(opts),
		newLookupCommand(opts),
		newRemapCommand(opts),
		newEmbedCommand(),
		newCleanCacheCommand(),
	)
	return cmd
}

func newIngestCommand(opts *globalOptions) *cobra.Command {
	var ingestOpts ingest.Options
	strip := experiments.Env.StripTrailer
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Add inline source maps of compiled files to the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := opts.openStore()
			files, ingestErr := ingest.Files(cmd.Context(), store, args, ingestOpts)
			if err := ingest.Commit(store, files, strip); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d source maps into %s\n", len(files), store.Path())
			return ingestErr
		},
	}
	cmd.Flags().BoolVar(&strip, "strip", strip, "remove the inline source map comment from ingested files once the store is saved")
	cmd.Flags().IntVar(&ingestOpts.Parallelism, "parallelism", 0, "number of files processed at once (default: number of CPUs)")
	return cmd
}

func newWatchCommand(opts *globalOptions) *cobra.Command {
	watchOpts := ingest.WatchOptions{StripTrailer: experiments.Env.StripTrailer}
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest compiled files in a directory as they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return ingest.Watch(ctx, opts.openStore(), args[0], watchOpts)
		},
	}
	cmd.Flags().StringSliceVar(&watchOpts.Extensions, "ext", []string{".js", ".ts"}, "extensions of compiled files to ingest")
	cmd.Flags().BoolVar(&watchOpts.StripTrailer, "strip", watchOpts.StripTrailer, "remove the inline source map comment from ingested files once the store is saved")
	return cmd
}

func newLookupCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [file] [line] [col]",
		Short: "Print the original position of a zero-based generated position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid line %q: %w", args[1], err)
			}
			col, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid column %q: %w", args[2], err)
			}
			r := &stacktrace.Resolver{Maps: opts.openStore()}
			pos, err := r.Resolve(args[0], line, col)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pos)
			return nil
		},
	}
}

func newRemapCommand(opts *globalOptions) *cobra.Command {
	var (
		asJSON   bool
		internal []string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "remap",
		Short: "Remap a V8 stack trace read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stack trace: %w", err)
			}
			rm := &stacktrace.Remapper{
				Resolver: &stacktrace.Resolver{Maps: opts.openStore()},
				Internal: internal,
			}
			if all {
				rm.Filter = func(*stacktrace.Frame) bool { return true }
			}
			frames := rm.Trace(stacktrace.ParseV8(string(stack)))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(frames)
			}
			if len(frames) > 0 {
				fmt.Fprintln(out, stacktrace.Format(frames, opts.Debug))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print frames as JSON")
	cmd.Flags().StringSliceVar(&internal, "internal", nil, "generated files whose frames are dropped from the trace")
	cmd.Flags().BoolVar(&all, "all", false, "keep frames without a known source")
	return cmd
}

func newEmbedCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "embed [code] [map]",
		Short: "Append a source map to compiled code as an inline comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			m, err := sourcemap.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			text, err := sourcemapx.Embed(string(code), m)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), text)
				return err
			}
			return os.WriteFile(output, []byte(text), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	return cmd
}

func newCleanCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean-cache",
		Short: "Remove decoded mapping tables cached on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cache.Clear()
		},
	}
}
