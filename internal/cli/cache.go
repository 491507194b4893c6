package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/minipack/internal/plugins"
	"github.com/roach88/minipack/internal/store"
)

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// CacheStats is the output of cache stats.
type CacheStats struct {
	Database string `json:"database"`
	store.Stats
}

func (s CacheStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(s.Database))
	fmt.Fprintf(&b, "  %s %d\n", mutedStyle.Render("transforms"), s.Transforms)
	fmt.Fprintf(&b, "  %s %d\n", mutedStyle.Render("hits      "), s.Hits)
	fmt.Fprintf(&b, "  %s %d\n", mutedStyle.Render("code bytes"), s.CodeBytes)
	fmt.Fprintf(&b, "  %s %d", mutedStyle.Render("builds    "), s.Builds)
	return b.String()
}

// BuildList is the output of cache builds.
type BuildList []store.Build

func (l BuildList) String() string {
	if len(l) == 0 {
		return "No builds recorded."
	}
	var b strings.Builder
	for i, build := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s  %d module(s)  %d hit(s)/%d miss(es)  %s",
			titleStyle.Render(build.RunID), build.EntryID, build.Modules,
			build.CacheHits, build.CacheMisses, build.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the transform cache",
		Long: `Inspect or clear the SQLite database used by the cache plugin.

Example:
  minipack cache stats
  minipack cache builds --limit 5
  minipack cache clear --db ./tmp/cache.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", plugins.DefaultCachePath, "path to the cache database")

	stats := &cobra.Command{
		Use:           "stats",
		Short:         "Show cache counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(opts, cmd, func(f *OutputFormatter, st *store.Store) error {
				s, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return f.Success(CacheStats{Database: opts.Database, Stats: s})
			})
		},
	}

	builds := &cobra.Command{
		Use:           "builds",
		Short:         "List recorded builds, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(opts, cmd, func(f *OutputFormatter, st *store.Store) error {
				list, err := st.Builds(cmd.Context(), opts.Limit)
				if err != nil {
					return err
				}
				if list == nil {
					list = []store.Build{}
				}
				return f.Success(BuildList(list))
			})
		},
	}
	builds.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum builds to list (0 for all)")

	clearCmd := &cobra.Command{
		Use:           "clear",
		Short:         "Delete every cached transform and build record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(opts, cmd, func(f *OutputFormatter, st *store.Store) error {
				if err := st.Clear(cmd.Context()); err != nil {
					return err
				}
				if f.Format == "json" {
					return f.Success(map[string]string{"cleared": opts.Database})
				}
				return f.Success(successStyle.Render("✓ Cleared ") + opts.Database)
			})
		},
	}

	cmd.AddCommand(stats, builds, clearCmd)
	return cmd
}

// withCache opens the database, runs fn and closes it. Failures are
// reported as CACHE_FAILED.
func withCache(opts *CacheOptions, cmd *cobra.Command, fn func(*OutputFormatter, *store.Store) error) error {
	formatter := opts.formatter(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeCacheFailed, fmt.Sprintf("opening cache: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer st.Close()
	formatter.VerboseLog("Opened %s", opts.Database)

	if err := fn(formatter, st); err != nil {
		_ = formatter.Error(ErrCodeCacheFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "cache command failed", err)
	}
	return nil
}
