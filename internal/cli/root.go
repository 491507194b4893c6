package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/minipack/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file or directory; empty means the working directory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the minipack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "minipack",
		Short: "minipack - a minimal module bundler",
		Long: `Bundle a JavaScript entry file and its local dependencies into one file.

Modules pass through the loaders selected by the config's rules, and
plugins observe or rewrite the build through lifecycle hooks.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file, or a directory to search")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewHooksCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// configPath finds the config file named by --config: a file is used as
// is, a directory (or the working directory when unset) is searched.
func (o *RootOptions) configPath() (string, error) {
	target := o.Config
	if target == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		target = wd
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", &config.Error{Code: config.ErrCodeLoad, Message: err.Error(), File: target, Err: err}
	}
	if info.IsDir() {
		return config.Find(target)
	}
	return filepath.Abs(target)
}

// loadConfig finds and loads the config file.
func (o *RootOptions) loadConfig() (string, *config.File, error) {
	path, err := o.configPath()
	if err != nil {
		return "", nil, err
	}
	f, err := config.Load(path)
	if err != nil {
		return path, nil, err
	}
	return path, f, nil
}
