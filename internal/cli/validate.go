package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Mode string
}

// ValidationSummary describes a config that resolved cleanly.
type ValidationSummary struct {
	Config  string   `json:"config"`
	Entry   string   `json:"entry"`
	Mode    string   `json:"mode"`
	Output  string   `json:"output"`
	Rules   []string `json:"rules"`
	Plugins []string `json:"plugins"`
}

func (s ValidationSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", successStyle.Render("✓ Valid"), s.Config)
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("entry  "), s.Entry)
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("mode   "), s.Mode)
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("output "), s.Output)
	for _, r := range s.Rules {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("rule   "), r)
	}
	if len(s.Plugins) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("plugins"), strings.Join(s.Plugins, ", "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config without building",
		Long: `Load the config, resolve every loader and plugin, and create the
compiler without running it.

Exits with code 2 if the config is invalid.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "build mode to validate against")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	sess, err := opts.openSession(sessionOptions{mode: opts.Mode, logger: logger})
	if err != nil {
		return outputConfigError(formatter, err)
	}
	defer sess.Close()

	cfg := sess.compiler.Config()
	summary := ValidationSummary{
		Config:  sess.path,
		Entry:   cfg.Entry,
		Mode:    string(cfg.Mode),
		Output:  cfg.Output.File(),
		Rules:   make([]string, 0, len(cfg.Rules)),
		Plugins: make([]string, 0, len(cfg.Plugins)),
	}
	for _, r := range cfg.Rules {
		loaders := make([]string, len(r.Use))
		for i, ref := range r.Use {
			loaders[i] = ref.AppliedName()
		}
		summary.Rules = append(summary.Rules, fmt.Sprintf("%s: %s", r.Pattern, strings.Join(loaders, ", ")))
	}
	for _, p := range cfg.Plugins {
		summary.Plugins = append(summary.Plugins, p.Name())
	}
	formatter.VerboseLog("%d rule(s), %d plugin(s)", len(summary.Rules), len(summary.Plugins))

	return formatter.Success(summary)
}
