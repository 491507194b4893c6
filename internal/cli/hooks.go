package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// HookRow describes one declared hook.
type HookRow struct {
	Name      string `json:"name"`
	Mode      string `json:"mode"`
	Callbacks int    `json:"callbacks"`
}

// HookTable is the output of the hooks command.
type HookTable []HookRow

func (t HookTable) String() string {
	width := 0
	for _, r := range t {
		width = max(width, len(r.Name))
	}
	var b strings.Builder
	for i, r := range t {
		if i > 0 {
			b.WriteByte('\n')
		}
		name := fmt.Sprintf("%-*s", width, r.Name)
		fmt.Fprintf(&b, "%s  %-18s  %d", titleStyle.Render(name), r.Mode, r.Callbacks)
	}
	return b.String()
}

// NewHooksCommand creates the hooks command.
func NewHooksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List the build hooks and their callbacks",
		Long: `Register the configured plugins and list every hook in declaration
order with its mode and the number of callbacks attached.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHooks(rootOpts, cmd)
		},
	}
}

func runHooks(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := opts.openSession(sessionOptions{logger: newLogger(cmd.ErrOrStderr(), opts.Verbose)})
	if err != nil {
		return outputConfigError(formatter, err)
	}
	defer sess.Close()

	infos := sess.compiler.Hooks().Hooks()
	table := make(HookTable, len(infos))
	for i, h := range infos {
		table[i] = HookRow{Name: h.Name, Mode: h.Mode.String(), Callbacks: h.Callbacks}
	}
	return formatter.Success(table)
}
