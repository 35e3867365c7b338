package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for knit.

Bash:
  $ source <(knit completion bash)

Zsh:
  $ knit completion zsh > "${fpath[1]}/_knit"

Fish:
  $ knit completion fish > ~/.config/fish/completions/knit.fish

PowerShell:
  PS> knit completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

// spaceFlag registers --space on cmd with completion of stored space ids.
func (c *CLI) spaceFlag(cmd *cobra.Command, space *string, usage string) {
	cmd.Flags().StringVar(space, "space", "", usage)
	_ = cmd.RegisterFlagCompletionFunc("space", c.completeSpaces)
}

// completeSpaces lists the ids of stored family spaces starting with
// toComplete.
func (c *CLI) completeSpaces(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer st.Close()

	spaces, err := st.ListSpaces(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var ids []string
	for _, sp := range spaces {
		if strings.HasPrefix(sp.ID, toComplete) {
			ids = append(ids, sp.ID)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
