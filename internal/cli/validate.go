package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var space string

	cmd := &cobra.Command{
		Use:   "validate [snapshot]",
		Short: "Check a snapshot for broken references and cycles",
		Long: `Check a snapshot for broken references and cycles.

Errors (missing ids, unknown statuses, relationships pointing at nobody) make
the command fail. Warnings (duplicate relationships, more than two parents,
parent/child cycles) are reported; layout still works with them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFromArgs(args, space)
			if err != nil {
				return err
			}
			return c.runValidate(cmd.Context(), src)
		},
	}

	c.spaceFlag(cmd, &space, "check the snapshot of a stored family space")

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, src source) error {
	s, err := c.loadSnapshot(ctx, src)
	if err != nil {
		return err
	}

	rep := kin.Check(s)
	printIssues(rep)
	if rep.HasErrors() {
		return rep.Err()
	}

	if n := len(rep.Warnings()); n > 0 {
		printSuccess("%s is usable with %s", src, plural(n, "warning", "warnings"))
	} else {
		printSuccess("%s is valid", src)
	}
	printStats(len(s.People), len(s.Relationships), false)
	return nil
}

func printIssues(rep family.Report) {
	for _, issue := range rep.Issues {
		switch issue.Severity {
		case family.SeverityError:
			printError("%s: %s", issue.Subject, issue.Message)
		default:
			printWarning("%s: %s", issue.Subject, issue.Message)
		}
	}
}
