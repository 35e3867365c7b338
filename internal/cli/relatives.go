package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
)

// relativesCommand creates the relatives command.
func (c *CLI) relativesCommand() *cobra.Command {
	var (
		space  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "relatives [snapshot] <person-id>",
		Short: "List the parents, children, spouse and siblings of a person",
		Example: `  knit relatives family.yaml ann
  knit relatives --space smiths ann`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			personID := args[len(args)-1]
			src, err := sourceFromArgs(args[:len(args)-1], space)
			if err != nil {
				return err
			}
			return c.runRelatives(cmd.Context(), src, personID, asJSON)
		},
	}

	c.spaceFlag(cmd, &space, "load the snapshot of a stored family space")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the relatives as JSON")

	return cmd
}

func (c *CLI) runRelatives(ctx context.Context, src source, personID string, asJSON bool) error {
	s, err := c.loadSnapshot(ctx, src)
	if err != nil {
		return err
	}

	rel, ok := kin.NewIndex(s.People, s.Relationships).Relatives(personID)
	if !ok {
		return kerrors.New(kerrors.ErrCodePersonNotFound, "person %q not found in %s", personID, src)
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rel)
	}

	fmt.Fprintln(stdout, StyleTitle.Render(rel.Person.DisplayName())+" "+StyleDim.Render(rel.Person.ID))
	fmt.Fprintln(stdout, relativesTable(rel))
	return nil
}

// relativesTable renders one row per relative, grouped by relation.
func relativesTable(rel kin.Relatives) string {
	t := newTable("Relation", "ID", "Name", "Status")
	add := func(relation string, people ...family.Person) {
		for _, p := range people {
			t.Row(relation, p.ID, p.DisplayName(), renderStatus(p.Status))
		}
	}
	add("parent", rel.Parents...)
	if rel.Spouse != nil {
		add("spouse", *rel.Spouse)
	}
	add("sibling", rel.Siblings...)
	add("child", rel.Children...)
	return t.Render()
}
