package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
)

// importCommand creates the import command.
func (c *CLI) importCommand() *cobra.Command {
	var space string

	cmd := &cobra.Command{
		Use:   "import <snapshot>",
		Short: "Store a snapshot as a family space",
		Long: `Store a snapshot as a family space, replacing whatever the space held.

The space id comes from --space, then from the snapshot's family_space_id.
If neither is set a new id is generated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd.Context(), args[0], space)
		},
	}

	c.spaceFlag(cmd, &space, "family space id to store the snapshot under")

	return cmd
}

func (c *CLI) runImport(ctx context.Context, path, space string) error {
	s, err := family.ReadSnapshotFile(path)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", path, err)
	}
	switch {
	case space != "":
		s = withSpace(s, space)
	case s.FamilySpaceID == "":
		s = withSpace(s, uuid.NewString())
	}

	rep := kin.Check(s)
	printIssues(rep)
	if rep.HasErrors() {
		return rep.Err()
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	prog := newProgress(ctx)
	spinner := newSpinnerWithContext(ctx, "Storing space "+s.FamilySpaceID+"...")
	spinner.Start()
	if err := st.PutSnapshot(ctx, s); err != nil {
		spinner.StopWithError("Import failed")
		return fmt.Errorf("store space %s: %w", s.FamilySpaceID, err)
	}
	spinner.Stop()
	prog.done("imported", "space", s.FamilySpaceID, "people", len(s.People))

	printSuccess("Imported %s", path)
	printKeyValue("Space", s.FamilySpaceID)
	printStats(len(s.People), len(s.Relationships), false)
	printNewline()
	printNextStep("Render", appName+" render --space "+s.FamilySpaceID)
	return nil
}

// withSpace moves s and everything in it into spaceID.
func withSpace(s family.Snapshot, spaceID string) family.Snapshot {
	s = s.Clone()
	s.FamilySpaceID = spaceID
	for i := range s.People {
		s.People[i].FamilySpaceID = spaceID
	}
	for i := range s.Relationships {
		s.Relationships[i].FamilySpaceID = spaceID
	}
	return s
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:               "export <space-id>",
		Short:             "Write a stored family space as a snapshot file",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeSpaces,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args[0], output, family.Format(format))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, format taken from its extension (default: stdout)")
	cmd.Flags().StringVar(&format, "format", string(family.FormatYAML), "stdout format: yaml or json")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, spaceID, output string, format family.Format) error {
	if err := kerrors.ValidateID("family space", spaceID); err != nil {
		return err
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.Snapshot(ctx, spaceID)
	if err != nil {
		return err
	}

	if output == "" {
		return family.WriteSnapshot(stdout, s, format)
	}
	if err := family.WriteSnapshotFile(output, s); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Exported space %s", spaceID)
	printFile(output)
	return nil
}

// spacesCommand creates the spaces command listing stored family spaces.
func (c *CLI) spacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "spaces",
		Short: "List stored family spaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSpaces(cmd.Context())
		},
	}
}

func (c *CLI) runSpaces(ctx context.Context) error {
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	spaces, err := st.ListSpaces(ctx)
	if err != nil {
		return err
	}
	if len(spaces) == 0 {
		printInfo("No family spaces stored")
		printNextStep("Import one", appName+" import family.yaml")
		return nil
	}

	t := newTable("Space", "People", "Relationships", "Updated")
	for _, sp := range spaces {
		t.Row(sp.ID, strconv.Itoa(sp.People), strconv.Itoa(sp.Relationships), sp.UpdatedAt.Local().Format("Jan 2, 2006 15:04"))
	}
	fmt.Fprintln(stdout, t.Render())
	return nil
}
