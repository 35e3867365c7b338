package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// browseCommand creates the browse command: an interactive walk through a
// family.
func (c *CLI) browseCommand() *cobra.Command {
	var space string

	cmd := &cobra.Command{
		Use:   "browse [snapshot]",
		Short: "Walk through a family interactively",
		Long: `Walk through a family interactively.

Move with the arrow keys (or j/k). Jump to a parent with p, a child with c,
the spouse with s, and back with b.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFromArgs(args, space)
			if err != nil {
				return err
			}
			return c.runBrowse(cmd.Context(), src)
		},
	}

	c.spaceFlag(cmd, &space, "browse a stored family space")

	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, src source) error {
	s, err := c.loadSnapshot(ctx, src)
	if err != nil {
		return err
	}
	if len(s.People) == 0 {
		printInfo("%s has no people", src)
		return nil
	}

	_, err = tea.NewProgram(NewBrowseModel(s), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

// =============================================================================
// BrowseModel
// =============================================================================

// BrowseModel is the bubbletea model for browsing a family: a scrolling
// list of people and the relatives of the one under the cursor.
type BrowseModel struct {
	Title  string
	Cursor int
	Height int
	Offset int

	idx     *kin.Index
	people  []family.Person
	pos     map[string]int
	history []int
}

// NewBrowseModel creates a browse model over s.
func NewBrowseModel(s family.Snapshot) BrowseModel {
	idx := kin.NewIndex(s.People, s.Relationships)
	people := idx.People()
	pos := make(map[string]int, len(people))
	for i, p := range people {
		pos[p.ID] = i
	}
	title := s.FamilySpaceID
	if title == "" {
		title = "Family"
	}
	return BrowseModel{Title: title, Height: 12, idx: idx, people: people, pos: pos}
}

// Selected returns the person under the cursor.
func (m BrowseModel) Selected() (family.Person, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.people) {
		return family.Person{}, false
	}
	return m.people[m.Cursor], true
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m = m.moveTo(m.Cursor - 1)
		case "down", "j":
			m = m.moveTo(m.Cursor + 1)
		case "p":
			m = m.jump(firstID(m.idx.ParentsOf(m.currentID())))
		case "c":
			m = m.jump(firstID(m.idx.ChildrenOf(m.currentID())))
		case "s":
			m = m.jump(m.idx.SpouseIDOf(m.currentID()))
		case "b", "backspace":
			if n := len(m.history); n > 0 {
				prev := m.history[n-1]
				m.history = m.history[:n-1]
				m = m.moveTo(prev)
			}
		}
	case tea.WindowSizeMsg:
		// Leave room for the header and the relatives panel.
		m.Height = max(msg.Height/2-4, 5)
		m = m.moveTo(m.Cursor)
	}
	return m, nil
}

func (m BrowseModel) currentID() string {
	if p, ok := m.Selected(); ok {
		return p.ID
	}
	return ""
}

// jump moves to id and remembers where it came from. Unknown ids are a
// no-op.
func (m BrowseModel) jump(id string) BrowseModel {
	i, ok := m.pos[id]
	if !ok || i == m.Cursor {
		return m
	}
	m.history = append(m.history, m.Cursor)
	return m.moveTo(i)
}

// moveTo places the cursor at i, clamped to the list, and scrolls it into
// view.
func (m BrowseModel) moveTo(i int) BrowseModel {
	m.Cursor = min(max(i, 0), len(m.people)-1)
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
	return m
}

func firstID(people []family.Person) string {
	if len(people) == 0 {
		return ""
	}
	return people[0].ID
}

func (m BrowseModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  p parent  c child  s spouse  b back  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.people))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		p := m.people[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, p.DisplayName(), string(p.Status), p.ID})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Name", "Status", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			if col == 3 {
				return listDimStyle
			}
			return lipgloss.NewStyle()
		})
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.people))))
	b.WriteString("\n\n")

	if rel, ok := m.idx.Relatives(m.currentID()); ok {
		if len(rel.Parents)+len(rel.Children)+len(rel.Siblings) == 0 && rel.Spouse == nil {
			b.WriteString(listDimStyle.Render("  no recorded relatives"))
		} else {
			b.WriteString(relativesTable(rel))
		}
		b.WriteString("\n")
	}

	return b.String()
}
