package report

import (
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"
)

const gridColumns = 2

// Escaper escapes a field value for the markup dialect of a transport.
type Escaper func(string) string

// PlainText leaves values untouched.
func PlainText(s string) string {
	return s
}

type Button struct {
	Label   string
	Command *ToggleCommand
}

// Renderer turns a snapshot and its visibility state into report text and
// a grid of toggle buttons. It keeps no state between calls.
type Renderer struct {
	catalog *Catalog
	escape  Escaper
}

func NewRenderer(catalog *Catalog, escape Escaper) *Renderer {
	if escape == nil {
		escape = PlainText
	}
	return &Renderer{
		catalog: catalog,
		escape:  escape,
	}
}

func (r *Renderer) Catalog() *Catalog {
	return r.catalog
}

// Render joins the visible sections in registration order, each followed
// by a line break. A missing field fails the whole render.
func (r *Renderer) Render(snapshot *Snapshot, state *State) (string, error) {
	var builder strings.Builder

	for _, name := range state.VisibleSections() {
		text, err := snapshot.Format(r.catalog, name, r.escape)
		if err != nil {
			return "", fmt.Errorf("failed to format section %s: %w", name, err)
		}

		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// ToggleGrid builds one button per section except location, which is
// always shown. Buttons are laid out two per row starting from the end of
// the registration order, so an odd leftover ends up alone in the first row.
func (r *Renderer) ToggleGrid(snapshot *Snapshot, state *State) [][]Button {
	toggleable := pie.Filter(state.AllSections(), func(v SectionVisibility) bool {
		return v.Name != SectionLocation
	})

	buttons := pie.Map(toggleable, func(v SectionVisibility) Button {
		verb := "Show"
		if v.Visible {
			verb = "Hide"
		}

		return Button{
			Label:   fmt.Sprintf("%s %s", verb, r.catalog.FriendlyLabel(v.Name)),
			Command: NewToggleCommand(snapshot, state, v.Name),
		}
	})

	var rows [][]Button
	for end := len(buttons); end > 0; end -= gridColumns {
		start := max(end-gridColumns, 0)
		rows = append(rows, buttons[start:end])
	}

	return pie.Reverse(rows)
}
