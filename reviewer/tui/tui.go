// Package tui is the terminal reviewer: one full-screen prompt per draft
// table. It supports confirm, reject (with a reason), merge into another
// record, and skip; cell editing belongs to the web editor.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
)

// Reviewer implements reviewer.Port with an interactive terminal prompt.
// Use it with a single worker: terminal sessions do not interleave.
type Reviewer struct{}

// New creates a terminal Reviewer.
func New() *Reviewer {
	return &Reviewer{}
}

// Resolve implements reviewer.Port. It blocks in a bubbletea session
// until the operator decides.
func (r *Reviewer) Resolve(ctx context.Context, t reviewer.Table) (reviewer.Decision, error) {
	final, err := tea.NewProgram(newModel(t), tea.WithContext(ctx)).Run()
	if err != nil {
		return reviewer.Decision{}, fmt.Errorf("%w: %v", reviewer.ErrSession, err)
	}
	m, ok := final.(model)
	if !ok || m.aborted {
		return reviewer.Decision{}, fmt.Errorf("%w: review aborted", reviewer.ErrSession)
	}
	return m.decision, nil
}

// mode is the prompt state: choosing a disposition, or typing extra input.
type mode int

const (
	modeChoose mode = iota
	modeReason
	modeMergeTarget
	modeDone
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = cellStyle.Bold(true).Underline(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tableStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

type model struct {
	table     reviewer.Table
	mode      mode
	input     string
	hasHeader bool
	decision  reviewer.Decision
	aborted   bool
	errMsg    string
}

func newModel(t reviewer.Table) model {
	return model{table: t}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case modeChoose:
		return m.updateChoose(key)
	case modeReason, modeMergeTarget:
		return m.updateInput(key)
	}
	return m, nil
}

func (m model) updateChoose(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "c":
		m.decision = reviewer.Decision{Status: correction.StatusConfirmed, HasHeader: m.hasHeader}
		m.mode = modeDone
		return m, tea.Quit
	case "h":
		m.hasHeader = !m.hasHeader
		return m, nil
	case "r":
		m.mode = modeReason
		m.input = ""
		return m, nil
	case "m":
		if len(m.table.MergeTargets) == 0 {
			m.errMsg = "no merge targets in this file"
			return m, nil
		}
		m.mode = modeMergeTarget
		m.input = ""
		return m, nil
	case "s":
		m.decision = reviewer.Decision{Status: correction.StatusUndefined}
		m.mode = modeDone
		return m, tea.Quit
	case "q", "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateInput(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter:
		if m.mode == modeReason {
			m.decision = reviewer.Decision{
				Status:    correction.StatusRejected,
				Reason:    strings.TrimSpace(m.input),
				HasHeader: m.hasHeader,
			}
			m.mode = modeDone
			return m, tea.Quit
		}
		target, ok := m.resolveTarget(strings.TrimSpace(m.input))
		if !ok {
			m.errMsg = fmt.Sprintf("%q is not a merge target", strings.TrimSpace(m.input))
			m.mode = modeChoose
			return m, nil
		}
		m.decision = reviewer.Decision{
			Status:     correction.StatusMerged,
			MergedInto: target,
			HasHeader:  m.hasHeader,
		}
		m.mode = modeDone
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeChoose
		return m, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeyCtrlC:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(key.Runes)
		return m, nil
	}
	return m, nil
}

// resolveTarget maps typed input (full or short hash) to the full hash.
func (m model) resolveTarget(target string) (string, bool) {
	for _, h := range m.table.MergeTargets {
		if h == target || shortHash(h) == target {
			return h, true
		}
	}
	return "", false
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Review table %s — law %s, version %s",
		shortHash(m.table.Hash), m.table.LawID, m.table.Version)))
	b.WriteString("\n\n")
	b.WriteString(tableStyle.Render(renderCells(m.table.Cells)))
	b.WriteString("\n")

	if len(m.table.Pages) > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("pages: %v", m.table.Pages)))
		b.WriteString("\n")
	}
	if m.errMsg != "" {
		b.WriteString(promptStyle.Render(m.errMsg))
		b.WriteString("\n")
	}

	switch m.mode {
	case modeReason:
		b.WriteString(promptStyle.Render("rejection reason: " + m.input + "▌"))
	case modeMergeTarget:
		b.WriteString(promptStyle.Render(fmt.Sprintf("merge into (%s): %s▌",
			strings.Join(shortHashes(m.table.MergeTargets), ", "), m.input)))
	default:
		header := "off"
		if m.hasHeader {
			header = "on"
		}
		b.WriteString(helpStyle.Render(fmt.Sprintf(
			"[c]onfirm  [r]eject  [m]erge  [s]kip  [h]eader row: %s  [q]uit", header)))
	}
	b.WriteString("\n")
	return b.String()
}

func renderCells(cells [][]string) string {
	widths := columnWidths(cells)
	var rows []string
	for i, row := range cells {
		var cols []string
		for j, text := range row {
			style := cellStyle
			if i == 0 {
				style = headerStyle
			}
			cols = append(cols, style.Width(widths[j]+2).Render(text))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func columnWidths(cells [][]string) []int {
	var widths []int
	for _, row := range cells {
		for j, text := range row {
			if j >= len(widths) {
				widths = append(widths, 0)
			}
			if w := lipgloss.Width(text); w > widths[j] {
				widths[j] = w
			}
		}
	}
	return widths
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

func shortHashes(hs []string) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = shortHash(h)
	}
	return out
}
