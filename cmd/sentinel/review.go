package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"cookiesentinel/internal/config"
	"cookiesentinel/internal/review"
	"cookiesentinel/internal/store"
)

// =============================================================================
// REVIEW QUEUE TUI
// =============================================================================

var (
	reviewTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	reviewHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	reviewDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Padding(0, 1)
	reviewErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
)

type reviewModel struct {
	queue *review.Queue
	items []store.ReviewItem
	table table.Model

	status string
	errMsg string
}

func newReviewModel(queue *review.Queue) (*reviewModel, error) {
	m := &reviewModel{queue: queue}

	columns := []table.Column{
		{Title: "Cookie", Width: 24},
		{Title: "Domain", Width: 28},
		{Title: "Guess", Width: 16},
		{Title: "Conf", Width: 5},
		{Title: "Age", Width: 8},
	}
	m.table = table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	m.table.SetStyles(styles)

	if err := m.refresh(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *reviewModel) refresh() error {
	items, err := m.queue.Pending()
	if err != nil {
		return err
	}
	m.items = items

	rows := make([]table.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, table.Row{
			item.Name,
			item.Domain,
			item.Category,
			strconv.FormatFloat(item.Confidence, 'f', 2, 64),
			shortAge(item.CreatedAt),
		})
	}
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
	return nil
}

func shortAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	}
}

func (m *reviewModel) Init() tea.Cmd { return nil }

func (m *reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "d":
			m.decide(store.DecisionDelete)
			return m, nil
		case "a":
			m.decide(store.DecisionKeep)
			return m, nil
		case "r":
			m.errMsg = ""
			if err := m.refresh(); err != nil {
				m.errMsg = err.Error()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *reviewModel) decide(verdict store.Decision) {
	m.errMsg = ""
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.items) {
		return
	}
	item := m.items[cursor]

	if _, err := m.queue.Decide(context.Background(), item.ID, verdict); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.status = fmt.Sprintf("%s@%s: %s", item.Name, item.Domain, verdict)
	if err := m.refresh(); err != nil {
		m.errMsg = err.Error()
	}
}

func (m *reviewModel) View() string {
	out := reviewTitleStyle.Render(fmt.Sprintf("Review queue (%d pending)", len(m.items))) + "\n"

	if len(m.items) == 0 {
		out += reviewDoneStyle.Render("Nothing waiting for review.") + "\n"
	} else {
		out += m.table.View() + "\n"
	}

	if m.status != "" {
		out += reviewDoneStyle.Render(m.status) + "\n"
	}
	if m.errMsg != "" {
		out += reviewErrStyle.Render(m.errMsg) + "\n"
	}

	out += reviewHelpStyle.Render("d delete · a allow · r refresh · q quit")
	return out
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	model, err := newReviewModel(review.New(st, nil))
	if err != nil {
		return err
	}

	_, err = tea.NewProgram(model).Run()
	return err
}
