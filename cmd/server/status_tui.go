package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	"github.com/cliforge/codeassist-gateway/internal/config"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).MarginBottom(1)
	statusErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	statusHelpStyle  = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

// runStatusDashboard renders a one-shot bubbletea dashboard of the running
// server's credential pool by polling its own /admin/status endpoint, then
// exits on the first keypress.
func runStatusDashboard(cfg *config.Config) error {
	_, err := tea.NewProgram(newStatusModel(cfg)).Run()
	return err
}

type statusFetchedMsg struct {
	rows []table.Row
	err  error
}

type statusModel struct {
	cfg     *config.Config
	table   table.Model
	err     error
	fetched bool
}

func newStatusModel(cfg *config.Config) statusModel {
	columns := []table.Column{
		{Title: "Credential", Width: 30},
		{Title: "Enabled", Width: 8},
		{Title: "Has Quota", Width: 10},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(false), table.WithHeight(12))
	return statusModel{cfg: cfg, table: t}
}

func (m statusModel) Init() tea.Cmd {
	return m.fetch
}

func (m statusModel) fetch() tea.Msg {
	url := fmt.Sprintf("http://127.0.0.1:%d/admin/status", m.cfg.Port)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return statusFetchedMsg{err: err}
	}
	if len(m.cfg.APIKeys) > 0 {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKeys[0])
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return statusFetchedMsg{err: fmt.Errorf("is the server running on port %d? %w", m.cfg.Port, err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return statusFetchedMsg{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return statusFetchedMsg{err: fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, body)}
	}

	var rows []table.Row
	gjson.GetBytes(body, "credentials").ForEach(func(_, cred gjson.Result) bool {
		rows = append(rows, table.Row{
			cred.Get("email").String(),
			fmt.Sprintf("%v", cred.Get("enabled").Bool()),
			fmt.Sprintf("%v", cred.Get("has_quota").Bool()),
		})
		return true
	})
	return statusFetchedMsg{rows: rows}
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusFetchedMsg:
		m.fetched = true
		m.err = msg.err
		if msg.err == nil {
			m.table.SetRows(msg.rows)
		}
		return m, nil
	case tea.KeyMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m statusModel) View() string {
	if m.err != nil {
		return statusTitleStyle.Render("codeassist-gateway status") + "\n" +
			statusErrStyle.Render(m.err.Error()) +
			statusHelpStyle.Render("\npress any key to exit")
	}
	if !m.fetched {
		return statusTitleStyle.Render("codeassist-gateway status") + "\nfetching...\n"
	}
	return statusTitleStyle.Render("codeassist-gateway credential pool") + "\n" +
		m.table.View() +
		statusHelpStyle.Render("\npress any key to exit")
}
