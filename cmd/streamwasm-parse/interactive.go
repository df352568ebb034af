package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	werr "github.com/streamwasm/streamwasm/errors"
	"github.com/streamwasm/streamwasm/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateParsing modelState = iota
	stateDone
)

type interactiveModel struct {
	filename      string
	chunkSize     int
	workers       int
	refFuncStrict bool

	spinner spinner.Model
	state   modelState
	module  *wasm.Module
	err     error
}

func newInteractiveModel(filename string, chunkSize, workers int, refFuncStrict bool) *interactiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &interactiveModel{
		filename:      filename,
		chunkSize:     chunkSize,
		workers:       workers,
		refFuncStrict: refFuncStrict,
		spinner:       s,
		state:         stateParsing,
	}
}

type parsedMsg struct {
	module *wasm.Module
	err    error
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.parseModule)
}

func (m *interactiveModel) parseModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return parsedMsg{err: err}
	}
	module, err := parseChunked(context.Background(), data, m.chunkSize, m.workers, m.refFuncStrict)
	return parsedMsg{module: module, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if m.state == stateDone {
				return m, tea.Quit
			}
		}

	case parsedMsg:
		m.module = msg.module
		m.err = msg.err
		m.state = stateDone
		return m, nil
	}

	if m.state == stateParsing {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("streamwasm-parse"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateParsing:
		b.WriteString(fmt.Sprintf("%s parsing in %d-byte chunks...\n", m.spinner.View(), m.chunkSize))

	case stateDone:
		if m.err != nil {
			b.WriteString(errorStyle.Render(describeErr(m.err)))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("q / enter to exit"))
			return b.String()
		}

		mod := m.module
		rows := []struct {
			label string
			n     int
		}{
			{"Types", len(mod.Types)},
			{"Functions", len(mod.Funcs)},
			{"Tables", len(mod.Tables)},
			{"Memories", len(mod.Memories)},
			{"Globals", len(mod.Globals)},
			{"Exports", len(mod.Exports)},
			{"Elements", len(mod.Elements)},
			{"Data segments", len(mod.Data)},
		}
		for _, r := range rows {
			b.WriteString(fieldStyle.Render(r.label))
			b.WriteString(fmt.Sprintf(": %d\n", r.n))
		}
		if len(mod.Exports) > 0 {
			b.WriteString("\n")
			b.WriteString(resultStyle.Render("Exports:"))
			b.WriteString("\n")
			for _, e := range mod.Exports {
				b.WriteString(fmt.Sprintf("  %s (kind %d, idx %d)\n", e.Name, e.Kind, e.Idx))
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q / enter to exit"))
	}

	return b.String()
}

func describeErr(err error) string {
	if e, ok := err.(*werr.Error); ok {
		return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Kind, e.Detail)
	}
	return err.Error()
}

func runInteractive(filename string, chunkSize, workers int, refFuncStrict bool) error {
	p := tea.NewProgram(newInteractiveModel(filename, chunkSize, workers, refFuncStrict), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
