// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"usbsim/internal/firmware"
	"usbsim/internal/hoststat"
	"usbsim/internal/scenario"
	"usbsim/internal/trace"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#00FFFF")).
			Bold(true).
			Padding(0, 2).
			Width(60)

	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

type statSnapshotMsg hoststat.Snapshot
type scenarioDoneMsg struct{ err error }

// dashboardModel is the bubbletea model for a single scenario run. It has
// no interactive menu; it starts the scenario on Init and renders the
// outcome once scenarioDoneMsg arrives.
type dashboardModel struct {
	name     string
	sink     trace.Sink
	firmware *firmware.Image

	sp    spinner.Model
	stats hoststat.Snapshot

	done bool
	err  error
}

func newDashboardModel(name string, sink trace.Sink, fw *firmware.Image) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle
	return dashboardModel{name: name, sink: sink, firmware: fw, sp: sp}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.sp.Tick, statTickCmd(), runScenarioCmd(m.name, m.sink))
}

func statTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		snap, err := hoststat.Read()
		if err != nil {
			return nil
		}
		return statSnapshotMsg(snap)
	})
}

func runScenarioCmd(name string, sink trace.Sink) tea.Cmd {
	return func() tea.Msg {
		err := scenario.Execute(name, sink)
		return scenarioDoneMsg{err: err}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q", "enter":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case statSnapshotMsg:
		m.stats = hoststat.Snapshot(msg)
		return m, statTickCmd()

	case scenarioDoneMsg:
		m.done = true
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("usbsim scenario dashboard"))
	b.WriteString("\n\n")

	if m.firmware != nil {
		fmt.Fprintf(&b, "firmware digest: %x\n\n", m.firmware.Digest[:8])
	}

	switch {
	case !m.done:
		fmt.Fprintf(&b, "%s running %s\n", m.sp.View(), m.name)
	case m.err == nil:
		b.WriteString(passStyle.Render("PASS ") + m.name + "\n")
	default:
		b.WriteString(failStyle.Render("FAIL ") + m.name + "\n")
		fmt.Fprintf(&b, "%s\n", m.err)
	}

	if m.stats.GoVersion != "" {
		b.WriteString("\n" + dimStyle.Render(m.stats.String()) + "\n")
	}

	if m.done {
		b.WriteString("\n" + dimStyle.Render("press q to quit") + "\n")
	}

	return b.String()
}
