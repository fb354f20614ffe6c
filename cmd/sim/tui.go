package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"signalcode-go/script"
	"signalcode-go/services/signal"
	"signalcode-go/types"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Drive the controller interactively",
	Long: `tui shows both signal heads as the renderer drives them.

Keys: 1-4 raise primary-through, primary-solo, secondary-through,
secondary-solo requests; space steps one tick on a manual clock; r resets;
: opens the command line (script syntax); q quits.`,
	RunE: runTUI,
}

var tuiManual bool

func init() {
	tuiCmd.Flags().BoolVar(&tuiManual, "manual", false, "step ticks by hand")
	rootCmd.AddCommand(tuiCmd)
}

// lampSink records the last aspect shown per group; the renderer writes
// from its own goroutine.
type lampSink struct {
	mu     sync.Mutex
	shown  [2]signal.Aspect
	frames uint64
}

func (l *lampSink) Show(g types.Group, a signal.Aspect) error {
	l.mu.Lock()
	l.shown[g] = a
	l.frames++
	l.mu.Unlock()
	return nil
}

func (l *lampSink) Blank() error { return nil }

func (l *lampSink) load() ([2]signal.Aspect, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shown, l.frames
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg := LoadConfig()
	cfg.Manual = cfg.Manual || tuiManual
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sink := &lampSink{}
	st, err := startStack(ctx, cfg, signal.WithLamps(sink, false))
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	p := tea.NewProgram(newModel(ctx, st.runner, sink, cfg.Manual), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// ---- Model ----

const historyLen = 8

type refreshMsg time.Time

type snapshotMsg struct {
	st  types.SignalState
	err error
}

type execMsg struct {
	line string
	res  string
	err  error
}

type model struct {
	ctx    context.Context
	runner *script.Runner
	lamps  *lampSink
	manual bool

	input   textinput.Model
	editing bool

	state   types.SignalState
	aspects [2]signal.Aspect
	history []string
	errMsg  string
	width   int
}

func newModel(ctx context.Context, r *script.Runner, lamps *lampSink, manual bool) model {
	ti := textinput.New()
	ti.Placeholder = "expect state PrimaryThrough steady"
	ti.CharLimit = 128
	ti.Width = 48
	return model{ctx: ctx, runner: r, lamps: lamps, manual: manual, input: ti}
}

func refresh() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m model) snapshot() tea.Cmd {
	return func() tea.Msg {
		st, err := m.runner.Snapshot(m.ctx)
		return snapshotMsg{st: st, err: err}
	}
}

func (m model) exec(line string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.runner.Exec(m.ctx, line)
		return execMsg{line: line, res: res, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(refresh(), m.snapshot())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.aspects, _ = m.lamps.load()
		return m, tea.Batch(refresh(), m.snapshot())

	case snapshotMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.state = msg.st
		return m, nil

	case execMsg:
		entry := "> " + msg.line
		if msg.err != nil {
			entry += "  ✗ " + msg.err.Error()
		} else if msg.res != "" {
			entry += "  " + msg.res
		}
		m.history = append(m.history, entry)
		if len(m.history) > historyLen {
			m.history = m.history[len(m.history)-historyLen:]
		}
		return m, m.snapshot()

	case tea.KeyMsg:
		m.errMsg = ""
		if m.editing {
			return m.handleEditingKey(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			return m, m.exec("sense primary-through")
		case "2":
			return m, m.exec("sense primary-solo")
		case "3":
			return m, m.exec("sense secondary-through")
		case "4":
			return m, m.exec("sense secondary-solo")
		case " ", "t":
			if !m.manual {
				m.errMsg = "clock is running; start with --manual to step"
				return m, nil
			}
			return m, m.exec("tick")
		case "r":
			return m, m.exec("reset")
		case ":":
			m.editing = true
			m.input.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}

func (m model) handleEditingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		if line == "" {
			return m, nil
		}
		return m, m.exec(line)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ---- View ----

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5E5E5"))
	headStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).
			BorderForeground(lipgloss.Color("#5C5C5C"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7A7A7A"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))

	lampOff    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))
	lampRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3B30")).Bold(true)
	lampYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00")).Bold(true)
	lampGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("#34C759")).Bold(true)
)

func lamp(on bool, style lipgloss.Style, glyph string) string {
	if !on {
		return lampOff.Render(glyph)
	}
	return style.Render(glyph)
}

func renderHead(name string, a signal.Aspect, c types.Color) string {
	body := strings.Join([]string{
		lamp(a.Red, lampRed, "●"),
		lamp(a.Yellow, lampYellow, "●"),
		lamp(a.Green, lampGreen, "●"),
		lamp(a.Arrow, lampGreen, "←"),
	}, "\n")
	return headStyle.Render(titleStyle.Render(name) + "\n" + body + "\n" + mutedStyle.Render(c.String()))
}

func pendingNames(mask uint8) string {
	var names []string
	for m := types.Movement(0); m < types.NumMovements; m++ {
		if mask&m.Bit() != 0 {
			names = append(names, m.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func (m model) View() string {
	var b strings.Builder

	heads := lipgloss.JoinHorizontal(lipgloss.Top,
		renderHead("primary", m.aspects[types.GroupPrimary], m.state.Primary),
		"  ",
		renderHead("secondary", m.aspects[types.GroupSecondary], m.state.Secondary),
	)
	b.WriteString(heads)
	b.WriteString("\n\n")

	clock := "realtime"
	if m.manual {
		clock = "manual"
	}
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(script.Describe(m.state)), mutedStyle.Render("["+clock+"]"))
	fmt.Fprintf(&b, "pending: %s\n\n", pendingNames(m.state.Pending))

	for _, h := range m.history {
		b.WriteString(mutedStyle.Render(h))
		b.WriteString("\n")
	}
	if m.errMsg != "" {
		b.WriteString(errStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.editing {
		b.WriteString(":" + m.input.View())
	} else {
		b.WriteString(mutedStyle.Render("1-4 sense · space tick · r reset · : command · q quit"))
	}
	return b.String()
}
