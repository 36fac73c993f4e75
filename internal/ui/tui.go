package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/plan"
	"github.com/Chili6666/iclaude-workbench/internal/task"
)

// TUIBoard is the interactive bubbletea board.
type TUIBoard struct {
	cfg     Config
	model   *boardModel
	program *tea.Program
}

// NewTUIBoard creates the interactive board.
// Returns an error if the output is not a terminal.
func NewTUIBoard(cfg Config) (*TUIBoard, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newBoardModel(cfg.Title)
	if cfg.NoColor {
		model.styles = NoColorStyles()
	}

	b := &TUIBoard{cfg: cfg, model: model}
	opts := []tea.ProgramOption{tea.WithOutput(cfg.Output), tea.WithAltScreen()}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	b.program = tea.NewProgram(model, opts...)
	return b, nil
}

// Run implements Board.
func (b *TUIBoard) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		b.program.Quit()
	}()

	_, err := b.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Send implements Board.
func (b *TUIBoard) Send(msg bridge.Message) {
	b.program.Send(bridgeMsg(msg))
}

type bridgeMsg bridge.Message

type view int

const (
	viewTasks view = iota
	viewPlans
)

// boardModel is the bubbletea model of the task board.
type boardModel struct {
	title    string
	view     view
	sessions []SessionSummary
	plans    []plan.Plan
	updated  time.Time
	loaded   bool
	offset   int
	width    int
	height   int
	quitting bool

	spinner spinner.Model
	bar     progress.Model
	styles  Styles
}

func newBoardModel(title string) *boardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow))

	bar := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return &boardModel{
		title:   title,
		spinner: s,
		bar:     bar,
		styles:  DefaultStyles(),
		width:   80,
		height:  24,
	}
}

// Init implements tea.Model.
func (m *boardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab", "t", "p":
			if m.view == viewTasks {
				m.view = viewPlans
			} else {
				m.view = viewTasks
			}
			m.offset = 0
		case "down", "j":
			m.offset++
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
		case "home", "g":
			m.offset = 0
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width / 3
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}

	case bridgeMsg:
		m.apply(bridge.Message(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *boardModel) apply(msg bridge.Message) {
	switch msg.Type {
	case bridge.TypeTasksUpdated:
		m.sessions = Summarize(msg.Tasks)
		m.loaded = true
	case bridge.TypePlansUpdated:
		m.plans = msg.Plans
	default:
		return
	}
	m.updated = time.Now()
}

// View implements tea.Model.
func (m *boardModel) View() string {
	if m.quitting {
		return ""
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var body string
	if m.view == viewTasks {
		body = m.renderTasks()
	} else {
		body = m.renderPlans(contentWidth)
	}
	body = m.scroll(body)

	panel := m.styles.Panel.Width(contentWidth).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		panel,
		m.renderStatusBar(),
	)
}

func (m *boardModel) renderHeader() string {
	title := "Workbench"
	if m.title != "" {
		title = fmt.Sprintf("Workbench • %s", m.title)
	}

	tasksTab, plansTab := m.styles.Tab, m.styles.Tab
	if m.view == viewTasks {
		tasksTab = m.styles.TabOn
	} else {
		plansTab = m.styles.TabOn
	}
	tabs := tasksTab.Render(fmt.Sprintf("Tasks (%d)", m.taskCount())) +
		plansTab.Render(fmt.Sprintf("Plans (%d)", len(m.plans)))

	return m.styles.Header.Render(title) + "  " + tabs
}

func (m *boardModel) renderTasks() string {
	if !m.loaded {
		return m.spinner.View() + " Loading tasks..."
	}
	if len(m.sessions) == 0 {
		return m.styles.Dim.Render("No tasks yet.")
	}

	var sections []string
	for _, s := range m.sessions {
		sections = append(sections, m.renderSession(s))
	}
	return strings.Join(sections, "\n\n")
}

func (m *boardModel) renderSession(s SessionSummary) string {
	head := fmt.Sprintf("%s  %s  %s",
		m.styles.Active.Render(s.ID),
		m.bar.ViewAs(s.Progress()),
		m.styles.Label.Render(fmt.Sprintf("%d/%d done", s.Completed, s.Total())))

	lines := []string{head}
	for _, t := range s.Tasks {
		lines = append(lines, m.renderTask(t))
	}
	return strings.Join(lines, "\n")
}

func (m *boardModel) renderTask(t task.Task) string {
	icon := StatusIcon(t.Status)
	label := t.Subject
	if t.Status == task.StatusInProgress {
		icon = m.spinner.View()
		if t.ActiveForm != "" {
			label = t.ActiveForm
		}
	}

	line := fmt.Sprintf("  %s %s %s", m.styles.ForStatus(t.Status).Render(icon), m.styles.Label.Render("#"+t.ID), m.styles.ForStatus(t.Status).Render(label))
	if len(t.BlockedBy) > 0 {
		line += m.styles.Warning.Render(" ⧗ " + strings.Join(t.BlockedBy, ","))
	}
	if t.Owner != "" {
		line += m.styles.Dim.Render(" @" + t.Owner)
	}
	return line
}

func (m *boardModel) renderPlans(width int) string {
	if len(m.plans) == 0 {
		return m.styles.Dim.Render("No plans yet.")
	}

	lines := make([]string, 0, len(m.plans))
	for _, p := range m.plans {
		when := time.UnixMilli(p.ModifiedAt).Format("2006-01-02 15:04")
		title := truncate(p.Title, width-len(when)-4)
		lines = append(lines, fmt.Sprintf("%s  %s", m.styles.Label.Render(when), m.styles.Active.Render(title)))
	}
	return strings.Join(lines, "\n")
}

// scroll drops the first offset lines of body, keeping at least one.
func (m *boardModel) scroll(body string) string {
	if m.offset == 0 {
		return body
	}
	lines := strings.Split(body, "\n")
	if m.offset >= len(lines) {
		m.offset = len(lines) - 1
	}
	return strings.Join(lines[m.offset:], "\n")
}

func (m *boardModel) renderStatusBar() string {
	var parts []string
	if !m.updated.IsZero() {
		parts = append(parts, "updated "+m.updated.Format("15:04:05"))
	}
	parts = append(parts, "tab switch", "↑/↓ scroll", "q quit")
	return m.styles.Dim.Render(strings.Join(parts, "  │  "))
}

func (m *boardModel) taskCount() int {
	n := 0
	for _, s := range m.sessions {
		n += s.Total()
	}
	return n
}

// truncate shortens s to at most n runes, marking the cut with "…".
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var _ Board = (*TUIBoard)(nil)
