package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/caravan-trail/internal/engine"
	"github.com/tatianab/caravan-trail/internal/models"
)

// ChronicleSource lists recorded runs. models.ChronicleStore implements it.
type ChronicleSource interface {
	List() ([]string, error)
	Latest() (*models.Chronicle, error)
}

// Info is context shown on the title screen. Chronicles may be nil.
type Info struct {
	Offline    bool
	Chronicles ChronicleSource
}

type model struct {
	engine   *engine.Engine
	updates  <-chan engine.Update
	info     Info
	pastRuns int
	latest   *models.Chronicle
	session  models.Session
	signal   engine.Signal
	flash    string
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

var (
	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5F5F87")).
			Padding(0, 1)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Bold(true)

	setbackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	reprieveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87D787")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
)

var statusStyles = map[models.Status]lipgloss.Style{
	models.StatusHealthy:  lipgloss.NewStyle().Foreground(lipgloss.Color("#87D787")),
	models.StatusInjured:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
	models.StatusStarving: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8700")),
	models.StatusDead:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Strikethrough(true),
}

func NewModel(eng *engine.Engine, updates <-chan engine.Update, info Info) model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))

	m := model{
		engine:   eng,
		updates:  updates,
		info:     info,
		session:  eng.Snapshot(),
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
	m.loadChronicles()
	return m
}

// loadChronicles rereads the record of past runs. Read errors keep the
// previous figures.
func (m *model) loadChronicles() {
	src := m.info.Chronicles
	if src == nil {
		return
	}
	runs, err := src.List()
	if err != nil {
		return
	}
	m.pastRuns = len(runs)
	if latest, err := src.Latest(); err == nil {
		m.latest = latest
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

type updateMsg engine.Update

type intentDoneMsg struct {
	err error
}

func waitForUpdate(ch <-chan engine.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func intent(f func() error) tea.Cmd {
	return func() tea.Msg {
		return intentDoneMsg{err: f()}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.6)
		m.viewport.Height = max(msg.Height-16, 5)
		m.refreshLog()
		return m, nil

	case updateMsg:
		m.session = msg.Session
		if msg.Signal != engine.SignalNone {
			m.signal = msg.Signal
		}
		if msg.Signal == engine.SignalGameOver || msg.Signal == engine.SignalVictory {
			m.loadChronicles()
		}
		m.refreshLog()
		return m, waitForUpdate(m.updates)

	case intentDoneMsg:
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, engine.ErrBusy):
			m.flash = "The caravan is still dealing with the last event."
		case errors.Is(msg.err, engine.ErrInvalidPhase):
			m.flash = "That is not possible right now."
		default:
			m.flash = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "esc", "q":
		return m, tea.Quit
	case "r":
		m.flash = ""
		m.signal = engine.SignalNone
		return m, intent(func() error {
			m.engine.ResetSession()
			return nil
		})
	case "enter", " ":
		m.flash = ""
		return m, m.primaryIntent()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		ev := m.session.CurrentEvent
		if m.session.Phase != models.PhaseEventDecision || ev == nil {
			return m, nil
		}
		i := int(key[0] - '1')
		if i >= len(ev.Choices) {
			return m, nil
		}
		m.flash = ""
		id := ev.Choices[i].ID
		return m, intent(func() error {
			return m.engine.ChooseOption(context.Background(), id)
		})
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// primaryIntent maps the enter key to the one intent the phase accepts.
func (m model) primaryIntent() tea.Cmd {
	switch {
	case m.session.Phase == models.PhaseMenu, m.session.Phase.IsTerminal():
		return intent(m.engine.StartSession)
	case m.session.Phase == models.PhaseTravel:
		return intent(func() error {
			return m.engine.AdvanceTurn(context.Background())
		})
	case m.session.Phase == models.PhaseEventResolution:
		return intent(m.engine.AcknowledgeResolution)
	}
	return nil
}

func (m *model) refreshLog() {
	width := m.viewport.Width
	lines := make([]string, len(m.session.Logs))
	for i, l := range m.session.Logs {
		lines[i] = logStyle.Width(width).Render(l)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if m.session.Phase == models.PhaseMenu {
		return "\n" + m.renderMenu() + "\n"
	}

	mainView := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		m.renderState(),
	)

	parts := []string{mainView, "", m.renderPhase()}
	if m.flash != "" {
		parts = append(parts, warnStyle.Render(m.flash))
	}
	parts = append(parts, helpStyle.Render(m.help()))

	return "\n" + lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m model) renderMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CARAVAN TRAIL") + "\n\n")
	b.WriteString(fmt.Sprintf("Lead your crew %d km across a dying world to the escape ship.\n\n", m.session.DistanceTotal))
	if m.info.Offline {
		b.WriteString(warnStyle.Render("No narrator credentials found. Every encounter will be a static storm.") + "\n\n")
	}
	if m.pastRuns > 0 {
		b.WriteString(fmt.Sprintf("Chronicles on record: %d\n", m.pastRuns))
		if c := m.latest; c != nil {
			outcome := "lost"
			if c.Outcome == models.PhaseVictory {
				outcome = "escaped"
			}
			b.WriteString(fmt.Sprintf("Last caravan %s on day %d with %d survivors, %d/%d km.\n", outcome, c.Days, c.Survivors, c.Distance, c.DistanceTotal))
		}
		b.WriteString("\n")
	}
	if m.flash != "" {
		b.WriteString(warnStyle.Render(m.flash) + "\n\n")
	}
	b.WriteString(helpStyle.Render("Press Enter to set out. q to quit."))
	return b.String()
}

func (m model) renderState() string {
	s := m.session

	journey := titleStyle.Render("JOURNEY") + "\n" +
		fmt.Sprintf("Day %d\n%s\n%d/%d km, %d to go\n\n", s.Day, s.Biome, s.DistanceTraveled, s.DistanceTotal, s.DistanceRemaining())

	supplies := titleStyle.Render("SUPPLIES") + "\n" +
		fmt.Sprintf("Food: %.1f kg\nMood: %d/100\n\n", s.Food, s.Mood)

	crew := titleStyle.Render("CREW") + "\n"
	for _, c := range s.Crew {
		st, ok := statusStyles[c.Status]
		if !ok {
			st = lipgloss.NewStyle()
		}
		crew += fmt.Sprintf("%-6s %-8s %s\n", c.Name, c.Role, st.Render(string(c.Status)))
	}

	width := max(m.width-m.viewport.Width-4, 20)
	return stateStyle.Width(width).Height(m.viewport.Height).Render(journey + supplies + crew)
}

func (m model) renderPhase() string {
	s := m.session
	width := max(m.width-4, 40)

	if s.Pending {
		return panelStyle.Width(width).Render(m.spinner.View() + " The road ahead shifts...")
	}

	var body string
	switch s.Phase {
	case models.PhaseTravel:
		body = "The caravan rests by the wagons. Press Enter to travel on."

	case models.PhaseEventDecision:
		ev := s.CurrentEvent
		if ev == nil {
			break
		}
		var b strings.Builder
		b.WriteString(titleStyle.Render(ev.Title) + "\n")
		b.WriteString(ev.Description + "\n\n")
		for i, c := range ev.Choices {
			b.WriteString(fmt.Sprintf("%s %s  %s\n",
				choiceStyle.Render(fmt.Sprintf("[%d]", i+1)),
				c.Text,
				helpStyle.Render(fmt.Sprintf("(%s, %s)", c.Type, c.RiskLabel)),
			))
		}
		body = b.String()

	case models.PhaseEventResolution:
		r := s.LastResolution
		if r == nil {
			break
		}
		style := reprieveStyle
		if m.signal == engine.SignalSetback {
			style = setbackStyle
		}
		body = style.Render(r.OutcomeText) + "\n\n" +
			fmt.Sprintf("Food %+.1f kg  Mood %+d  Distance %+d km", r.FoodChange, r.MoodChange, r.DistanceChange)

	case models.PhaseGameOver:
		body = setbackStyle.Render("The last of the crew falls silent. The trail keeps their names.") +
			fmt.Sprintf("\nDay %d, %d km from the ship.", s.Day, s.DistanceRemaining())

	case models.PhaseVictory:
		body = reprieveStyle.Render("The escape ship looms over the horizon. You made it.") +
			fmt.Sprintf("\nDay %d, %d of %d crew aboard.", s.Day, s.AliveCount(), len(s.Crew))
	}
	return panelStyle.Width(width).Render(body)
}

func (m model) help() string {
	switch m.session.Phase {
	case models.PhaseEventDecision:
		return "1-9: choose, r: abandon run, q: quit"
	case models.PhaseGameOver, models.PhaseVictory:
		return "Enter: new run, r: menu, q: quit"
	}
	return "Enter: continue, up/down: scroll log, r: abandon run, q: quit"
}

// Run drives the engine from a full-screen terminal UI until the player quits.
func Run(eng *engine.Engine, info Info) error {
	updates, cancel := eng.Subscribe()
	defer cancel()

	p := tea.NewProgram(NewModel(eng, updates, info), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
