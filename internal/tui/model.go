// Package tui is the terminal rendition of the dashboard: a bubbletea program over the same
// dashboard state machine and view models the web service uses.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/models"
	"github.com/kjstillabower/nimbus/internal/validation"
	"github.com/kjstillabower/nimbus/internal/view"
)

const helpText = "enter search • tab °C/°F • esc quit"

// Options configures a Model.
type Options struct {
	// SearchTimeout bounds one current+forecast sequence. Zero means no deadline.
	SearchTimeout     time.Duration
	LocationMinLength int
	LocationMaxLength int
	Styles            *Styles
	Now               func() time.Time
}

// searchDoneMsg reports the end of a fetch sequence; the outcome is read from the dashboard.
type searchDoneMsg struct {
	err error
}

// Model is the bubbletea model of the terminal dashboard.
type Model struct {
	ctx  context.Context
	dash *dashboard.Dashboard
	opts Options

	input   textinput.Model
	spinner spinner.Model
	styles  Styles

	state  dashboard.State
	notice string
	width  int
}

// New returns a Model driving dash. ctx bounds every search the model starts.
func New(ctx context.Context, dash *dashboard.Dashboard, opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LocationMinLength <= 0 {
		opts.LocationMinLength = 1
	}
	if opts.LocationMaxLength <= 0 {
		opts.LocationMaxLength = 100
	}

	ti := textinput.New()
	ti.Placeholder = view.SearchBar{}.View(false, "").Placeholder
	ti.Prompt = "› "
	ti.CharLimit = opts.LocationMaxLength
	ti.Width = 40
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		ctx:     ctx,
		dash:    dash,
		opts:    opts,
		input:   ti,
		spinner: sp,
		styles:  styles,
		state:   dash.State(),
	}
	if m.state.Phase == dashboard.PhaseIdle && m.state.Location != "" {
		// Init starts the mount search; render it as loading from the first frame.
		m.state.Phase = dashboard.PhaseLoading
	}
	return m
}

// Init mounts the dashboard: the initial search for the seeded location starts immediately.
func (m Model) Init() tea.Cmd {
	if !m.loading() {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.run(func(ctx context.Context) error {
		return m.dash.Mount(ctx)
	}))
}

// Update handles key presses, window resizes, spinner ticks and search completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			return m.toggleUnit(), nil
		case tea.KeyEnter:
			return m.submit()
		}
		if m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 6; w > 10 {
			m.input.Width = w
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case searchDoneMsg:
		m.state = m.dash.State()
		m.input.Focus()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m Model) View() string {
	bar := view.SearchBar{Input: m.input.Value()}
	page := view.NewPage(m.state, bar, m.opts.Now())

	search := m.input.View()
	if page.Loading {
		search = m.spinner.View() + " " + page.Search.ButtonLabel
	}
	if m.notice != "" {
		search += "\n" + m.styles.Notice.Render(m.notice)
	}
	out := RenderPage(page, m.styles, search, m.spinner.View()+" "+view.LoadingText)
	return out + "\n" + m.styles.Help.Render(helpText) + "\n"
}

// State returns the last dashboard snapshot the model rendered from.
func (m Model) State() dashboard.State {
	return m.state
}

func (m Model) loading() bool {
	return m.state.Loading()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	bar := view.SearchBar{Input: m.input.Value()}
	var cmd tea.Cmd
	dispatched := bar.Submit(m.loading(), func(loc string) {
		if _, err := validation.ValidateLocation(loc, m.opts.LocationMinLength, m.opts.LocationMaxLength); err != nil {
			m.notice = err.Error()
			return
		}
		m.notice = ""
		m.state.Phase = dashboard.PhaseLoading
		m.state.Error = ""
		cmd = tea.Batch(m.spinner.Tick, m.run(func(ctx context.Context) error {
			return m.dash.Search(ctx, loc)
		}))
	})
	if dispatched && cmd != nil {
		m.input.Reset()
		m.input.Blur()
	}
	return m, cmd
}

func (m Model) toggleUnit() Model {
	next := models.UnitFahrenheit
	if m.state.Unit == models.UnitFahrenheit {
		next = models.UnitCelsius
	}
	if err := m.dash.SetUnit(next); err == nil {
		m.state.Unit = next
	}
	return m
}

// run executes fn off the event loop under the configured timeout.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	parent := m.ctx
	timeout := m.opts.SearchTimeout
	return func() tea.Msg {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, timeout)
			defer cancel()
		}
		return searchDoneMsg{err: fn(ctx)}
	}
}
