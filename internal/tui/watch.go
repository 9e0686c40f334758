// Package tui renders a live terminal view of a running integration.
package tui

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrel-sim/alphadyn/internal/alpha"
	"github.com/kestrel-sim/alphadyn/internal/config"
	"github.com/kestrel-sim/alphadyn/internal/dynamics"
	"github.com/kestrel-sim/alphadyn/internal/models"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

type stepMsg struct {
	state dynamics.State
	time  float64
}

type doneMsg struct {
	result *alpha.Result
	err    error
}

// chanObserver funnels integrator step notifications into the bubbletea
// event loop.
type chanObserver struct {
	ch chan stepMsg
}

func (o *chanObserver) OnStep(s dynamics.State, t float64) {
	o.ch <- stepMsg{state: s.Clone(), time: t}
}

type trailPoint struct {
	x, z  float64
	speed float64
}

type watchModel struct {
	cfg *config.Config
	top *models.HeavyTop

	steps  chan stepMsg
	done   chan doneMsg
	result *alpha.Result
	err    error

	state    dynamics.State
	simTime  float64
	stepNum  int
	trail    []trailPoint
	history  []float64
	finished bool

	width  int
	height int
}

// NewWatch builds the live view for one heavy top run. The integration
// starts when the program does.
func NewWatch(cfg *config.Config, top *models.HeavyTop) *watchModel {
	return &watchModel{
		cfg:     cfg,
		top:     top,
		steps:   make(chan stepMsg, 64),
		done:    make(chan doneMsg, 1),
		trail:   make([]trailPoint, 0, 200),
		history: make([]float64, 0, 80),
		width:   80,
		height:  24,
	}
}

func (m *watchModel) Init() tea.Cmd {
	go m.integrate()
	return m.waitForStep()
}

func (m *watchModel) integrate() {
	stepper, err := dynamics.NewTimeStepper(m.cfg.Time.Start, m.cfg.Time.Step, m.cfg.Time.Steps, m.cfg.Time.MaxIterations)
	if err != nil {
		m.done <- doneMsg{err: err}
		return
	}
	integrator, err := alpha.New(alpha.Config{
		AlphaF:       m.cfg.AlphaF,
		AlphaM:       m.cfg.AlphaM,
		Beta:         m.cfg.Beta,
		Gamma:        m.cfg.Gamma,
		Precondition: m.cfg.Precondition,
	}, stepper)
	if err != nil {
		m.done <- doneMsg{err: err}
		return
	}
	integrator.SetLogger(slog.New(slog.DiscardHandler))
	integrator.AddObserver(&chanObserver{ch: m.steps})

	result, err := integrator.Integrate(m.cfg.InitialState(), m.top.NumConstraints(), m.top)
	m.done <- doneMsg{result: result, err: err}
}

func (m *watchModel) waitForStep() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.steps:
			return msg
		case msg := <-m.done:
			return msg
		}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "escape":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stepMsg:
		m.state = msg.state
		m.simTime = msg.time
		m.stepNum++
		m.observe(msg.state)
		return m, m.waitForStep()

	case doneMsg:
		// Drain steps that arrived before completion.
		for {
			select {
			case s := <-m.steps:
				m.state = s.state
				m.simTime = s.time
				m.stepNum++
				m.observe(s.state)
			default:
				m.finished = true
				m.result = msg.result
				m.err = msg.err
				return m, nil
			}
		}
	}
	return m, nil
}

func (m *watchModel) observe(s dynamics.State) {
	if len(s.GenCoords) < 3 || len(s.Velocity) < 3 {
		return
	}
	speed := math.Sqrt(s.Velocity[0]*s.Velocity[0] + s.Velocity[1]*s.Velocity[1] + s.Velocity[2]*s.Velocity[2])
	m.trail = append(m.trail, trailPoint{x: s.GenCoords[0], z: s.GenCoords[2], speed: speed})
	if len(m.trail) > 200 {
		m.trail = m.trail[1:]
	}
	m.history = append(m.history, s.GenCoords[0])
	if len(m.history) > 80 {
		m.history = m.history[1:]
	}
}

func (m *watchModel) View() string {
	cw := m.width - 6
	ch := m.height - 11
	if cw < 40 {
		cw = 40
	}
	if ch < 10 {
		ch = 10
	}

	canvas := make([][]rune, ch)
	for i := range canvas {
		canvas[i] = make([]rune, cw)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}
	m.drawTrail(canvas, cw, ch)

	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("integrating")
	if m.finished {
		switch {
		case m.err != nil:
			statusIcon = red.Render("✗")
			statusText = red.Render(m.err.Error())
		case m.result != nil && !m.result.Converged():
			statusIcon = yellow.Render("○")
			statusText = yellow.Render("finished, not all steps converged")
		default:
			statusIcon = green.Render("✓")
			statusText = green.Render("finished")
		}
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render(m.cfg.Model), statusText))

	progress := float64(m.stepNum) / float64(m.cfg.Time.Steps)
	if progress > 1 {
		progress = 1
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s\n\n", bar,
		dim.Render(fmt.Sprintf("step %d/%d  t=%.3fs", m.stepNum, m.cfg.Time.Steps, m.simTime))))

	for _, row := range canvas {
		b.WriteString("   " + string(row) + "\n")
	}

	if len(m.state.GenCoords) >= 7 {
		q := m.state.GenCoords
		qNorm := math.Sqrt(q[3]*q[3] + q[4]*q[4] + q[5]*q[5] + q[6]*q[6])
		b.WriteString(fmt.Sprintf("\n   %s%s  %s%s  %s%s\n",
			dim.Render("x="), white.Render(fmt.Sprintf("(%.3f, %.3f, %.3f)", q[0], q[1], q[2])),
			dim.Render("|q|="), white.Render(fmt.Sprintf("%.6f", qNorm)),
			dim.Render("E="), magenta.Render(fmt.Sprintf("%.3f", m.top.Energy(m.state)))))
	}

	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("x"), cyan.Render(sparkline(m.history, 32))))
	}

	if m.finished && m.result != nil {
		b.WriteString(dim.Render(fmt.Sprintf("   %d Newton iterations total\n", m.result.TotalIterations)))
	}

	b.WriteString("\n" + dim.Render("   q quit") + "\n")
	return b.String()
}

// drawTrail projects the body reference point onto the horizontal plane and
// plots the precession track, recent points brighter.
func (m *watchModel) drawTrail(canvas [][]rune, w, h int) {
	set(canvas, w/2, h/2, '+', w, h)
	if len(m.trail) == 0 {
		return
	}

	scale := 0.0
	for _, pt := range m.trail {
		r := math.Max(math.Abs(pt.x), math.Abs(pt.z))
		if r > scale {
			scale = r
		}
	}
	if scale == 0 {
		scale = 1
	}

	maxSpeed := 0.0
	for _, pt := range m.trail {
		if pt.speed > maxSpeed {
			maxSpeed = pt.speed
		}
	}

	for _, pt := range m.trail {
		cx := w/2 + int(pt.x/scale*float64(w/2-2))
		cy := h/2 - int(pt.z/scale*float64(h/2-1))
		set(canvas, cx, cy, trailChar(pt.speed, maxSpeed), w, h)
	}

	last := m.trail[len(m.trail)-1]
	cx := w/2 + int(last.x/scale*float64(w/2-2))
	cy := h/2 - int(last.z/scale*float64(h/2-1))
	set(canvas, cx, cy, '⬤', w, h)
}

func trailChar(speed, maxSpeed float64) rune {
	if maxSpeed == 0 {
		return '·'
	}
	ratio := speed / maxSpeed
	switch {
	case ratio < 0.25:
		return '·'
	case ratio < 0.5:
		return '∘'
	case ratio < 0.75:
		return '○'
	}
	return '●'
}

func set(canvas [][]rune, x, y int, c rune, w, h int) {
	if x >= 0 && x < w && y >= 0 && y < h {
		canvas[y][x] = c
	}
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

// RunWatch runs the live view until the integration completes and the user
// quits.
func RunWatch(cfg *config.Config, top *models.HeavyTop) error {
	p := tea.NewProgram(NewWatch(cfg, top), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
