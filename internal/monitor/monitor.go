// Package monitor implements the interactive heat-stroke risk TUI using
// BubbleTea: start a sampling run, watch readings arrive, then see the
// averaged WBGT on the colour-coded risk scale next to the reference deltas.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/chart"
	"github.com/luki/heatrisk/internal/compare"
	"github.com/luki/heatrisk/internal/pipeline"
)

// Runner performs one measurement run.
type Runner interface {
	Run(ctx context.Context, ref compare.Reference) (pipeline.Report, error)
}

// ── Messages ─────────────────────────────────────────────────────────

type progressMsg struct {
	aggregate.Progress
	ch chan progressMsg // run the message belongs to
}

type runDoneMsg struct {
	report pipeline.Report
	err    error
}

// feed carries progress from the runner goroutine to the UI. Each run gets
// its own channel, closed when the run ends so its waiter returns.
type feed struct {
	mu sync.Mutex
	ch chan progressMsg
}

func (f *feed) open() chan progressMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
	}
	f.ch = make(chan progressMsg, 64)
	return f.ch
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
}

// send never blocks the runner; a full channel drops the update.
func (f *feed) send(p aggregate.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch == nil {
		return
	}
	select {
	case f.ch <- progressMsg{Progress: p, ch: f.ch}:
	default:
	}
}

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the risk monitor.
type Model struct {
	runner   Runner
	ref      compare.Reference
	rounding int
	samples  int

	feed     *feed
	progress chan progressMsg // current run, nil when idle
	cancel   context.CancelFunc

	running bool
	done    int
	live    []float64 // per-read WBGT of the current run
	report  *pipeline.Report
	err     error

	width     int
	height    int
	startTime time.Time
}

// New creates the monitor model. Attach a runner with WithRunner before
// starting the program.
func New(ref compare.Reference, samples, rounding int) Model {
	return Model{
		ref:       ref,
		samples:   samples,
		rounding:  rounding,
		feed:      &feed{},
		startTime: time.Now(),
	}
}

// WithRunner returns a copy of m using r for runs.
func (m Model) WithRunner(r Runner) Model {
	m.runner = r
	return m
}

// Progress forwards per-read progress into the UI. Pass it to the runner.
func (m Model) Progress(p aggregate.Progress) {
	m.feed.send(p)
}

// Run starts the TUI and blocks until it exits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// ── Commands ─────────────────────────────────────────────────────────

// waitForProgress yields the next progress message, or nil once the run's
// channel is closed.
func waitForProgress(ch chan progressMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func startRun(ctx context.Context, r Runner, ref compare.Reference) tea.Cmd {
	return func() tea.Msg {
		rep, err := r.Run(ctx, ref)
		return runDoneMsg{report: rep, err: err}
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			m.feed.close()
			return m, tea.Quit
		case "s":
			if m.running || m.runner == nil {
				return m, nil
			}
			ctx, cancel := context.WithCancel(context.Background())
			m.cancel = cancel
			m.running = true
			m.done = 0
			m.live = nil
			m.report = nil
			m.err = nil
			m.progress = m.feed.open()
			return m, tea.Batch(startRun(ctx, m.runner, m.ref), waitForProgress(m.progress))
		case "c":
			if !m.running {
				m.report = nil
				m.err = nil
				m.live = nil
				m.done = 0
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case progressMsg:
		if msg.ch == nil || msg.ch != m.progress {
			return m, nil
		}
		m.done = msg.Done
		m.live = append(m.live, msg.WBGT)
		if msg.Done < msg.Total {
			return m, waitForProgress(m.progress)
		}

	case runDoneMsg:
		m.feed.close()
		m.progress = nil
		m.running = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		rep := msg.report
		m.report = &rep
	}

	return m, nil
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorValue    = lipgloss.Color("250")
	colorCrit     = lipgloss.Color("196")
	colorRunning  = lipgloss.Color("214")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	switch {
	case m.running:
		sections = append(sections, m.renderProgress(contentWidth))
	case m.report != nil:
		sections = append(sections, m.renderMetrics(contentWidth))
		sections = append(sections, m.renderScale(contentWidth))
	default:
		idle := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Press s to start the sensor")
		sections = append(sections, idle)
	}

	sections = append(sections, m.renderFooter(contentWidth))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("HEAT STROKE RISK")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	statusParts := []string{dimS.Render(fmt.Sprintf("up %s", fmtDuration(time.Since(m.startTime))))}

	if m.report != nil {
		statusParts = append(statusParts, dimS.Render(m.report.FinishedAt.Format("15:04:05")))
	}
	if m.running {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorRunning).
			Bold(true).
			Render(fmt.Sprintf("SAMPLING %d/%d", m.done, m.samples)))
	}

	sep := dimS.Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderProgress(width int) string {
	inner := width - 4
	sparkW := inner - 20
	if sparkW < 10 {
		sparkW = 10
	}
	label := lipgloss.NewStyle().Foreground(colorLabel).Render(fmt.Sprintf("reading %d/%d ", m.done, m.samples))
	spark := chart.RenderSparkline(m.live, sparkW, chart.ScaleMin, chart.ScaleMax)
	return m.panel(width, label+spark)
}

func (m Model) renderMetrics(width int) string {
	rep := m.report
	labelS := lipgloss.NewStyle().Foreground(colorLabel).Bold(true)
	valS := lipgloss.NewStyle().Foreground(colorValue)

	deltas := make(map[string]compare.Delta, len(rep.Deltas))
	for _, d := range rep.Deltas {
		deltas[d.Metric] = d
	}

	colW := (width - 4) / 3
	col := func(title, value string, d compare.Delta, unit string) string {
		return lipgloss.NewStyle().Width(colW).Render(lipgloss.JoinVertical(lipgloss.Left,
			labelS.Render(title),
			value,
			chart.RenderDelta(d, unit),
		))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		col("WBGT", chart.RenderWBGTValue(rep.DisplayWBGT, m.rounding)+" "+chart.RenderTier(rep.Tier), deltas[compare.MetricWBGT], " C"),
		col("Temperature", valS.Render(fmt.Sprintf("%.0f C", rep.Sample.Temperature)), deltas[compare.MetricTemperature], " C"),
		col("Relative Humidity", valS.Render(fmt.Sprintf("%.0f%%", rep.Sample.Humidity)), deltas[compare.MetricHumidity], " %"),
	)
	return m.panel(width, row)
}

func (m Model) renderScale(width int) string {
	scaleW := width - 6
	rep := m.report
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(colorValue)

	stats := dimS.Render("avg") + valS.Render(fmt.Sprintf("%5.1f", rep.Sample.WBGTMean)) +
		dimS.Render("  lo") + valS.Render(fmt.Sprintf("%5.1f", rep.Sample.WBGTMin)) +
		dimS.Render("  pk") + valS.Render(fmt.Sprintf("%5.1f", rep.Sample.WBGTPeak)) +
		dimS.Render(fmt.Sprintf("  n=%d ", rep.Sample.Count)) +
		chart.RenderSparkline(rep.Sample.WBGTSeries, len(rep.Sample.WBGTSeries), chart.ScaleMin, chart.ScaleMax)

	return m.panel(width, lipgloss.JoinVertical(lipgloss.Left,
		chart.RenderRiskScale(rep.Sample.WBGT, chart.ScaleMin, chart.ScaleMax, scaleW),
		chart.RenderScaleLabels(chart.ScaleMin, chart.ScaleMax, scaleW),
		stats,
	))
}

func (m Model) panel(width int, content string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(content)
}

func (m Model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	var legend string
	for _, t := range []struct {
		v    float64
		name string
	}{{20, " minimal "}, {26, " moderate "}, {29, " high "}, {33, " severe"}} {
		legend += lipgloss.NewStyle().Foreground(chart.WBGTColor(t.v)).Render("██") + dimS.Render(t.name)
	}

	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	keys := dimS.Render("s") + keyS.Render(":start") +
		dimS.Render("  c") + keyS.Render(":clear") +
		dimS.Render("  q") + keyS.Render(":quit")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mi := d / time.Minute
	d -= mi * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, mi, s)
	}
	return fmt.Sprintf("%dm%02ds", mi, s)
}
