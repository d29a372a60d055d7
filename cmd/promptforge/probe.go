package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/promptforge/pkg/capability"
	"github.com/germanamz/promptforge/pkg/settings"
)

const labelWidth = 36

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("probe", "Detect connectivity and reasoning support of configured models.\n"+
		"Without --provider every enabled provider is probed, without --model every enabled model.", stderr)

	var common commonFlags
	common.register(fs)
	providerID := fs.String("provider", "", "provider id (default: all enabled providers)")
	modelID := fs.String("model", "", "model id (default: all enabled models)")
	force := fs.Bool("force", false, "ignore cached results")
	clearCache := fs.Bool("clear", false, "clear the capability cache and exit")
	stats := fs.Bool("stats", false, "list cached entries and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, common, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	switch {
	case *clearCache:
		if err := a.prober.ClearCache(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "capability cache cleared")
		return nil
	case *stats:
		st, err := a.prober.CacheStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d cached entries\n", st.Size)
		for _, k := range st.Keys {
			fmt.Fprintf(stdout, "  %s\n", k)
		}
		return nil
	}

	targets, err := probeTargets(a.cfg, *providerID, *modelID)
	if err != nil {
		return err
	}

	var rows []probeRow
	if isTerminal(stderr) {
		rows, err = probeInteractive(ctx, a.prober, targets, *force, stderr)
	} else {
		rows = probePlain(ctx, a.prober, targets, *force)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, renderReport(rows))
	return ctx.Err()
}

type probeTarget struct {
	provider settings.ProviderConfig
	modelID  string
}

func (t probeTarget) label() string {
	return t.provider.ID + "/" + t.modelID
}

// probeTargets expands the provider and model filters into a list of models.
func probeTargets(cfg settings.Config, providerID, modelID string) ([]probeTarget, error) {
	if modelID != "" && providerID == "" {
		return nil, errors.New("--model requires --provider")
	}

	var targets []probeTarget
	for _, p := range cfg.Providers {
		if providerID != "" && p.ID != providerID {
			continue
		}
		if providerID == "" && !p.Enabled {
			continue
		}
		for _, m := range p.Models {
			if modelID != "" && m.ID != modelID {
				continue
			}
			if modelID == "" && !m.Enabled {
				continue
			}
			targets = append(targets, probeTarget{provider: p, modelID: m.ID})
		}
	}

	if len(targets) == 0 {
		switch {
		case modelID != "":
			return nil, fmt.Errorf("provider %q has no model %q", providerID, modelID)
		case providerID != "":
			if _, ok := cfg.Provider(providerID); !ok {
				return nil, fmt.Errorf("unknown provider %q", providerID)
			}
		}
		return nil, errors.New("nothing to probe: no enabled models")
	}
	return targets, nil
}

type probePhase int

const (
	phasePending probePhase = iota
	phaseConnecting
	phaseReasoning
	phaseDone
)

type probeRow struct {
	target probeTarget
	phase  probePhase
	conn   *capability.ConnectionResult
	caps   *settings.ModelCapabilities
}

type (
	rowStartedMsg struct{ idx int }
	connectionMsg struct {
		idx    int
		result capability.ConnectionResult
	}
	capabilitiesMsg struct {
		idx  int
		caps settings.ModelCapabilities
	}
	probesDoneMsg struct{}
)

// driveProbes probes targets one at a time and reports progress through send.
func driveProbes(ctx context.Context, prober *capability.Prober, targets []probeTarget, force bool, send func(tea.Msg)) {
	defer send(probesDoneMsg{})

	for i, t := range targets {
		if ctx.Err() != nil {
			return
		}
		send(rowStartedMsg{idx: i})

		<-prober.DetectAsync(ctx, t.provider, t.modelID, force,
			func(r capability.ConnectionResult) { send(connectionMsg{idx: i, result: r}) },
			func(c settings.ModelCapabilities) { send(capabilitiesMsg{idx: i, caps: c}) },
		)
	}
}

func probePlain(ctx context.Context, prober *capability.Prober, targets []probeTarget, force bool) []probeRow {
	m := newProbeModel(targets, nil)
	driveProbes(ctx, prober, targets, force, func(msg tea.Msg) {
		m.apply(msg)
	})
	return m.rows
}

func probeInteractive(ctx context.Context, prober *capability.Prober, targets []probeTarget, force bool, out io.Writer) ([]probeRow, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newProbeModel(targets, cancel), tea.WithOutput(out))

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		driveProbes(ctx, prober, targets, force, program.Send)
	}()

	final, err := program.Run()
	cancel()
	<-driverDone

	if err != nil {
		return nil, err
	}
	return final.(probeModel).rows, nil
}

// probeModel is the bubbletea model showing live probe progress.
type probeModel struct {
	rows    []probeRow
	spinner spinner.Model
	cancel  context.CancelFunc
}

func newProbeModel(targets []probeTarget, cancel context.CancelFunc) probeModel {
	rows := make([]probeRow, len(targets))
	for i, t := range targets {
		rows[i] = probeRow{target: t}
	}

	return probeModel{
		rows: rows,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Spinner{Frames: spinnerFrames, FPS: time.Second / 10}),
			spinner.WithStyle(spinnerStyle),
		),
		cancel: cancel,
	}
}

func (m probeModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m probeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case probesDoneMsg:
		return m, tea.Quit
	default:
		m.apply(msg)
	}
	return m, nil
}

// apply records probe progress. The rows slice is shared between copies of
// the model, which is fine because only the bubbletea loop or the plain
// driver ever writes it.
func (m *probeModel) apply(msg tea.Msg) {
	switch msg := msg.(type) {
	case rowStartedMsg:
		m.rows[msg.idx].phase = phaseConnecting
	case connectionMsg:
		r := msg.result
		m.rows[msg.idx].conn = &r
		if r.Connected {
			m.rows[msg.idx].phase = phaseReasoning
		}
	case capabilitiesMsg:
		c := msg.caps
		m.rows[msg.idx].caps = &c
		m.rows[msg.idx].phase = phaseDone
	}
}

func (m probeModel) View() string {
	var b strings.Builder
	for _, r := range m.rows {
		var icon, status string
		switch r.phase {
		case phasePending:
			icon, status = dimStyle.Render("·"), dimStyle.Render("waiting")
		case phaseConnecting:
			icon, status = m.spinner.View(), "connecting"
		case phaseReasoning:
			icon, status = m.spinner.View(), "checking reasoning"
			if r.conn != nil {
				status += dimStyle.Render(" (connected in " + fmtDuration(r.conn.ResponseTime) + ")")
			}
		case phaseDone:
			icon, status = outcome(r)
		}
		fmt.Fprintf(&b, "%s %s %s\n", icon, fitWidth(r.target.label(), labelWidth), status)
	}
	b.WriteString(dimStyle.Render("q to cancel"))
	return b.String()
}

func outcome(r probeRow) (icon, status string) {
	if r.caps == nil || r.caps.TestResult == nil || !r.caps.TestResult.Connected {
		return failStyle.Render("✗"), failStyle.Render("unreachable")
	}
	if r.caps.Reasoning {
		return okStyle.Render("✓"), reasonStyle.Render(string(r.caps.ReasoningKind))
	}
	return okStyle.Render("✓"), "connected"
}

// renderReport formats the final probe results.
func renderReport(rows []probeRow) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Model capabilities"))

	for _, r := range rows {
		b.WriteString("\n\n")
		b.WriteString(providerStyle.Render(r.target.label()))

		if r.caps == nil {
			b.WriteString("\n  " + dimStyle.Render("not probed"))
			continue
		}

		if tr := r.caps.TestResult; tr != nil {
			if !tr.Connected {
				b.WriteString("\n  " + failStyle.Render("✗ "+tr.Error))
				continue
			}
			b.WriteString("\n  " + okStyle.Render("✓ connected") +
				dimStyle.Render(" in "+fmtDuration(time.Duration(tr.ResponseTimeMS)*time.Millisecond)))
		}

		reasoning := "none"
		if r.caps.Reasoning {
			reasoning = reasonStyle.Render(string(r.caps.ReasoningKind))
		}
		sp := r.caps.SupportedParams
		b.WriteString("\n  reasoning:   " + reasoning)
		b.WriteString("\n  max tokens:  " + sp.MaxTokensField)
		b.WriteString("\n  temperature: " + yesNo(sp.Temperature))
		b.WriteString("\n  streaming:   " + yesNo(sp.Streaming))
		b.WriteString("\n  system:      " + yesNo(sp.SystemMessage))
	}

	return reportStyle.Render(b.String())
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return dimStyle.Render("no")
}
