package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
	"github.com/jmylchreest/presentd/internal/timeout"
	"github.com/jmylchreest/presentd/internal/tracker"
)

// maxSettleRounds bounds how long the runner waits for the queues to go
// quiet after a step.
const maxSettleRounds = 50

// Options configures a run.
type Options struct {
	ClientID string
	Logger   *slog.Logger
}

// Result is the outcome of a run.
type Result struct {
	Name    string              `json:"name"`
	Passed  bool                `json:"passed"`
	Elapsed time.Duration       `json:"elapsed"`
	Steps   []StepResult        `json:"steps"`
	Changes []model.StateChange `json:"changes"`
	Dropped int                 `json:"dropped"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int      `json:"index"`
	Action   string   `json:"action"`
	Detail   string   `json:"detail,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether the step had no failures.
func (s StepResult) Passed() bool { return len(s.Failures) == 0 }

// Failures returns every failure of the run prefixed by its step.
func (r *Result) Failures() []string {
	var out []string
	for _, step := range r.Steps {
		for _, f := range step.Failures {
			out = append(out, fmt.Sprintf("step %d (%s): %s", step.Index, step.Action, f))
		}
	}
	return out
}

type entry struct {
	name         string
	token        model.Token
	consumeBack  bool
	presentation *orchestrator.Presentation
	state        model.State
}

type runner struct {
	tracker  *tracker.Tracker
	timeouts *virtualTimeouts
	client   *orchestrator.Client
	logger   *slog.Logger

	activity atomic.Uint64

	mu      sync.Mutex
	byName  map[string]*entry
	byToken map[model.Token]*entry
	changes []model.StateChange
	dropped int
}

// Run executes sc against a private orchestrator. Failed expectations are
// reported in the result; the error is only set when the run could not
// complete.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &runner{
		tracker:  tracker.New(logger),
		timeouts: newVirtualTimeouts(),
		logger:   logger.With("scenario", sc.Name),
		byName:   make(map[string]*entry),
		byToken:  make(map[model.Token]*entry),
	}

	client, err := orchestrator.NewClient(orchestrator.ClientConfig{
		ID:       opts.ClientID,
		Tracker:  r.tracker,
		Timeouts: r.timeouts,
		Mapper:   timeout.NewMapper(sc.mapperConfig()),
		Recorder: r,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	r.client = client
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Shutdown(shutdownCtx)
	}()

	for _, w := range sc.Windows {
		if err := r.tracker.AddWindow(w); err != nil {
			return nil, fmt.Errorf("window %q: %w", w.ID, err)
		}
	}
	if err := r.settle(ctx); err != nil {
		return nil, err
	}

	result := &Result{Name: sc.Name, Passed: true}
	for i, step := range sc.Steps {
		sr := StepResult{Index: i + 1, Action: step.Action}
		if err := r.execute(ctx, step, &sr); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		if step.Action != ActionExpect {
			if err := r.settle(ctx); err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
			}
		}
		if !sr.Passed() {
			result.Passed = false
		}
		result.Steps = append(result.Steps, sr)
	}

	r.mu.Lock()
	result.Changes = slices.Clone(r.changes)
	result.Dropped = r.dropped
	r.mu.Unlock()
	result.Elapsed = r.timeouts.elapsed()

	return result, nil
}

func (sc *Scenario) mapperConfig() timeout.MapperConfig {
	var cfg timeout.MapperConfig
	if sc.Timeouts == nil {
		return cfg
	}
	if d := sc.Timeouts.Transient; d != nil {
		cfg.Transient = d.Duration()
	}
	if d := sc.Timeouts.Short; d != nil {
		cfg.Short = d.Duration()
	}
	if d := sc.Timeouts.Long; d != nil {
		cfg.Long = d.Duration()
	}
	return cfg
}

// settle waits until two consecutive flushes of every queue saw no
// orchestrator activity.
func (r *runner) settle(ctx context.Context) error {
	quiet := 0
	for range maxSettleRounds {
		before := r.activity.Load()
		if _, err := r.client.Snapshot(ctx); err != nil {
			return err
		}
		if r.activity.Load() == before {
			quiet++
			if quiet == 2 {
				return nil
			}
			continue
		}
		quiet = 0
	}
	r.logger.Warn("orchestrator did not settle", "rounds", maxSettleRounds)
	return nil
}

func (r *runner) execute(ctx context.Context, step Step, sr *StepResult) error {
	switch step.Action {
	case ActionAddWindow:
		if err := r.tracker.AddWindow(*step.Window); err != nil {
			sr.Failures = append(sr.Failures, err.Error())
		}
		sr.Detail = step.Window.ID

	case ActionRemoveWindow:
		if !r.tracker.RemoveWindow(step.WindowID) {
			sr.Failures = append(sr.Failures, fmt.Sprintf("unknown window %q", step.WindowID))
		}
		sr.Detail = step.WindowID

	case ActionRequest:
		r.request(step, sr)

	case ActionDismiss, ActionForeground, ActionSetLifespan, ActionSetMetadata, ActionSetTimeout:
		p, ok := r.presentation(step.Presentation)
		if !ok {
			sr.Failures = append(sr.Failures, fmt.Sprintf("presentation %q is not available", step.Presentation))
			return nil
		}
		sr.Detail = step.Presentation
		r.apply(step, p)

	case ActionNavigateBack:
		dismissed, err := r.client.NavigateBack(ctx)
		if err != nil {
			return err
		}
		sr.Detail = fmt.Sprintf("dismissed=%t", dismissed)
		if step.Dismissed != nil && *step.Dismissed != dismissed {
			sr.Failures = append(sr.Failures, fmt.Sprintf("back navigation dismissed=%t, want %t", dismissed, *step.Dismissed))
		}

	case ActionClear:
		if err := r.client.ClearPresentations(ctx); err != nil {
			return err
		}

	case ActionWait:
		if err := r.advance(ctx, step.Duration.Duration()); err != nil {
			return err
		}
		sr.Detail = step.Duration.Duration().String()

	case ActionExpect:
		failures, err := r.check(ctx, step.Expect)
		if err != nil {
			return err
		}
		sr.Failures = append(sr.Failures, failures...)
	}
	return nil
}

func (r *runner) request(step Step, sr *StepResult) {
	lifespan := model.LifespanShort
	if step.Lifespan != "" {
		lifespan, _ = model.ParseLifespan(step.Lifespan)
	}
	t, _ := ParseTimeout(step.Timeout)

	e := &entry{name: step.Name, consumeBack: step.ConsumeBack}
	r.mu.Lock()
	r.byName[step.Name] = e
	r.mu.Unlock()

	token := r.client.RequestWindow(step.WindowID, model.PresentationOptions{
		InterfaceName: step.Interface,
		Lifespan:      lifespan,
		Timeout:       t,
		Metadata:      step.Metadata,
	}, &observer{runner: r, entry: e})

	r.mu.Lock()
	e.token = token
	r.byToken[token] = e
	r.mu.Unlock()

	sr.Detail = fmt.Sprintf("%s token=%d", step.Name, token)
}

func (r *runner) apply(step Step, p *orchestrator.Presentation) {
	switch step.Action {
	case ActionDismiss:
		p.Dismiss()
	case ActionForeground:
		p.Foreground()
	case ActionSetMetadata:
		p.SetMetadata(step.Metadata)
	case ActionSetLifespan:
		lifespan, _ := model.ParseLifespan(step.Lifespan)
		p.SetLifespan(lifespan)
	case ActionSetTimeout:
		t, _ := ParseTimeout(step.Timeout)
		p.SetTimeout(t)
	}
}

func (r *runner) presentation(name string) (*orchestrator.Presentation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byName[name]
	if !ok || e.presentation == nil {
		return nil, false
	}
	return e.presentation, true
}

// advance moves the virtual clock forward by d, firing due timeouts in
// deadline order and letting the orchestrator react to each one.
func (r *runner) advance(ctx context.Context, d time.Duration) error {
	target := r.timeouts.elapsed() + d
	for {
		next, ok := r.timeouts.nextDeadline(target)
		if !ok {
			break
		}
		r.timeouts.setNow(next)
		for _, t := range r.timeouts.due(next) {
			t.callback()
		}
		if err := r.settle(ctx); err != nil {
			return err
		}
	}
	r.timeouts.setNow(target)
	return nil
}

func (r *runner) check(ctx context.Context, exp *Expectation) ([]string, error) {
	var failures []string

	r.mu.Lock()
	names := make([]string, 0, len(exp.States))
	for name := range exp.States {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		want, _ := model.ParseState(exp.States[name])
		have := model.StateNone
		if e, ok := r.byName[name]; ok {
			have = e.state
		}
		if have != want {
			failures = append(failures, fmt.Sprintf("%s: state %s, want %s", name, have, want))
		}
	}
	r.mu.Unlock()

	if len(exp.Top) > 0 {
		snap, err := r.client.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		windowIDs := make([]string, 0, len(exp.Top))
		for id := range exp.Top {
			windowIDs = append(windowIDs, id)
		}
		slices.Sort(windowIDs)
		for _, id := range windowIDs {
			if have, want := r.topName(snap, id), exp.Top[id]; have != want {
				failures = append(failures, fmt.Sprintf("window %s: top %q, want %q", id, have, want))
			}
		}
	}

	if exp.Focused != nil {
		if have := r.tracker.FocusedWindowID(); have != *exp.Focused {
			failures = append(failures, fmt.Sprintf("focused window %q, want %q", have, *exp.Focused))
		}
	}

	if len(exp.Released) > 0 {
		held := make(map[string]bool)
		for _, ws := range r.tracker.States() {
			for _, h := range ws.Holders {
				if h.ClientID == r.client.ID() {
					held[ws.Window.ID] = true
				}
			}
		}
		for _, id := range exp.Released {
			if held[id] {
				failures = append(failures, fmt.Sprintf("window %s is still held", id))
			}
		}
	}

	if exp.TimeoutRequests != nil {
		have := r.timeouts.requests()
		want := make([]time.Duration, len(exp.TimeoutRequests))
		for i, d := range exp.TimeoutRequests {
			want[i] = d.Duration()
		}
		if !slices.Equal(have, want) {
			failures = append(failures, fmt.Sprintf("timeout requests %v, want %v", have, want))
		}
	}

	return failures, nil
}

func (r *runner) topName(snap orchestrator.Snapshot, windowID string) string {
	for _, ws := range snap.Windows {
		if ws.Window.ID != windowID {
			continue
		}
		top, ok := ws.Top()
		if !ok {
			return ""
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.byToken[top.Token]; ok {
			return e.name
		}
		return fmt.Sprintf("token %d", top.Token)
	}
	return ""
}

func (r *runner) StateChanged(change model.StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, change)
	r.mu.Unlock()
	r.activity.Add(1)
}

func (r *runner) RequestDropped(windowID, interfaceName string, err error) {
	r.logger.Debug("request dropped", "window", windowID, "interface", interfaceName, "error", err)
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
	r.activity.Add(1)
}

// observer tracks one named presentation.
type observer struct {
	runner *runner
	entry  *entry
}

func (o *observer) OnPresentationAvailable(_ model.Token, p *orchestrator.Presentation) {
	state := p.State()
	o.runner.mu.Lock()
	o.entry.presentation = p
	o.entry.state = state
	o.runner.mu.Unlock()
	o.runner.activity.Add(1)
}

func (o *observer) OnPresentationStateChanged(_ model.Token, state model.State) {
	o.runner.mu.Lock()
	o.entry.state = state
	o.runner.mu.Unlock()
	o.runner.activity.Add(1)
}

func (o *observer) OnNavigateBack(model.Token) bool {
	o.runner.activity.Add(1)
	return o.entry.consumeBack
}
