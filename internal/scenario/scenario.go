// Package scenario replays scripted orchestrator sessions. A scenario is a
// YAML file of steps run against a private orchestrator with an in-memory
// tracker and a virtual clock, so timeouts fire deterministically.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/presentd/internal/config"
	"github.com/jmylchreest/presentd/internal/model"
)

// Step actions.
const (
	ActionAddWindow    = "add_window"
	ActionRemoveWindow = "remove_window"
	ActionRequest      = "request"
	ActionDismiss      = "dismiss"
	ActionForeground   = "foreground"
	ActionSetLifespan  = "set_lifespan"
	ActionSetMetadata  = "set_metadata"
	ActionSetTimeout   = "set_timeout"
	ActionNavigateBack = "navigate_back"
	ActionClear        = "clear"
	ActionWait         = "wait"
	ActionExpect       = "expect"
)

var actions = map[string]bool{
	ActionAddWindow:    true,
	ActionRemoveWindow: true,
	ActionRequest:      true,
	ActionDismiss:      true,
	ActionForeground:   true,
	ActionSetLifespan:  true,
	ActionSetMetadata:  true,
	ActionSetTimeout:   true,
	ActionNavigateBack: true,
	ActionClear:        true,
	ActionWait:         true,
	ActionExpect:       true,
}

// Validation errors.
var (
	ErrNoSteps             = errors.New("scenario has no steps")
	ErrUnknownAction       = errors.New("unknown action")
	ErrMissingWindow       = errors.New("window is required")
	ErrMissingPresentation = errors.New("presentation name is required")
	ErrDuplicateName       = errors.New("presentation name already used")
	ErrUndefinedName       = errors.New("presentation name not defined by an earlier request")
	ErrInvalidTimeout      = errors.New("invalid timeout")
)

// Scenario is a scripted orchestrator session.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Timeouts override the lifespan defaults.
	Timeouts *TimeoutOverrides `yaml:"timeouts,omitempty"`
	// Windows are registered before the first step.
	Windows []model.WindowInstance `yaml:"windows,omitempty"`
	Steps   []Step                 `yaml:"steps"`
}

// TimeoutOverrides replaces the default timeout of a lifespan.
type TimeoutOverrides struct {
	Transient *config.Duration `yaml:"transient,omitempty"`
	Short     *config.Duration `yaml:"short,omitempty"`
	Long      *config.Duration `yaml:"long,omitempty"`
}

// Step is one action of a scenario.
type Step struct {
	Action string `yaml:"action"`

	// add_window
	Window *model.WindowInstance `yaml:"window,omitempty"`
	// remove_window, request
	WindowID string `yaml:"window_id,omitempty"`

	// request: the name later steps use for the presentation.
	Name string `yaml:"name,omitempty"`
	// dismiss, foreground, set_*: the target presentation.
	Presentation string `yaml:"presentation,omitempty"`

	Interface string `yaml:"interface,omitempty"`
	Lifespan  string `yaml:"lifespan,omitempty"`
	// Timeout is "default", "disabled", a Go duration or milliseconds.
	Timeout  string `yaml:"timeout,omitempty"`
	Metadata string `yaml:"metadata,omitempty"`
	// ConsumeBack makes the content handle back events itself.
	ConsumeBack bool `yaml:"consume_back,omitempty"`

	// wait
	Duration config.Duration `yaml:"duration,omitempty"`

	// navigate_back: whether the back event is expected to dismiss the
	// top presentation.
	Dismissed *bool `yaml:"dismissed,omitempty"`

	// expect
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation describes the state checked by an expect step.
type Expectation struct {
	// States maps presentation names to state names.
	States map[string]string `yaml:"states,omitempty"`
	// Top maps window ids to the presentation on top; "" for empty.
	Top map[string]string `yaml:"top,omitempty"`
	// Focused is the window the tracker reports as focused; "" for none.
	Focused *string `yaml:"focused,omitempty"`
	// Released lists windows the client no longer holds.
	Released []string `yaml:"released,omitempty"`
	// TimeoutRequests lists the durations requested from the timeout
	// manager so far, in order.
	TimeoutRequests []config.Duration `yaml:"timeout_requests,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the steps before anything runs.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return ErrNoSteps
	}

	for i, w := range sc.Windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("window %d: %w", i, err)
		}
	}

	names := make(map[string]bool)
	known := func(name string) error {
		if name == "" {
			return ErrMissingPresentation
		}
		if !names[name] {
			return fmt.Errorf("%w: %q", ErrUndefinedName, name)
		}
		return nil
	}

	for i, step := range sc.Steps {
		if err := validateStep(step, names, known); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
	}
	return nil
}

func validateStep(step Step, names map[string]bool, known func(string) error) error {
	if !actions[step.Action] {
		return fmt.Errorf("%w: %q", ErrUnknownAction, step.Action)
	}

	switch step.Action {
	case ActionAddWindow:
		if step.Window == nil {
			return ErrMissingWindow
		}
		return step.Window.Validate()

	case ActionRemoveWindow:
		if step.WindowID == "" {
			return ErrMissingWindow
		}

	case ActionRequest:
		if step.WindowID == "" {
			return ErrMissingWindow
		}
		if step.Name == "" {
			return ErrMissingPresentation
		}
		if names[step.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, step.Name)
		}
		if step.Lifespan != "" {
			if _, err := model.ParseLifespan(step.Lifespan); err != nil {
				return err
			}
		}
		if _, err := ParseTimeout(step.Timeout); err != nil {
			return err
		}
		names[step.Name] = true

	case ActionDismiss, ActionForeground, ActionSetMetadata:
		return known(step.Presentation)

	case ActionSetLifespan:
		if err := known(step.Presentation); err != nil {
			return err
		}
		_, err := model.ParseLifespan(step.Lifespan)
		return err

	case ActionSetTimeout:
		if err := known(step.Presentation); err != nil {
			return err
		}
		_, err := ParseTimeout(step.Timeout)
		return err

	case ActionWait:
		if step.Duration.Duration() <= 0 {
			return fmt.Errorf("wait needs a positive duration")
		}

	case ActionExpect:
		if step.Expect == nil {
			return fmt.Errorf("expect needs an expectation")
		}
		for name, state := range step.Expect.States {
			if err := known(name); err != nil {
				return err
			}
			if _, err := model.ParseState(state); err != nil {
				return err
			}
		}
		for _, name := range step.Expect.Top {
			if name == "" {
				continue
			}
			if err := known(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseTimeout parses the timeout notation of scenario files. Empty and
// "default" are the lifespan default.
func ParseTimeout(s string) (model.Timeout, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "default":
		return model.DefaultTimeout(), nil
	case "disabled", "never", "off":
		return model.DisabledTimeout(), nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return model.TimeoutFromMillis(ms), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return model.Timeout{}, fmt.Errorf("%w: %q", ErrInvalidTimeout, s)
	}
	return model.ExplicitTimeout(d), nil
}
