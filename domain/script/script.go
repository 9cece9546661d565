// Package script defines declarative sign-in scripts and binds them to the
// screenplay actors that perform them.
package script

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/matspina/screen-play-wright/core/screenplay"
	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// Script is a named, ordered list of steps.
type Script struct {
	// Name is the unique identifier for this script
	Name string

	// Description provides a human-readable explanation of what the script does
	Description string

	// Steps are the ordered execution steps
	Steps []Step
}

// Step is a single interaction or check. String fields are templates.
type Step struct {
	// Type selects what the step does
	Type StepType

	// URL is the navigation target of navigate steps
	URL string

	// WaitUntil is the navigation completion state of navigate steps
	WaitUntil browser.WaitUntil

	// Selector targets an element for click, fill and visibility steps
	Selector string

	// Value is the text typed by fill steps
	Value string

	// Pattern is the regular expression assertURL checks the page URL against
	Pattern string

	// Timeout bounds waits and assertions. Zero uses the default.
	Timeout time.Duration
}

// StepType represents the type of step.
type StepType string

const (
	StepNavigate      StepType = "navigate"
	StepClick         StepType = "click"
	StepFill          StepType = "fill"
	StepWaitVisible   StepType = "waitVisible"
	StepAssertURL     StepType = "assertURL"
	StepAssertVisible StepType = "assertVisible"
	StepPause         StepType = "pause"
)

// IsAssertion reports whether the step only checks state.
func (t StepType) IsAssertion() bool {
	return t == StepAssertURL || t == StepAssertVisible
}

// Validate checks that every step carries the fields its type needs.
func (s *Script) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("script name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("script %s has no steps", s.Name)
	}

	for i, step := range s.Steps {
		var missing string
		switch step.Type {
		case StepNavigate:
			if step.URL == "" {
				missing = "url"
			}
			switch step.WaitUntil {
			case "", browser.WaitLoad, browser.WaitDOMContentLoaded, browser.WaitNetworkIdle, browser.WaitCommit:
			default:
				return fmt.Errorf("script %s step %d: unknown waitUntil %q", s.Name, i, step.WaitUntil)
			}
		case StepClick, StepFill, StepWaitVisible, StepAssertVisible:
			if step.Selector == "" {
				missing = "selector"
			}
		case StepAssertURL:
			if step.Pattern == "" {
				missing = "pattern"
			}
		case StepPause:
			if step.Timeout <= 0 {
				missing = "timeout"
			}
		default:
			return fmt.Errorf("script %s step %d: unknown type %q", s.Name, i, step.Type)
		}
		if missing != "" {
			return fmt.Errorf("script %s step %d (%s): %s is required", s.Name, i, step.Type, missing)
		}

		for _, field := range []string{step.URL, step.Selector, step.Value, step.Pattern} {
			if _, err := parseTemplate(field, nil); err != nil {
				return fmt.Errorf("script %s step %d: %w", s.Name, i, err)
			}
		}
	}
	return nil
}

// IsAssertionOnly reports whether the script can be used as a question.
func (s *Script) IsAssertionOnly() bool {
	for _, step := range s.Steps {
		if !step.Type.IsAssertion() {
			return false
		}
	}
	return true
}

// Bind turns the script into an activity. sites maps site names to URLs for
// the {{ site "name" }} template function.
func (s *Script) Bind(sites map[string]string) screenplay.Activity {
	return screenplay.ActivityFunc(func(ctx context.Context, actor *screenplay.Actor) error {
		return s.run(ctx, actor, sites)
	})
}

// BindQuestion turns an assertion-only script into a question.
func (s *Script) BindQuestion(sites map[string]string) screenplay.Question {
	return screenplay.QuestionFunc(func(ctx context.Context, actor *screenplay.Actor) error {
		return s.run(ctx, actor, sites)
	})
}

func (s *Script) run(ctx context.Context, actor *screenplay.Actor, sites map[string]string) error {
	for i, step := range s.Steps {
		rendered, err := step.render(actor, sites)
		if err != nil {
			return fmt.Errorf("script %s step %d: %w", s.Name, i, err)
		}

		if step.Type.IsAssertion() {
			q, err := rendered.question()
			if err != nil {
				return fmt.Errorf("script %s step %d: %w", s.Name, i, err)
			}
			if err := actor.Asks(ctx, q); err != nil {
				return fmt.Errorf("script %s step %d: %w", s.Name, i, err)
			}
			continue
		}

		if err := actor.AttemptsTo(ctx, rendered.activity()); err != nil {
			return fmt.Errorf("script %s step %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// templateData is what step templates can reference.
type templateData struct {
	Username   string
	Password   string
	Actor      string
	Properties map[string]string
}

func parseTemplate(text string, sites map[string]string) (*template.Template, error) {
	return template.New("step").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			// unknown sites render empty, navigation then fails with an invalid URL
			"site": func(name string) string { return sites[name] },
		}).
		Parse(text)
}

func renderField(text string, data templateData, sites map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := parseTemplate(text, sites)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", text, err)
	}
	return buf.String(), nil
}

func (st Step) render(actor *screenplay.Actor, sites map[string]string) (Step, error) {
	data := templateData{
		Username:   actor.Username(),
		Password:   actor.Password(),
		Actor:      actor.Name(),
		Properties: actor.Properties(),
	}

	out := st
	var err error
	for _, f := range []*string{&out.URL, &out.Selector, &out.Value, &out.Pattern} {
		if *f, err = renderField(*f, data, sites); err != nil {
			return Step{}, err
		}
	}
	return out, nil
}

func (st Step) activity() screenplay.Activity {
	switch st.Type {
	case StepNavigate:
		return screenplay.NavigateTo(st.URL).WaitingUntil(st.WaitUntil)
	case StepClick:
		return screenplay.ClickOn(st.Selector)
	case StepFill:
		return screenplay.FillIn(st.Selector, st.Value)
	case StepWaitVisible:
		return screenplay.WaitFor(st.Selector).UpTo(st.Timeout)
	default:
		return screenplay.Pause(st.Timeout)
	}
}

func (st Step) question() (screenplay.Question, error) {
	if st.Type == StepAssertVisible {
		q := screenplay.IsElementVisible(st.Selector)
		if st.Timeout > 0 {
			q = q.WaitingUpTo(st.Timeout)
		}
		return q, nil
	}

	re, err := regexp.Compile(st.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid url pattern %q: %w", st.Pattern, err)
	}
	q := screenplay.PageURLMatches(re)
	if st.Timeout > 0 {
		q = q.WaitingUpTo(st.Timeout)
	}
	return q, nil
}
