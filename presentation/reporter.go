// Package presentation renders global setup progress on the console.
package presentation

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/matspina/screen-play-wright/application"
	"github.com/matspina/screen-play-wright/core/event"
	"github.com/matspina/screen-play-wright/core/eventbus"
)

const indent = "   "

// Reporter prints setup events as they are published.
type Reporter struct {
	out      io.Writer
	eventBus eventbus.EventBus
	logger   *slog.Logger

	mu sync.Mutex

	cyan   *color.Color
	yellow *color.Color
	red    *color.Color
	green  *color.Color
	faint  *color.Color

	// Subscription management
	subscriptionID string
}

// ReporterConfig holds configuration for Reporter.
type ReporterConfig struct {
	// Out receives the report. Nil uses os.Stdout.
	Out io.Writer

	// EventBus is subscribed to when set
	EventBus eventbus.EventBus

	// NoColor disables ANSI colors
	NoColor bool

	Logger *slog.Logger
}

// NewReporter creates a reporter and subscribes it to the event bus.
func NewReporter(cfg *ReporterConfig) *Reporter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	r := &Reporter{
		out:      cfg.Out,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		cyan:     color.New(color.FgCyan),
		yellow:   color.New(color.FgYellow),
		red:      color.New(color.FgRed),
		green:    color.New(color.FgGreen),
		faint:    color.New(color.Faint),
	}
	if cfg.NoColor {
		for _, c := range []*color.Color{r.cyan, r.yellow, r.red, r.green, r.faint} {
			c.DisableColor()
		}
	}

	if r.eventBus != nil {
		r.subscriptionID = r.eventBus.Subscribe(r.handleEvent)
	}
	return r
}

// Follow narrows the report to the events of one setup. It is meant to be
// called before anything is dispatched.
func (r *Reporter) Follow(setupID string) {
	if r.eventBus == nil {
		return
	}
	if r.subscriptionID != "" {
		r.eventBus.Unsubscribe(r.subscriptionID)
	}
	r.subscriptionID = r.eventBus.SubscribeSetup(setupID, r.handleEvent)
}

// Close unsubscribes from the event bus.
func (r *Reporter) Close() {
	if r.eventBus != nil && r.subscriptionID != "" {
		r.eventBus.Unsubscribe(r.subscriptionID)
	}
}

func (r *Reporter) println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

func (r *Reporter) handleEvent(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch evt := e.(type) {
	case *event.GlobalSetupStarted:
		r.println(r.cyan.Sprint("\nRunning Global Setup"))
		env := strings.ToUpper(evt.Env) + evt.Instance
		r.println(fmt.Sprintf("\n%sTests will run against %s environment", indent, r.yellow.Sprint(env)))
		if len(evt.Experiences) > 0 {
			r.println(fmt.Sprintf("%sExperiences running: %s", indent, strings.Join(evt.Experiences, ", ")))
		}
		r.println()

	case *event.SetupStarted:
		if evt.Attempt == 1 {
			r.println(fmt.Sprintf("%s# Saving %s login state...", indent, evt.Label()))
		}

	case *event.SetupRetrying:
		r.println()
		r.println(r.yellow.Sprintf("%sError on %s login flow", indent, evt.Label()))
		r.println(r.yellow.Sprintf("%sRetrying %d of %d...", indent, evt.Retry, evt.Retries))
		r.println()

	case *event.SetupSucceeded:
		r.println(fmt.Sprintf("%s%s %s login state saved successfully", indent, r.green.Sprint("✓"), evt.Label()))

	case *event.SetupCached:
		r.println(fmt.Sprintf("%sINFO: Using cached global setup state for %s", indent, evt.Label()))

	case *event.SetupSkipped:
		r.println(r.yellow.Sprintf("%sWARN: Global setup '%s' SKIPPED due to condition: %s", indent, evt.Label(), evt.Reason))

	case *event.SetupTolerated:
		r.println(r.yellow.Sprintf("%sWARN: Looks like the above site is not configured properly to run the global setup on '%s'.", indent, evt.Env))
		r.println(r.yellow.Sprintf("%sIs this test supposed to run on this environment?", indent))
		r.println(r.red.Sprintf("%sOriginal Error: %v", indent, evt.Error))
		r.println(r.yellow.Sprintf("%sPlease, double check your environments map for the '%s' env.", indent, evt.Env))
		r.println(r.yellow.Sprintf("%sThe global setup will be skipped for this site but some tests may fail.", indent))
		r.println()

	case *event.SetupFailed:
		r.println()
		r.println(r.red.Sprintf("%sError on %s login flow", indent, evt.Label()))
		r.println(r.red.Sprintf("%s%v", indent, evt.Error))
		r.println()

	case *event.ArtifactSaved:
		r.println(r.faint.Sprintf("%sScreenshot saved to %s", indent, evt.Path))

	case *event.GlobalSetupFinished:
		switch {
		case evt.Skipped:
			r.println(r.yellow.Sprint("\nGlobal Setup skipped: login states are disabled"))
		case evt.Error != nil:
			r.println(r.red.Sprintf("\nGlobal Setup failed after %s: %v", evt.Duration.Round(time.Millisecond), evt.Error))
		default:
			r.println(r.cyan.Sprintf("\nGlobal Setup finished successfully in %s", evt.Duration.Round(time.Millisecond)))
		}
	}
}

// PrintSetups writes one line per registered setup.
func (r *Reporter) PrintSetups(setups []application.SetupSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETUP\tTESTS PATH\tTTL\tNEEDED")
	for _, s := range setups {
		needed := r.faint.Sprint("no")
		if s.Needed {
			needed = r.green.Sprint("yes")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Label, s.TestsPath, formatTTL(s.CacheTTL), needed)
	}
	return w.Flush()
}

// PrintCacheStatus writes the TTL entry of every setup relative to now.
func (r *Reporter) PrintCacheStatus(entries []application.CacheEntry, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETUP\tTTL\tLAST EXECUTION\tSTATUS")
	for _, e := range entries {
		last := "never"
		if e.Found {
			last = fmt.Sprintf("%s ago", now.Sub(e.LastExecution).Round(time.Second))
		}
		status := r.green.Sprint("fresh")
		if e.Expired {
			status = r.yellow.Sprint("expired")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Label, formatTTL(e.TTL), last, status)
	}
	return w.Flush()
}

func formatTTL(ttl time.Duration) string {
	if ttl <= 0 {
		return "off"
	}
	return ttl.String()
}
