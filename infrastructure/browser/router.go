package browser

import "context"

// Router sends each launch to the launcher registered for its engine.
// Engines without a route go to the fallback launcher.
type Router struct {
	fallback Launcher
	routes   map[Name]Launcher
}

// NewRouter creates a Router that launches unrouted engines with fallback.
func NewRouter(fallback Launcher) *Router {
	return &Router{
		fallback: fallback,
		routes:   make(map[Name]Launcher),
	}
}

// Route registers the launcher for one engine.
func (r *Router) Route(name Name, launcher Launcher) *Router {
	r.routes[name] = launcher
	return r
}

// LaunchPersistentContext implements Launcher.
func (r *Router) LaunchPersistentContext(ctx context.Context, opts LaunchOptions) (Context, error) {
	name := opts.Browser
	if name == "" {
		name = Chromium
	}
	if launcher, ok := r.routes[name]; ok {
		return launcher.LaunchPersistentContext(ctx, opts)
	}
	return r.fallback.LaunchPersistentContext(ctx, opts)
}

var _ Launcher = (*Router)(nil)
