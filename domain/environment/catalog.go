package environment

import (
	"sort"
	"strings"
	"sync"
)

// Catalog holds the environment maps of all experiences.
type Catalog struct {
	maps map[string]*Map
	mu   sync.RWMutex
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{maps: make(map[string]*Map)}
}

// Register adds a map, replacing one with the same experience name.
func (c *Catalog) Register(m *Map) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maps[m.ExperienceName] = m
}

// Get returns the map of an experience, or nil.
func (c *Catalog) Get(experience string) *Map {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maps[experience]
}

// All returns every map sorted by experience name.
func (c *Catalog) All() []*Map {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maps := make([]*Map, 0, len(c.maps))
	for _, m := range c.maps {
		maps = append(maps, m)
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].ExperienceName < maps[j].ExperienceName })
	return maps
}

// SessionSites returns the site URLs of an experience. Unknown experiences have no sites.
func (c *Catalog) SessionSites(experience string, sel Selection) map[string]string {
	m := c.Get(experience)
	if m == nil {
		return map[string]string{}
	}
	return m.SessionSites(sel)
}

// ExperiencesRunning returns the names of experiences with at least one test
// path under their experience path.
func (c *Catalog) ExperiencesRunning(testPaths []string) []string {
	var running []string
	for _, m := range c.All() {
		if m.ExperiencePath == "" {
			continue
		}
		for _, p := range testPaths {
			if strings.Contains(p, m.ExperiencePath) {
				running = append(running, m.ExperienceName)
				break
			}
		}
	}
	return running
}
