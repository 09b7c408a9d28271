package hook

import (
	"slices"
	"sort"
	"sync"
)

// link is one installed hook with its selector. pre and post are nil for
// the phases the hook does not take part in.
type link struct {
	name  string
	prio  int
	match Match
	pre   PreDispatchHook
	post  PostDispatchHook
}

// Chain holds the hooks of one dispatcher, ordered by descending priority.
// Before walks it front to back and After back to front, so a hook that sees
// a dispatch first sees its outcome last.
type Chain struct {
	mu    sync.RWMutex
	links []link
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add installs h for the dispatches m selects, replacing any hook with the
// same name. It reports false, installing nothing, when h implements neither
// PreDispatchHook nor PostDispatchHook.
func (c *Chain) Add(h Hook, m Match) bool {
	l := link{name: h.Name(), prio: h.Priority(), match: m}
	l.pre, _ = h.(PreDispatchHook)
	l.post, _ = h.(PostDispatchHook)
	if l.pre == nil && l.post == nil {
		return false
	}
	// A Func takes part only in the phases it has a function for.
	if f, ok := h.(*Func); ok {
		if f.pre == nil {
			l.pre = nil
		}
		if f.post == nil {
			l.post = nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.links = deleteName(c.links, l.name)
	c.links = append(c.links, l)
	sort.SliceStable(c.links, func(i, j int) bool {
		return c.links[i].prio > c.links[j].prio
	})
	return true
}

// Remove uninstalls the hook named name.
func (c *Chain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.links)
	c.links = deleteName(c.links, name)
	return len(c.links) != n
}

// Len returns the number of installed hooks.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.links)
}

// Names returns the installed hook names in pre-dispatch order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.name
	}
	return names
}

// Before runs the selected pre-dispatch hooks. When one cancels, the rest
// are skipped and its name is returned with false.
func (c *Chain) Before(inv *Invocation) (string, bool) {
	for _, l := range c.snapshot() {
		if l.pre == nil || !l.match.Selects(inv) {
			continue
		}
		if !l.pre.PreDispatch(inv) {
			return l.name, false
		}
	}
	return "", true
}

// After runs the selected post-dispatch hooks, lowest priority first.
func (c *Chain) After(inv *Invocation, result any, err error) {
	links := c.snapshot()
	for i := len(links) - 1; i >= 0; i-- {
		l := links[i]
		if l.post != nil && l.match.Selects(inv) {
			l.post.PostDispatch(inv, result, err)
		}
	}
}

// snapshot lets hooks run without the lock, so a hook may edit the chain.
func (c *Chain) snapshot() []link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]link(nil), c.links...)
}

func deleteName(links []link, name string) []link {
	return slices.DeleteFunc(links, func(l link) bool { return l.name == name })
}
