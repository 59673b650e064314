package pfs

// CachedStates returns the number of memoized states.
func (p *Plugin) CachedStates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}
