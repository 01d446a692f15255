package session

// CWDMemo is the one-slot cache of (host CWD, virtual-reversed CWD)
// §3 describes: a cheap way to avoid re-resolving getcwd(2) and its
// reverse mapping on every relative-path call within the same
// directory.
type CWDMemo struct {
	HostCWD    string
	VirtualCWD string
	valid      bool
}

// Get returns the memoized pair if it is still marked valid.
func (m *CWDMemo) Get() (hostCWD, virtualCWD string, ok bool) {
	if m == nil || !m.valid {
		return "", "", false
	}
	return m.HostCWD, m.VirtualCWD, true
}

// Set stores a fresh pair and marks the memo valid.
func (m *CWDMemo) Set(hostCWD, virtualCWD string) {
	m.HostCWD = hostCWD
	m.VirtualCWD = virtualCWD
	m.valid = true
}

// Invalidate drops the memo, forcing the next lookup to recompute (a
// chdir/chroot happened).
func (m *CWDMemo) Invalidate() { m.valid = false }

// Context is the per-thread state §3/§9 describe: a reentrancy guard
// protecting the mapper against being re-entered by code it calls
// itself (logger, readlink, realpath), plus the CWD memo. One Context
// exists per OS thread; callers are expected to key a
// thread-local/goroutine-local store by whatever identifies "thread"
// in their runtime (the core itself runs on a calling thread's stack
// per §5, never spawning its own).
type Context struct {
	mappingDisabled int
	CWD             CWDMemo
}

// Disable increments the reentrancy counter; pair with a deferred
// Enable. While the counter is non-zero, intercepted calls fall
// through unmapped (§5 "Reentrancy").
func (c *Context) Disable() { c.mappingDisabled++ }

// Enable decrements the reentrancy counter. Calling Enable more times
// than Disable is a caller bug; the counter is clamped at zero rather
// than going negative so a single mismatched call doesn't wedge
// mapping on permanently.
func (c *Context) Enable() {
	if c.mappingDisabled > 0 {
		c.mappingDisabled--
	}
}

// MappingDisabled reports whether interception should fall through
// unmapped right now.
func (c *Context) MappingDisabled() bool { return c.mappingDisabled > 0 }

// Guard acquires the reentrancy guard and returns a function that
// releases it, for use as `defer ctx.Guard()()` at every mapping entry
// point (§9 "a scope guard acquired on entry to the mapper increments
// the disable counter and drops it on exit from every path").
func (c *Context) Guard() func() {
	c.Disable()
	return c.Enable
}
