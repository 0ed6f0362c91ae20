package network

import (
	"sync"
	"time"
)

// addrStatus tracks whether dialing an address has recently worked,
// used to back off a consistently unreachable peer without forgetting
// it outright.
type addrStatus struct {
	connected bool
	lastSeen  time.Time
	attempts  int
	banned    bool
	bannedAt  time.Time
}

// Discoverer tracks known peer addresses, feeds the connection
// maintenance loop candidates to dial, and backs off/bans misbehaving
// ones (§4.10 "Peer scoring & admission").
type Discoverer struct {
	mu          sync.Mutex
	dialTimeout time.Duration
	banDuration time.Duration

	addrs map[string]*addrStatus
	dial  func(addr string, timeout time.Duration)
}

// NewDiscoverer builds a Discoverer seeded with the given bootstrap
// addresses. dialTimeout and dial are stored but no Discoverer method
// uses them; callers dial the addresses Candidates returns.
func NewDiscoverer(seeds []string, dialTimeout, banDuration time.Duration, dial func(addr string, timeout time.Duration)) *Discoverer {
	d := &Discoverer{
		dialTimeout: dialTimeout,
		banDuration: banDuration,
		addrs:       make(map[string]*addrStatus),
		dial:        dial,
	}
	for _, a := range seeds {
		d.addrs[a] = &addrStatus{}
	}
	return d
}

// RegisterGood records addr as successfully connected.
func (d *Discoverer) RegisterGood(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.addrs[addr]
	if !ok {
		st = &addrStatus{}
		d.addrs[addr] = st
	}
	st.connected = true
	st.lastSeen = nowFunc()
	st.attempts = 0
}

// RegisterBad records a failed dial or a protocol violation against
// addr; repeated failures do not by themselves ban — Ban does that
// explicitly for scored misbehavior.
func (d *Discoverer) RegisterBad(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.addrs[addr]
	if !ok {
		st = &addrStatus{}
		d.addrs[addr] = st
	}
	st.connected = false
	st.attempts++
}

// Ban marks addr as blacklisted for banDuration (§4.10: "disconnect and
// blacklist for ban_duration").
func (d *Discoverer) Ban(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.addrs[addr]
	if !ok {
		st = &addrStatus{}
		d.addrs[addr] = st
	}
	st.banned = true
	st.bannedAt = nowFunc()
	st.connected = false
}

// IsBanned reports whether addr is currently within its ban window.
func (d *Discoverer) IsBanned(addr string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.addrs[addr]
	if !ok || !st.banned {
		return false
	}
	if nowFunc().Sub(st.bannedAt) > d.banDuration {
		st.banned = false
		return false
	}
	return true
}

// Merge adds newly-learned addresses from an addr message, never
// overwriting an address this node already knows about.
func (d *Discoverer) Merge(addrs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range addrs {
		if _, ok := d.addrs[a]; !ok {
			d.addrs[a] = &addrStatus{}
		}
	}
}

// Candidates returns up to n addresses not currently connected and not
// banned, for the connection-maintenance loop to attempt.
func (d *Discoverer) Candidates(n int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, n)
	for a, st := range d.addrs {
		if st.connected || st.banned {
			continue
		}
		out = append(out, a)
		if len(out) >= n {
			break
		}
	}
	return out
}

// GoodAddresses returns up to MaxAddressesInList addresses this node
// has successfully connected to (for answering getaddr), excluding the
// requester's own address.
func (d *Discoverer) GoodAddresses(exclude string, limit int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, limit)
	for a, st := range d.addrs {
		if a == exclude || !st.connected {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Count returns the number of addresses currently tracked.
func (d *Discoverer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.addrs)
}

// nowFunc is indirected so tests can observe ban expiry deterministically.
var nowFunc = time.Now
