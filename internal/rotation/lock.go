package rotation

import "sync"

// GlobalScope is the lock scope used when every account shares one PIN
const GlobalScope = "*"

// Lock tracks the scopes that are currently rotating.
// Each scope moves idle -> rotating -> idle; re-entry while rotating is rejected.
type Lock struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewLock creates an idle lock
func NewLock() *Lock {
	return &Lock{active: make(map[string]struct{})}
}

// TryEnter marks scope as rotating and reports whether the caller owns it
func (l *Lock) TryEnter(scope string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[scope]; busy {
		return false
	}
	l.active[scope] = struct{}{}
	return true
}

// Exit returns scope to idle
func (l *Lock) Exit(scope string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, scope)
}

// Rotating reports whether scope has a rotation in flight
func (l *Lock) Rotating(scope string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.active[scope]
	return busy
}

// GlobalPin holds the PIN shared by all accounts in global mode
type GlobalPin struct {
	mu  sync.RWMutex
	pin string
}

// NewGlobalPin creates the shared PIN state
func NewGlobalPin(pin string) *GlobalPin {
	return &GlobalPin{pin: pin}
}

// Current returns the active shared PIN
func (g *GlobalPin) Current() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pin
}

// Set replaces the shared PIN
func (g *GlobalPin) Set(pin string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pin = pin
}
