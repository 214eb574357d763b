package monitoring

import (
	"fmt"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Engine packages never print directly; they route
// warnings through Logf so tests and callers can redirect or mute them.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Once emits each distinct warning key at most once for its lifetime.
// A zero Once is ready to use.
type Once struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// Warnf logs the formatted message through Logf the first time key is seen
// and reports whether it did so.
func (o *Once) Warnf(key, format string, v ...interface{}) bool {
	o.mu.Lock()
	if o.seen == nil {
		o.seen = make(map[string]struct{})
	}
	if _, ok := o.seen[key]; ok {
		o.mu.Unlock()
		return false
	}
	o.seen[key] = struct{}{}
	o.mu.Unlock()
	Logf(format, v...)
	return true
}

// Reset forgets every key, starting a new warning session.
func (o *Once) Reset() {
	o.mu.Lock()
	o.seen = nil
	o.mu.Unlock()
}

// Keyf builds a dedup key from parts.
func Keyf(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}
