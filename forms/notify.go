package forms

import "sync"

// Notifier shows submit outcomes to the admin: Notice for success, Alert
// for a failed store call.
type Notifier interface {
	Notice(msg string)
	Alert(msg string)
}

// Messages collects notices and alerts, e.g. for one HTTP request.
type Messages struct {
	mu      sync.Mutex
	notices []string
	alerts  []string
}

func (m *Messages) Notice(msg string) {
	m.mu.Lock()
	m.notices = append(m.notices, msg)
	m.mu.Unlock()
}

func (m *Messages) Alert(msg string) {
	m.mu.Lock()
	m.alerts = append(m.alerts, msg)
	m.mu.Unlock()
}

func (m *Messages) Notices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notices...)
}

func (m *Messages) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.alerts...)
}

type discard struct{}

func (discard) Notice(string) {}
func (discard) Alert(string)  {}
