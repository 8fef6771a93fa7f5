// Package autosave turns a stream of editor changes into a small number of
// store writes.
//
// Nothing is written until the session has accumulated enough active
// typing time to cross the threshold. After that, each burst of edits is
// saved once, a debounce interval after its last edit. Active typing time
// is measured in segments: a segment runs from its first edit to its most
// recent one, and a gap longer than the inactivity window starts a new
// segment. Segment times add up across the whole session.
//
// Machine holds the state and transitions with no timers or I/O. Editor
// drives a Machine with a clock and a store.
package autosave

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// State is the phase of an editing session.
type State int

const (
	Idle     State = iota // no edits in flight
	Engaging              // edits arriving, threshold not crossed yet
	Saving                // threshold crossed; debounced saves are live
	Closed                // closed or cancelled; no further writes
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Engaging:
		return "engaging"
	case Saving:
		return "saving"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Settings are the timing parameters of a session.
type Settings struct {
	Threshold  time.Duration // active typing time before the first write
	Debounce   time.Duration // delay after the last edit before a write
	Inactivity time.Duration // gap that ends a typing segment
}

// Draft is the editable content of a text note.
type Draft struct {
	Title string
	Body  string
	Site  string
}

// Sum fingerprints the draft for change detection.
func (d Draft) Sum() uint64 {
	h := xxhash.New()
	for _, s := range []string{d.Title, d.Body, d.Site} {
		h.WriteString(s)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Machine is the autosave state of one editing session.
type Machine struct {
	settings Settings
	state    State

	cumulative time.Duration // closed segments
	segStart   time.Time
	lastEdit   time.Time
	inSegment  bool
	crossed    bool

	draft    Draft
	savedSum uint64
	baseline bool // savedSum describes stored content
	exists   bool // a record with this ID is known to be stored
}

// NewMachine starts a session for a draft that has never been stored.
func NewMachine(s Settings) *Machine {
	return &Machine{settings: s}
}

// ResumeMachine starts a session for content already stored. Unchanged
// content is not rewritten.
func ResumeMachine(s Settings, stored Draft) *Machine {
	return &Machine{
		settings: s,
		draft:    stored,
		savedSum: stored.Sum(),
		baseline: true,
		exists:   true,
	}
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Draft returns the in-memory content.
func (m *Machine) Draft() Draft { return m.draft }

// Crossed reports whether the typing threshold has been reached in this
// session.
func (m *Machine) Crossed() bool { return m.crossed }

// Exists reports whether the record is known to be stored, either because
// the session resumed it or because a write succeeded.
func (m *Machine) Exists() bool { return m.exists }

// ActiveTyping returns the typing time accumulated so far.
func (m *Machine) ActiveTyping() time.Duration {
	if !m.inSegment {
		return m.cumulative
	}
	return m.cumulative + m.lastEdit.Sub(m.segStart)
}

// Dirty reports whether the draft differs from what was last stored.
func (m *Machine) Dirty() bool {
	return !m.baseline || m.draft.Sum() != m.savedSum
}

// Edit applies mutate at time now. It returns false if the session is
// closed, in which case the draft is unchanged.
func (m *Machine) Edit(now time.Time, mutate func(*Draft)) bool {
	if m.state == Closed {
		return false
	}
	if !m.inSegment || now.Sub(m.lastEdit) > m.settings.Inactivity {
		m.closeSegment()
		m.segStart = now
		m.inSegment = true
	}
	if now.After(m.lastEdit) {
		m.lastEdit = now
	}
	mutate(&m.draft)

	if !m.crossed && m.ActiveTyping() >= m.settings.Threshold {
		m.crossed = true
	}
	if m.crossed {
		m.state = Saving
	} else {
		m.state = Engaging
	}
	return true
}

// Inactive ends the current segment if no edit has arrived within the
// inactivity window before now.
func (m *Machine) Inactive(now time.Time) {
	if m.state == Closed || !m.inSegment {
		return
	}
	if now.Sub(m.lastEdit) < m.settings.Inactivity {
		return
	}
	m.closeSegment()
	m.state = Idle
}

// DebounceFired returns the draft to write when the debounce interval has
// elapsed. ok is false when nothing should be written: the threshold has
// not been crossed, the draft is unchanged, or the session is closed.
func (m *Machine) DebounceFired() (d Draft, ok bool) {
	if m.state == Closed || !m.crossed || !m.Dirty() {
		return Draft{}, false
	}
	return m.draft, true
}

// Persisted records a successful write of content whose fingerprint is
// sum.
func (m *Machine) Persisted(sum uint64) {
	m.savedSum = sum
	m.baseline = true
	m.exists = true
}

// Cancel ends the session without a final write.
func (m *Machine) Cancel() {
	m.closeSegment()
	m.state = Closed
}

// Close ends the session and returns the draft for a final write, if one
// is due. A draft that never crossed the threshold is dropped.
func (m *Machine) Close() (d Draft, ok bool) {
	if m.state == Closed {
		return Draft{}, false
	}
	d, ok = m.DebounceFired()
	m.Cancel()
	return d, ok
}

func (m *Machine) closeSegment() {
	if m.inSegment {
		m.cumulative += m.lastEdit.Sub(m.segStart)
		m.inSegment = false
	}
}
