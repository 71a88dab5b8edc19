// Package doorsession aggregates one operator's scanning session at the
// door: recent results for display, running tallies and suppression of
// repeated reads of a code that stays in front of the scanner.
//
// Suppression is a display nicety. Single admission is enforced by the
// server whatever the session does.
package doorsession

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const (
	DefaultWindow = 50
	DefaultDedupe = 3 * time.Second
)

// Scanner submits one code for the session's event.
type Scanner interface {
	Scan(ctx context.Context, code string) (model.ScanOutcome, error)
}

// Entry is one row of the recent-results window. Err is set when the scan
// never reached a classification.
type Entry struct {
	Code    string
	At      time.Time
	Outcome model.ScanOutcome
	Err     error
}

// Tally counts outcomes over the whole session. Rejected covers every
// classified result other than admitted and already_used; Failed counts
// scans that could not be classified because the backend was unreachable.
type Tally struct {
	Admitted    int
	AlreadyUsed int
	Rejected    int
	Failed      int
	Suppressed  int
}

// Total is the number of scans that were sent to the server.
func (t Tally) Total() int { return t.Admitted + t.AlreadyUsed + t.Rejected + t.Failed }

// Options tune a Session. Zero values pick the defaults.
type Options struct {
	Window int
	Dedupe time.Duration
	Now    func() time.Time
}

// Session is safe for concurrent use.
type Session struct {
	scanner Scanner
	dedupe  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	ring   []Entry
	next   int
	filled bool
	tally  Tally
	seen   map[string]time.Time
}

func New(scanner Scanner, opts Options) *Session {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Dedupe < 0 {
		opts.Dedupe = 0
	} else if opts.Dedupe == 0 {
		opts.Dedupe = DefaultDedupe
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		scanner: scanner,
		dedupe:  opts.Dedupe,
		now:     opts.Now,
		ring:    make([]Entry, opts.Window),
		seen:    make(map[string]time.Time),
	}
}

// Submit scans code unless the same code was read within the dedupe
// window, in which case it returns sent=false. Every suppressed read
// restarts the window, so a ticket left in front of the scanner is sent
// once. A backend failure is recorded and returned; the code is then not
// held in the dedupe window so the operator can retry at once.
func (s *Session) Submit(ctx context.Context, code string) (e Entry, sent bool, err error) {
	code = model.NormalizeScanCode(code)
	if code == "" {
		return Entry{}, false, nil
	}

	s.mu.Lock()
	at := s.now()
	s.expire(at)
	if last, ok := s.seen[code]; ok && at.Sub(last) < s.dedupe {
		s.tally.Suppressed++
		s.seen[code] = at
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	s.seen[code] = at
	s.mu.Unlock()

	out, err := s.scanner.Scan(ctx, code)
	e = Entry{Code: code, At: at, Outcome: out, Err: err}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.seen, code)
		s.tally.Failed++
	} else {
		switch out.Result {
		case model.ScanAdmitted:
			s.tally.Admitted++
		case model.ScanAlreadyUsed:
			s.tally.AlreadyUsed++
		default:
			s.tally.Rejected++
		}
	}
	s.push(e)
	return e, true, err
}

// expire drops dedupe marks older than the window. Caller holds mu.
func (s *Session) expire(now time.Time) {
	for code, t := range s.seen {
		if now.Sub(t) >= s.dedupe {
			delete(s.seen, code)
		}
	}
}

// push appends to the ring. Caller holds mu.
func (s *Session) push(e Entry) {
	s.ring[s.next] = e
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.filled = true
	}
}

// Recent returns the retained results, newest first.
func (s *Session) Recent() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	if s.filled {
		n = len(s.ring)
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, s.ring[(s.next-i+len(s.ring))%len(s.ring)])
	}
	return out
}

// Tally returns the counts so far.
func (s *Session) Tally() Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}
