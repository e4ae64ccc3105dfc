package livequery

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/openradlabs/dicom-transfer/internal/connector"
)

// Operator is one abortable query execution. connector.Connector
// wrapped in a small closure satisfies it; tests use doubles.
type Operator interface {
	Run() ([]connector.Record, error)
	Abort()
}

// Update carries the results of one command back to the consumer,
// tagged with the command's sequence number.
type Update struct {
	Seq     int
	Records []connector.Record
	Err     error
}

// Session serializes interactive queries for one client. Every new
// command supersedes the previous one: in-flight operators are aborted
// and their late results discarded by sequence number. The mutex is
// held for bookkeeping only, never across network calls.
type Session struct {
	mu       sync.Mutex
	seq      int
	inflight map[int]Operator
	closed   bool

	sem     chan struct{}
	updates chan Update
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// NewSession returns a session running at most workers queries at
// once.
func NewSession(workers int, log zerolog.Logger) *Session {
	if workers <= 0 {
		workers = 1
	}
	return &Session{
		inflight: make(map[int]Operator),
		sem:      make(chan struct{}, workers),
		updates:  make(chan Update, 2*workers),
		log:      log,
	}
}

// Updates is the stream of non-stale query results.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Submit issues a new command, superseding anything in flight, and
// returns its sequence number. The open callback builds the operator;
// it runs on a worker goroutine so Submit never blocks on the network.
func (s *Session) Submit(open func() (Operator, error)) int {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.abortInflightLocked()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		if s.stale(seq) {
			return
		}
		op, err := open()
		if err != nil {
			s.deliver(Update{Seq: seq, Err: err})
			return
		}

		s.mu.Lock()
		if seq != s.seq || s.closed {
			s.mu.Unlock()
			op.Abort()
			return
		}
		s.inflight[seq] = op
		s.mu.Unlock()

		records, err := op.Run()

		s.mu.Lock()
		delete(s.inflight, seq)
		s.mu.Unlock()

		s.deliver(Update{Seq: seq, Records: records, Err: err})
	}()
	return seq
}

// Cancel aborts everything in flight without issuing a new command.
// Late results of aborted operators are discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.abortInflightLocked()
}

// Close cancels outstanding work and waits for the workers to drain.
// The updates channel stays open; consumers simply stop reading it.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.abortInflightLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) abortInflightLocked() {
	for seq, op := range s.inflight {
		s.log.Debug().Int("seq", seq).Msg("Aborting superseded query")
		op.Abort()
	}
}

func (s *Session) stale(seq int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != s.seq || s.closed
}

// deliver forwards an update unless it became stale. A consumer that
// stopped reading loses updates rather than wedging the session.
func (s *Session) deliver(u Update) {
	if s.stale(u.Seq) {
		return
	}
	select {
	case s.updates <- u:
	default:
		s.log.Warn().Int("seq", u.Seq).Msg("Dropping query update, consumer not reading")
	}
}
