package livequery

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openradlabs/dicom-transfer/internal/connector"
)

// fakeOperator blocks in Run until released so tests control the
// interleaving.
type fakeOperator struct {
	records []connector.Record
	err     error

	release   chan struct{}
	startOnce sync.Once
	started   chan struct{}

	mu      sync.Mutex
	aborted bool
}

func newFakeOperator(records ...connector.Record) *fakeOperator {
	return &fakeOperator{
		records: records,
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
}

func (f *fakeOperator) Run() ([]connector.Record, error) {
	f.startOnce.Do(func() { close(f.started) })
	<-f.release
	return f.records, f.err
}

func (f *fakeOperator) Abort() {
	f.mu.Lock()
	f.aborted = true
	f.mu.Unlock()
}

func (f *fakeOperator) wasAborted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborted
}

func waitStarted(t *testing.T, op *fakeOperator) {
	t.Helper()
	select {
	case <-op.started:
	case <-time.After(2 * time.Second):
		t.Fatal("operator never started")
	}
}

func receiveUpdate(t *testing.T, s *Session) Update {
	t.Helper()
	select {
	case u := <-s.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
		return Update{}
	}
}

func assertNoUpdate(t *testing.T, s *Session) {
	t.Helper()
	select {
	case u := <-s.Updates():
		t.Fatalf("unexpected update for seq %d", u.Seq)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitDeliversResults(t *testing.T) {
	s := NewSession(2, zerolog.Nop())
	defer s.Close()

	op := newFakeOperator(connector.Record{StudyInstanceUID: "1.2.3"})
	close(op.release)

	seq := s.Submit(func() (Operator, error) { return op, nil })

	u := receiveUpdate(t, s)
	assert.Equal(t, seq, u.Seq)
	require.NoError(t, u.Err)
	require.Len(t, u.Records, 1)
	assert.Equal(t, "1.2.3", u.Records[0].StudyInstanceUID)
}

func TestNewCommandSupersedesInFlightQuery(t *testing.T) {
	s := NewSession(2, zerolog.Nop())
	defer s.Close()

	opA := newFakeOperator(connector.Record{StudyInstanceUID: "old"})
	opB := newFakeOperator(connector.Record{StudyInstanceUID: "new"})

	s.Submit(func() (Operator, error) { return opA, nil })
	waitStarted(t, opA)

	seqB := s.Submit(func() (Operator, error) { return opB, nil })
	waitStarted(t, opB)
	assert.True(t, opA.wasAborted())

	close(opB.release)
	u := receiveUpdate(t, s)
	assert.Equal(t, seqB, u.Seq)
	require.Len(t, u.Records, 1)
	assert.Equal(t, "new", u.Records[0].StudyInstanceUID)

	// The superseded query finishes late; its result is discarded.
	close(opA.release)
	assertNoUpdate(t, s)
}

func TestCancelAbortsAndDiscards(t *testing.T) {
	s := NewSession(1, zerolog.Nop())
	defer s.Close()

	op := newFakeOperator(connector.Record{StudyInstanceUID: "1.2.3"})
	s.Submit(func() (Operator, error) { return op, nil })
	waitStarted(t, op)

	s.Cancel()
	assert.True(t, op.wasAborted())

	close(op.release)
	assertNoUpdate(t, s)
}

func TestOpenFailureIsDelivered(t *testing.T) {
	s := NewSession(1, zerolog.Nop())
	defer s.Close()

	seq := s.Submit(func() (Operator, error) {
		return nil, errors.New("association failed")
	})

	u := receiveUpdate(t, s)
	assert.Equal(t, seq, u.Seq)
	assert.Error(t, u.Err)
	assert.Empty(t, u.Records)
}

func TestWorkerBoundHoldsBackNewQuery(t *testing.T) {
	s := NewSession(1, zerolog.Nop())
	defer s.Close()

	opA := newFakeOperator()
	opB := newFakeOperator(connector.Record{StudyInstanceUID: "new"})

	s.Submit(func() (Operator, error) { return opA, nil })
	waitStarted(t, opA)

	seqB := s.Submit(func() (Operator, error) { return opB, nil })

	// The single worker is still occupied by the superseded query.
	assertNoUpdate(t, s)

	close(opA.release)
	waitStarted(t, opB)
	close(opB.release)

	u := receiveUpdate(t, s)
	assert.Equal(t, seqB, u.Seq)
	assert.Equal(t, "new", u.Records[0].StudyInstanceUID)
}

func TestCloseWaitsForWorkers(t *testing.T) {
	s := NewSession(1, zerolog.Nop())

	op := newFakeOperator()
	s.Submit(func() (Operator, error) { return op, nil })
	waitStarted(t, op)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Close returned while a worker was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(op.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close never returned")
	}
	assert.True(t, op.wasAborted())
}
