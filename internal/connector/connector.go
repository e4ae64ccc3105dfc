package connector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// Capabilities mirror the query/retrieve features the remote server
// advertises. Engine methods check them before opening any socket.
type Capabilities struct {
	PatientRootFind bool
	PatientRootGet  bool
	PatientRootMove bool
	StudyRootFind   bool
	StudyRootGet    bool
	StudyRootMove   bool
}

// Config parameterizes a Connector.
type Config struct {
	Host           string
	Port           int
	AETitle        string
	CallingAETitle string
	Capabilities   Capabilities

	// ConnectRetries is the total number of association attempts
	// before Open gives up. RetryInterval is slept between attempts.
	ConnectRetries int
	RetryInterval  time.Duration

	ConnectTimeout time.Duration
	Timeout        time.Duration

	// NoAutoConnect disables the implicit open/close around engine
	// calls; the caller then manages the session explicitly.
	NoAutoConnect bool

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

// Modifier mutates a dataset in place before it is written to disk or
// sent to a server.
type Modifier func(ds *dimse.Dataset) error

// Connector owns at most one association to a single remote node. It
// is not safe for concurrent use, with one exception: Abort may be
// called from another goroutine to cancel an in-flight operation.
// Create one per node per task.
type Connector struct {
	cfg Config
	log zerolog.Logger
	ops operations

	// mu guards assoc against the cross-goroutine Abort.
	mu    sync.Mutex
	assoc *dimse.Assoc

	dial func(address string, cfg dimse.Config) (*dimse.Assoc, error)
}

// New returns a closed Connector for the given node.
func New(cfg Config) *Connector {
	cfg = cfg.withDefaults()
	c := &Connector{
		cfg:  cfg,
		log:  cfg.Logger.With().Str("server_ae", cfg.AETitle).Logger(),
		dial: dimse.Connect,
	}
	c.ops = &dimseOps{c: c}
	return c
}

// Open negotiates an association, retrying up to the configured
// attempt count with a pause between attempts.
func (c *Connector) Open() error {
	c.mu.Lock()
	open := c.assoc != nil
	c.mu.Unlock()
	if open {
		return errors.New("a previous association was not released; close it before reopening")
	}

	address := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ConnectRetries; attempt++ {
		assoc, err := c.dial(address, c.assocConfig())
		if err == nil {
			c.mu.Lock()
			c.assoc = assoc
			c.mu.Unlock()
			c.log.Debug().Str("address", address).Msg("Association opened")
			return nil
		}
		lastErr = err
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.cfg.ConnectRetries).
			Msg("Association attempt failed")
		if attempt < c.cfg.ConnectRetries {
			time.Sleep(c.cfg.RetryInterval)
		}
	}
	return &ConnectionError{Op: "associate", Err: lastErr}
}

// Close releases the association. Calling Close without an open
// association is a programming error and fails.
func (c *Connector) Close() error {
	c.mu.Lock()
	assoc := c.assoc
	c.assoc = nil
	c.mu.Unlock()
	if assoc == nil {
		return errors.New("no open association to release")
	}
	if err := assoc.Release(); err != nil {
		c.log.Warn().Err(err).Msg("Graceful release failed; connection closed anyway")
	}
	return nil
}

// Abort tears the association down without the release handshake. The
// session bookkeeping is left for Close so auto-connect unwinding
// stays balanced. Safe to call from another goroutine.
func (c *Connector) Abort() {
	c.mu.Lock()
	assoc := c.assoc
	c.mu.Unlock()
	if assoc != nil {
		assoc.Abort()
	}
}

// Echo verifies connectivity with a C-ECHO round trip.
func (c *Connector) Echo() error {
	return c.withAutoConnect(func() error {
		return c.ops.echo()
	})
}

// withAutoConnect opens a session around fn when none is open and
// auto-connect is enabled. Only the call that opened the session
// closes it, so nested engine calls reuse the outer session.
func (c *Connector) withAutoConnect(fn func() error) error {
	opened := false
	if !c.cfg.NoAutoConnect && c.assoc == nil {
		if err := c.Open(); err != nil {
			return err
		}
		opened = true
	}
	err := fn()
	if opened {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (c *Connector) assocConfig() dimse.Config {
	return dimse.Config{
		CallingAETitle: c.cfg.CallingAETitle,
		CalledAETitle:  c.cfg.AETitle,
		ConnectTimeout: c.cfg.ConnectTimeout,
		Timeout:        c.cfg.Timeout,
		Contexts:       presentationContexts(),
		Logger:         c.log,
	}
}

// presentationContexts proposes verification, every query/retrieve
// model, and storage classes with role reversal for C-GET, up to the
// protocol limit.
func presentationContexts() []dimse.PresentationContextRequest {
	reqs := []dimse.PresentationContextRequest{
		{AbstractSyntax: dimse.VerificationSOPClass},
	}
	for _, uid := range []string{
		dimse.PatientRootQRFind, dimse.PatientRootQRGet, dimse.PatientRootQRMove,
		dimse.StudyRootQRFind, dimse.StudyRootQRGet, dimse.StudyRootQRMove,
		dimse.PatientStudyOnlyQRFind, dimse.PatientStudyOnlyQRGet, dimse.PatientStudyOnlyQRMove,
	} {
		reqs = append(reqs, dimse.PresentationContextRequest{AbstractSyntax: uid})
	}
	for _, uid := range dimse.StorageSOPClasses {
		if len(reqs) >= dimse.MaxPresentationContexts {
			break
		}
		reqs = append(reqs, dimse.PresentationContextRequest{AbstractSyntax: uid, SCPRole: true})
	}
	return reqs
}
