package dimse

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrAborted is returned when the peer aborts the association.
var ErrAborted = errors.New("association aborted by peer")

// PresentationContextRequest proposes one abstract syntax. SCPRole
// requests role reversal so the peer may issue C-STORE sub-operations
// on the context (required for C-GET retrieval).
type PresentationContextRequest struct {
	AbstractSyntax string
	SCPRole        bool
}

// PresentationContext is a negotiated context on an open association.
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
	Accepted       bool
}

// Config parameterizes an association.
type Config struct {
	CallingAETitle string
	CalledAETitle  string
	MaxPDULength   uint32
	ConnectTimeout time.Duration
	Timeout        time.Duration
	Contexts       []PresentationContextRequest
	Logger         zerolog.Logger
}

func (c Config) maxPDULength() uint32 {
	if c.MaxPDULength == 0 {
		return DefaultMaxPDULength
	}
	return c.MaxPDULength
}

// Assoc is an open client association. It is owned by a single
// goroutine; only Abort is safe to call from another goroutine, so a
// pending read or write can be cancelled by closing the connection
// underneath it.
type Assoc struct {
	conn       net.Conn
	cfg        Config
	peerMaxPDU uint32
	contexts   map[byte]*PresentationContext
	byAbstract map[string]*PresentationContext
	messageID  uint16
	log        zerolog.Logger

	// mu guards the lifecycle flags against a concurrent Abort.
	mu       sync.Mutex
	released bool
	aborted  bool
}

// Connect dials the peer and negotiates an association. The proposed
// contexts are capped at the protocol limit of 128.
func Connect(address string, cfg Config) (*Assoc, error) {
	conn, err := net.DialTimeout("tcp", address, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	a, err := NewAssoc(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

// NewAssoc negotiates an association over an existing connection.
func NewAssoc(conn net.Conn, cfg Config) (*Assoc, error) {
	proposals := cfg.Contexts
	if len(proposals) > MaxPresentationContexts {
		proposals = proposals[:MaxPresentationContexts]
	}

	a := &Assoc{
		conn:       conn,
		cfg:        cfg,
		contexts:   make(map[byte]*PresentationContext),
		byAbstract: make(map[string]*PresentationContext),
		log:        cfg.Logger,
	}

	a.setDeadline()
	if err := writePDU(conn, pduAssociateRQ, buildAssociateRQ(cfg, proposals)); err != nil {
		return nil, fmt.Errorf("sending associate request: %w", err)
	}

	pduType, body, err := readPDU(conn)
	if err != nil {
		return nil, fmt.Errorf("reading associate response: %w", err)
	}
	switch pduType {
	case pduAssociateAC:
	case pduAssociateRJ:
		return nil, errors.New(rejectReason(body))
	case pduAbort:
		return nil, ErrAborted
	default:
		return nil, fmt.Errorf("unexpected pdu type 0x%02x during negotiation", pduType)
	}

	results, peerMaxPDU, err := parseAssociateAC(body)
	if err != nil {
		return nil, err
	}
	a.peerMaxPDU = peerMaxPDU

	accepted := 0
	for _, res := range results {
		idx := int(res.id-1) / 2
		if res.id%2 == 0 || idx >= len(proposals) {
			continue
		}
		ctx := &PresentationContext{
			ID:             res.id,
			AbstractSyntax: proposals[idx].AbstractSyntax,
			TransferSyntax: res.transferSyntax,
			Accepted:       res.result == 0,
		}
		a.contexts[ctx.ID] = ctx
		if ctx.Accepted {
			accepted++
			if _, ok := a.byAbstract[ctx.AbstractSyntax]; !ok {
				a.byAbstract[ctx.AbstractSyntax] = ctx
			}
		}
	}
	if accepted == 0 {
		return nil, errors.New("peer accepted no presentation contexts")
	}

	a.log.Debug().
		Int("accepted_contexts", accepted).
		Uint32("peer_max_pdu", peerMaxPDU).
		Str("called_ae", cfg.CalledAETitle).
		Msg("Association established")
	return a, nil
}

func (a *Assoc) setDeadline() {
	if a.cfg.Timeout > 0 {
		a.conn.SetDeadline(time.Now().Add(a.cfg.Timeout))
	}
}

// ContextFor returns the accepted context for an abstract syntax.
func (a *Assoc) ContextFor(abstractSyntax string) (*PresentationContext, error) {
	ctx, ok := a.byAbstract[abstractSyntax]
	if !ok {
		return nil, fmt.Errorf("no accepted presentation context for %s", abstractSyntax)
	}
	return ctx, nil
}

// TransferSyntaxFor returns the negotiated transfer syntax of a
// context ID, or "" when unknown.
func (a *Assoc) TransferSyntaxFor(ctxID byte) string {
	if ctx, ok := a.contexts[ctxID]; ok && ctx.Accepted {
		return ctx.TransferSyntax
	}
	return ""
}

// NextMessageID returns a fresh DIMSE message ID.
func (a *Assoc) NextMessageID() uint16 {
	a.messageID++
	return a.messageID
}

// SendMessage writes a DIMSE message on a context, fragmenting the
// command set and dataset into P-DATA-TF PDUs within the peer's
// maximum PDU length.
func (a *Assoc) SendMessage(ctxID byte, cmd *Command, dataset []byte) error {
	cmdBytes, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	a.setDeadline()
	if err := a.sendPDVs(ctxID, cmdBytes, true); err != nil {
		return fmt.Errorf("sending command set: %w", err)
	}
	if cmd.HasDataset() {
		if err := a.sendPDVs(ctxID, dataset, false); err != nil {
			return fmt.Errorf("sending dataset: %w", err)
		}
	}
	return nil
}

func (a *Assoc) sendPDVs(ctxID byte, data []byte, isCommand bool) error {
	maxPDU := a.peerMaxPDU
	if maxPDU == 0 {
		maxPDU = DefaultMaxPDULength
	}
	// PDV overhead inside the PDU body: 4-byte item length, context
	// ID and message control header.
	maxFragment := int(maxPDU) - 6
	if maxFragment < 1 {
		maxFragment = 1
	}

	for offset := 0; ; {
		end := offset + maxFragment
		last := false
		if end >= len(data) {
			end = len(data)
			last = true
		}
		fragment := data[offset:end]

		var control byte
		if isCommand {
			control |= 0x01
		}
		if last {
			control |= 0x02
		}

		body := make([]byte, 0, 6+len(fragment))
		body = appendUint32BE(body, uint32(2+len(fragment)))
		body = append(body, ctxID, control)
		body = append(body, fragment...)
		if err := writePDU(a.conn, pduDataTF, body); err != nil {
			return err
		}
		if last {
			return nil
		}
		offset = end
	}
}

// ReceiveMessage reads one complete DIMSE message: the command set and
// its dataset, reassembled across P-DATA-TF fragments. The returned
// context ID identifies the presentation context the message arrived
// on.
func (a *Assoc) ReceiveMessage() (*Command, []byte, byte, error) {
	var (
		cmdBuf  []byte
		dataBuf []byte
		cmd     *Command
		ctxID   byte
	)
	a.setDeadline()
	for {
		pduType, body, err := readPDU(a.conn)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("reading pdu: %w", err)
		}
		switch pduType {
		case pduAbort:
			a.mu.Lock()
			a.aborted = true
			a.mu.Unlock()
			return nil, nil, 0, ErrAborted
		case pduDataTF:
		default:
			return nil, nil, 0, fmt.Errorf("unexpected pdu type 0x%02x", pduType)
		}

		for len(body) > 0 {
			if len(body) < 6 {
				return nil, nil, 0, fmt.Errorf("short pdv item")
			}
			itemLen := int(uint32BE(body))
			if itemLen < 2 || len(body) < 4+itemLen {
				return nil, nil, 0, fmt.Errorf("invalid pdv item length %d", itemLen)
			}
			ctxID = body[4]
			control := body[5]
			fragment := body[6 : 4+itemLen]
			body = body[4+itemLen:]

			if control&0x01 != 0 {
				cmdBuf = append(cmdBuf, fragment...)
				if control&0x02 != 0 {
					if cmd, err = DecodeCommand(cmdBuf); err != nil {
						return nil, nil, 0, err
					}
					if !cmd.HasDataset() {
						return cmd, nil, ctxID, nil
					}
				}
			} else {
				dataBuf = append(dataBuf, fragment...)
				if control&0x02 != 0 {
					if cmd == nil {
						return nil, nil, 0, fmt.Errorf("dataset fragment without command set")
					}
					return cmd, dataBuf, ctxID, nil
				}
			}
		}
	}
}

// Release performs a graceful A-RELEASE handshake and closes the
// connection. The connection is closed even when the handshake fails.
func (a *Assoc) Release() error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	a.released = true
	aborted := a.aborted
	a.mu.Unlock()
	defer a.conn.Close()

	if aborted {
		return nil
	}
	a.setDeadline()
	if err := writePDU(a.conn, pduReleaseRQ, make([]byte, 4)); err != nil {
		return fmt.Errorf("sending release request: %w", err)
	}
	for {
		pduType, _, err := readPDU(a.conn)
		if err != nil {
			return fmt.Errorf("waiting for release response: %w", err)
		}
		switch pduType {
		case pduReleaseRP:
			a.log.Debug().Msg("Association released")
			return nil
		case pduDataTF:
			// Straggling data from an aborted operation; drain it.
			continue
		default:
			return fmt.Errorf("unexpected pdu type 0x%02x during release", pduType)
		}
	}
}

// Abort sends A-ABORT and closes the connection. Safe to call more
// than once, from another goroutine, and after the peer has already
// gone away.
func (a *Assoc) Abort() {
	a.mu.Lock()
	done := a.aborted || a.released
	a.aborted = true
	a.mu.Unlock()
	if done {
		a.conn.Close()
		return
	}
	a.setDeadline()
	if err := writePDU(a.conn, pduAbort, []byte{0x00, 0x00, 0x00, 0x00}); err != nil {
		a.log.Debug().Err(err).Msg("Abort write failed")
	}
	a.conn.Close()
	a.log.Debug().Msg("Association aborted")
}

func appendUint32BE(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func uint32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
