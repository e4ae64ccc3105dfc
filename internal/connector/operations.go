package connector

import (
	"errors"
	"io/fs"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openradlabs/dicom-transfer/internal/metrics"
	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// Result is one response from a DIMSE operation's status stream.
// Pending results carry data; the terminal result does not.
type Result struct {
	Status dimse.Status
	Data   Record
}

// operations is the primitive DIMSE surface the engines run on. It is
// an interface so engine behavior can be tested against a scripted
// fake.
type operations interface {
	echo() error
	find(q *Query, sopClass string, limit int) ([]Result, error)
	get(q *Query, sopClass, folder string, modifier Modifier) ([]Result, error)
	move(q *Query, sopClass, destinationAET string) ([]Result, error)
	store(folder string, modifier Modifier) ([]Result, error)
}

// dimseOps runs the primitives against the connector's open
// association.
type dimseOps struct {
	c *Connector
}

func (o *dimseOps) session() (*dimse.Assoc, error) {
	if o.c.assoc == nil {
		return nil, &ConnectionError{Op: "dimse", Err: errors.New("no open association")}
	}
	return o.c.assoc, nil
}

func (o *dimseOps) echo() error {
	start := time.Now()
	err := o.doEcho()
	metrics.ObserveOperation("echo", err == nil, time.Since(start))
	return err
}

func (o *dimseOps) doEcho() error {
	a, err := o.session()
	if err != nil {
		return err
	}
	ctx, err := a.ContextFor(dimse.VerificationSOPClass)
	if err != nil {
		return &ConnectionError{Op: "C-ECHO", Err: err}
	}
	cmd := &dimse.Command{
		CommandField:        dimse.CEchoRQ,
		MessageID:           a.NextMessageID(),
		AffectedSOPClassUID: dimse.VerificationSOPClass,
		CommandDataSetType:  0x0101,
	}
	if err := a.SendMessage(ctx.ID, cmd, nil); err != nil {
		return &ConnectionError{Op: "C-ECHO", Err: err}
	}
	rsp, _, _, err := a.ReceiveMessage()
	if err != nil {
		return &ConnectionError{Op: "C-ECHO", Err: err}
	}
	status := dimse.NewStatus(rsp.Status)
	if status.Category != dimse.StatusSuccess {
		return &RemoteOperationError{Op: "C-ECHO", Status: status}
	}
	return nil
}

func (o *dimseOps) find(q *Query, sopClass string, limit int) ([]Result, error) {
	start := time.Now()
	results, err := o.doFind(q, sopClass, limit)
	metrics.ObserveOperation("find", err == nil, time.Since(start))
	return results, err
}

func (o *dimseOps) doFind(q *Query, sopClass string, limit int) ([]Result, error) {
	a, err := o.session()
	if err != nil {
		return nil, err
	}
	ctx, data, err := o.prepareRequest(a, q, sopClass, "C-FIND")
	if err != nil {
		return nil, err
	}
	cmd := &dimse.Command{
		CommandField:        dimse.CFindRQ,
		MessageID:           a.NextMessageID(),
		AffectedSOPClassUID: sopClass,
	}
	if err := a.SendMessage(ctx.ID, cmd, data); err != nil {
		return nil, &ConnectionError{Op: "C-FIND", Err: err}
	}
	return o.drainResponses(a, "C-FIND", limit)
}

func (o *dimseOps) move(q *Query, sopClass, destinationAET string) ([]Result, error) {
	start := time.Now()
	results, err := o.doMove(q, sopClass, destinationAET)
	metrics.ObserveOperation("move", err == nil, time.Since(start))
	return results, err
}

func (o *dimseOps) doMove(q *Query, sopClass, destinationAET string) ([]Result, error) {
	a, err := o.session()
	if err != nil {
		return nil, err
	}
	ctx, data, err := o.prepareRequest(a, q, sopClass, "C-MOVE")
	if err != nil {
		return nil, err
	}
	cmd := &dimse.Command{
		CommandField:        dimse.CMoveRQ,
		MessageID:           a.NextMessageID(),
		AffectedSOPClassUID: sopClass,
		MoveDestination:     destinationAET,
	}
	if err := a.SendMessage(ctx.ID, cmd, data); err != nil {
		return nil, &ConnectionError{Op: "C-MOVE", Err: err}
	}
	return o.drainResponses(a, "C-MOVE", 0)
}

func (o *dimseOps) prepareRequest(a *dimse.Assoc, q *Query, sopClass, op string) (*dimse.PresentationContext, []byte, error) {
	ctx, err := a.ContextFor(sopClass)
	if err != nil {
		return nil, nil, &ConnectionError{Op: op, Err: err}
	}
	ds, err := q.dataset()
	if err != nil {
		return nil, nil, err
	}
	data, err := ds.Encode(ctx.TransferSyntax)
	if err != nil {
		return nil, nil, err
	}
	return ctx, data, nil
}

// drainResponses consumes the response stream until a terminal status.
// When limit pending results have accumulated, the association is
// aborted and the partial results returned without error; some servers
// ignore C-CANCEL, so the hard abort is the reliable stop.
func (o *dimseOps) drainResponses(a *dimse.Assoc, op string, limit int) ([]Result, error) {
	var results []Result
	for {
		rsp, data, ctxID, err := a.ReceiveMessage()
		if err != nil {
			return results, &ConnectionError{Op: op, Err: err}
		}
		status := dimse.NewStatus(rsp.Status)

		var rec Record
		if rsp.HasDataset() && len(data) > 0 {
			ds, err := dimse.ParseDataset(data, a.TransferSyntaxFor(ctxID))
			if err != nil {
				return results, &ConnectionError{Op: op, Err: err}
			}
			rec = normalizeDataset(ds)
		}

		if status.Category == dimse.StatusPending {
			results = append(results, Result{Status: status, Data: rec})
			if limit > 0 && len(results) >= limit {
				o.c.log.Debug().
					Int("limit", limit).
					Str("operation", op).
					Msg("Result limit reached, aborting association")
				o.c.Abort()
				return results, nil
			}
			continue
		}
		results = append(results, Result{Status: status})
		return results, nil
	}
}

func (o *dimseOps) get(q *Query, sopClass, folder string, modifier Modifier) ([]Result, error) {
	start := time.Now()
	results, err := o.doGet(q, sopClass, folder, modifier)
	metrics.ObserveOperation("get", err == nil, time.Since(start))
	return results, err
}

func (o *dimseOps) doGet(q *Query, sopClass, folder string, modifier Modifier) ([]Result, error) {
	a, err := o.session()
	if err != nil {
		return nil, err
	}
	ctx, data, err := o.prepareRequest(a, q, sopClass, "C-GET")
	if err != nil {
		return nil, err
	}
	cmd := &dimse.Command{
		CommandField:        dimse.CGetRQ,
		MessageID:           a.NextMessageID(),
		AffectedSOPClassUID: sopClass,
	}
	if err := a.SendMessage(ctx.ID, cmd, data); err != nil {
		return nil, &ConnectionError{Op: "C-GET", Err: err}
	}

	var results []Result
	var storeErr error
	for {
		rsp, data, ctxID, err := a.ReceiveMessage()
		if err != nil {
			// The abort issued by the store handler kills the
			// socket; surface the disk fault, not the fallout.
			if storeErr != nil {
				return results, storeErr
			}
			return results, &ConnectionError{Op: "C-GET", Err: err}
		}

		if rsp.CommandField == dimse.CStoreRQ {
			status, err := o.handleIncomingStore(folder, modifier, rsp, data, a.TransferSyntaxFor(ctxID))
			if err != nil {
				storeErr = err
				o.c.Abort()
				continue
			}
			reply := &dimse.Command{
				CommandField:              dimse.CStoreRSP,
				MessageIDBeingRespondedTo: rsp.MessageID,
				AffectedSOPClassUID:       rsp.AffectedSOPClassUID,
				AffectedSOPInstanceUID:    rsp.AffectedSOPInstanceUID,
				CommandDataSetType:        0x0101,
				Status:                    status,
			}
			if err := a.SendMessage(ctxID, reply, nil); err != nil {
				return results, &ConnectionError{Op: "C-GET", Err: err}
			}
			continue
		}

		status := dimse.NewStatus(rsp.Status)
		if status.Category == dimse.StatusPending {
			results = append(results, Result{Status: status})
			continue
		}
		results = append(results, Result{Status: status})
		return results, nil
	}
}

// handleIncomingStore writes one retrieved instance, named by its SOP
// instance UID, in the transfer syntax it arrived in. A full disk
// returns the dedicated failure status and an error that halts the
// retrieval.
func (o *dimseOps) handleIncomingStore(folder string, modifier Modifier, cmd *dimse.Command, data []byte, transferSyntax string) (uint16, error) {
	ds, err := dimse.ParseDataset(data, transferSyntax)
	if err != nil {
		o.c.log.Warn().Err(err).Msg("Discarding unparseable instance")
		return dimse.StatusCannotProcess, nil
	}
	if modifier != nil {
		if err := modifier(ds); err != nil {
			o.c.log.Warn().Err(err).Msg("Dataset modifier failed, instance discarded")
			return dimse.StatusCannotProcess, nil
		}
	}

	instanceUID := ds.GetString(dimse.TagSOPInstanceUID)
	if instanceUID == "" {
		instanceUID = cmd.AffectedSOPInstanceUID
	}
	path := filepath.Join(folder, instanceUID)

	if err := dimse.WriteFile(path, ds, transferSyntax); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			o.c.log.Error().Str("path", path).Msg("Out of disk space while receiving instance")
			return dimse.StatusNoSpaceLeft, &NoSpaceLeftError{Path: path, Err: err}
		}
		o.c.log.Warn().Err(err).Str("path", path).Msg("Failed to write received instance")
		return dimse.StatusOutOfResources, nil
	}
	return 0x0000, nil
}

func (o *dimseOps) store(folder string, modifier Modifier) ([]Result, error) {
	start := time.Now()
	results, err := o.doStore(folder, modifier)
	metrics.ObserveOperation("store", err == nil, time.Since(start))
	return results, err
}

// doStore walks the folder and sends every readable DICOM file.
// Unreadable files are logged and skipped; per-instance refusals are
// recorded in the results so the caller can aggregate them.
func (o *dimseOps) doStore(folder string, modifier Modifier) ([]Result, error) {
	a, err := o.session()
	if err != nil {
		return nil, err
	}

	var results []Result
	walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ds, _, err := dimse.ReadFile(path)
		if err != nil {
			o.c.log.Warn().Err(err).Str("path", path).Msg("Skipping file, not a readable DICOM instance")
			return nil
		}
		if modifier != nil {
			if err := modifier(ds); err != nil {
				o.c.log.Warn().Err(err).Str("path", path).Msg("Skipping file, modifier failed")
				return nil
			}
		}

		sopClass := ds.GetString(dimse.TagSOPClassUID)
		sopInstance := ds.GetString(dimse.TagSOPInstanceUID)
		ctx, err := a.ContextFor(sopClass)
		if err != nil {
			o.c.log.Warn().Str("sop_class", sopClass).Str("path", path).Msg("No accepted context for SOP class")
			results = append(results, Result{
				Status: dimse.NewStatus(0x0122),
				Data:   Record{SOPInstanceUID: sopInstance},
			})
			return nil
		}

		encoded, err := ds.Encode(ctx.TransferSyntax)
		if err != nil {
			o.c.log.Warn().Err(err).Str("path", path).Msg("Skipping file, cannot re-encode")
			return nil
		}

		cmd := &dimse.Command{
			CommandField:           dimse.CStoreRQ,
			MessageID:              a.NextMessageID(),
			AffectedSOPClassUID:    sopClass,
			AffectedSOPInstanceUID: sopInstance,
		}
		if err := a.SendMessage(ctx.ID, cmd, encoded); err != nil {
			return &ConnectionError{Op: "C-STORE", Err: err}
		}
		rsp, _, _, err := a.ReceiveMessage()
		if err != nil {
			return &ConnectionError{Op: "C-STORE", Err: err}
		}
		results = append(results, Result{
			Status: dimse.NewStatus(rsp.Status),
			Data:   Record{SOPInstanceUID: sopInstance},
		})
		return nil
	})
	if walkErr != nil {
		return results, walkErr
	}
	return results, nil
}
