package connector

import (
	"fmt"
	"strings"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// ConnectionError reports a transport-level fault: failed dial or
// negotiation, broken socket, peer abort, malformed wire data.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CapabilityError reports a request the configured server capabilities
// cannot satisfy. It is raised before any network traffic.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string { return e.Reason }

// RemoteOperationError reports a terminal non-success DIMSE status.
type RemoteOperationError struct {
	Op     string
	Status dimse.Status
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s failed with status %s", e.Op, e.Status)
}

// NoSpaceLeftError reports disk exhaustion while writing a received
// instance. It is distinct from ConnectionError so callers can halt a
// whole batch instead of retrying.
type NoSpaceLeftError struct {
	Path string
	Err  error
}

func (e *NoSpaceLeftError) Error() string {
	return fmt.Sprintf("no space left on device while writing %s", e.Path)
}

func (e *NoSpaceLeftError) Unwrap() error { return e.Err }

// PartialFailureError reports that some instances of a bulk operation
// failed after every instance was attempted.
type PartialFailureError struct {
	Op         string
	FailedUIDs []string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s failed for %d instances: %s",
		e.Op, len(e.FailedUIDs), strings.Join(e.FailedUIDs, ", "))
}
