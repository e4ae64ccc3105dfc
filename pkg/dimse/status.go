package dimse

import "fmt"

// StatusCategory is the DIMSE status class of a response.
type StatusCategory string

const (
	StatusPending StatusCategory = "Pending"
	StatusSuccess StatusCategory = "Success"
	StatusWarning StatusCategory = "Warning"
	StatusCancel  StatusCategory = "Cancel"
	StatusFailure StatusCategory = "Failure"
)

// Status is a DIMSE response status with its classified category.
type Status struct {
	Code     uint16
	Category StatusCategory
}

func (s Status) String() string {
	return fmt.Sprintf("%s (0x%04x)", s.Category, s.Code)
}

// Terminal reports whether the status ends an operation's response
// stream.
func (s Status) Terminal() bool {
	return s.Category != StatusPending
}

// NewStatus classifies a raw status code.
func NewStatus(code uint16) Status {
	return Status{Code: code, Category: CategoryOf(code)}
}

// CategoryOf maps a DIMSE status code to its category (PS3.7 Annex C).
func CategoryOf(code uint16) StatusCategory {
	switch {
	case code == 0x0000:
		return StatusSuccess
	case code == 0xFF00 || code == 0xFF01:
		return StatusPending
	case code == 0xFE00:
		return StatusCancel
	case code == 0x0001 || code == 0x0107 || code == 0x0116 || code&0xF000 == 0xB000:
		return StatusWarning
	default:
		return StatusFailure
	}
}

// Store sub-operation failure statuses reported by the inbound
// C-STORE handler.
const (
	StatusOutOfResources uint16 = 0xA700
	StatusNoSpaceLeft    uint16 = 0xA702
	StatusCannotProcess  uint16 = 0xC000
)
