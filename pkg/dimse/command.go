package dimse

import (
	"encoding/binary"
	"fmt"
)

// DIMSE command field values.
const (
	CStoreRQ  uint16 = 0x0001
	CStoreRSP uint16 = 0x8001
	CGetRQ    uint16 = 0x0010
	CGetRSP   uint16 = 0x8010
	CFindRQ   uint16 = 0x0020
	CFindRSP  uint16 = 0x8020
	CMoveRQ   uint16 = 0x0021
	CMoveRSP  uint16 = 0x8021
	CEchoRQ   uint16 = 0x0030
	CEchoRSP  uint16 = 0x8030
	CCancelRQ uint16 = 0x0FFF
)

// noDataset is the CommandDataSetType value meaning no dataset follows.
const noDataset uint16 = 0x0101

// Command group tags.
var (
	tagCommandGroupLength         = Tag{0x0000, 0x0000}
	tagAffectedSOPClassUID        = Tag{0x0000, 0x0002}
	tagCommandField               = Tag{0x0000, 0x0100}
	tagMessageID                  = Tag{0x0000, 0x0110}
	tagMessageIDBeingRespondedTo  = Tag{0x0000, 0x0120}
	tagMoveDestination            = Tag{0x0000, 0x0600}
	tagPriority                   = Tag{0x0000, 0x0700}
	tagCommandDataSetType         = Tag{0x0000, 0x0800}
	tagStatus                     = Tag{0x0000, 0x0900}
	tagAffectedSOPInstanceUID     = Tag{0x0000, 0x1000}
	tagNumberOfRemainingSubOps    = Tag{0x0000, 0x1020}
	tagNumberOfCompletedSubOps    = Tag{0x0000, 0x1021}
	tagNumberOfFailedSubOps       = Tag{0x0000, 0x1022}
	tagNumberOfWarningSubOps      = Tag{0x0000, 0x1023}
)

// Command is a decoded DIMSE command set.
type Command struct {
	CommandField              uint16
	MessageID                 uint16
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	MoveDestination           string
	Priority                  uint16
	CommandDataSetType        uint16
	Status                    uint16
}

// HasDataset reports whether a dataset follows the command set.
func (c *Command) HasDataset() bool {
	return c.CommandDataSetType != noDataset
}

// IsResponse reports whether the command field is a response.
func (c *Command) IsResponse() bool {
	return c.CommandField&0x8000 != 0
}

// EncodeCommand serializes a command set. Command sets are always
// Implicit VR Little Endian, prefixed by a group length element.
func EncodeCommand(c *Command) ([]byte, error) {
	body := NewDataset()
	if c.AffectedSOPClassUID != "" {
		body.Add(tagAffectedSOPClassUID, VRUI, c.AffectedSOPClassUID)
	}
	body.Add(tagCommandField, VRUS, c.CommandField)
	if c.IsResponse() {
		body.Add(tagMessageIDBeingRespondedTo, VRUS, c.MessageIDBeingRespondedTo)
	} else {
		body.Add(tagMessageID, VRUS, c.MessageID)
	}
	if c.MoveDestination != "" {
		body.Add(tagMoveDestination, VRAE, padAETitle(c.MoveDestination))
	}
	switch c.CommandField {
	case CFindRQ, CGetRQ, CMoveRQ, CStoreRQ:
		body.Add(tagPriority, VRUS, c.Priority)
	}
	body.Add(tagCommandDataSetType, VRUS, c.CommandDataSetType)
	if c.IsResponse() {
		body.Add(tagStatus, VRUS, c.Status)
	}
	if c.AffectedSOPInstanceUID != "" {
		body.Add(tagAffectedSOPInstanceUID, VRUI, c.AffectedSOPInstanceUID)
	}

	bodyBytes, err := body.Encode(ImplicitVRLittleEndian)
	if err != nil {
		return nil, err
	}
	head := NewDataset()
	head.Add(tagCommandGroupLength, VRUL, uint32(len(bodyBytes)))
	headBytes, err := head.Encode(ImplicitVRLittleEndian)
	if err != nil {
		return nil, err
	}
	return append(headBytes, bodyBytes...), nil
}

// DecodeCommand parses a command set.
func DecodeCommand(data []byte) (*Command, error) {
	ds, err := ParseDataset(data, ImplicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("decoding command set: %w", err)
	}

	c := &Command{CommandDataSetType: noDataset}
	var haveField bool
	for _, e := range ds.Elements() {
		switch e.Tag {
		case tagCommandField:
			c.CommandField = elementUint16(e)
			haveField = true
		case tagMessageID:
			c.MessageID = elementUint16(e)
		case tagMessageIDBeingRespondedTo:
			c.MessageIDBeingRespondedTo = elementUint16(e)
		case tagAffectedSOPClassUID:
			c.AffectedSOPClassUID = trimUID(e)
		case tagAffectedSOPInstanceUID:
			c.AffectedSOPInstanceUID = trimUID(e)
		case tagMoveDestination:
			c.MoveDestination = trimUID(e)
		case tagPriority:
			c.Priority = elementUint16(e)
		case tagCommandDataSetType:
			c.CommandDataSetType = elementUint16(e)
		case tagStatus:
			c.Status = elementUint16(e)
		}
	}
	if !haveField {
		return nil, fmt.Errorf("command set lacks a command field")
	}
	return c, nil
}

func elementUint16(e *Element) uint16 {
	if b, ok := e.Value.([]byte); ok && len(b) >= 2 {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func trimUID(e *Element) string {
	s, ok := e.Value.(string)
	if !ok {
		return ""
	}
	for len(s) > 0 && (s[len(s)-1] == 0 || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
