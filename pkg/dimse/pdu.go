package dimse

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// PDU types (PS3.8 §9.3).
const (
	pduAssociateRQ byte = 0x01
	pduAssociateAC byte = 0x02
	pduAssociateRJ byte = 0x03
	pduDataTF      byte = 0x04
	pduReleaseRQ   byte = 0x05
	pduReleaseRP   byte = 0x06
	pduAbort       byte = 0x07
)

// Variable item types used inside associate PDUs.
const (
	itemApplicationContext    byte = 0x10
	itemPresentationContextRQ byte = 0x20
	itemPresentationContextAC byte = 0x21
	itemAbstractSyntax        byte = 0x30
	itemTransferSyntax        byte = 0x40
	itemUserInformation       byte = 0x50
	subItemMaxPDULength       byte = 0x51
	subItemImplementationUID  byte = 0x52
	subItemRoleSelection      byte = 0x54
	subItemImplementationName byte = 0x55
)

// maxPDUBodyLength bounds inbound PDU bodies to guard against corrupt
// length fields.
const maxPDUBodyLength = 64 * 1024 * 1024

func padAETitle(aet string) string {
	if len(aet) > 16 {
		return aet[:16]
	}
	return aet + strings.Repeat(" ", 16-len(aet))
}

func writePDU(w io.Writer, pduType byte, body []byte) error {
	header := make([]byte, 6)
	header[0] = pduType
	binary.BigEndian.PutUint32(header[2:], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

func readPDU(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[2:])
	if length > maxPDUBodyLength {
		return 0, nil, fmt.Errorf("pdu body length %d exceeds limit", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return header[0], body, nil
}

func appendItem(buf []byte, itemType byte, value []byte) []byte {
	buf = append(buf, itemType, 0x00)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

// buildAssociateRQ serializes an A-ASSOCIATE-RQ PDU body for the
// requested presentation contexts. Context IDs are assigned odd,
// ascending, in proposal order.
func buildAssociateRQ(cfg Config, proposals []PresentationContextRequest) []byte {
	body := make([]byte, 0, 1024)
	body = binary.BigEndian.AppendUint16(body, 0x0001) // protocol version
	body = append(body, 0x00, 0x00)
	body = append(body, padAETitle(cfg.CalledAETitle)...)
	body = append(body, padAETitle(cfg.CallingAETitle)...)
	body = append(body, make([]byte, 32)...)

	body = appendItem(body, itemApplicationContext, []byte(ApplicationContextName))

	for i, p := range proposals {
		ctxID := byte(2*i + 1)
		var ctx []byte
		ctx = append(ctx, ctxID, 0x00, 0x00, 0x00)
		ctx = appendItem(ctx, itemAbstractSyntax, []byte(p.AbstractSyntax))
		for _, ts := range []string{ExplicitVRLittleEndian, ImplicitVRLittleEndian} {
			ctx = appendItem(ctx, itemTransferSyntax, []byte(ts))
		}
		body = appendItem(body, itemPresentationContextRQ, ctx)
	}

	var user []byte
	maxPDU := binary.BigEndian.AppendUint32(nil, cfg.maxPDULength())
	user = appendItem(user, subItemMaxPDULength, maxPDU)
	user = appendItem(user, subItemImplementationUID, []byte(ImplementationClassUID))
	user = appendItem(user, subItemImplementationName, []byte(ImplementationVersion))
	for _, p := range proposals {
		if !p.SCPRole {
			continue
		}
		var role []byte
		role = binary.BigEndian.AppendUint16(role, uint16(len(p.AbstractSyntax)))
		role = append(role, p.AbstractSyntax...)
		role = append(role, 0x00, 0x01) // SCU role off, SCP role on
		user = appendItem(user, subItemRoleSelection, role)
	}
	body = appendItem(body, itemUserInformation, user)

	return body
}

// acceptedContext is one presentation context result from an
// A-ASSOCIATE-AC PDU.
type acceptedContext struct {
	id             byte
	result         byte
	transferSyntax string
}

// parseAssociateAC extracts the context results and the peer's maximum
// PDU length from an A-ASSOCIATE-AC body.
func parseAssociateAC(body []byte) ([]acceptedContext, uint32, error) {
	if len(body) < 68 {
		return nil, 0, fmt.Errorf("associate response too short (%d bytes)", len(body))
	}
	var contexts []acceptedContext
	maxPDU := uint32(DefaultMaxPDULength)

	rest := body[68:]
	for len(rest) >= 4 {
		itemType := rest[0]
		itemLen := int(binary.BigEndian.Uint16(rest[2:4]))
		if len(rest) < 4+itemLen {
			return nil, 0, fmt.Errorf("truncated associate response item 0x%02x", itemType)
		}
		value := rest[4 : 4+itemLen]
		rest = rest[4+itemLen:]

		switch itemType {
		case itemPresentationContextAC:
			if len(value) < 4 {
				return nil, 0, fmt.Errorf("short presentation context result")
			}
			ctx := acceptedContext{id: value[0], result: value[2]}
			sub := value[4:]
			for len(sub) >= 4 {
				subType := sub[0]
				subLen := int(binary.BigEndian.Uint16(sub[2:4]))
				if len(sub) < 4+subLen {
					return nil, 0, fmt.Errorf("truncated transfer syntax sub-item")
				}
				if subType == itemTransferSyntax {
					ctx.transferSyntax = string(sub[4 : 4+subLen])
				}
				sub = sub[4+subLen:]
			}
			contexts = append(contexts, ctx)
		case itemUserInformation:
			sub := value
			for len(sub) >= 4 {
				subType := sub[0]
				subLen := int(binary.BigEndian.Uint16(sub[2:4]))
				if len(sub) < 4+subLen {
					return nil, 0, fmt.Errorf("truncated user information sub-item")
				}
				if subType == subItemMaxPDULength && subLen == 4 {
					maxPDU = binary.BigEndian.Uint32(sub[4:8])
				}
				sub = sub[4+subLen:]
			}
		}
	}
	return contexts, maxPDU, nil
}

// rejectReason renders an A-ASSOCIATE-RJ body into a readable reason.
func rejectReason(body []byte) string {
	if len(body) < 4 {
		return "association rejected"
	}
	result := "rejected (permanent)"
	if body[1] == 2 {
		result = "rejected (transient)"
	}
	source := map[byte]string{1: "service user", 2: "service provider (ACSE)", 3: "service provider (presentation)"}[body[2]]
	return fmt.Sprintf("association %s by %s, reason %d", result, source, body[3])
}
