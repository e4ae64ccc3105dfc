package dimse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTripRequest(t *testing.T) {
	cmd := &Command{
		CommandField:        CFindRQ,
		MessageID:           7,
		AffectedSOPClassUID: StudyRootQRFind,
	}

	encoded, err := EncodeCommand(cmd)
	require.NoError(t, err)

	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)

	assert.Equal(t, CFindRQ, decoded.CommandField)
	assert.Equal(t, uint16(7), decoded.MessageID)
	assert.Equal(t, StudyRootQRFind, decoded.AffectedSOPClassUID)
	assert.True(t, decoded.HasDataset())
}

func TestCommandRoundTripResponse(t *testing.T) {
	cmd := &Command{
		CommandField:              CStoreRSP,
		MessageIDBeingRespondedTo: 12,
		AffectedSOPClassUID:       "1.2.840.10008.5.1.4.1.1.2",
		AffectedSOPInstanceUID:    "1.2.3.4",
		CommandDataSetType:        0x0101,
		Status:                    0xA702,
	}

	encoded, err := EncodeCommand(cmd)
	require.NoError(t, err)

	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)

	assert.Equal(t, CStoreRSP, decoded.CommandField)
	assert.Equal(t, uint16(12), decoded.MessageIDBeingRespondedTo)
	assert.Equal(t, "1.2.3.4", decoded.AffectedSOPInstanceUID)
	assert.Equal(t, uint16(0xA702), decoded.Status)
	assert.False(t, decoded.HasDataset())
	assert.True(t, decoded.IsResponse())
}

func TestCommandMoveDestinationPadding(t *testing.T) {
	cmd := &Command{
		CommandField:        CMoveRQ,
		MessageID:           1,
		AffectedSOPClassUID: StudyRootQRMove,
		MoveDestination:     "TARGET",
	}

	encoded, err := EncodeCommand(cmd)
	require.NoError(t, err)

	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	assert.Equal(t, "TARGET", decoded.MoveDestination)
}

func TestDecodeCommandWithoutFieldFails(t *testing.T) {
	ds := NewDataset()
	ds.Add(tagMessageID, VRUS, uint16(3))
	encoded, err := ds.Encode(ImplicitVRLittleEndian)
	require.NoError(t, err)

	_, err = DecodeCommand(encoded)
	assert.Error(t, err)
}

func TestStatusCategories(t *testing.T) {
	tests := []struct {
		code uint16
		want StatusCategory
	}{
		{0x0000, StatusSuccess},
		{0xFF00, StatusPending},
		{0xFF01, StatusPending},
		{0xFE00, StatusCancel},
		{0x0001, StatusWarning},
		{0x0107, StatusWarning},
		{0xB000, StatusWarning},
		{0xB00F, StatusWarning},
		{0xA700, StatusFailure},
		{0xA702, StatusFailure},
		{0xA801, StatusFailure},
		{0xC001, StatusFailure},
		{0x0122, StatusFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryOf(tt.code), "code 0x%04x", tt.code)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, NewStatus(0xFF00).Terminal())
	assert.True(t, NewStatus(0x0000).Terminal())
	assert.True(t, NewStatus(0xC001).Terminal())
}
