package dimse

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	preambleLength = 128
	magicDICM      = "DICM"
)

// ReadFile parses a part10 DICOM file and returns the dataset together
// with the transfer syntax of its encoding.
func ReadFile(path string) (*Dataset, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return parsePart10(data)
}

func parsePart10(data []byte) (*Dataset, string, error) {
	if len(data) < preambleLength+4 || string(data[preambleLength:preambleLength+4]) != magicDICM {
		return nil, "", fmt.Errorf("missing DICM file marker")
	}

	// File meta group is always Explicit VR Little Endian. The group
	// length element bounds it.
	r := &reader{data: data, pos: preambleLength + 4}
	groupLenElem, err := parseElement(r, true)
	if err != nil {
		return nil, "", fmt.Errorf("file meta group length: %w", err)
	}
	if groupLenElem.Tag != TagFileMetaInformationGroupLength {
		return nil, "", fmt.Errorf("file meta group does not start with group length")
	}
	raw, ok := groupLenElem.Value.([]byte)
	if !ok || len(raw) != 4 {
		return nil, "", fmt.Errorf("invalid file meta group length value")
	}
	metaLen := int(binary.LittleEndian.Uint32(raw))
	if r.remaining() < metaLen {
		return nil, "", fmt.Errorf("truncated file meta group")
	}

	meta := NewDataset()
	metaEnd := r.pos + metaLen
	for r.pos < metaEnd {
		e, err := parseElement(r, true)
		if err != nil {
			return nil, "", fmt.Errorf("file meta group: %w", err)
		}
		meta.Add(e.Tag, e.VR, e.Value)
	}

	transferSyntax := meta.GetString(TagTransferSyntaxUID)
	if transferSyntax == "" {
		return nil, "", fmt.Errorf("file meta group lacks transfer syntax")
	}

	ds, err := ParseDataset(data[r.pos:], transferSyntax)
	if err != nil {
		return nil, "", err
	}
	return ds, transferSyntax, nil
}

// WriteFile writes the dataset as a part10 DICOM file in the given
// transfer syntax, generating the file meta group from the dataset's
// SOP class and instance UIDs.
func WriteFile(path string, ds *Dataset, transferSyntax string) error {
	meta := NewDataset()
	meta.Add(TagFileMetaInformationVersion, VROB, []byte{0x00, 0x01})
	meta.SetString(TagMediaStorageSOPClassUID, ds.GetString(TagSOPClassUID))
	meta.SetString(TagMediaStorageSOPInstanceUID, ds.GetString(TagSOPInstanceUID))
	meta.SetString(TagTransferSyntaxUID, transferSyntax)
	meta.SetString(TagImplementationClassUID, ImplementationClassUID)
	meta.SetString(TagImplementationVersionName, ImplementationVersion)

	metaBytes, err := meta.Encode(ExplicitVRLittleEndian)
	if err != nil {
		return err
	}
	groupLen := NewDataset()
	groupLen.Add(TagFileMetaInformationGroupLength, VRUL, uint32(len(metaBytes)))
	groupLenBytes, err := groupLen.Encode(ExplicitVRLittleEndian)
	if err != nil {
		return err
	}

	body, err := ds.Encode(transferSyntax)
	if err != nil {
		return err
	}

	out := make([]byte, 0, preambleLength+4+len(groupLenBytes)+len(metaBytes)+len(body))
	out = append(out, make([]byte, preambleLength)...)
	out = append(out, magicDICM...)
	out = append(out, groupLenBytes...)
	out = append(out, metaBytes...)
	out = append(out, body...)

	return os.WriteFile(path, out, 0o644)
}
