package dimse

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// Element is a single data element. Value is a string for character
// VRs and a []byte for binary VRs and sequences.
type Element struct {
	Tag   Tag
	VR    string
	Value any
}

// Dataset is an insertion-ordered collection of data elements.
type Dataset struct {
	elems []*Element
	index map[Tag]int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{index: make(map[Tag]int)}
}

// Add inserts or replaces an element with an explicit VR.
func (d *Dataset) Add(tag Tag, vr string, value any) {
	if i, ok := d.index[tag]; ok {
		d.elems[i].VR = vr
		d.elems[i].Value = value
		return
	}
	d.index[tag] = len(d.elems)
	d.elems = append(d.elems, &Element{Tag: tag, VR: vr, Value: value})
}

// SetString inserts or replaces an element using the dictionary VR.
func (d *Dataset) SetString(tag Tag, value string) {
	d.Add(tag, VRFor(tag), value)
}

// Get returns the element for a tag.
func (d *Dataset) Get(tag Tag) (*Element, bool) {
	i, ok := d.index[tag]
	if !ok {
		return nil, false
	}
	return d.elems[i], true
}

// Has reports whether the tag is present.
func (d *Dataset) Has(tag Tag) bool {
	_, ok := d.index[tag]
	return ok
}

// GetString returns the element value as a trimmed string, or "" when
// absent or binary.
func (d *Dataset) GetString(tag Tag) string {
	e, ok := d.Get(tag)
	if !ok {
		return ""
	}
	s, ok := e.Value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

// GetStrings splits a multi-valued element on the backslash delimiter.
// Empty components are dropped.
func (d *Dataset) GetStrings(tag Tag) []string {
	raw := d.GetString(tag)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "\\")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Delete removes the tag if present.
func (d *Dataset) Delete(tag Tag) {
	i, ok := d.index[tag]
	if !ok {
		return
	}
	d.elems = append(d.elems[:i], d.elems[i+1:]...)
	delete(d.index, tag)
	for j := i; j < len(d.elems); j++ {
		d.index[d.elems[j].Tag] = j
	}
}

// Len returns the number of elements.
func (d *Dataset) Len() int { return len(d.elems) }

// Elements returns the elements in insertion order.
func (d *Dataset) Elements() []*Element { return d.elems }

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("truncated dataset: need %d bytes, have %d", n, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) tag() (Tag, error) {
	group, err := r.uint16()
	if err != nil {
		return Tag{}, err
	}
	elem, err := r.uint16()
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: group, Element: elem}, nil
}

const undefinedLength = 0xFFFFFFFF

var (
	tagItem              = Tag{0xFFFE, 0xE000}
	tagItemDelimiter     = Tag{0xFFFE, 0xE00D}
	tagSequenceDelimiter = Tag{0xFFFE, 0xE0DD}
)

// ParseDataset decodes a raw dataset in the given transfer syntax.
// Only Implicit and Explicit VR Little Endian are supported; those are
// the only syntaxes this implementation negotiates.
func ParseDataset(data []byte, transferSyntax string) (*Dataset, error) {
	explicit, err := isExplicitVR(transferSyntax)
	if err != nil {
		return nil, err
	}
	r := &reader{data: data}
	ds := NewDataset()
	for r.remaining() > 0 {
		elem, err := parseElement(r, explicit)
		if err != nil {
			return nil, err
		}
		ds.Add(elem.Tag, elem.VR, elem.Value)
	}
	return ds, nil
}

func isExplicitVR(transferSyntax string) (bool, error) {
	switch transferSyntax {
	case ImplicitVRLittleEndian:
		return false, nil
	case ExplicitVRLittleEndian:
		return true, nil
	default:
		return false, fmt.Errorf("unsupported transfer syntax %q", transferSyntax)
	}
}

func parseElement(r *reader, explicit bool) (*Element, error) {
	tag, err := r.tag()
	if err != nil {
		return nil, err
	}

	var vr string
	var length uint32
	if explicit {
		vrBytes, err := r.bytes(2)
		if err != nil {
			return nil, err
		}
		vr = string(vrBytes)
		if IsLongFormVR(vr) {
			if _, err := r.bytes(2); err != nil { // reserved
				return nil, err
			}
			if length, err = r.uint32(); err != nil {
				return nil, err
			}
		} else {
			l, err := r.uint16()
			if err != nil {
				return nil, err
			}
			length = uint32(l)
		}
	} else {
		vr = VRFor(tag)
		if length, err = r.uint32(); err != nil {
			return nil, err
		}
	}

	if length == undefinedLength {
		raw, err := readUndefinedLengthValue(r)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", tag, err)
		}
		return &Element{Tag: tag, VR: vr, Value: raw}, nil
	}

	raw, err := r.bytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", tag, err)
	}
	if IsBinaryVR(vr) || vr == VRSQ {
		v := make([]byte, len(raw))
		copy(v, raw)
		return &Element{Tag: tag, VR: vr, Value: v}, nil
	}
	return &Element{Tag: tag, VR: vr, Value: string(raw)}, nil
}

// readUndefinedLengthValue consumes the raw bytes of an
// undefined-length sequence up to its sequence delimitation item.
func readUndefinedLengthValue(r *reader) ([]byte, error) {
	start := r.pos
	depth := 1
	for depth > 0 {
		tag, err := r.tag()
		if err != nil {
			return nil, err
		}
		length, err := r.uint32()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagSequenceDelimiter, tagItemDelimiter:
			depth--
		case tagItem:
			if length == undefinedLength {
				depth++
			} else if _, err := r.bytes(int(length)); err != nil {
				return nil, err
			}
		default:
			if length == undefinedLength {
				depth++
			} else if _, err := r.bytes(int(length)); err != nil {
				return nil, err
			}
		}
	}
	v := make([]byte, r.pos-start-8)
	copy(v, r.data[start:r.pos-8])
	return v, nil
}

// Encode serializes the dataset in the given transfer syntax. Elements
// are written in ascending tag order with even-length padding.
func (d *Dataset) Encode(transferSyntax string) ([]byte, error) {
	explicit, err := isExplicitVR(transferSyntax)
	if err != nil {
		return nil, err
	}
	sorted := make([]*Element, len(d.elems))
	copy(sorted, d.elems)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Tag, sorted[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	var out []byte
	for _, e := range sorted {
		encoded, err := encodeElement(e, explicit)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return out, nil
}

func encodeElement(e *Element, explicit bool) ([]byte, error) {
	value, err := elementBytes(e)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 12+len(value))
	buf = binary.LittleEndian.AppendUint16(buf, e.Tag.Group)
	buf = binary.LittleEndian.AppendUint16(buf, e.Tag.Element)
	if explicit {
		buf = append(buf, e.VR...)
		if IsLongFormVR(e.VR) {
			buf = append(buf, 0, 0)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
		} else {
			if len(value) > 0xFFFF {
				return nil, fmt.Errorf("element %s: value too long for VR %s", e.Tag, e.VR)
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(len(value)))
		}
	} else {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	}
	return append(buf, value...), nil
}

func elementBytes(e *Element) ([]byte, error) {
	switch v := e.Value.(type) {
	case []byte:
		if len(v)%2 != 0 {
			padded := make([]byte, len(v)+1)
			copy(padded, v)
			return padded, nil
		}
		return v, nil
	case string:
		if len(v)%2 != 0 {
			// UI values pad with NUL, other character VRs with space.
			if e.VR == VRUI {
				v += "\x00"
			} else {
				v += " "
			}
		}
		return []byte(v), nil
	case uint16:
		return binary.LittleEndian.AppendUint16(nil, v), nil
	case uint32:
		return binary.LittleEndian.AppendUint32(nil, v), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("element %s: unsupported value type %T", e.Tag, e.Value)
	}
}
