package connector

import (
	"strconv"
	"strings"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// Record is a normalized query/retrieve response. Well-known
// attributes get typed fields; anything else lands in Extra keyed by
// dictionary keyword. Private tags and pixel data never appear.
type Record struct {
	PatientID        string
	PatientName      string
	PatientBirthDate string
	PatientSex       string

	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	SOPClassUID       string

	AccessionNumber   string
	StudyDate         string
	StudyTime         string
	StudyDescription  string
	SeriesDescription string

	Modality          string
	ModalitiesInStudy []string

	NumberOfStudyRelatedInstances  *int
	NumberOfSeriesRelatedInstances *int

	Extra map[string]any
}

// normalizeDataset converts a raw dataset into a Record, applying the
// cleanup rules: NUL stripping and trimming, decimal and integer
// string coercion, multi-value splitting. Attributes whose value does
// not fit the expected shape are parked raw in Extra, which marks the
// record as inconsistent for downstream filters.
func normalizeDataset(ds *dimse.Dataset) Record {
	rec := Record{}
	for _, e := range ds.Elements() {
		if e.Tag.IsPrivate() || e.Tag == dimse.TagPixelData {
			continue
		}
		switch e.Tag {
		case dimse.TagPatientID:
			rec.PatientID = cleanString(e.Value)
		case dimse.TagPatientName:
			rec.PatientName = cleanString(e.Value)
		case dimse.TagPatientBirthDate:
			rec.PatientBirthDate = cleanString(e.Value)
		case dimse.TagPatientSex:
			rec.PatientSex = cleanString(e.Value)
		case dimse.TagStudyInstanceUID:
			rec.StudyInstanceUID = cleanString(e.Value)
		case dimse.TagSeriesInstanceUID:
			rec.SeriesInstanceUID = cleanString(e.Value)
		case dimse.TagSOPInstanceUID:
			rec.SOPInstanceUID = cleanString(e.Value)
		case dimse.TagSOPClassUID:
			rec.SOPClassUID = cleanString(e.Value)
		case dimse.TagAccessionNumber:
			rec.AccessionNumber = cleanString(e.Value)
		case dimse.TagStudyDate:
			rec.StudyDate = cleanString(e.Value)
		case dimse.TagStudyTime:
			rec.StudyTime = cleanString(e.Value)
		case dimse.TagStudyDescription:
			rec.StudyDescription = cleanString(e.Value)
		case dimse.TagSeriesDescription:
			rec.SeriesDescription = cleanString(e.Value)
		case dimse.TagModality:
			rec.Modality = cleanString(e.Value)
		case dimse.TagModalitiesInStudy:
			if s, ok := e.Value.(string); ok {
				rec.ModalitiesInStudy = splitMultiValue(s)
			} else {
				rec.setExtra("ModalitiesInStudy", e.Value)
			}
		case dimse.TagNumberOfStudyRelatedInstances:
			rec.NumberOfStudyRelatedInstances = parseCount(&rec, "NumberOfStudyRelatedInstances", e.Value)
		case dimse.TagNumberOfSeriesRelatedInstances:
			rec.NumberOfSeriesRelatedInstances = parseCount(&rec, "NumberOfSeriesRelatedInstances", e.Value)
		default:
			rec.setExtra(dimse.Keyword(e.Tag), normalizeValue(e.VR, e.Value))
		}
	}
	return rec
}

func (r *Record) setExtra(key string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

// inconsistent reports whether a well-known attribute arrived in a
// shape the normalizer could not coerce.
func (r Record) inconsistent(keyword string) bool {
	_, ok := r.Extra[keyword]
	return ok
}

// normalizeValue applies the value cleanup rules. It is idempotent:
// re-applying it to its own output returns the output unchanged.
func normalizeValue(vr string, v any) any {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, "\\") {
			parts := splitMultiValue(val)
			out := make([]any, 0, len(parts))
			for _, p := range parts {
				out = append(out, normalizeValue(vr, p))
			}
			return out
		}
		s := cleanString(val)
		switch vr {
		case dimse.VRDS:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		case dimse.VRIS:
			if n, err := strconv.Atoi(s); err == nil {
				return n
			}
		}
		return s
	case []any:
		out := make([]any, 0, len(val))
		for _, p := range val {
			out = append(out, normalizeValue(vr, p))
		}
		return out
	default:
		return v
	}
}

func cleanString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func splitMultiValue(s string) []string {
	parts := strings.Split(s, "\\")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(p, "\x00"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseCount coerces an IS counter. An empty value means the server
// did not report the count and stays nil without marking the record;
// an unparseable one is parked in Extra so filters can fail fast.
func parseCount(rec *Record, keyword string, v any) *int {
	s, ok := v.(string)
	if !ok {
		rec.setExtra(keyword, v)
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		rec.setExtra(keyword, s)
		return nil
	}
	return &n
}
