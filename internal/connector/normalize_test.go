package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

func TestNormalizeDatasetTypedFields(t *testing.T) {
	ds := dimse.NewDataset()
	ds.SetString(dimse.TagPatientID, "PAT001\x00")
	ds.SetString(dimse.TagPatientName, " DOE^JOHN ")
	ds.SetString(dimse.TagPatientBirthDate, "19700101")
	ds.SetString(dimse.TagStudyInstanceUID, "1.2.3")
	ds.SetString(dimse.TagModalitiesInStudy, "CT\\MR")
	ds.SetString(dimse.TagNumberOfStudyRelatedInstances, "42 ")

	rec := normalizeDataset(ds)

	assert.Equal(t, "PAT001", rec.PatientID)
	assert.Equal(t, "DOE^JOHN", rec.PatientName)
	assert.Equal(t, "19700101", rec.PatientBirthDate)
	assert.Equal(t, "1.2.3", rec.StudyInstanceUID)
	assert.Equal(t, []string{"CT", "MR"}, rec.ModalitiesInStudy)
	require.NotNil(t, rec.NumberOfStudyRelatedInstances)
	assert.Equal(t, 42, *rec.NumberOfStudyRelatedInstances)
	assert.False(t, rec.inconsistent("ModalitiesInStudy"))
	assert.False(t, rec.inconsistent("NumberOfStudyRelatedInstances"))
}

func TestNormalizeDatasetSkipsPrivateAndPixelData(t *testing.T) {
	ds := dimse.NewDataset()
	ds.SetString(dimse.TagPatientID, "PAT001")
	ds.Add(dimse.Tag{Group: 0x0009, Element: 0x0010}, dimse.VRLO, "vendor secret")
	ds.Add(dimse.TagPixelData, dimse.VROW, []byte{1, 2, 3, 4})

	rec := normalizeDataset(ds)

	assert.Equal(t, "PAT001", rec.PatientID)
	assert.Empty(t, rec.Extra)
}

func TestNormalizeDatasetUnknownShapeIsParked(t *testing.T) {
	ds := dimse.NewDataset()
	ds.Add(dimse.TagModalitiesInStudy, dimse.VRCS, []byte{0x00, 0x01})
	ds.Add(dimse.TagNumberOfStudyRelatedInstances, dimse.VRIS, "not-a-number")

	rec := normalizeDataset(ds)

	assert.Nil(t, rec.ModalitiesInStudy)
	assert.Nil(t, rec.NumberOfStudyRelatedInstances)
	assert.True(t, rec.inconsistent("ModalitiesInStudy"))
	assert.True(t, rec.inconsistent("NumberOfStudyRelatedInstances"))
}

func TestNormalizeValueCoercions(t *testing.T) {
	assert.Equal(t, 1.5, normalizeValue(dimse.VRDS, "1.5"))
	assert.Equal(t, 7, normalizeValue(dimse.VRIS, "7 "))
	assert.Equal(t, "N/A", normalizeValue(dimse.VRDS, "N/A"))
	assert.Equal(t, "hello", normalizeValue(dimse.VRLO, "hello\x00"))
	assert.Equal(t, []any{1.2, 3.4}, normalizeValue(dimse.VRDS, "1.2\\3.4"))
}

func TestNormalizeValueIsIdempotent(t *testing.T) {
	inputs := []struct {
		vr string
		v  any
	}{
		{dimse.VRDS, "1.5"},
		{dimse.VRIS, "7"},
		{dimse.VRCS, "CT\\MR"},
		{dimse.VRLO, " padded \x00"},
		{dimse.VROB, []byte{1, 2}},
	}
	for _, in := range inputs {
		once := normalizeValue(in.vr, in.v)
		twice := normalizeValue(in.vr, once)
		assert.Equal(t, once, twice, "vr %s input %v", in.vr, in.v)
	}
}

func TestParseCountEmptyVersusMalformed(t *testing.T) {
	var rec Record
	assert.Nil(t, parseCount(&rec, "NumberOfStudyRelatedInstances", " \x00"))
	assert.False(t, rec.inconsistent("NumberOfStudyRelatedInstances"))

	assert.Nil(t, parseCount(&rec, "NumberOfStudyRelatedInstances", "abc"))
	assert.True(t, rec.inconsistent("NumberOfStudyRelatedInstances"))

	var rec2 Record
	assert.Nil(t, parseCount(&rec2, "NumberOfSeriesRelatedInstances", 42))
	assert.True(t, rec2.inconsistent("NumberOfSeriesRelatedInstances"))
}

func TestSplitMultiValueDropsEmptyParts(t *testing.T) {
	assert.Equal(t, []string{"CT", "MR"}, splitMultiValue("CT\\\\MR \\"))
	assert.Empty(t, splitMultiValue(""))
}
