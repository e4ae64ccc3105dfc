package transfer

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openradlabs/dicom-transfer/internal/cache"
	"github.com/openradlabs/dicom-transfer/internal/connector"
	"github.com/openradlabs/dicom-transfer/internal/models"
)

type fakeSource struct {
	patients    []connector.Record
	patientsErr error
	studies     []connector.Record
	studiesErr  error

	findPatientCalls int
	studyFolders     []string
	seriesFolders    []string
	seriesUIDs       []string
	downloadErr      error
}

func (f *fakeSource) FindPatients(q *connector.Query) ([]connector.Record, error) {
	f.findPatientCalls++
	return f.patients, f.patientsErr
}

func (f *fakeSource) FindStudies(q *connector.Query, useStudyRoot bool, limit int) ([]connector.Record, error) {
	return f.studies, f.studiesErr
}

func (f *fakeSource) DownloadStudy(patientID, studyUID, folder string, modifier connector.Modifier) error {
	f.studyFolders = append(f.studyFolders, folder)
	return f.downloadErr
}

func (f *fakeSource) DownloadSeries(patientID, studyUID, seriesUID, folder string, modifier connector.Modifier) error {
	f.seriesFolders = append(f.seriesFolders, folder)
	f.seriesUIDs = append(f.seriesUIDs, seriesUID)
	return f.downloadErr
}

type fakeDest struct {
	folders   []string
	uploadErr error
}

func (f *fakeDest) UploadFolder(folder string, modifier connector.Modifier) error {
	f.folders = append(f.folders, folder)
	return f.uploadErr
}

func singlePatient() []connector.Record {
	return []connector.Record{{PatientID: "P1", PatientName: "DOE^JOHN", PatientBirthDate: "19700101"}}
}

func singleStudy() []connector.Record {
	return []connector.Record{{
		PatientID:         "P1",
		StudyInstanceUID:  "1.2.3",
		StudyDate:         "20240115",
		StudyTime:         "0930",
		ModalitiesInStudy: []string{"CT", "PR"},
	}}
}

func sampleTask() Task {
	return Task{
		ID:        uuid.New(),
		PatientID: "P1",
		StudyUID:  "1.2.3",
		Pseudonym: "SUBJ-001",
	}
}

func folderExecutor(src *fakeSource, folderPath string) *Executor {
	return &Executor{
		Job:    Job{ID: uuid.New()},
		Source: src,
		DestNode: models.DicomNode{
			Name:       "research-share",
			Type:       models.NodeTypeFolder,
			FolderPath: folderPath,
		},
		ExcludedModalities: []string{"PR", "SR"},
		Log:                zerolog.Nop(),
	}
}

func TestRunDownloadsIntoNamedFolders(t *testing.T) {
	src := &fakeSource{patients: singlePatient(), studies: singleStudy()}
	dest := t.TempDir()
	e := folderExecutor(src, dest)

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusSuccess, outcome.Status)
	require.Len(t, src.studyFolders, 1)
	// Pseudonym names the patient folder; excluded modalities stay out
	// of the study folder name.
	assert.Equal(t, filepath.Join(dest, "SUBJ-001", "20240115-0930-CT"), src.studyFolders[0])
}

func TestRunCapturesTranscript(t *testing.T) {
	src := &fakeSource{patients: singlePatient(), studies: singleStudy()}
	e := folderExecutor(src, t.TempDir())
	e.Log = zerolog.New(io.Discard)

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusSuccess, outcome.Status)
	assert.Contains(t, outcome.Transcript, "Transfer completed")
}

func TestRunDownloadsSelectedSeriesOnly(t *testing.T) {
	src := &fakeSource{patients: singlePatient(), studies: singleStudy()}
	e := folderExecutor(src, t.TempDir())

	task := sampleTask()
	task.SeriesUIDs = []string{"1.2.3.1", "1.2.3.2"}
	outcome := e.Run(context.Background(), task)

	assert.Equal(t, models.TaskStatusSuccess, outcome.Status)
	assert.Empty(t, src.studyFolders)
	assert.Equal(t, []string{"1.2.3.1", "1.2.3.2"}, src.seriesUIDs)
}

func TestRunUploadsToServerDestination(t *testing.T) {
	src := &fakeSource{patients: singlePatient(), studies: singleStudy()}
	dest := &fakeDest{}
	e := &Executor{
		Job:      Job{ID: uuid.New()},
		Source:   src,
		DestNode: models.DicomNode{Name: "archive-pacs", Type: models.NodeTypeServer},
		Dest:     dest,
		TempDir:  t.TempDir(),
		Log:      zerolog.Nop(),
	}

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusSuccess, outcome.Status)
	require.Len(t, src.studyFolders, 1)
	require.Len(t, dest.folders, 1)
	// The upload covers the whole staging directory.
	assert.True(t, strings.HasPrefix(src.studyFolders[0], dest.folders[0]))
}

func TestRunUsesPatientCache(t *testing.T) {
	patients, err := cache.NewPatientCache(16)
	require.NoError(t, err)
	task := sampleTask()
	patients.Set(
		cache.Key(task.PatientID, task.PatientName, task.PatientBirthDate),
		connector.Record{PatientID: "P1"},
	)

	src := &fakeSource{studies: singleStudy()}
	e := folderExecutor(src, t.TempDir())
	e.Patients = patients

	outcome := e.Run(context.Background(), task)

	assert.Equal(t, models.TaskStatusSuccess, outcome.Status)
	assert.Zero(t, src.findPatientCalls, "cached identity must skip the patient query")
}

func TestRunCachesResolvedPatient(t *testing.T) {
	patients, err := cache.NewPatientCache(16)
	require.NoError(t, err)

	src := &fakeSource{patients: singlePatient(), studies: singleStudy()}
	e := folderExecutor(src, t.TempDir())
	e.Patients = patients

	e.Run(context.Background(), sampleTask())
	e.Run(context.Background(), sampleTask())

	assert.Equal(t, 1, src.findPatientCalls)
}

func TestRunFailsOnAmbiguousPatient(t *testing.T) {
	src := &fakeSource{patients: []connector.Record{{PatientID: "P1"}, {PatientID: "P1A"}}}
	e := folderExecutor(src, t.TempDir())

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusFailure, outcome.Status)
	assert.Contains(t, outcome.Message, "2 patients match")
}

func TestRunFailsOnUnknownPatient(t *testing.T) {
	src := &fakeSource{}
	e := folderExecutor(src, t.TempDir())

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusFailure, outcome.Status)
	assert.Contains(t, outcome.Message, "no patient matches")
}

func TestRunFailsOnUnknownStudy(t *testing.T) {
	src := &fakeSource{patients: singlePatient()}
	e := folderExecutor(src, t.TempDir())

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusFailure, outcome.Status)
	assert.Contains(t, outcome.Message, "study 1.2.3 not found")
}

func TestRunHaltsOnFullDisk(t *testing.T) {
	src := &fakeSource{
		patients:    singlePatient(),
		studies:     singleStudy(),
		downloadErr: &connector.NoSpaceLeftError{Path: "/tmp/x", Err: errors.New("no space left on device")},
	}
	e := folderExecutor(src, t.TempDir())

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusFailure, outcome.Status)
	assert.True(t, outcome.Halt, "disk exhaustion must stop the batch")
}

func TestRunOrdinaryFailureDoesNotHalt(t *testing.T) {
	src := &fakeSource{
		patients:    singlePatient(),
		studies:     singleStudy(),
		downloadErr: errors.New("association aborted"),
	}
	e := folderExecutor(src, t.TempDir())

	outcome := e.Run(context.Background(), sampleTask())

	assert.Equal(t, models.TaskStatusFailure, outcome.Status)
	assert.False(t, outcome.Halt)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{patients: singlePatient(), studies: singleStudy()}
	e := folderExecutor(src, t.TempDir())

	outcome := e.Run(ctx, sampleTask())

	assert.Equal(t, models.TaskStatusCanceled, outcome.Status)
	assert.Zero(t, src.findPatientCalls)
}

func TestPatientFolderFallsBackToPatientID(t *testing.T) {
	e := folderExecutor(&fakeSource{}, t.TempDir())

	task := sampleTask()
	task.Pseudonym = ""
	assert.Equal(t, "P1", e.patientFolder(connector.Record{PatientID: "P1"}, task))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "DOE_JOHN", sanitizeName("DOE^JOHN"))
	assert.Equal(t, "a_b _ c.d,e-f", sanitizeName(" a/b _ c.d,e-f "))
}
