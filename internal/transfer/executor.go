package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openradlabs/dicom-transfer/internal/anonymizer"
	"github.com/openradlabs/dicom-transfer/internal/archive"
	"github.com/openradlabs/dicom-transfer/internal/cache"
	"github.com/openradlabs/dicom-transfer/internal/connector"
	"github.com/openradlabs/dicom-transfer/internal/metrics"
	"github.com/openradlabs/dicom-transfer/internal/models"
	"github.com/openradlabs/dicom-transfer/pkg/logger"
)

// Job carries the batch-level transfer settings shared by its tasks.
type Job struct {
	ID                uuid.UUID
	TrialProtocolID   string
	TrialProtocolName string

	// ArchivePassword turns a folder destination into a
	// password-protected 7z archive destination.
	ArchivePassword string
}

// Task is one transfer request: one study of one patient, optionally
// narrowed to selected series and renamed under a pseudonym.
type Task struct {
	ID               uuid.UUID
	PatientID        string
	PatientName      string
	PatientBirthDate string
	StudyUID         string
	SeriesUIDs       []string
	Pseudonym        string
}

// Outcome is the final result of one task, with the captured log
// transcript. Halt asks the orchestrator to stop dispatching further
// tasks (disk exhaustion).
type Outcome struct {
	Task       uuid.UUID
	Status     models.TaskStatus
	Message    string
	Transcript string
	Halt       bool
}

// sourceClient is the query/retrieve surface the executor needs from
// the source node.
type sourceClient interface {
	FindPatients(q *connector.Query) ([]connector.Record, error)
	FindStudies(q *connector.Query, useStudyRoot bool, limit int) ([]connector.Record, error)
	DownloadStudy(patientID, studyUID, folder string, modifier connector.Modifier) error
	DownloadSeries(patientID, studyUID, seriesUID, folder string, modifier connector.Modifier) error
}

// destClient is the upload surface of a server destination.
type destClient interface {
	UploadFolder(folder string, modifier connector.Modifier) error
}

// Executor runs single transfer tasks against one source and one
// destination. It is not safe for concurrent use; the orchestrator
// creates one per worker.
type Executor struct {
	Job      Job
	Source   sourceClient
	DestNode models.DicomNode

	// Dest must be set for server destinations and stays nil for
	// folder and archive destinations.
	Dest destClient

	Patients           *cache.PatientCache
	ExcludedModalities []string
	TempDir            string
	Log                zerolog.Logger
}

// Run executes one task end to end and never panics out; every error
// becomes a FAILURE outcome with the log transcript attached.
func (e *Executor) Run(ctx context.Context, task Task) Outcome {
	log, transcript := logger.WithCapture(e.Log.With().
		Str("task_id", task.ID.String()).
		Str("study_uid", task.StudyUID).
		Logger())

	outcome := e.run(ctx, log, task)
	outcome.Task = task.ID
	outcome.Transcript = transcript.String()
	metrics.ObserveTransfer(string(outcome.Status))
	return outcome
}

func (e *Executor) run(ctx context.Context, log zerolog.Logger, task Task) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Status: models.TaskStatusCanceled, Message: "task canceled before it started"}
	}

	patient, err := e.resolvePatient(task)
	if err != nil {
		return e.failure(log, "resolving patient", err)
	}
	study, err := e.resolveStudy(patient.PatientID, task.StudyUID)
	if err != nil {
		return e.failure(log, "resolving study", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Status: models.TaskStatusCanceled, Message: "task canceled"}
	}

	modifier := e.modifier(task)
	log.Info().
		Str("patient_id", patient.PatientID).
		Str("destination", e.DestNode.Name).
		Msg("Starting transfer")

	switch {
	case e.DestNode.Type == models.NodeTypeServer:
		err = e.transferToServer(patient, study, task, modifier)
	case e.Job.ArchivePassword != "":
		err = e.transferToArchive(patient, study, task, modifier)
	default:
		err = e.transferToFolder(patient, study, task, modifier)
	}
	if err != nil {
		return e.failure(log, "transferring study", err)
	}

	log.Info().Msg("Transfer completed")
	return Outcome{Status: models.TaskStatusSuccess, Message: "Transfer completed"}
}

func (e *Executor) failure(log zerolog.Logger, step string, err error) Outcome {
	log.Error().Err(err).Msg("Transfer failed")

	var noSpace *connector.NoSpaceLeftError
	if errors.As(err, &noSpace) {
		return Outcome{
			Status:  models.TaskStatusFailure,
			Message: fmt.Sprintf("%s: %v", step, err),
			Halt:    true,
		}
	}
	return Outcome{
		Status:  models.TaskStatusFailure,
		Message: fmt.Sprintf("%s: %v", step, err),
	}
}

// resolvePatient finds exactly one patient matching the task's
// demographics, memoized through the batch-run identity cache.
func (e *Executor) resolvePatient(task Task) (connector.Record, error) {
	key := cache.Key(task.PatientID, task.PatientName, task.PatientBirthDate)
	if e.Patients != nil {
		if patient, ok := e.Patients.Get(key); ok {
			return patient, nil
		}
	}

	q := connector.NewQuery().
		Set("PatientID", task.PatientID).
		Set("PatientName", task.PatientName).
		Set("PatientBirthDate", task.PatientBirthDate)
	patients, err := e.Source.FindPatients(q)
	if err != nil {
		return connector.Record{}, err
	}
	switch len(patients) {
	case 0:
		return connector.Record{}, fmt.Errorf("no patient matches the given demographics")
	case 1:
	default:
		return connector.Record{}, fmt.Errorf("%d patients match the given demographics", len(patients))
	}

	if e.Patients != nil {
		e.Patients.Set(key, patients[0])
	}
	return patients[0], nil
}

func (e *Executor) resolveStudy(patientID, studyUID string) (connector.Record, error) {
	// The patient is resolved by now, so the patient-root model applies.
	q := connector.NewQuery().
		Set("PatientID", patientID).
		Set("StudyInstanceUID", studyUID)
	studies, err := e.Source.FindStudies(q, false, 0)
	if err != nil {
		return connector.Record{}, err
	}
	switch len(studies) {
	case 0:
		return connector.Record{}, fmt.Errorf("study %s not found", studyUID)
	case 1:
		return studies[0], nil
	default:
		return connector.Record{}, fmt.Errorf("study %s matched %d times", studyUID, len(studies))
	}
}

func (e *Executor) modifier(task Task) connector.Modifier {
	p := &anonymizer.Pseudonymizer{
		Pseudonym:         task.Pseudonym,
		TrialProtocolID:   e.Job.TrialProtocolID,
		TrialProtocolName: e.Job.TrialProtocolName,
	}
	return p.Modify
}

func (e *Executor) transferToServer(patient, study connector.Record, task Task, modifier connector.Modifier) error {
	tmpDir, err := os.MkdirTemp(e.TempDir, "transfer-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	if err := e.download(patient, study, task, filepath.Join(tmpDir, e.patientFolder(patient, task)), modifier); err != nil {
		return err
	}
	return e.Dest.UploadFolder(tmpDir, nil)
}

func (e *Executor) transferToArchive(patient, study connector.Record, task Task, modifier connector.Modifier) error {
	archivePath := filepath.Join(e.DestNode.FolderPath, e.Job.ID.String()+".7z")
	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		if err := archive.Create(archivePath, e.Job.ArchivePassword); err != nil {
			return err
		}
	}

	tmpDir, err := os.MkdirTemp(e.TempDir, "transfer-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	patientDir := filepath.Join(tmpDir, e.patientFolder(patient, task))
	if err := e.download(patient, study, task, patientDir, modifier); err != nil {
		return err
	}
	return archive.Append(archivePath, e.Job.ArchivePassword, patientDir)
}

func (e *Executor) transferToFolder(patient, study connector.Record, task Task, modifier connector.Modifier) error {
	folder := filepath.Join(e.DestNode.FolderPath, e.patientFolder(patient, task))
	return e.download(patient, study, task, folder, modifier)
}

// download fetches the study (or the selected series) into a study
// folder named after its date, time and remaining modalities.
func (e *Executor) download(patient, study connector.Record, task Task, patientDir string, modifier connector.Modifier) error {
	folder := filepath.Join(patientDir, e.studyFolder(study))
	if len(task.SeriesUIDs) == 0 {
		return e.Source.DownloadStudy(patient.PatientID, task.StudyUID, folder, modifier)
	}
	for _, seriesUID := range task.SeriesUIDs {
		if err := e.Source.DownloadSeries(patient.PatientID, task.StudyUID, seriesUID, folder, modifier); err != nil {
			return err
		}
	}
	return nil
}

// patientFolder names the patient directory after the pseudonym when
// one is set, the patient ID otherwise.
func (e *Executor) patientFolder(patient connector.Record, task Task) string {
	name := task.Pseudonym
	if name == "" {
		name = patient.PatientID
	}
	return sanitizeName(name)
}

func (e *Executor) studyFolder(study connector.Record) string {
	modalities := e.filterModalities(study.ModalitiesInStudy)
	name := fmt.Sprintf("%s-%s", study.StudyDate, study.StudyTime)
	if len(modalities) > 0 {
		name += "-" + strings.Join(modalities, ",")
	}
	return sanitizeName(name)
}

func (e *Executor) filterModalities(modalities []string) []string {
	var out []string
	for _, m := range modalities {
		excluded := false
		for _, ex := range e.ExcludedModalities {
			if m == ex {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, m)
		}
	}
	return out
}

var unsafeNameChars = regexp.MustCompile(`[^\w \-.,]`)

// sanitizeName makes a value safe to use as a directory name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	return unsafeNameChars.ReplaceAllString(name, "_")
}
