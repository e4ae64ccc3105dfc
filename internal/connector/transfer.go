package connector

import (
	"errors"
	"fmt"
	"os"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// DownloadStudy retrieves every instance of a study into folder,
// applying the modifier to each instance before it is written. The
// study's series are enumerated first so an unknown or empty study
// fails before any retrieval starts.
func (c *Connector) DownloadStudy(patientID, studyUID, folder string, modifier Modifier) error {
	return c.withAutoConnect(func() error {
		q := NewQuery().
			Set("PatientID", patientID).
			Set("StudyInstanceUID", studyUID).
			Set("SeriesInstanceUID", "").
			Set("SeriesDescription", "")
		series, err := c.FindSeries(q)
		if err != nil {
			return err
		}
		if len(series) == 0 {
			return fmt.Errorf("study %s has no series to download", studyUID)
		}

		retrieval := NewQuery().
			Set("QueryRetrieveLevel", "STUDY").
			Set("PatientID", patientID).
			Set("StudyInstanceUID", studyUID)
		return c.retrieve(retrieval, patientID, studyUID, folder, modifier)
	})
}

// DownloadSeries retrieves one series into folder.
func (c *Connector) DownloadSeries(patientID, studyUID, seriesUID, folder string, modifier Modifier) error {
	return c.withAutoConnect(func() error {
		q := NewQuery().
			Set("QueryRetrieveLevel", "SERIES").
			Set("PatientID", patientID).
			Set("StudyInstanceUID", studyUID).
			Set("SeriesInstanceUID", seriesUID)
		return c.retrieve(q, patientID, studyUID, folder, modifier)
	})
}

func (c *Connector) retrieve(q *Query, patientID, studyUID, folder string, modifier Modifier) error {
	sopClass, err := c.selectGetModel(patientID, studyUID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("creating download folder: %w", err)
	}

	results, err := c.ops.get(q, sopClass, folder, modifier)
	if err != nil {
		return err
	}
	return checkTerminal("C-GET", results)
}

// selectGetModel picks the retrieval information model. Patient-root
// takes precedence when the request is patient-scoped and the server
// supports it.
func (c *Connector) selectGetModel(patientID, studyUID string) (string, error) {
	caps := c.cfg.Capabilities
	switch {
	case patientID != "" && caps.PatientRootGet:
		return dimse.PatientRootQRGet, nil
	case studyUID != "" && caps.StudyRootGet:
		return dimse.StudyRootQRGet, nil
	}
	return "", &CapabilityError{Reason: "server does not support retrieval for this request"}
}

// MoveStudy asks the server to send a study to another application
// entity.
func (c *Connector) MoveStudy(patientID, studyUID, destinationAET string) error {
	sopClass, err := c.selectMoveModel(patientID, studyUID)
	if err != nil {
		return err
	}
	q := NewQuery().
		Set("QueryRetrieveLevel", "STUDY").
		Set("PatientID", patientID).
		Set("StudyInstanceUID", studyUID)
	return c.withAutoConnect(func() error {
		results, err := c.ops.move(q, sopClass, destinationAET)
		if err != nil {
			return err
		}
		return checkTerminal("C-MOVE", results)
	})
}

// MoveSeries asks the server to send one series to another application
// entity.
func (c *Connector) MoveSeries(patientID, studyUID, seriesUID, destinationAET string) error {
	sopClass, err := c.selectMoveModel(patientID, studyUID)
	if err != nil {
		return err
	}
	q := NewQuery().
		Set("QueryRetrieveLevel", "SERIES").
		Set("PatientID", patientID).
		Set("StudyInstanceUID", studyUID).
		Set("SeriesInstanceUID", seriesUID)
	return c.withAutoConnect(func() error {
		results, err := c.ops.move(q, sopClass, destinationAET)
		if err != nil {
			return err
		}
		return checkTerminal("C-MOVE", results)
	})
}

func (c *Connector) selectMoveModel(patientID, studyUID string) (string, error) {
	caps := c.cfg.Capabilities
	switch {
	case patientID != "" && caps.PatientRootMove:
		return dimse.PatientRootQRMove, nil
	case studyUID != "" && caps.StudyRootMove:
		return dimse.StudyRootQRMove, nil
	}
	return "", &CapabilityError{Reason: "server does not support C-MOVE for this request"}
}

// UploadFolder sends every DICOM file under folder. Unreadable files
// are skipped; every readable instance is attempted, and any instance
// the server did not accept with a clean success, warnings included,
// is aggregated into a single PartialFailureError afterwards.
func (c *Connector) UploadFolder(folder string, modifier Modifier) error {
	if _, err := os.Stat(folder); err != nil {
		return fmt.Errorf("upload folder: %w", err)
	}
	return c.withAutoConnect(func() error {
		results, err := c.ops.store(folder, modifier)
		if err != nil {
			return err
		}
		var failed []string
		for _, r := range results {
			if r.Status.Category != dimse.StatusSuccess {
				failed = append(failed, r.Data.SOPInstanceUID)
			}
		}
		if len(failed) > 0 {
			return &PartialFailureError{Op: "C-STORE", FailedUIDs: failed}
		}
		return nil
	})
}

func checkTerminal(op string, results []Result) error {
	if len(results) == 0 {
		return &ConnectionError{Op: op, Err: errors.New("no response received")}
	}
	last := results[len(results)-1].Status
	if last.Category != dimse.StatusPending && last.Category != dimse.StatusSuccess {
		return &RemoteOperationError{Op: op, Status: last}
	}
	return nil
}
