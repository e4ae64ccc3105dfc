package connector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// FindPatients queries at the patient level. A birth date constraint
// is also applied client-side because servers match dates
// inconsistently.
func (c *Connector) FindPatients(q *Query) ([]Record, error) {
	if !c.cfg.Capabilities.PatientRootFind {
		return nil, &CapabilityError{Reason: "server does not support patient-root queries"}
	}

	q = q.Clone()
	q.Set("QueryRetrieveLevel", "PATIENT")
	q.ensure("PatientID", "PatientName", "PatientBirthDate")
	birthDate := q.Get("PatientBirthDate")

	var records []Record
	err := c.withAutoConnect(func() error {
		results, err := c.ops.find(q, dimse.PatientRootQRFind, 0)
		if err != nil {
			return err
		}
		records, err = extractPending("C-FIND", results)
		return err
	})
	if err != nil {
		return nil, err
	}

	if birthDate == "" {
		return records, nil
	}
	var out []Record
	for _, r := range records {
		if r.PatientBirthDate == birthDate {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindStudies queries at the study level. The caller picks the
// information model: study-root needs study-root support on the
// server, patient-root needs patient-root support and a patient ID in
// the query, since that model cannot search without one. A modality
// constraint is applied client-side after the query returns (see
// filterStudiesByModalities). A positive limit caps the result count
// by aborting the stream once reached.
func (c *Connector) FindStudies(q *Query, useStudyRoot bool, limit int) ([]Record, error) {
	q = q.Clone()
	q.Set("QueryRetrieveLevel", "STUDY")
	q.ensure(
		"PatientID", "PatientName", "PatientBirthDate", "AccessionNumber",
		"StudyInstanceUID", "StudyDate", "StudyTime", "StudyDescription",
		"ModalitiesInStudy", "NumberOfStudyRelatedInstances",
	)

	sopClass, err := c.selectFindModel(useStudyRoot, q.Get("PatientID"))
	if err != nil {
		return nil, err
	}

	wanted := splitMultiValue(q.Get("ModalitiesInStudy"))
	if len(wanted) > 0 {
		// Requested back as a plain return attribute; matching
		// happens client-side against the full modality list.
		q.Set("ModalitiesInStudy", "")
	}

	var records []Record
	err = c.withAutoConnect(func() error {
		results, err := c.ops.find(q, sopClass, limit)
		if err != nil {
			return err
		}
		if records, err = extractPending("C-FIND", results); err != nil {
			return err
		}
		records, err = c.filterStudiesByModalities(records, wanted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Connector) selectFindModel(useStudyRoot bool, patientID string) (string, error) {
	caps := c.cfg.Capabilities
	if useStudyRoot {
		if !caps.StudyRootFind {
			return "", &CapabilityError{Reason: "server does not support study-root queries"}
		}
		return dimse.StudyRootQRFind, nil
	}
	if !caps.PatientRootFind {
		return "", &CapabilityError{Reason: "server does not support patient-root queries"}
	}
	if patientID == "" {
		return "", &CapabilityError{Reason: "patient-root study query requires a patient ID"}
	}
	return dimse.PatientRootQRFind, nil
}

// filterStudiesByModalities keeps the studies whose modalities
// intersect the wanted set. Studies that report no modalities but do
// contain instances get their modality list fetched series by series.
// A study reporting its modalities or instance count in an unusable
// shape fails the whole call; silently passing it through could leak
// studies past an exclusion filter.
func (c *Connector) filterStudiesByModalities(studies []Record, wanted []string) ([]Record, error) {
	if len(wanted) == 0 {
		return studies, nil
	}

	var out []Record
	for i := range studies {
		study := studies[i]
		if study.inconsistent("ModalitiesInStudy") || study.inconsistent("NumberOfStudyRelatedInstances") {
			return nil, fmt.Errorf("study %s reports malformed modality data", study.StudyInstanceUID)
		}

		// An unreported count must not bypass the series lookup.
		count := 1
		if study.NumberOfStudyRelatedInstances != nil {
			count = *study.NumberOfStudyRelatedInstances
		}

		switch {
		case len(study.ModalitiesInStudy) > 0:
			if intersects(study.ModalitiesInStudy, wanted) {
				out = append(out, study)
			}
		case count == 0:
			out = append(out, study)
		case count > 0:
			modalities, err := c.FetchStudyModalities(study.PatientID, study.StudyInstanceUID)
			if err != nil {
				return nil, err
			}
			study.ModalitiesInStudy = modalities
			if intersects(modalities, wanted) {
				out = append(out, study)
			}
		default:
			return nil, fmt.Errorf("study %s reports a negative instance count", study.StudyInstanceUID)
		}
	}
	return out, nil
}

// FindSeries queries the series of a study. The modality constraint is
// stripped from the outgoing query and applied client-side; series
// level modality matching is unreliable on several archives.
func (c *Connector) FindSeries(q *Query) ([]Record, error) {
	if !c.cfg.Capabilities.PatientRootFind {
		return nil, &CapabilityError{Reason: "server does not support patient-root queries"}
	}

	q = q.Clone()
	q.Set("QueryRetrieveLevel", "SERIES")
	q.ensure("SeriesInstanceUID", "SeriesDescription", "Modality")
	wanted := splitMultiValue(q.Get("Modality"))
	q.Set("Modality", "")

	var records []Record
	err := c.withAutoConnect(func() error {
		results, err := c.ops.find(q, dimse.PatientRootQRFind, 0)
		if err != nil {
			return err
		}
		records, err = extractPending("C-FIND", results)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(wanted) == 0 {
		return records, nil
	}
	var out []Record
	for _, r := range records {
		if contains(wanted, r.Modality) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FetchStudyModalities enumerates the distinct modalities of a study's
// series.
func (c *Connector) FetchStudyModalities(patientID, studyUID string) ([]string, error) {
	q := NewQuery().
		Set("PatientID", patientID).
		Set("StudyInstanceUID", studyUID)
	series, err := c.FindSeries(q)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var modalities []string
	for _, s := range series {
		if s.Modality != "" && !seen[s.Modality] {
			seen[s.Modality] = true
			modalities = append(modalities, s.Modality)
		}
	}
	sort.Strings(modalities)
	return modalities, nil
}

// SortStudiesForDisplay orders studies by patient name, newest study
// first within a patient.
func SortStudiesForDisplay(studies []Record) {
	sort.SliceStable(studies, func(i, j int) bool {
		if studies[i].PatientName != studies[j].PatientName {
			return studies[i].PatientName < studies[j].PatientName
		}
		if studies[i].StudyDate != studies[j].StudyDate {
			return studies[i].StudyDate > studies[j].StudyDate
		}
		return studies[i].StudyTime > studies[j].StudyTime
	})
}

// extractPending validates the terminal status of a response stream
// and returns the data of its pending results. A stream that ended by
// a result-limit abort has a pending tail and is accepted.
func extractPending(op string, results []Result) ([]Record, error) {
	if len(results) == 0 {
		return nil, &ConnectionError{Op: op, Err: errors.New("no response received")}
	}
	last := results[len(results)-1].Status
	if last.Category != dimse.StatusPending && last.Category != dimse.StatusSuccess {
		return nil, &RemoteOperationError{Op: op, Status: last}
	}
	var records []Record
	for _, r := range results {
		if r.Status.Category == dimse.StatusPending {
			records = append(records, r.Data)
		}
	}
	return records, nil
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
