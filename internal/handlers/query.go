package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openradlabs/dicom-transfer/internal/connector"
	"github.com/openradlabs/dicom-transfer/internal/models"
	"github.com/openradlabs/dicom-transfer/internal/repository"
)

// QueryHandler serves ad-hoc patient/study/series queries against a
// configured source node.
type QueryHandler struct {
	nodes          *repository.NodeRepository
	callingAETitle string

	// newConnector is swapped in tests.
	newConnector func(cfg connector.Config) queryClient
}

type queryClient interface {
	FindPatients(q *connector.Query) ([]connector.Record, error)
	FindStudies(q *connector.Query, useStudyRoot bool, limit int) ([]connector.Record, error)
	FindSeries(q *connector.Query) ([]connector.Record, error)
}

func NewQueryHandler(nodes *repository.NodeRepository, callingAETitle string) *QueryHandler {
	return &QueryHandler{
		nodes:          nodes,
		callingAETitle: callingAETitle,
		newConnector: func(cfg connector.Config) queryClient {
			return connector.New(cfg)
		},
	}
}

// SearchPatients queries patients on the node
func (h *QueryHandler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	client, ok := h.clientFromRequest(w, r)
	if !ok {
		return
	}

	q := connector.NewQuery().
		Set("PatientID", r.URL.Query().Get("patient_id")).
		Set("PatientName", r.URL.Query().Get("patient_name")).
		Set("PatientBirthDate", r.URL.Query().Get("birth_date"))

	records, err := client.FindPatients(q)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeRecords(w, records)
}

// SearchStudies queries studies on the node
func (h *QueryHandler) SearchStudies(w http.ResponseWriter, r *http.Request) {
	client, ok := h.clientFromRequest(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	q := connector.NewQuery().
		Set("PatientID", r.URL.Query().Get("patient_id")).
		Set("PatientName", r.URL.Query().Get("patient_name")).
		Set("PatientBirthDate", r.URL.Query().Get("birth_date")).
		Set("StudyDate", r.URL.Query().Get("study_date")).
		Set("AccessionNumber", r.URL.Query().Get("accession_number")).
		Set("ModalitiesInStudy", r.URL.Query().Get("modality"))

	// Searches without a patient ID need the study-root model; the
	// patient-root model cannot search without one.
	useStudyRoot := q.Get("PatientID") == ""
	if v := r.URL.Query().Get("study_root"); v != "" {
		useStudyRoot, _ = strconv.ParseBool(v)
	}

	records, err := client.FindStudies(q, useStudyRoot, limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	connector.SortStudiesForDisplay(records)
	writeRecords(w, records)
}

// SearchSeries queries the series of a study
func (h *QueryHandler) SearchSeries(w http.ResponseWriter, r *http.Request) {
	client, ok := h.clientFromRequest(w, r)
	if !ok {
		return
	}

	q := connector.NewQuery().
		Set("PatientID", r.URL.Query().Get("patient_id")).
		Set("StudyInstanceUID", chi.URLParam(r, "studyUID")).
		Set("Modality", r.URL.Query().Get("modality"))

	records, err := client.FindSeries(q)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *QueryHandler) clientFromRequest(w http.ResponseWriter, r *http.Request) (queryClient, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return nil, false
	}

	node, err := h.nodes.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return nil, false
	}
	if node.Type != models.NodeTypeServer || !node.SourceActive {
		http.Error(w, "Node is not an active query source", http.StatusBadRequest)
		return nil, false
	}

	return h.newConnector(node.ConnectorConfig(h.callingAETitle)), true
}

func writeRecords(w http.ResponseWriter, records []connector.Record) {
	if records == nil {
		records = []connector.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func writeQueryError(w http.ResponseWriter, err error) {
	var capability *connector.CapabilityError
	if errors.As(err, &capability) {
		http.Error(w, capability.Error(), http.StatusBadRequest)
		return
	}
	var conn *connector.ConnectionError
	if errors.As(err, &conn) {
		log.Warn().Err(err).Msg("Query failed, node unreachable")
		http.Error(w, "Node unreachable", http.StatusBadGateway)
		return
	}
	log.Error().Err(err).Msg("Query failed")
	http.Error(w, "Query failed", http.StatusInternalServerError)
}
