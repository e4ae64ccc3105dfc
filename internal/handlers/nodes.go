package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openradlabs/dicom-transfer/internal/connector"
	"github.com/openradlabs/dicom-transfer/internal/models"
	"github.com/openradlabs/dicom-transfer/internal/repository"
)

// NodeHandler manages DICOM node configuration.
type NodeHandler struct {
	nodes          *repository.NodeRepository
	callingAETitle string
}

func NewNodeHandler(nodes *repository.NodeRepository, callingAETitle string) *NodeHandler {
	return &NodeHandler{
		nodes:          nodes,
		callingAETitle: callingAETitle,
	}
}

// CreateNode registers a new node
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var node models.DicomNode
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.nodes.Create(r.Context(), &node); err != nil {
		log.Error().Err(err).Msg("Failed to create node")
		http.Error(w, "Failed to create node", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(node)
}

// ListNodes returns all configured nodes
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.nodes.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list nodes")
		http.Error(w, "Failed to list nodes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nodes)
}

// GetNode returns one node
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.nodeFromRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(node)
}

// UpdateNode saves changes to a node
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.nodeFromRequest(w, r)
	if !ok {
		return
	}

	var update models.DicomNode
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	update.ID = node.ID

	if err := h.nodes.Update(r.Context(), &update); err != nil {
		log.Error().Err(err).Msg("Failed to update node")
		http.Error(w, "Failed to update node", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(update)
}

// DeleteNode removes a node
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.nodeFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.nodes.Delete(r.Context(), node.ID); err != nil {
		log.Error().Err(err).Msg("Failed to delete node")
		http.Error(w, "Failed to delete node", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type connectionTestResponse struct {
	IsConnected bool   `json:"isConnected"`
	Message     string `json:"message,omitempty"`
}

// TestConnection verifies connectivity to a node with a C-ECHO
func (h *NodeHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	node, ok := h.nodeFromRequest(w, r)
	if !ok {
		return
	}
	if node.Type != models.NodeTypeServer {
		http.Error(w, "Folder nodes have no connection to test", http.StatusBadRequest)
		return
	}

	conn := connector.New(node.ConnectorConfig(h.callingAETitle))
	response := connectionTestResponse{IsConnected: true}
	if err := conn.Echo(); err != nil {
		log.Warn().Err(err).Str("node", node.Name).Msg("Connection test failed")
		response.IsConnected = false
		response.Message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *NodeHandler) nodeFromRequest(w http.ResponseWriter, r *http.Request) (*models.DicomNode, bool) {
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
	return node, true
}
