package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/openradlabs/dicom-transfer/internal/database"
	"github.com/openradlabs/dicom-transfer/internal/models"
)

// NodeRepository handles DicomNode database operations
type NodeRepository struct{}

// NewNodeRepository creates a new node repository
func NewNodeRepository() *NodeRepository {
	return &NodeRepository{}
}

// Create persists a new node
func (r *NodeRepository) Create(ctx context.Context, node *models.DicomNode) error {
	return database.DB.WithContext(ctx).Create(node).Error
}

// GetByID fetches a node by its ID
func (r *NodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DicomNode, error) {
	var node models.DicomNode
	if err := database.DB.WithContext(ctx).First(&node, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

// GetByName fetches a node by its unique name
func (r *NodeRepository) GetByName(ctx context.Context, name string) (*models.DicomNode, error) {
	var node models.DicomNode
	if err := database.DB.WithContext(ctx).First(&node, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

// List returns all nodes
func (r *NodeRepository) List(ctx context.Context) ([]models.DicomNode, error) {
	var nodes []models.DicomNode
	if err := database.DB.WithContext(ctx).Order("name").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListSources returns the nodes usable as transfer sources
func (r *NodeRepository) ListSources(ctx context.Context) ([]models.DicomNode, error) {
	var nodes []models.DicomNode
	err := database.DB.WithContext(ctx).
		Where("source_active = ? AND type = ?", true, models.NodeTypeServer).
		Order("name").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListDestinations returns the nodes usable as transfer destinations
func (r *NodeRepository) ListDestinations(ctx context.Context) ([]models.DicomNode, error) {
	var nodes []models.DicomNode
	err := database.DB.WithContext(ctx).
		Where("destination_active = ?", true).
		Order("name").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Update saves changes to a node
func (r *NodeRepository) Update(ctx context.Context, node *models.DicomNode) error {
	return database.DB.WithContext(ctx).Save(node).Error
}

// Delete soft-deletes a node
func (r *NodeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.DB.WithContext(ctx).Delete(&models.DicomNode{}, "id = ?", id).Error
}
