package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openradlabs/dicom-transfer/internal/connector"
)

// NodeType distinguishes remote DICOM servers from local folder
// destinations.
type NodeType string

const (
	NodeTypeServer NodeType = "server"
	NodeTypeFolder NodeType = "folder"
)

// DicomNode is a configured transfer endpoint. Server nodes carry the
// network identity and the query/retrieve capabilities the peer
// advertises; folder nodes only carry a path.
type DicomNode struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"uniqueIndex;not null" json:"name"`
	Type NodeType  `gorm:"not null;default:server" json:"type"`

	Host    string `json:"host"`
	Port    int    `json:"port"`
	AETitle string `gorm:"column:ae_title" json:"ae_title"`

	PatientRootFind bool `json:"patient_root_find"`
	PatientRootGet  bool `json:"patient_root_get"`
	PatientRootMove bool `json:"patient_root_move"`
	StudyRootFind   bool `json:"study_root_find"`
	StudyRootGet    bool `json:"study_root_get"`
	StudyRootMove   bool `json:"study_root_move"`

	SourceActive      bool `gorm:"default:true" json:"source_active"`
	DestinationActive bool `gorm:"default:true" json:"destination_active"`

	FolderPath string `json:"folder_path,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (DicomNode) TableName() string {
	return "dicom_nodes"
}

// BeforeCreate generates the primary key
func (n *DicomNode) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// ConnectorConfig maps the node onto a connector configuration.
func (n *DicomNode) ConnectorConfig(callingAETitle string) connector.Config {
	return connector.Config{
		Host:           n.Host,
		Port:           n.Port,
		AETitle:        n.AETitle,
		CallingAETitle: callingAETitle,
		Capabilities: connector.Capabilities{
			PatientRootFind: n.PatientRootFind,
			PatientRootGet:  n.PatientRootGet,
			PatientRootMove: n.PatientRootMove,
			StudyRootFind:   n.StudyRootFind,
			StudyRootGet:    n.StudyRootGet,
			StudyRootMove:   n.StudyRootMove,
		},
	}
}
