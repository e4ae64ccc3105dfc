package dimse

// Transfer syntaxes.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
)

// Verification and query/retrieve SOP classes.
const (
	VerificationSOPClass = "1.2.840.10008.1.1"

	PatientRootQRFind = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQRMove = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootQRGet  = "1.2.840.10008.5.1.4.1.2.1.3"

	StudyRootQRFind = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQRMove = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQRGet  = "1.2.840.10008.5.1.4.1.2.2.3"

	PatientStudyOnlyQRFind = "1.2.840.10008.5.1.4.1.2.3.1"
	PatientStudyOnlyQRMove = "1.2.840.10008.5.1.4.1.2.3.2"
	PatientStudyOnlyQRGet  = "1.2.840.10008.5.1.4.1.2.3.3"
)

// Implementation identity sent during association negotiation.
const (
	ImplementationClassUID  = "1.2.826.0.1.3680043.10.1234.1"
	ImplementationVersion   = "DICOMTRANSFER10"
	ApplicationContextName  = "1.2.840.10008.3.1.1.1"
	DefaultMaxPDULength     = 16384
	MaxPresentationContexts = 128
)

// StorageSOPClasses are the storage classes proposed on every
// association so inbound C-STORE sub-operations of a C-GET can be
// accepted. The list fills the context budget left after the
// query/retrieve contexts.
var StorageSOPClasses = []string{
	"1.2.840.10008.5.1.4.1.1.1",       // CR Image Storage
	"1.2.840.10008.5.1.4.1.1.1.1",     // Digital X-Ray (presentation)
	"1.2.840.10008.5.1.4.1.1.1.1.1",   // Digital X-Ray (processing)
	"1.2.840.10008.5.1.4.1.1.1.2",     // Digital Mammography (presentation)
	"1.2.840.10008.5.1.4.1.1.1.2.1",   // Digital Mammography (processing)
	"1.2.840.10008.5.1.4.1.1.2",       // CT Image Storage
	"1.2.840.10008.5.1.4.1.1.2.1",     // Enhanced CT Image Storage
	"1.2.840.10008.5.1.4.1.1.3.1",     // Ultrasound Multi-frame
	"1.2.840.10008.5.1.4.1.1.4",       // MR Image Storage
	"1.2.840.10008.5.1.4.1.1.4.1",     // Enhanced MR Image Storage
	"1.2.840.10008.5.1.4.1.1.4.2",     // MR Spectroscopy Storage
	"1.2.840.10008.5.1.4.1.1.6.1",     // Ultrasound Image Storage
	"1.2.840.10008.5.1.4.1.1.7",       // Secondary Capture
	"1.2.840.10008.5.1.4.1.1.7.1",     // Multi-frame Single Bit SC
	"1.2.840.10008.5.1.4.1.1.7.2",     // Multi-frame Grayscale Byte SC
	"1.2.840.10008.5.1.4.1.1.7.3",     // Multi-frame Grayscale Word SC
	"1.2.840.10008.5.1.4.1.1.7.4",     // Multi-frame True Color SC
	"1.2.840.10008.5.1.4.1.1.11.1",    // Grayscale Softcopy Presentation State
	"1.2.840.10008.5.1.4.1.1.12.1",    // X-Ray Angiographic Image Storage
	"1.2.840.10008.5.1.4.1.1.12.2",    // X-Ray Radiofluoroscopic Image Storage
	"1.2.840.10008.5.1.4.1.1.13.1.3",  // Breast Tomosynthesis Image Storage
	"1.2.840.10008.5.1.4.1.1.20",      // Nuclear Medicine Image Storage
	"1.2.840.10008.5.1.4.1.1.66",      // Raw Data Storage
	"1.2.840.10008.5.1.4.1.1.88.11",   // Basic Text SR
	"1.2.840.10008.5.1.4.1.1.88.22",   // Enhanced SR
	"1.2.840.10008.5.1.4.1.1.88.33",   // Comprehensive SR
	"1.2.840.10008.5.1.4.1.1.104.1",   // Encapsulated PDF Storage
	"1.2.840.10008.5.1.4.1.1.128",     // PET Image Storage
	"1.2.840.10008.5.1.4.1.1.130",     // Enhanced PET Image Storage
	"1.2.840.10008.5.1.4.1.1.481.1",   // RT Image Storage
	"1.2.840.10008.5.1.4.1.1.481.2",   // RT Dose Storage
	"1.2.840.10008.5.1.4.1.1.481.3",   // RT Structure Set Storage
	"1.2.840.10008.5.1.4.1.1.481.5",   // RT Plan Storage
	"1.2.840.10008.5.1.4.1.1.77.1.1",  // VL Endoscopic Image Storage
	"1.2.840.10008.5.1.4.1.1.77.1.2",  // VL Microscopic Image Storage
	"1.2.840.10008.5.1.4.1.1.77.1.4",  // VL Photographic Image Storage
	"1.2.840.10008.5.1.4.1.1.77.1.5.1", // Ophthalmic Photography 8 Bit
	"1.2.840.10008.5.1.4.1.1.77.1.5.4", // Ophthalmic Tomography
	"1.2.840.10008.5.1.4.1.1.9.1.1",   // 12-lead ECG Waveform Storage
	"1.2.840.10008.5.1.4.1.1.9.1.2",   // General ECG Waveform Storage
}
