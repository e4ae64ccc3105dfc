package dimse

// Value representations (DICOM PS3.5 §6.2).
const (
	VRAE = "AE"
	VRAS = "AS"
	VRAT = "AT"
	VRCS = "CS"
	VRDA = "DA"
	VRDS = "DS"
	VRDT = "DT"
	VRFL = "FL"
	VRFD = "FD"
	VRIS = "IS"
	VRLO = "LO"
	VRLT = "LT"
	VROB = "OB"
	VROD = "OD"
	VROF = "OF"
	VROL = "OL"
	VROV = "OV"
	VROW = "OW"
	VRPN = "PN"
	VRSH = "SH"
	VRSL = "SL"
	VRSQ = "SQ"
	VRSS = "SS"
	VRST = "ST"
	VRTM = "TM"
	VRUC = "UC"
	VRUI = "UI"
	VRUL = "UL"
	VRUN = "UN"
	VRUR = "UR"
	VRUS = "US"
	VRUT = "UT"
)

// longFormVRs require the 12-byte explicit VR header (2-byte reserved
// field plus 32-bit length) instead of the short 16-bit length form.
var longFormVRs = map[string]bool{
	VROB: true, VROD: true, VROF: true, VROL: true, VROV: true,
	VROW: true, VRSQ: true, VRUC: true, VRUN: true, VRUR: true,
	VRUT: true,
}

// binaryVRs carry raw bytes rather than character data.
var binaryVRs = map[string]bool{
	VROB: true, VROD: true, VROF: true, VROL: true, VROV: true,
	VROW: true, VRUN: true, VRAT: true, VRFL: true, VRFD: true,
	VRSL: true, VRSS: true, VRUL: true, VRUS: true,
}

// IsLongFormVR reports whether the VR uses the long explicit header.
func IsLongFormVR(vr string) bool { return longFormVRs[vr] }

// IsBinaryVR reports whether the VR holds raw bytes.
func IsBinaryVR(vr string) bool { return binaryVRs[vr] }
