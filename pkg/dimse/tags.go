package dimse

import "fmt"

// Tag identifies a DICOM data element (group, element).
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag in (GGGG,EEEE) format.
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// IsPrivate reports whether the tag belongs to a private group.
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// Well-known tags used by the query/retrieve and transfer paths.
var (
	TagFileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	TagFileMetaInformationVersion     = Tag{0x0002, 0x0001}
	TagMediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	TagMediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TagTransferSyntaxUID              = Tag{0x0002, 0x0010}
	TagImplementationClassUID         = Tag{0x0002, 0x0012}
	TagImplementationVersionName      = Tag{0x0002, 0x0013}

	TagSpecificCharacterSet   = Tag{0x0008, 0x0005}
	TagSOPClassUID            = Tag{0x0008, 0x0016}
	TagSOPInstanceUID         = Tag{0x0008, 0x0018}
	TagStudyDate              = Tag{0x0008, 0x0020}
	TagSeriesDate             = Tag{0x0008, 0x0021}
	TagStudyTime              = Tag{0x0008, 0x0030}
	TagSeriesTime             = Tag{0x0008, 0x0031}
	TagAccessionNumber        = Tag{0x0008, 0x0050}
	TagQueryRetrieveLevel     = Tag{0x0008, 0x0052}
	TagRetrieveAETitle        = Tag{0x0008, 0x0054}
	TagModality               = Tag{0x0008, 0x0060}
	TagModalitiesInStudy      = Tag{0x0008, 0x0061}
	TagInstitutionName        = Tag{0x0008, 0x0080}
	TagReferringPhysicianName = Tag{0x0008, 0x0090}
	TagStudyDescription       = Tag{0x0008, 0x1030}
	TagSeriesDescription      = Tag{0x0008, 0x103E}

	TagPatientName      = Tag{0x0010, 0x0010}
	TagPatientID        = Tag{0x0010, 0x0020}
	TagPatientBirthDate = Tag{0x0010, 0x0030}
	TagPatientSex       = Tag{0x0010, 0x0040}
	TagPatientAge       = Tag{0x0010, 0x1010}
	TagPatientAddress   = Tag{0x0010, 0x1040}
	TagPatientComments  = Tag{0x0010, 0x4000}
	TagOtherPatientIDs  = Tag{0x0010, 0x1000}

	TagClinicalTrialProtocolID   = Tag{0x0012, 0x0020}
	TagClinicalTrialProtocolName = Tag{0x0012, 0x0021}

	TagBodyPartExamined = Tag{0x0018, 0x0015}

	TagStudyInstanceUID               = Tag{0x0020, 0x000D}
	TagSeriesInstanceUID              = Tag{0x0020, 0x000E}
	TagStudyID                        = Tag{0x0020, 0x0010}
	TagSeriesNumber                   = Tag{0x0020, 0x0011}
	TagInstanceNumber                 = Tag{0x0020, 0x0013}
	TagNumberOfStudyRelatedSeries     = Tag{0x0020, 0x1206}
	TagNumberOfStudyRelatedInstances  = Tag{0x0020, 0x1208}
	TagNumberOfSeriesRelatedInstances = Tag{0x0020, 0x1209}

	TagPixelData = Tag{0x7FE0, 0x0010}
)

// tagInfo describes a dictionary entry for a well-known tag.
type tagInfo struct {
	keyword string
	vr      string
}

var tagDict = map[Tag]tagInfo{
	tagCommandGroupLength:        {"CommandGroupLength", VRUL},
	tagAffectedSOPClassUID:       {"AffectedSOPClassUID", VRUI},
	tagCommandField:              {"CommandField", VRUS},
	tagMessageID:                 {"MessageID", VRUS},
	tagMessageIDBeingRespondedTo: {"MessageIDBeingRespondedTo", VRUS},
	tagMoveDestination:           {"MoveDestination", VRAE},
	tagPriority:                  {"Priority", VRUS},
	tagCommandDataSetType:        {"CommandDataSetType", VRUS},
	tagStatus:                    {"Status", VRUS},
	tagAffectedSOPInstanceUID:    {"AffectedSOPInstanceUID", VRUI},
	tagNumberOfRemainingSubOps:   {"NumberOfRemainingSuboperations", VRUS},
	tagNumberOfCompletedSubOps:   {"NumberOfCompletedSuboperations", VRUS},
	tagNumberOfFailedSubOps:      {"NumberOfFailedSuboperations", VRUS},
	tagNumberOfWarningSubOps:     {"NumberOfWarningSuboperations", VRUS},

	TagFileMetaInformationGroupLength: {"FileMetaInformationGroupLength", VRUL},
	TagFileMetaInformationVersion:     {"FileMetaInformationVersion", VROB},
	TagMediaStorageSOPClassUID:        {"MediaStorageSOPClassUID", VRUI},
	TagMediaStorageSOPInstanceUID:     {"MediaStorageSOPInstanceUID", VRUI},
	TagTransferSyntaxUID:              {"TransferSyntaxUID", VRUI},
	TagImplementationClassUID:         {"ImplementationClassUID", VRUI},
	TagImplementationVersionName:      {"ImplementationVersionName", VRSH},

	TagSpecificCharacterSet:   {"SpecificCharacterSet", VRCS},
	TagSOPClassUID:            {"SOPClassUID", VRUI},
	TagSOPInstanceUID:         {"SOPInstanceUID", VRUI},
	TagStudyDate:              {"StudyDate", VRDA},
	TagSeriesDate:             {"SeriesDate", VRDA},
	TagStudyTime:              {"StudyTime", VRTM},
	TagSeriesTime:             {"SeriesTime", VRTM},
	TagAccessionNumber:        {"AccessionNumber", VRSH},
	TagQueryRetrieveLevel:     {"QueryRetrieveLevel", VRCS},
	TagRetrieveAETitle:        {"RetrieveAETitle", VRAE},
	TagModality:               {"Modality", VRCS},
	TagModalitiesInStudy:      {"ModalitiesInStudy", VRCS},
	TagInstitutionName:        {"InstitutionName", VRLO},
	TagReferringPhysicianName: {"ReferringPhysicianName", VRPN},
	TagStudyDescription:       {"StudyDescription", VRLO},
	TagSeriesDescription:      {"SeriesDescription", VRLO},

	TagPatientName:      {"PatientName", VRPN},
	TagPatientID:        {"PatientID", VRLO},
	TagPatientBirthDate: {"PatientBirthDate", VRDA},
	TagPatientSex:       {"PatientSex", VRCS},
	TagPatientAge:       {"PatientAge", VRAS},
	TagPatientAddress:   {"PatientAddress", VRLO},
	TagPatientComments:  {"PatientComments", VRLT},
	TagOtherPatientIDs:  {"OtherPatientIDs", VRLO},

	TagClinicalTrialProtocolID:   {"ClinicalTrialProtocolID", VRLO},
	TagClinicalTrialProtocolName: {"ClinicalTrialProtocolName", VRLO},

	TagBodyPartExamined: {"BodyPartExamined", VRCS},

	TagStudyInstanceUID:               {"StudyInstanceUID", VRUI},
	TagSeriesInstanceUID:              {"SeriesInstanceUID", VRUI},
	TagStudyID:                        {"StudyID", VRSH},
	TagSeriesNumber:                   {"SeriesNumber", VRIS},
	TagInstanceNumber:                 {"InstanceNumber", VRIS},
	TagNumberOfStudyRelatedSeries:     {"NumberOfStudyRelatedSeries", VRIS},
	TagNumberOfStudyRelatedInstances:  {"NumberOfStudyRelatedInstances", VRIS},
	TagNumberOfSeriesRelatedInstances: {"NumberOfSeriesRelatedInstances", VRIS},

	TagPixelData: {"PixelData", VROW},
}

var tagByKeyword = func() map[string]Tag {
	m := make(map[string]Tag, len(tagDict))
	for t, info := range tagDict {
		m[info.keyword] = t
	}
	return m
}()

// Keyword returns the dictionary keyword for a tag, or the (GGGG,EEEE)
// form for tags outside the dictionary.
func Keyword(t Tag) string {
	if info, ok := tagDict[t]; ok {
		return info.keyword
	}
	return t.String()
}

// TagByKeyword resolves a dictionary keyword to its tag.
func TagByKeyword(keyword string) (Tag, bool) {
	t, ok := tagByKeyword[keyword]
	return t, ok
}

// VRFor returns the value representation for a tag. Tags outside the
// dictionary are treated as unknown.
func VRFor(t Tag) string {
	if info, ok := tagDict[t]; ok {
		return info.vr
	}
	return VRUN
}
