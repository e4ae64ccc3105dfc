package anonymizer

import (
	"fmt"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// identifyingTags are wiped during pseudonymization. Instance and
// study UIDs stay intact so retrieved data keeps its structure.
var identifyingTags = []dimse.Tag{
	dimse.TagPatientBirthDate,
	dimse.TagPatientSex,
	dimse.TagPatientAge,
	dimse.TagPatientAddress,
	dimse.TagOtherPatientIDs,
	dimse.TagAccessionNumber,
	dimse.TagInstitutionName,
	dimse.TagReferringPhysicianName,
}

// Pseudonymizer rewrites patient identity in a dataset. The mapping
// from real identity to pseudonym is one-way; nothing of the original
// identity survives in the output.
type Pseudonymizer struct {
	// Pseudonym replaces both patient ID and patient name. Empty
	// disables identity replacement.
	Pseudonym string

	// TrialProtocolID and TrialProtocolName are stamped into the
	// clinical trial module when set.
	TrialProtocolID   string
	TrialProtocolName string
}

// Modify applies the pseudonymization rules in place. The study date
// is retained across the identity wipe; it is needed to keep
// longitudinal studies of one subject apart.
func (p *Pseudonymizer) Modify(ds *dimse.Dataset) error {
	if p.Pseudonym != "" {
		studyDate := ds.GetString(dimse.TagStudyDate)
		studyTime := ds.GetString(dimse.TagStudyTime)

		for _, tag := range identifyingTags {
			if ds.Has(tag) {
				ds.SetString(tag, "")
			}
		}
		ds.SetString(dimse.TagPatientID, p.Pseudonym)
		ds.SetString(dimse.TagPatientName, p.Pseudonym)

		if studyDate != "" {
			ds.SetString(dimse.TagStudyDate, studyDate)
		}
		if studyTime != "" {
			ds.SetString(dimse.TagStudyTime, studyTime)
		}
	}

	if p.TrialProtocolID != "" {
		ds.SetString(dimse.TagClinicalTrialProtocolID, p.TrialProtocolID)
	}
	if p.TrialProtocolName != "" {
		ds.SetString(dimse.TagClinicalTrialProtocolName, p.TrialProtocolName)
	}

	if p.Pseudonym != "" && p.TrialProtocolID != "" {
		session := p.Pseudonym
		if date := ds.GetString(dimse.TagStudyDate); date != "" {
			session = fmt.Sprintf("%s_%s", p.Pseudonym, date)
			if t := ds.GetString(dimse.TagStudyTime); t != "" {
				session += "-" + t
			}
		}
		ds.SetString(dimse.TagPatientComments, fmt.Sprintf(
			"Project:%s Subject:%s Session:%s",
			p.TrialProtocolID, p.Pseudonym, session,
		))
	}
	return nil
}
