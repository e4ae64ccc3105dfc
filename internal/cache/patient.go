package cache

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openradlabs/dicom-transfer/internal/connector"
)

// PatientCache memoizes resolved patient identities for the duration
// of one batch run. It is bounded: inserting past capacity evicts the
// least recently used entry, and lookups refresh recency. Instances
// are per-run on purpose; a shared process-wide cache would leak
// resolutions across unrelated jobs.
type PatientCache struct {
	entries *lru.Cache[string, connector.Record]
}

// NewPatientCache returns a cache holding up to capacity identities.
func NewPatientCache(capacity int) (*PatientCache, error) {
	entries, err := lru.New[string, connector.Record](capacity)
	if err != nil {
		return nil, err
	}
	return &PatientCache{entries: entries}, nil
}

// Key builds the composite lookup key from the demographics a batch
// row carries.
func Key(patientID, patientName, birthDate string) string {
	return strings.Join([]string{patientID, patientName, birthDate}, "\x1f")
}

// Get returns the cached identity and refreshes its recency.
func (c *PatientCache) Get(key string) (connector.Record, bool) {
	return c.entries.Get(key)
}

// Set stores an identity, evicting the least recently used entry when
// full.
func (c *PatientCache) Set(key string, patient connector.Record) {
	c.entries.Add(key, patient)
}

// Len returns the number of cached identities.
func (c *PatientCache) Len() int {
	return c.entries.Len()
}
