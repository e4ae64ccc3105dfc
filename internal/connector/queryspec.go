package connector

import (
	"fmt"

	"github.com/openradlabs/dicom-transfer/pkg/dimse"
)

// Query is an insertion-ordered set of query attributes keyed by
// dictionary keyword. An empty value requests the attribute back
// without constraining the match.
type Query struct {
	fields []queryField
}

type queryField struct {
	keyword string
	value   string
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Set adds or replaces an attribute, preserving first-set order.
func (q *Query) Set(keyword, value string) *Query {
	for i := range q.fields {
		if q.fields[i].keyword == keyword {
			q.fields[i].value = value
			return q
		}
	}
	q.fields = append(q.fields, queryField{keyword: keyword, value: value})
	return q
}

// ensure adds the attribute with an empty value unless already set.
func (q *Query) ensure(keywords ...string) *Query {
	for _, kw := range keywords {
		if !q.Has(kw) {
			q.Set(kw, "")
		}
	}
	return q
}

// Get returns the attribute value, or "" when unset.
func (q *Query) Get(keyword string) string {
	for _, f := range q.fields {
		if f.keyword == keyword {
			return f.value
		}
	}
	return ""
}

// Has reports whether the attribute is present, even with an empty
// value.
func (q *Query) Has(keyword string) bool {
	for _, f := range q.fields {
		if f.keyword == keyword {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (q *Query) Clone() *Query {
	out := &Query{fields: make([]queryField, len(q.fields))}
	copy(out.fields, q.fields)
	return out
}

// dataset converts the query into a wire dataset. Unknown keywords
// fail instead of being silently dropped.
func (q *Query) dataset() (*dimse.Dataset, error) {
	ds := dimse.NewDataset()
	for _, f := range q.fields {
		tag, ok := dimse.TagByKeyword(f.keyword)
		if !ok {
			return nil, fmt.Errorf("unknown query attribute %q", f.keyword)
		}
		ds.SetString(tag, f.value)
	}
	return ds, nil
}
