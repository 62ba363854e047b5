package storage

import "strings"

// Filter restricts index operations to the fragments of specific documents.
type Filter struct {
	DocumentIDs []string
}

// ForDocuments builds a Filter over the given document ids.
func ForDocuments(ids ...string) Filter {
	return Filter{DocumentIDs: ids}
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return len(f.DocumentIDs) == 0
}

// Matches reports whether a record of documentID passes the filter.
func (f Filter) Matches(documentID string) bool {
	if f.IsEmpty() {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// OData renders the filter as an Azure AI Search OData expression.
// A single id renders as an equality, several as search.in, none as "".
func (f Filter) OData() string {
	switch len(f.DocumentIDs) {
	case 0:
		return ""
	case 1:
		return "documentId eq '" + quote(f.DocumentIDs[0]) + "'"
	}
	quoted := make([]string, len(f.DocumentIDs))
	for i, id := range f.DocumentIDs {
		quoted[i] = quote(id)
	}
	return "search.in(documentId, '" + strings.Join(quoted, ",") + "', ',')"
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
