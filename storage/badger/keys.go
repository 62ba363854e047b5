package badger

// Key prefixes for different data types
const (
	indexRecordPrefix   = "idxrec:"
	indexDocumentPrefix = "idxdoc:"
	blobPrefix          = "blob:"
)

// makeRecordKey generates the primary key for a fragment record.
// Format: idxrec:{id}
func makeRecordKey(id string) []byte {
	return []byte(indexRecordPrefix + id)
}

// makeDocumentKey generates the secondary key linking a document to one of its
// fragments.
// Format: idxdoc:{documentID}:{id}
func makeDocumentKey(documentID, id string) []byte {
	return []byte(indexDocumentPrefix + documentID + ":" + id)
}

// makePartialDocumentKey generates the prefix covering all fragments of a document.
// Format: idxdoc:{documentID}:
func makePartialDocumentKey(documentID string) []byte {
	return []byte(indexDocumentPrefix + documentID + ":")
}

// makeBlobKey generates a key for a stored blob.
func makeBlobKey(name string) []byte {
	return []byte(blobPrefix + name)
}
