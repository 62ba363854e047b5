// Package azuresearch implements storage.IndexService over the Azure AI
// Search REST API.
//
// Fragments live in one index whose fields match the JSON shape of
// core.IndexedFragmentRecord (id, chunk, documentId, driveId, driveItemId,
// content, embedding, uri, title, lastModified, snapshot). Creating the index
// schema is out of scope; the client assumes it exists with documentId
// filterable, lastModified sortable and embedding configured as a vector field.
package azuresearch
