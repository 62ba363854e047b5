// Package reembed recomputes the embeddings of every fragment in a local
// index, for use after the embedding model changes. Content, chunk numbers
// and stamps are preserved; only vectors are rewritten.
package reembed
