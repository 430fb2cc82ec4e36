// Package vectorstore defines the interface for per-user memory storage.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Document represents a memory document to be stored.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the memory text.
	Content string

	// Metadata contains additional key-value pairs attached to the memory.
	Metadata map[string]interface{}
}

// SearchResult represents a similarity search hit.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the memory text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the document metadata.
	Metadata map[string]interface{}
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts,
	// one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for per-user memory storage.
//
// All operations are scoped to a user id: each user's memories form an
// isolated namespace, and no operation can observe another user's
// documents. Implementations must be safe for concurrent use.
//
// Implementations:
//   - ChromemStore: embedded chromem-go, collection per user (default)
//   - QdrantStore: external Qdrant gRPC server, payload filtering
type Store interface {
	// Add embeds and stores documents in the user's namespace.
	// Returns the IDs of the stored documents.
	Add(ctx context.Context, userID string, docs []Document) ([]string, error)

	// Search performs similarity search in the user's namespace and
	// returns up to k results ordered by score (highest first).
	Search(ctx context.Context, userID, query string, k int) ([]SearchResult, error)

	// List returns every document in the user's namespace, unranked.
	List(ctx context.Context, userID string) ([]Document, error)

	// DeleteAll removes every document in the user's namespace.
	// Deleting an empty or unknown namespace is not an error.
	DeleteAll(ctx context.Context, userID string) error

	// Close releases store resources.
	Close() error
}

// sanitizeUserID maps an opaque user id onto a collection-name-safe
// token. User ids are free-form; collection names are not.
//
// The encoding must be injective: user ids only compare by equality,
// and two distinct ids must never share a collection. '_' acts as the
// escape character ("__" for a literal underscore, "_<hex>_" for the
// UTF-8 bytes of any other unsafe rune), so ids differing only in
// unsafe characters stay distinct.
func sanitizeUserID(userID string) string {
	if userID == "" {
		return "default_user"
	}
	var b strings.Builder
	b.Grow(len(userID))
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == '_':
			b.WriteString("__")
		default:
			fmt.Fprintf(&b, "_%x_", string(r))
		}
	}
	return b.String()
}
