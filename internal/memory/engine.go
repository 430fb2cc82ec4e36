// Package memory defines the semantic memory engine.
//
// The engine owns everything the HTTP gateway does not: fact
// extraction from conversations, embedding, vector storage, and
// retrieval. The gateway only ever talks to the Engine interface.
package memory

import "context"

// Message is a single turn in a conversation. Role is free-form
// ("user", "assistant", ...); the engine does not enumerate roles.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Engine is the semantic memory contract consumed by the gateway.
//
// Search and GetAll return loosely-typed results: a mapping with a
// "results" key holding a sequence of records. The return type is
// deliberately `any` because the reply shape is an external contract
// (some engines return a bare sequence instead), and normalization is
// the caller's job. Implementations must be safe for concurrent use.
type Engine interface {
	// Add extracts facts from the ordered conversation and stores them
	// in the user's namespace, tagged with the given metadata. The raw
	// extraction result is returned opaquely.
	Add(ctx context.Context, messages []Message, userID string, metadata map[string]any) (any, error)

	// Search returns up to limit memories semantically similar to the
	// query, scoped to the user.
	Search(ctx context.Context, query string, userID string, limit int) (any, error)

	// GetAll returns every memory stored for the user, unranked.
	GetAll(ctx context.Context, userID string) (any, error)

	// DeleteAll removes every memory stored for the user.
	DeleteAll(ctx context.Context, userID string) error
}

// FactExtractor turns a conversation into memorable fact strings.
// Message order must be preserved: conversational context shapes what
// the extractor reads into each turn.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, messages []Message) ([]string, error)
}
