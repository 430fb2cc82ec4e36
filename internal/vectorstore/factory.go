package vectorstore

import (
	"fmt"

	"github.com/Omkar399/project-z/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
//
// The factory examines VectorStoreConfig.Provider and creates the
// matching implementation:
//   - "chromem" (default): embedded ChromemStore, no external deps
//   - "qdrant": QdrantStore, requires an external Qdrant server
func NewStore(cfg config.VectorStoreConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorSize,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorSize,
			UseTLS:     cfg.QdrantUseTLS,
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.Provider)
	}
}
