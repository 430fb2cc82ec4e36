package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Omkar399/project-z/internal/config"
)

func TestNewStore(t *testing.T) {
	t.Run("chromem is the default provider", func(t *testing.T) {
		store, err := NewStore(config.VectorStoreConfig{
			Path:       t.TempDir(),
			VectorSize: 16,
		}, stubEmbedder{}, zap.NewNop())
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &ChromemStore{}, store)
	})

	t.Run("explicit chromem provider", func(t *testing.T) {
		store, err := NewStore(config.VectorStoreConfig{
			Provider:   "chromem",
			Path:       t.TempDir(),
			VectorSize: 16,
		}, stubEmbedder{}, zap.NewNop())
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &ChromemStore{}, store)
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := NewStore(config.VectorStoreConfig{Provider: "pinecone"}, stubEmbedder{}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported vectorstore provider")
	})
}
