package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Omkar399/project-z/internal/memory"
)

// mockEngine lets each test script the engine's behavior and inspect
// what the gateway passed through.
type mockEngine struct {
	addFn    func(ctx context.Context, messages []memory.Message, userID string, metadata map[string]any) (any, error)
	searchFn func(ctx context.Context, query string, userID string, limit int) (any, error)
	getAllFn func(ctx context.Context, userID string) (any, error)
	deleteFn func(ctx context.Context, userID string) error
	calls    atomic.Int64
}

func (m *mockEngine) Add(ctx context.Context, messages []memory.Message, userID string, metadata map[string]any) (any, error) {
	m.calls.Add(1)
	if m.addFn == nil {
		return map[string]any{"results": []any{}}, nil
	}
	return m.addFn(ctx, messages, userID, metadata)
}

func (m *mockEngine) Search(ctx context.Context, query string, userID string, limit int) (any, error) {
	m.calls.Add(1)
	if m.searchFn == nil {
		return map[string]any{"results": []any{}}, nil
	}
	return m.searchFn(ctx, query, userID, limit)
}

func (m *mockEngine) GetAll(ctx context.Context, userID string) (any, error) {
	m.calls.Add(1)
	if m.getAllFn == nil {
		return map[string]any{"results": []any{}}, nil
	}
	return m.getAllFn(ctx, userID)
}

func (m *mockEngine) DeleteAll(ctx context.Context, userID string) error {
	m.calls.Add(1)
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, userID)
}

// setupTestServer creates a test server backed by the given mock engine.
func setupTestServer(t *testing.T, engine *mockEngine) *Server {
	t.Helper()

	server, err := NewServer(engine, nil, zap.NewNop(), &Config{
		Host: "localhost",
		Port: 8420,
	})
	require.NoError(t, err)

	return server
}

// setupUnavailableServer creates a server whose engine failed to
// initialize.
func setupUnavailableServer(t *testing.T) *Server {
	t.Helper()

	server, err := NewServer(nil, errors.New("embedding provider unreachable"), zap.NewNop(), nil)
	require.NoError(t, err)

	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 8420}

		server, err := NewServer(&mockEngine{}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&mockEngine{}, nil, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", server.config.Host)
		assert.Equal(t, 8420, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&mockEngine{}, nil, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("requires engine or init error", func(t *testing.T) {
		_, err := NewServer(nil, nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})

	t.Run("rejects both engine and init error", func(t *testing.T) {
		_, err := NewServer(&mockEngine{}, errors.New("boom"), zap.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleRoot(t *testing.T) {
	t.Run("reports running when engine is ready", func(t *testing.T) {
		engine := &mockEngine{}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodGet, "/", nil)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp RootResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ServiceName, resp.Service)
		assert.Equal(t, "running", resp.Status)
		assert.Equal(t, Version, resp.Version)
		assert.Zero(t, engine.calls.Load())
	})

	t.Run("reports error when engine is unavailable", func(t *testing.T) {
		server := setupUnavailableServer(t)

		rec := doJSON(t, server, http.MethodGet, "/", nil)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp RootResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy when engine is ready", func(t *testing.T) {
		server := setupTestServer(t, &mockEngine{})

		rec := doJSON(t, server, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
	})

	t.Run("503 when engine failed to initialize", func(t *testing.T) {
		server := setupUnavailableServer(t)

		rec := doJSON(t, server, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestUnavailableEngine(t *testing.T) {
	// Every data operation short-circuits with 503 before any engine
	// call when initialization failed.
	server := setupUnavailableServer(t)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/health", nil},
		{http.MethodPost, "/add", AddRequest{Messages: []memory.Message{{Role: "user", Content: "hi"}}}},
		{http.MethodPost, "/search", SearchRequest{Query: "tea"}},
		{http.MethodGet, "/all", nil},
		{http.MethodDelete, "/clear", nil},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := doJSON(t, server, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp["message"], "not initialized")
		})
	}
}

func TestHandleAdd(t *testing.T) {
	t.Run("forwards messages in order with defaults applied", func(t *testing.T) {
		var gotMessages []memory.Message
		var gotUserID string
		var gotMetadata map[string]any

		engine := &mockEngine{
			addFn: func(_ context.Context, messages []memory.Message, userID string, metadata map[string]any) (any, error) {
				gotMessages = messages
				gotUserID = userID
				gotMetadata = metadata
				return map[string]any{"results": []any{
					map[string]any{"id": "m1", "memory": "likes tea", "event": "ADD"},
				}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/add", AddRequest{
			Messages: []memory.Message{
				{Role: "user", Content: "I like tea"},
				{Role: "assistant", Content: "Noted!"},
			},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, gotMessages, 2)
		assert.Equal(t, "I like tea", gotMessages[0].Content)
		assert.Equal(t, "Noted!", gotMessages[1].Content)
		assert.Equal(t, "default_user", gotUserID)
		assert.NotNil(t, gotMetadata)
		assert.Empty(t, gotMetadata)

		var resp AddResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Memories extracted and stored", resp.Message)
		assert.NotNil(t, resp.Result)
	})

	t.Run("passes explicit user and metadata through", func(t *testing.T) {
		var gotUserID string
		var gotMetadata map[string]any

		engine := &mockEngine{
			addFn: func(_ context.Context, _ []memory.Message, userID string, metadata map[string]any) (any, error) {
				gotUserID = userID
				gotMetadata = metadata
				return map[string]any{"results": []any{}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/add", AddRequest{
			Messages: []memory.Message{{Role: "user", Content: "hello"}},
			UserID:   "alice",
			Metadata: map[string]any{"source": "chat"},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", gotUserID)
		assert.Equal(t, map[string]any{"source": "chat"}, gotMetadata)
	})

	t.Run("engine error surfaces as 500 with message", func(t *testing.T) {
		engine := &mockEngine{
			addFn: func(_ context.Context, _ []memory.Message, _ string, _ map[string]any) (any, error) {
				return nil, errors.New("llm quota exceeded")
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/add", AddRequest{
			Messages: []memory.Message{{Role: "user", Content: "hello"}},
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["message"], "llm quota exceeded")
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		server := setupTestServer(t, &mockEngine{})

		req := httptest.NewRequest(http.MethodPost, "/add", bytes.NewReader([]byte("not json")))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSearch(t *testing.T) {
	t.Run("applies default user and limit", func(t *testing.T) {
		var gotQuery, gotUserID string
		var gotLimit int

		engine := &mockEngine{
			searchFn: func(_ context.Context, query string, userID string, limit int) (any, error) {
				gotQuery = query
				gotUserID = userID
				gotLimit = limit
				return map[string]any{"results": []any{}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/search", SearchRequest{Query: "tea"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tea", gotQuery)
		assert.Equal(t, "default_user", gotUserID)
		assert.Equal(t, 5, gotLimit)
	})

	t.Run("normalizes results with count matching memories", func(t *testing.T) {
		engine := &mockEngine{
			searchFn: func(_ context.Context, _ string, _ string, _ int) (any, error) {
				return map[string]any{"results": []any{
					map[string]any{"id": "1", "memory": "likes tea", "score": 0.9},
				}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/search", SearchRequest{Query: "tea", UserID: "alice"})

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp MemoriesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Memories, 1)
		assert.Equal(t, "1", resp.Memories[0].ID)
		assert.Equal(t, "likes tea", resp.Memories[0].Memory)
		require.NotNil(t, resp.Memories[0].Score)
		assert.InDelta(t, 0.9, *resp.Memories[0].Score, 1e-9)
		// Missing metadata coerces to an empty map, never null.
		assert.NotNil(t, resp.Memories[0].Metadata)
		assert.Empty(t, resp.Memories[0].Metadata)
	})

	t.Run("bare sequence shape yields identical output", func(t *testing.T) {
		wrapped := &mockEngine{
			searchFn: func(_ context.Context, _ string, _ string, _ int) (any, error) {
				return map[string]any{"results": []any{
					map[string]any{"id": "1", "memory": "likes tea", "score": 0.9},
				}}, nil
			},
		}
		bare := &mockEngine{
			searchFn: func(_ context.Context, _ string, _ string, _ int) (any, error) {
				return []any{
					map[string]any{"id": "1", "memory": "likes tea", "score": 0.9},
				}, nil
			},
		}

		recWrapped := doJSON(t, setupTestServer(t, wrapped), http.MethodPost, "/search", SearchRequest{Query: "tea"})
		recBare := doJSON(t, setupTestServer(t, bare), http.MethodPost, "/search", SearchRequest{Query: "tea"})

		assert.Equal(t, http.StatusOK, recWrapped.Code)
		assert.Equal(t, http.StatusOK, recBare.Code)
		assert.JSONEq(t, recWrapped.Body.String(), recBare.Body.String())
	})

	t.Run("unrecognized shape degrades to empty results", func(t *testing.T) {
		engine := &mockEngine{
			searchFn: func(_ context.Context, _ string, _ string, _ int) (any, error) {
				return "surprise", nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/search", SearchRequest{Query: "tea"})

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp MemoriesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 0, resp.Count)
		assert.Empty(t, resp.Memories)
	})

	t.Run("missing record fields get defaults", func(t *testing.T) {
		engine := &mockEngine{
			searchFn: func(_ context.Context, _ string, _ string, _ int) (any, error) {
				return map[string]any{"results": []any{
					map[string]any{},
				}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/search", SearchRequest{Query: "anything"})

		var resp MemoriesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Memories, 1)
		assert.Equal(t, "", resp.Memories[0].ID)
		assert.Equal(t, "", resp.Memories[0].Memory)
		require.NotNil(t, resp.Memories[0].Score)
		assert.Zero(t, *resp.Memories[0].Score)
		assert.NotNil(t, resp.Memories[0].Metadata)
	})

	t.Run("engine error surfaces as 500", func(t *testing.T) {
		engine := &mockEngine{
			searchFn: func(_ context.Context, _ string, _ string, _ int) (any, error) {
				return nil, errors.New("vector store down")
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodPost, "/search", SearchRequest{Query: "tea"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["message"], "vector store down")
	})
}

func TestHandleAll(t *testing.T) {
	t.Run("lists memories without scores", func(t *testing.T) {
		var gotUserID string

		engine := &mockEngine{
			getAllFn: func(_ context.Context, userID string) (any, error) {
				gotUserID = userID
				return map[string]any{"results": []any{
					map[string]any{"id": "1", "memory": "likes tea", "metadata": map[string]any{"source": "chat"}},
					map[string]any{"id": "2", "memory": "lives in Oslo"},
				}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodGet, "/all?user_id=alice", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", gotUserID)

		var resp MemoriesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.Memories, 2)
		assert.Nil(t, resp.Memories[0].Score)
		assert.Equal(t, map[string]any{"source": "chat"}, resp.Memories[0].Metadata)
		assert.NotNil(t, resp.Memories[1].Metadata)

		// The score key must be absent from the serialized records, not
		// present as zero.
		assert.NotContains(t, rec.Body.String(), "score")
	})

	t.Run("defaults user when omitted", func(t *testing.T) {
		var gotUserID string

		engine := &mockEngine{
			getAllFn: func(_ context.Context, userID string) (any, error) {
				gotUserID = userID
				return map[string]any{"results": []any{}}, nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodGet, "/all", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "default_user", gotUserID)
	})
}

func TestHandleClear(t *testing.T) {
	t.Run("clears memories for the given user", func(t *testing.T) {
		var gotUserID string

		engine := &mockEngine{
			deleteFn: func(_ context.Context, userID string) error {
				gotUserID = userID
				return nil
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodDelete, "/clear?user_id=alice", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", gotUserID)

		var resp ClearResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "All memories cleared", resp.Message)
	})

	t.Run("engine error surfaces as 500", func(t *testing.T) {
		engine := &mockEngine{
			deleteFn: func(_ context.Context, _ string) error {
				return errors.New("delete failed")
			},
		}
		server := setupTestServer(t, engine)

		rec := doJSON(t, server, http.MethodDelete, "/clear", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t, &mockEngine{})

		rec := doJSON(t, server, http.MethodGet, "/health", nil)

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t, &mockEngine{})

		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()

		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestConcurrentRequests(t *testing.T) {
	// The engine handle is shared read-only across requests; concurrent
	// traffic must not race in the gateway.
	engine := &mockEngine{
		searchFn: func(_ context.Context, query string, _ string, _ int) (any, error) {
			return map[string]any{"results": []any{
				map[string]any{"id": query, "memory": "m", "score": 1.0},
			}}, nil
		},
	}
	server := setupTestServer(t, engine)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			rec := doJSON(t, server, http.MethodPost, "/search", SearchRequest{Query: fmt.Sprintf("q%d", i)})
			assert.Equal(t, http.StatusOK, rec.Code)
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
