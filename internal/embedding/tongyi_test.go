package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTongyiClient_EmbedBatch(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tongyi-key", r.Header.Get("Authorization"))

		var req dashScopeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batches = append(batches, req.Input.Texts)

		// 倒序返回，客户端需要按text_index还原
		type item struct {
			Embedding []float32 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		}
		items := make([]item, 0, len(req.Input.Texts))
		for i := len(req.Input.Texts) - 1; i >= 0; i-- {
			items = append(items, item{Embedding: []float32{float32(len(req.Input.Texts[i]))}, TextIndex: i})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"request_id": "req-1",
			"output":     map[string]interface{}{"embeddings": items},
		})
	}))
	defer srv.Close()

	client, err := NewClient("tongyi", WithAPIKey("tongyi-key"), WithBaseURL(srv.URL), WithBatchSize(2))
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-v3", client.Name())

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, vec := range vectors {
		assert.Equal(t, []float32{float32(i + 1)}, vec)
	}
	assert.Len(t, batches, 3)

	vec, err := client.Embed(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, vec)
}

func TestTongyiClient_Errors(t *testing.T) {
	t.Run("接口返回错误码", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code": "InvalidParameter", "message": "bad input"}`))
		}))
		defer srv.Close()

		client, err := NewTongyiClient(WithAPIKey("k"), WithBaseURL(srv.URL))
		require.NoError(t, err)
		_, err = client.Embed(context.Background(), "text")

		embErr, ok := AsEmbeddingError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeServerError, embErr.Code)
	})

	t.Run("缺少部分向量", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"output": {"embeddings": [{"embedding": [1], "text_index": 0}]}}`))
		}))
		defer srv.Close()

		client, err := NewTongyiClient(WithAPIKey("k"), WithBaseURL(srv.URL))
		require.NoError(t, err)
		_, err = client.EmbedBatch(context.Background(), []string{"a", "b"})

		embErr, ok := AsEmbeddingError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeMalformedResponse, embErr.Code)
	})

	t.Run("空文本", func(t *testing.T) {
		client, err := NewTongyiClient(WithAPIKey("k"))
		require.NoError(t, err)
		_, err = client.EmbedBatch(context.Background(), []string{"a", ""})

		embErr, ok := AsEmbeddingError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeEmptyInput, embErr.Code)
	})
}
