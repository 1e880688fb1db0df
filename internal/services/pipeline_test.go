package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fyerfyer/resume-analyzer/internal/document"
	"github.com/fyerfyer/resume-analyzer/internal/embedding"
	"github.com/fyerfyer/resume-analyzer/internal/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterEmbedder 按字母计数生成向量的确定性嵌入客户端
// 向量为 [A的个数, B的个数, C的个数, 字符数]
type letterEmbedder struct {
	mu      sync.Mutex
	calls   []string
	failOn  string // 遇到该文本时返回错误
	failErr error
	dim     int // 大于0时查询向量使用该维度
}

func (e *letterEmbedder) Name() string { return "letters" }

func (e *letterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	if e.failOn != "" && text == e.failOn {
		return nil, e.failErr
	}

	vec := []float32{
		float32(strings.Count(text, "A")),
		float32(strings.Count(text, "B")),
		float32(strings.Count(text, "C")),
		float32(len([]rune(text))),
	}
	if e.dim > 0 && strings.HasPrefix(text, "query:") {
		return make([]float32, e.dim), nil
	}
	return vec, nil
}

func (e *letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *letterEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func newTestDocument(text string, pages int) *document.Document {
	ps := make([]document.Page, pages)
	for i := range ps {
		ps[i] = document.Page{Number: i + 1}
	}
	return &document.Document{
		FileName:    "resume.txt",
		ContentType: document.PlainText,
		FullText:    text,
		Pages:       ps,
	}
}

func TestRetrievalPipeline_FiveLetters(t *testing.T) {
	embedder := &letterEmbedder{}
	p := NewRetrievalPipeline(embedder)

	retrieval, err := p.Analyze(context.Background(), newTestDocument("AAAAA", 1), "AA", 2, 3)
	require.NoError(t, err)

	require.Len(t, retrieval.Chunks, 3)
	assert.Equal(t, []string{"AA", "AA", "A"}, []string{retrieval.Chunks[0].Text, retrieval.Chunks[1].Text, retrieval.Chunks[2].Text})
	assert.Equal(t, []int{0, 2, 4}, []int{retrieval.Chunks[0].StartOffset, retrieval.Chunks[1].StartOffset, retrieval.Chunks[2].StartOffset})

	// 距离相同的两个分块按插入顺序返回
	assert.Equal(t, []string{"AA", "AA", "A"}, retrieval.Texts())
	assert.Equal(t, []float32{0, 0, 2}, retrieval.Distances())
	assert.Equal(t, []int{1, 1, 1}, retrieval.Pages())
	assert.Equal(t, 0, retrieval.Results[0].Position)
	assert.Equal(t, 1, retrieval.Results[1].Position)
	assert.Equal(t, "AA\n\nAA\n\nA", retrieval.ContextText)
	assert.Equal(t, 4, retrieval.Dimension)

	// 三个分块加一次查询
	assert.Equal(t, 4, embedder.callCount())
}

func TestRetrievalPipeline_SelfMatch(t *testing.T) {
	p := NewRetrievalPipeline(&letterEmbedder{})

	retrieval, err := p.Analyze(context.Background(), newTestDocument("AABBBCCCA", 3), "BBC", 3, 2)
	require.NoError(t, err)

	require.Len(t, retrieval.Results, 2)
	assert.Equal(t, "BBC", retrieval.Results[0].Text)
	assert.Equal(t, float32(0), retrieval.Results[0].Distance)
	assert.Equal(t, 2, retrieval.Results[0].Page)
	assert.Equal(t, 3, retrieval.Results[0].Offset)
	assert.Equal(t, "AAB", retrieval.Results[1].Text)
	assert.Equal(t, float32(6), retrieval.Results[1].Distance)
}

func TestRetrievalPipeline_KClamped(t *testing.T) {
	p := NewRetrievalPipeline(&letterEmbedder{})

	retrieval, err := p.Analyze(context.Background(), newTestDocument("AAABBB", 1), "A", 3, 5)
	require.NoError(t, err)
	assert.Len(t, retrieval.Results, 2)
	assert.LessOrEqual(t, retrieval.Results[0].Distance, retrieval.Results[1].Distance)
}

func TestRetrievalPipeline_Validation(t *testing.T) {
	tests := []struct {
		name      string
		doc       *document.Document
		query     string
		chunkSize int
		topK      int
		wantErr   error
	}{
		{"empty query", newTestDocument("AAAA", 1), "   ", 2, 3, ErrEmptyQuery},
		{"zero k", newTestDocument("AAAA", 1), "A", 2, 0, vectordb.ErrInvalidK},
		{"negative k", newTestDocument("AAAA", 1), "A", 2, -1, vectordb.ErrInvalidK},
		{"zero chunk size", newTestDocument("AAAA", 1), "A", 0, 3, document.ErrInvalidChunkSize},
		{"empty document", newTestDocument("", 1), "A", 2, 3, document.ErrEmptyDocument},
		{"whitespace document", newTestDocument("      ", 1), "A", 2, 3, document.ErrEmptyDocument},
		{"nil document", nil, "A", 2, 3, document.ErrEmptyDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &letterEmbedder{}
			p := NewRetrievalPipeline(embedder)

			retrieval, err := p.Analyze(context.Background(), tt.doc, tt.query, tt.chunkSize, tt.topK)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, retrieval)
			assert.Zero(t, embedder.callCount(), "no embedding call should be made")
		})
	}
}

func TestRetrievalPipeline_EmbeddingErrorAborts(t *testing.T) {
	netErr := embedding.WrapError(errors.New("connection refused"), embedding.ErrCodeNetworkError, embedding.ErrMsgNetworkError)
	embedder := &letterEmbedder{failOn: "BB", failErr: netErr}
	p := NewRetrievalPipeline(embedder)

	retrieval, err := p.Analyze(context.Background(), newTestDocument("AABBCC", 1), "A", 2, 3)
	require.Error(t, err)
	assert.Nil(t, retrieval)

	embErr, ok := embedding.AsEmbeddingError(err)
	require.True(t, ok)
	assert.Equal(t, embedding.ErrCodeNetworkError, embErr.Code)
	assert.Equal(t, KindEmbedding, ErrorKind(err))

	// 查询没有被嵌入
	assert.NotContains(t, embedder.calls, "A")
}

func TestRetrievalPipeline_QueryEmbeddingError(t *testing.T) {
	rateErr := embedding.NewEmbeddingError(embedding.ErrCodeRateLimited, embedding.ErrMsgRateLimited)
	p := NewRetrievalPipeline(&letterEmbedder{failOn: "who?", failErr: rateErr})

	_, err := p.Analyze(context.Background(), newTestDocument("AABB", 1), "who?", 2, 1)
	embErr, ok := embedding.AsEmbeddingError(err)
	require.True(t, ok)
	assert.Equal(t, embedding.ErrCodeRateLimited, embErr.Code)
}

func TestRetrievalPipeline_DimensionMismatch(t *testing.T) {
	p := NewRetrievalPipeline(&letterEmbedder{dim: 7})

	_, err := p.Analyze(context.Background(), newTestDocument("AABB", 1), "query: skills", 2, 1)
	assert.ErrorIs(t, err, vectordb.ErrDimensionMismatch)
	assert.Equal(t, KindInternal, ErrorKind(err))
}

func TestRetrievalPipeline_BatchProcessor(t *testing.T) {
	embedder := &letterEmbedder{}
	p := NewRetrievalPipeline(embedder,
		WithBatchProcessor(embedding.NewBatchProcessor(embedder, 3)),
		WithIndexConfig(vectordb.Config{Type: "flat"}),
	)

	text := strings.Repeat("A", 10) + strings.Repeat("B", 10) + strings.Repeat("C", 10)
	retrieval, err := p.Analyze(context.Background(), newTestDocument(text, 3), "CCCCC", 5, 2)
	require.NoError(t, err)

	// 并发嵌入后分块与向量仍一一对应
	require.Len(t, retrieval.Chunks, 6)
	assert.Equal(t, []string{"CCCCC", "CCCCC"}, retrieval.Texts())
	assert.Equal(t, []float32{0, 0}, retrieval.Distances())
	assert.Equal(t, 4, retrieval.Results[0].Position)
	assert.Equal(t, 5, retrieval.Results[1].Position)
	assert.Equal(t, []int{3, 3}, retrieval.Pages())
}

func TestRetrievalPipeline_BatchProcessorCancelled(t *testing.T) {
	embedder := &letterEmbedder{}
	p := NewRetrievalPipeline(embedder, WithBatchProcessor(embedding.NewBatchProcessor(embedder, 2)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Analyze(ctx, newTestDocument("AABBCC", 1), "A", 2, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindEmbedding, ErrorKind(err))
}

func TestRetrievalPipeline_UnknownIndex(t *testing.T) {
	p := NewRetrievalPipeline(&letterEmbedder{}, WithIndexConfig(vectordb.Config{Type: "hnsw"}))

	_, err := p.Analyze(context.Background(), newTestDocument("AABB", 1), "A", 2, 1)
	assert.ErrorIs(t, err, vectordb.ErrUnknownIndexType)
}

func TestRetrievalPipeline_MockEmbedderCountMismatch(t *testing.T) {
	client := embedding.NewMockClient(t)
	client.On("EmbedBatch", context.Background(), []string{"AA", "BB"}).Return([][]float32{{1, 0}}, nil)

	p := NewRetrievalPipeline(client)
	_, err := p.Analyze(context.Background(), newTestDocument("AABB", 1), "A", 2, 1)

	embErr, ok := embedding.AsEmbeddingError(err)
	require.True(t, ok)
	assert.Equal(t, embedding.ErrCodeMalformedResponse, embErr.Code)
}
