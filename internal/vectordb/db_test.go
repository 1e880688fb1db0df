package vectordb

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDocs 按给定向量创建测试文档，Position即插入顺序
func createTestDocs(vectors ...[]float32) []Document {
	docs := make([]Document, len(vectors))
	for i, v := range vectors {
		docs[i] = Document{
			ID:       fmt.Sprintf("chunk-%d", i),
			Position: i,
			Text:     fmt.Sprintf("chunk text %d", i),
			Page:     1,
			Vector:   v,
		}
	}
	return docs
}

// TestFlatIndex 测试纯Go索引
func TestFlatIndex(t *testing.T) {
	testIndex(t, Config{Type: "flat"})
}

// testIndex 两种实现共用的测试
func testIndex(t *testing.T, cfg Config) {
	t.Run("按距离升序返回", func(t *testing.T) {
		idx, err := NewIndex(cfg, createTestDocs(
			[]float32{0, 0},
			[]float32{3, 4},
			[]float32{1, 0},
			[]float32{0, 2},
		))
		require.NoError(t, err)
		defer idx.Close()

		assert.Equal(t, 4, idx.Count())
		assert.Equal(t, 2, idx.GetDimension())

		results, err := idx.Search([]float32{0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "chunk-0", results[0].Document.ID)
		assert.Equal(t, float32(0), results[0].Distance)
		assert.Equal(t, "chunk-2", results[1].Document.ID)
		assert.Equal(t, float32(1), results[1].Distance)
		assert.Equal(t, "chunk-3", results[2].Document.ID)
		// 平方距离，不开根号
		assert.Equal(t, float32(4), results[2].Distance)
	})

	t.Run("距离相同时先插入的在前", func(t *testing.T) {
		idx, err := NewIndex(cfg, createTestDocs(
			[]float32{5, 5},
			[]float32{1, 1},
			[]float32{-1, -1},
			[]float32{1, 1},
		))
		require.NoError(t, err)
		defer idx.Close()

		results, err := idx.Search([]float32{0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 1, results[0].Document.Position)
		assert.Equal(t, 2, results[1].Document.Position)

		results, err = idx.Search([]float32{1, 1}, 4)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3, 2, 0}, positions(results))
	})

	t.Run("k大于索引大小时截断", func(t *testing.T) {
		idx, err := NewIndex(cfg, createTestDocs([]float32{1, 0}, []float32{0, 1}))
		require.NoError(t, err)
		defer idx.Close()

		results, err := idx.Search([]float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("非法k", func(t *testing.T) {
		idx, err := NewIndex(cfg, createTestDocs([]float32{1, 0}))
		require.NoError(t, err)
		defer idx.Close()

		for _, k := range []int{0, -1} {
			results, err := idx.Search([]float32{1, 0}, k)
			assert.ErrorIs(t, err, ErrInvalidK)
			assert.Nil(t, results)
		}
	})

	t.Run("查询维度不一致", func(t *testing.T) {
		idx, err := NewIndex(cfg, createTestDocs([]float32{1, 0}))
		require.NoError(t, err)
		defer idx.Close()

		_, err = idx.Search([]float32{1, 0, 0}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("构建时维度不一致", func(t *testing.T) {
		_, err := NewIndex(cfg, createTestDocs([]float32{1, 0}, []float32{1, 0, 0}))
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("空索引和空向量", func(t *testing.T) {
		_, err := NewIndex(cfg, nil)
		assert.ErrorIs(t, err, ErrEmptyIndex)

		_, err = NewIndex(cfg, createTestDocs([]float32{}))
		assert.ErrorIs(t, err, ErrEmptyVector)
	})

	t.Run("自身查询距离为0且排第一", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		vectors := make([][]float32, 30)
		for i := range vectors {
			vectors[i] = make([]float32, 16)
			for j := range vectors[i] {
				vectors[i][j] = rng.Float32()*2 - 1
			}
		}
		idx, err := NewIndex(cfg, createTestDocs(vectors...))
		require.NoError(t, err)
		defer idx.Close()

		for i, v := range vectors {
			results, err := idx.Search(v, 7)
			require.NoError(t, err)
			require.Len(t, results, 7)
			assert.Equal(t, i, results[0].Document.Position)
			assert.Equal(t, float32(0), results[0].Distance)
			for j := 1; j < len(results); j++ {
				assert.LessOrEqual(t, results[j-1].Distance, results[j].Distance)
			}
		}
	})
}

func TestNewIndex(t *testing.T) {
	idx, err := NewIndex(Config{}, createTestDocs([]float32{1}))
	require.NoError(t, err)
	assert.IsType(t, &FlatIndex{}, idx)
	assert.True(t, Supported(""))
	assert.True(t, Supported("flat"))
	assert.False(t, Supported("qdrant"))

	_, err = NewIndex(Config{Type: "qdrant"}, createTestDocs([]float32{1}))
	assert.ErrorIs(t, err, ErrUnknownIndexType)
}

func TestFlatIndex_CopiesVectors(t *testing.T) {
	vec := []float32{1, 2}
	idx, err := NewFlatIndex(createTestDocs(vec))
	require.NoError(t, err)

	// 构建后修改原切片不影响索引
	vec[0] = 100
	results, err := idx.Search([]float32{1, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, []float32{1, 2}, results[0].Document.Vector)
}

func TestSquaredL2(t *testing.T) {
	assert.Equal(t, float32(25), SquaredL2([]float32{0, 0}, []float32{3, 4}))
	assert.Equal(t, float32(0), SquaredL2([]float32{1.5, -2}, []float32{1.5, -2}))
}

func positions(results []SearchResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Document.Position
	}
	return out
}
