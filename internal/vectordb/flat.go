package vectordb

// FlatIndex 纯Go实现的暴力搜索索引
// 所有向量按插入顺序连续存放在一个切片中
type FlatIndex struct {
	docs    []Document
	vectors []float32
	dim     int
}

// NewFlatIndex 构建flat索引
func NewFlatIndex(docs []Document) (Index, error) {
	dim, err := validateDocuments(docs)
	if err != nil {
		return nil, err
	}

	idx := &FlatIndex{
		docs:    make([]Document, len(docs)),
		vectors: make([]float32, 0, len(docs)*dim),
		dim:     dim,
	}
	for i, doc := range docs {
		idx.vectors = append(idx.vectors, doc.Vector...)
		doc.Vector = idx.vectors[i*dim : (i+1)*dim : (i+1)*dim]
		idx.docs[i] = doc
	}
	return idx, nil
}

// Search 对每个向量计算平方欧氏距离后取最小的k个
func (f *FlatIndex) Search(vector []float32, k int) ([]SearchResult, error) {
	k, err := validateQuery(vector, k, f.dim, len(f.docs))
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(f.docs))
	for i, doc := range f.docs {
		results[i] = SearchResult{
			Document: doc,
			Distance: SquaredL2(vector, f.vectors[i*f.dim:(i+1)*f.dim]),
		}
	}

	// results按插入顺序生成，稳定排序保证距离相同时先插入的在前
	SortSearchResults(results)
	return results[:k], nil
}

// Count 索引中的向量数
func (f *FlatIndex) Count() int {
	return len(f.docs)
}

// GetDimension 返回向量维数
func (f *FlatIndex) GetDimension() int {
	return f.dim
}

// Close flat索引没有需要释放的资源
func (f *FlatIndex) Close() error {
	return nil
}

func init() {
	RegisterIndex("flat", NewFlatIndex)
	RegisterIndex("memory", NewFlatIndex)
}
