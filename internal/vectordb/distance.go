package vectordb

import "sort"

// SquaredL2 计算两个等长向量的平方欧氏距离
func SquaredL2(v1, v2 []float32) float32 {
	var sum float64
	for i := range v1 {
		d := float64(v1[i]) - float64(v2[i])
		sum += d * d
	}
	return float32(sum)
}

// SortSearchResults 按距离升序稳定排序
// 调用方需保证输入按插入顺序排列，距离相同时先插入的在前
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
}
