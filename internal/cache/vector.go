package cache

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// SetVector 以小端float32字节序列的base64形式缓存向量
func SetVector(c Cache, key string, vec []float32, ttl time.Duration) error {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return c.Set(key, base64.StdEncoding.EncodeToString(buf), ttl)
}

// GetVector 读取SetVector写入的向量
func GetVector(c Cache, key string) ([]float32, bool, error) {
	value, found, err := c.Get(key)
	if err != nil || !found {
		return nil, false, err
	}

	buf, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, false, fmt.Errorf("corrupted vector cache entry %s: %w", key, err)
	}
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false, fmt.Errorf("corrupted vector cache entry %s: invalid length %d", key, len(buf))
	}

	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, true, nil
}
