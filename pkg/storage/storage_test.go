package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readAll 读取文件内容辅助函数
func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// runStorageSuite 对任意存储实现执行相同的操作序列
func runStorageSuite(t *testing.T, s Storage) {
	content := "Jane Doe\nSenior Go Engineer"

	info, err := s.Save(bytes.NewBufferString(content), "resume.TXT")
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "resume.TXT", info.Name)
	assert.Equal(t, "text/plain", info.MimeType)
	assert.Equal(t, info.ID+".txt", info.Path)

	t.Run("Get", func(t *testing.T) {
		rc, err := s.Get(info.ID)
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, content, readAll(t, rc))
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := s.Exists(info.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.Exists("non-existent-id")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = s.Exists("00000000-0000-0000-0000-000000000000")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := s.Get("../../etc/passwd")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(info.ID))

		exists, err := s.Exists(info.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		assert.ErrorIs(t, s.Delete(info.ID), ErrFileNotFound)
	})
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	tempDir := t.TempDir()

	localStorage, err := NewLocalStorage(LocalConfig{Path: tempDir})
	require.NoError(t, err)

	info, err := localStorage.Save(bytes.NewBufferString("hello"), "cv.pdf")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(tempDir, info.Path))
	assert.NoError(t, err, "file should be written under the base path")

	runStorageSuite(t, localStorage)
}

// TestMinioStorage 测试MinIO存储实现
// 需要设置MINIO_ENDPOINT并启动MinIO服务
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO tests")
	}

	minioStorage, err := NewMinioStorage(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		Bucket:    "resume-test",
	})
	require.NoError(t, err)

	runStorageSuite(t, minioStorage)
}

// TestNewStorage 测试存储工厂函数
func TestNewStorage(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		s, err := NewStorage(Config{Type: "local", Local: LocalConfig{Path: t.TempDir()}})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("default", func(t *testing.T) {
		s, err := NewStorage(Config{Local: LocalConfig{Path: t.TempDir()}})
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewStorage(Config{Type: "ftp"})
		assert.Error(t, err)
	})
}
