package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/resume-analyzer/internal/document"
	"github.com/fyerfyer/resume-analyzer/internal/llm"
	"github.com/fyerfyer/resume-analyzer/internal/metrics"
	"github.com/fyerfyer/resume-analyzer/internal/models"
	"github.com/fyerfyer/resume-analyzer/internal/repository"
	"github.com/fyerfyer/resume-analyzer/internal/vectordb"
	"github.com/fyerfyer/resume-analyzer/pkg/storage"
	"github.com/fyerfyer/resume-analyzer/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const resumeText = "AAAA BBBB CCCC AAAA"

func setupTestRepo(t *testing.T) repository.AnalysisRepository {
	t.Helper()
	dbName := fmt.Sprintf("file:services_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Analysis{}))
	return repository.NewAnalysisRepositoryWithDB(db)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newMockGenerator(t *testing.T, resp *llm.Response, err error) *llm.MockClient {
	client := llm.NewMockClient(t)
	client.On("Generate", mock.Anything, mock.Anything).Return(resp, err).Maybe()
	client.On("Name").Return("mock-llm").Maybe()
	return client
}

func newTestService(t *testing.T, gen llm.Client, opts ...AnalysisOption) *AnalysisService {
	pipeline := NewRetrievalPipeline(&letterEmbedder{}, WithPipelineLogger(newTestLogger()))
	opts = append([]AnalysisOption{
		WithLogger(newTestLogger()),
		WithMetrics(metrics.NewMetrics()),
		WithDefaults(5, 2, ""),
	}, opts...)
	return NewAnalysisService(pipeline, llm.NewSynthesizer(gen), opts...)
}

func TestAnalysisService_AnalyzeReader(t *testing.T) {
	gen := llm.NewMockClient(t)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Question:\n"+DefaultQuery) &&
			strings.Contains(prompt, "Context:\nAAAA\n\nAAAA")
	})).Return(&llm.Response{Text: "  **Strong** profile. Rating: 8/10  ", ModelName: "gemini-2.5-flash"}, nil)

	repo := setupTestRepo(t)
	svc := newTestService(t, gen, WithAnalysisRepository(repo))

	result, err := svc.AnalyzeReader(context.Background(), strings.NewReader(resumeText), "resume.txt", int64(len(resumeText)), AnalysisRequest{})
	require.NoError(t, err)

	assert.Equal(t, "Strong profile. Rating: 8/10", result.Answer)
	assert.Equal(t, DefaultQuery, result.Query)
	assert.Equal(t, []string{"AAAA", "AAAA"}, result.RetrievedChunks)
	assert.Len(t, result.Distances, 2)
	assert.Equal(t, 4, result.ChunkCount)
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, "gemini-2.5-flash", result.ModelName)
	assert.NotEmpty(t, result.ID)

	record, err := svc.GetAnalysis(result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, record.Status)
	assert.Equal(t, result.Answer, record.Answer)
	assert.Equal(t, "resume.txt", record.FileName)
	assert.JSONEq(t, `["AAAA","AAAA"]`, string(record.RetrievedChunks))

	list, err := svc.ListAnalyses(10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAnalysisService_CustomRequest(t *testing.T) {
	gen := newMockGenerator(t, &llm.Response{Text: "ok"}, nil)
	svc := newTestService(t, gen)

	result, err := svc.AnalyzeReader(context.Background(), strings.NewReader(resumeText), "resume.md", 0,
		AnalysisRequest{Query: "BBBB", ChunkSize: 5, TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBBB"}, result.RetrievedChunks)
	assert.Equal(t, []float32{0}, result.Distances)
}

func TestAnalysisService_FallbackAnswer(t *testing.T) {
	raw := `{"candidates":[{"finishReason":"SAFETY"}]}`
	gen := newMockGenerator(t, &llm.Response{Text: raw, Fallback: true}, nil)
	svc := newTestService(t, gen)

	result, err := svc.AnalyzeReader(context.Background(), strings.NewReader(resumeText), "resume.txt", 0, AnalysisRequest{})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, raw, result.Answer)
}

func TestAnalysisService_Errors(t *testing.T) {
	t.Run("generation error", func(t *testing.T) {
		genErr := llm.NewLLMError(llm.ErrCodeServerError, "upstream failure")
		gen := newMockGenerator(t, nil, genErr)
		repo := setupTestRepo(t)
		svc := newTestService(t, gen, WithAnalysisRepository(repo))

		result, err := svc.AnalyzeReader(context.Background(), strings.NewReader(resumeText), "resume.txt", 0, AnalysisRequest{})
		assert.Nil(t, result)
		assert.Equal(t, KindGeneration, ErrorKind(err))

		// 失败的分析也会留下记录
		list, err := svc.ListAnalyses(5)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.AnalysisStatusFailed, list[0].Status)
		assert.NotEmpty(t, list[0].Error)
	})

	t.Run("unsupported file", func(t *testing.T) {
		svc := newTestService(t, newMockGenerator(t, nil, nil))
		_, err := svc.AnalyzeReader(context.Background(), strings.NewReader("x"), "resume.docx", 0, AnalysisRequest{})
		assert.ErrorIs(t, err, document.ErrExtraction)
		assert.Equal(t, KindExtraction, ErrorKind(err))
	})

	t.Run("empty document", func(t *testing.T) {
		svc := newTestService(t, newMockGenerator(t, nil, nil))
		_, err := svc.AnalyzeReader(context.Background(), strings.NewReader("   \n  "), "resume.txt", 0, AnalysisRequest{})
		assert.ErrorIs(t, err, document.ErrEmptyDocument)
		assert.Equal(t, KindEmptyDocument, ErrorKind(err))
	})

	t.Run("invalid k", func(t *testing.T) {
		svc := newTestService(t, newMockGenerator(t, nil, nil))
		_, err := svc.AnalyzeReader(context.Background(), strings.NewReader(resumeText), "resume.txt", 0, AnalysisRequest{TopK: -2})
		assert.ErrorIs(t, err, vectordb.ErrInvalidK)
		assert.Equal(t, KindInvalidArgument, ErrorKind(err))
	})

	t.Run("history disabled", func(t *testing.T) {
		svc := newTestService(t, newMockGenerator(t, nil, nil))
		_, err := svc.ListAnalyses(1)
		assert.ErrorIs(t, err, ErrHistoryDisabled)
		_, err = svc.GetAnalysis("x")
		assert.Equal(t, KindUnavailable, ErrorKind(err))
	})
}

func TestAnalysisService_AnalyzeDocument(t *testing.T) {
	gen := newMockGenerator(t, &llm.Response{Text: "fine"}, nil)
	svc := newTestService(t, gen)

	doc := document.NewDocument("cv.pdf", document.PDF, []document.Page{
		{Number: 1, Text: "AAAA BBBB"},
		{Number: 2, Text: "CCCC AAAA"},
	})
	result, err := svc.AnalyzeDocument(context.Background(), doc, AnalysisRequest{Query: "AAAA", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, result.PageCount)
	assert.Equal(t, []string{"AAAA"}, result.RetrievedChunks)
	assert.Equal(t, []int{1}, result.Pages)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindSuccess, ErrorKind(nil))
	assert.Equal(t, KindNotFound, ErrorKind(fmt.Errorf("wrap: %w", models.ErrAnalysisNotFound)))
	assert.Equal(t, KindNotFound, ErrorKind(taskqueue.ErrTaskNotFound))
	assert.Equal(t, KindInvalidArgument, ErrorKind(ErrEmptyQuery))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("boom")))
}

// setupAsyncService 基于miniredis队列和本地存储创建服务
func setupAsyncService(t *testing.T, gen llm.Client) (*AnalysisService, *taskqueue.RedisQueue, repository.AnalysisRepository) {
	t.Helper()
	mr := miniredis.RunT(t)

	qcfg := taskqueue.DefaultConfig()
	qcfg.RedisAddr = mr.Addr()
	qcfg.Logger = newTestLogger()
	queue, err := taskqueue.NewRedisQueue(qcfg)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	st, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	repo := setupTestRepo(t)
	svc := newTestService(t, gen,
		WithTaskQueue(queue),
		WithStorage(st),
		WithAnalysisRepository(repo),
	)
	return svc, queue, repo
}

func TestAnalysisService_Async(t *testing.T) {
	gen := newMockGenerator(t, &llm.Response{Text: "**Good** fit"}, nil)
	svc, queue, repo := setupAsyncService(t, gen)
	ctx := context.Background()
	require.True(t, svc.AsyncEnabled())

	taskID, analysisID, err := svc.EnqueueAnalysis(ctx, bytes.NewBufferString(resumeText), "resume.txt", int64(len(resumeText)), AnalysisRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	record, err := repo.GetByTaskID(taskID)
	require.NoError(t, err)
	assert.Equal(t, analysisID, record.ID)
	assert.Equal(t, models.AnalysisStatusPending, record.Status)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	out, err := svc.ProcessTask(ctx, task)
	require.NoError(t, err)
	result, ok := out.(taskqueue.AnalyzeResult)
	require.True(t, ok)
	assert.Equal(t, "Good fit", result.Answer)
	assert.Equal(t, analysisID, result.AnalysisID)
	assert.Equal(t, []string{"AAAA", "AAAA"}, result.RetrievedChunks)

	record, err = repo.GetByID(analysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, record.Status)
	assert.Equal(t, "Good fit", record.Answer)
	assert.Equal(t, 4, record.ChunkCount)

	// 任务状态由工作者回写，这里模拟完成后查询
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, taskqueue.StatusCompleted, result, ""))
	info, err := svc.GetTask(ctx, taskID, 0)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StatusCompleted, info.Status)
	assert.Contains(t, string(info.Result), "Good fit")
}

// inlineQueue 入队时立即在当前goroutine里执行任务
// 模拟worker在Enqueue返回前就处理完毕
type inlineQueue struct {
	taskqueue.Queue
	svc    *AnalysisService
	result interface{}
	err    error
}

func (q *inlineQueue) Enqueue(ctx context.Context, taskType taskqueue.TaskType, analysisID string, payload interface{}) (string, error) {
	data, err := taskqueue.MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	task := &taskqueue.Task{
		ID:         "inline-task",
		Type:       taskType,
		AnalysisID: analysisID,
		Status:     taskqueue.StatusPending,
		Payload:    data,
	}
	q.result, q.err = q.svc.ProcessTask(ctx, task)
	return task.ID, nil
}

func TestAnalysisService_AsyncWorkerFinishesBeforeEnqueueReturns(t *testing.T) {
	gen := newMockGenerator(t, &llm.Response{Text: "Quick fit"}, nil)

	st, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	repo := setupTestRepo(t)

	queue := &inlineQueue{}
	svc := newTestService(t, gen,
		WithTaskQueue(queue),
		WithStorage(st),
		WithAnalysisRepository(repo),
	)
	queue.svc = svc

	taskID, analysisID, err := svc.EnqueueAnalysis(context.Background(), strings.NewReader(resumeText), "resume.txt", int64(len(resumeText)), AnalysisRequest{})
	require.NoError(t, err)
	require.NoError(t, queue.err)
	assert.Equal(t, "inline-task", taskID)

	record, err := repo.GetByID(analysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, record.Status)
	assert.Equal(t, "Quick fit", record.Answer)
	assert.Equal(t, taskID, record.TaskID)
	assert.NotNil(t, record.CompletedAt)
}

// failingQueue 入队总是失败
type failingQueue struct {
	taskqueue.Queue
}

func (failingQueue) Enqueue(context.Context, taskqueue.TaskType, string, interface{}) (string, error) {
	return "", errors.New("redis unavailable")
}

func TestAnalysisService_EnqueueFailureMarksRecordFailed(t *testing.T) {
	gen := newMockGenerator(t, nil, nil)

	st, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	repo := setupTestRepo(t)
	svc := newTestService(t, gen,
		WithTaskQueue(failingQueue{}),
		WithStorage(st),
		WithAnalysisRepository(repo),
	)

	_, _, err = svc.EnqueueAnalysis(context.Background(), strings.NewReader(resumeText), "resume.txt", 0, AnalysisRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")

	records, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AnalysisStatusFailed, records[0].Status)
	assert.Contains(t, records[0].Error, "redis unavailable")
}

func TestAnalysisService_AsyncFailure(t *testing.T) {
	gen := newMockGenerator(t, nil, nil)
	svc, queue, repo := setupAsyncService(t, gen)
	ctx := context.Background()

	taskID, analysisID, err := svc.EnqueueAnalysis(ctx, strings.NewReader("    "), "blank.txt", 4, AnalysisRequest{})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	_, err = svc.ProcessTask(ctx, task)
	assert.ErrorIs(t, err, document.ErrEmptyDocument)

	record, err := repo.GetByID(analysisID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed, record.Status)
	assert.Contains(t, record.Error, "no extractable text")

	t.Run("wait times out with current status", func(t *testing.T) {
		info, err := svc.GetTask(ctx, taskID, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, taskqueue.StatusPending, info.Status)
	})
}

func TestAnalysisService_EnqueueValidation(t *testing.T) {
	gen := newMockGenerator(t, nil, nil)

	t.Run("queue disabled", func(t *testing.T) {
		svc := newTestService(t, gen)
		_, _, err := svc.EnqueueAnalysis(context.Background(), strings.NewReader(resumeText), "resume.txt", 0, AnalysisRequest{})
		assert.ErrorIs(t, err, ErrQueueDisabled)

		_, err = svc.GetTask(context.Background(), "x", 0)
		assert.ErrorIs(t, err, ErrQueueDisabled)
	})

	svc, _, _ := setupAsyncService(t, gen)

	t.Run("unsupported extension", func(t *testing.T) {
		_, _, err := svc.EnqueueAnalysis(context.Background(), strings.NewReader(resumeText), "resume.exe", 0, AnalysisRequest{})
		assert.ErrorIs(t, err, document.ErrExtraction)
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		_, _, err := svc.EnqueueAnalysis(context.Background(), strings.NewReader(resumeText), "resume.txt", 0, AnalysisRequest{ChunkSize: -1})
		assert.ErrorIs(t, err, document.ErrInvalidChunkSize)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := svc.GetTask(context.Background(), "missing", 0)
		assert.ErrorIs(t, err, taskqueue.ErrTaskNotFound)
	})
}
