package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fyerfyer/resume-analyzer/internal/document"
	"github.com/fyerfyer/resume-analyzer/internal/metrics"
	"github.com/fyerfyer/resume-analyzer/internal/models"
	"github.com/fyerfyer/resume-analyzer/internal/vectordb"
	"github.com/fyerfyer/resume-analyzer/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnqueueAnalysis 存档上传的文件并提交异步分析任务
// 返回任务ID和分析ID
func (s *AnalysisService) EnqueueAnalysis(ctx context.Context, r io.Reader, filename string, size int64, req AnalysisRequest) (string, string, error) {
	if s.taskQueue == nil {
		return "", "", ErrQueueDisabled
	}
	if s.storage == nil {
		return "", "", ErrStorageDisabled
	}
	if !document.IsSupported(filename) {
		return "", "", fmt.Errorf("%w: unsupported document type: %s", document.ErrExtraction, filename)
	}

	// 入队前拒绝无效参数，避免任务必然失败
	req = s.resolve(req)
	if req.TopK <= 0 {
		return "", "", fmt.Errorf("%w: %d", vectordb.ErrInvalidK, req.TopK)
	}
	if req.ChunkSize <= 0 {
		return "", "", document.ErrInvalidChunkSize
	}

	info, err := s.storage.Save(r, filename)
	if err != nil {
		return "", "", fmt.Errorf("failed to archive upload: %w", err)
	}

	analysisID := uuid.New().String()
	payload := taskqueue.AnalyzePayload{
		AnalysisID: analysisID,
		FileID:     info.ID,
		FileName:   filename,
		FileSize:   size,
		Query:      req.Query,
		ChunkSize:  req.ChunkSize,
		TopK:       req.TopK,
	}

	// 记录必须先于任务存在，worker可能在Enqueue返回前就处理完
	if s.repo != nil {
		record := &models.Analysis{
			ID:       analysisID,
			FileName: filename,
			FileSize: size,
			Query:    req.Query,
			Status:   models.AnalysisStatusPending,
		}
		if err := s.repo.Create(record); err != nil {
			s.logger.WithError(err).WithField("analysis_id", analysisID).Warn("Failed to save analysis record")
		}
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskAnalyzeDocument, analysisID, payload)
	if err != nil {
		if delErr := s.storage.Delete(info.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("file_id", info.ID).Warn("Failed to remove archived upload")
		}
		s.updateStatus(analysisID, models.AnalysisStatusFailed, fmt.Sprintf("failed to enqueue analysis: %v", err))
		return "", "", fmt.Errorf("failed to enqueue analysis: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.SetTaskID(analysisID, taskID); err != nil {
			s.logger.WithError(err).WithField("analysis_id", analysisID).Warn("Failed to record task id")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":     taskID,
		"analysis_id": analysisID,
		"file":        filename,
	}).Info("Analysis enqueued")

	return taskID, analysisID, nil
}

// ProcessTask 执行异步分析任务
func (s *AnalysisService) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.AnalyzePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
	}
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	s.updateStatus(payload.AnalysisID, models.AnalysisStatusProcessing, "")

	result, err := s.runTask(ctx, payload)
	s.metrics.RecordAnalysis(ErrorKind(err))
	s.completeRecord(payload.AnalysisID, task.ID, result, err)
	if err != nil {
		return nil, err
	}

	return taskqueue.AnalyzeResult{
		AnalysisID:      result.ID,
		Answer:          result.Answer,
		RetrievedChunks: result.RetrievedChunks,
		Distances:       ToFloat64s(result.Distances),
		Pages:           result.Pages,
		ChunkCount:      result.ChunkCount,
		PageCount:       result.PageCount,
	}, nil
}

// GetTaskTypes 返回支持的任务类型
func (s *AnalysisService) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskAnalyzeDocument}
}

// runTask 取回存档文件并分析
func (s *AnalysisService) runTask(ctx context.Context, payload taskqueue.AnalyzePayload) (*AnalysisResult, error) {
	rc, err := s.storage.Get(payload.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load archived upload: %w", err)
	}
	defer rc.Close()

	start := time.Now()
	doc, err := document.ParseReader(rc, payload.FileName)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage(metrics.StageParse, start)

	req := AnalysisRequest{
		Query:     payload.Query,
		ChunkSize: payload.ChunkSize,
		TopK:      payload.TopK,
	}
	return s.analyze(ctx, payload.AnalysisID, doc, s.resolve(req))
}

// GetTask 查询异步任务，wait大于0时等待任务结束
// 等待超时返回任务的当前状态
func (s *AnalysisService) GetTask(ctx context.Context, taskID string, wait time.Duration) (*taskqueue.TaskInfo, error) {
	if s.taskQueue == nil {
		return nil, ErrQueueDisabled
	}

	var task *taskqueue.Task
	var err error
	if wait > 0 {
		task, err = s.taskQueue.WaitForTask(ctx, taskID, wait)
		if errors.Is(err, taskqueue.ErrTaskTimeout) && task != nil {
			err = nil
		}
	} else {
		task, err = s.taskQueue.GetTask(ctx, taskID)
	}
	if err != nil {
		return nil, err
	}
	return taskqueue.NewTaskInfo(task), nil
}

// updateStatus 更新记录状态，失败只记录警告
func (s *AnalysisService) updateStatus(id string, status models.AnalysisStatus, msg string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateStatus(id, status, msg); err != nil {
		s.logger.WithError(err).WithField("analysis_id", id).Warn("Failed to update analysis status")
	}
}

// completeRecord 把异步任务的结果写回记录
// 整行保存，所以同时写入taskID，避免覆盖Enqueue之后才记录的任务ID
func (s *AnalysisService) completeRecord(id, taskID string, result *AnalysisResult, err error) {
	if s.repo == nil {
		return
	}

	record, getErr := s.repo.GetByID(id)
	if getErr != nil {
		s.logger.WithError(getErr).WithField("analysis_id", id).Warn("Failed to load analysis record")
		return
	}

	applyOutcome(record, result, err)
	if taskID != "" {
		record.TaskID = taskID
	}
	if saveErr := s.repo.Update(record); saveErr != nil {
		s.logger.WithError(saveErr).WithField("analysis_id", id).Warn("Failed to update analysis record")
	}
}
