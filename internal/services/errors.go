package services

import "errors"

var (
	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrQueueDisabled 未配置任务队列
	ErrQueueDisabled = errors.New("task queue is not enabled")

	// ErrStorageDisabled 未配置文件存储
	ErrStorageDisabled = errors.New("file storage is not enabled")
)
