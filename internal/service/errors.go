package service

import (
	"errors"
	"fmt"
)

// 错误分类，调用方用 errors.Is 判断
var (
	ErrValidation      = errors.New("请求参数不合法")
	ErrNotFound        = errors.New("记录不存在")
	ErrExternalService = errors.New("外部评估服务调用失败")
	ErrStore           = errors.New("数据存储失败")
)

// RecordError 带操作上下文的错误
type RecordError struct {
	Op      string
	Entity  string
	BaseErr error
	Detail  string
	Cause   error
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s, 对象:%s)", e.BaseErr, e.Op, e.Entity)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *RecordError) Is(target error) bool {
	if errors.Is(e.BaseErr, target) {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// Message 面向调用方的简短描述，不含底层原因
func (e *RecordError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.BaseErr.Error()
}

func newValidationError(op, entity, detail string) error {
	return &RecordError{Op: op, Entity: entity, BaseErr: ErrValidation, Detail: detail}
}

func newNotFoundError(op, entity, detail string) error {
	return &RecordError{Op: op, Entity: entity, BaseErr: ErrNotFound, Detail: detail}
}

func newStoreError(op, entity string, cause error) error {
	return &RecordError{Op: op, Entity: entity, BaseErr: ErrStore, Cause: cause}
}

func newExternalError(op, entity, detail string, cause error) error {
	return &RecordError{Op: op, Entity: entity, BaseErr: ErrExternalService, Detail: detail, Cause: cause}
}
