package services

import (
	"errors"
	"fmt"
	"strings"
)

// 错误类别，调用方用 errors.Is 判断
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

// Error 带类别的业务错误
type Error struct {
	Kind    error
	Message string
	Details any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(what, id string) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s not found", what, id), Details: map[string]string{what + "Id": id}}
}

func forbiddenError(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// PartialFailure 分步级联删除中途失败：已删除的节点不会恢复
type PartialFailure struct {
	RemovedIDs   []string
	RemainingIDs []string
	Err          error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("cascade stopped after removing %d of %d comments (%s): %v",
		len(e.RemovedIDs), len(e.RemovedIDs)+len(e.RemainingIDs), strings.Join(e.RemainingIDs, ","), e.Err)
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}
