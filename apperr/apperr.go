// Package apperr 统一的错误分类，所有 handler 通过 Respond 映射为 HTTP 状态码，
// 避免各路由各自推断状态码造成漂移。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidStage
	KindPreconditionFailed
	KindNoArtifacts
	KindUpstream
	KindFetchFailed
	KindConcatenationFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidStage:
		return "invalid_stage"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindNoArtifacts:
		return "no_artifacts"
	case KindUpstream:
		return "upstream_service_error"
	case KindFetchFailed:
		return "fetch_failed"
	case KindConcatenationFailed:
		return "concatenation_failed"
	default:
		return "internal_error"
	}
}

type Error struct {
	Kind Kind
	// Msg 对调用方可见，不包含内部路径/标识
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string) *Error           { return New(KindNotFound, msg) }
func Unauthorized(msg string) *Error       { return New(KindUnauthorized, msg) }
func InvalidStage(msg string) *Error       { return New(KindInvalidStage, msg) }
func Precondition(msg string) *Error       { return New(KindPreconditionFailed, msg) }
func NoArtifacts(msg string) *Error        { return New(KindNoArtifacts, msg) }
func Upstream(msg string, err error) *Error {
	return Wrap(KindUpstream, msg, err)
}

// FetchFailed 装配管线下载某个分镜产物失败，携带分镜序号。
func FetchFailed(sceneOrderIndex int, err error) *Error {
	return Wrap(KindFetchFailed, fmt.Sprintf("分镜 %d 的视频下载失败", sceneOrderIndex), err)
}

// ConcatFailed 拼接子进程非零退出或超时。
func ConcatFailed(err error) *Error {
	return Wrap(KindConcatenationFailed, "视频拼接失败", err)
}
func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}

// KindOf 提取错误分类，未分类的一律视为 internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind 判断 err 是否属于指定分类。
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus 是 kind -> 状态码的唯一映射表。
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidStage, KindNoArtifacts:
		return http.StatusBadRequest
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindUpstream, KindFetchFailed, KindConcatenationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message 返回可以直接回给调用方的文案。internal 错误不暴露细节。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}
