// 文件路径: internal/panel/errors.go
// 模块说明: 远端面板请求失败时返回的错误类型。
package panel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRemoteAPI matches every failed call to the remote panel, whatever the cause.
	ErrRemoteAPI = errors.New("remote panel api failure / 远端面板请求失败")
	// ErrServerNotFound is returned when no remote server carries the requested uuid.
	ErrServerNotFound = errors.New("remote server not found / 远端服务器不存在")
)

// APIError describes one failed remote call. StatusCode is 0 for transport failures.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("panel %s %s: %v", e.Method, e.Path, e.Err)
	}
	msg := e.Detail
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("panel %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRemoteAPI) match any *APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrRemoteAPI
}

// Retryable reports whether another attempt might succeed.
func (e *APIError) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil && !errors.Is(e.Err, context.Canceled)
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
