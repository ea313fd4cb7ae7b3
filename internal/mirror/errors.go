// 文件路径: internal/mirror/errors.go
// 模块说明: 同步失败的错误分类。
package mirror

import "errors"

var (
	// ErrRecordNotFound is returned when an update or delete names an identity the mirror does not hold.
	ErrRecordNotFound = errors.New("mirror record not found / 镜像记录不存在")
	// ErrMalformedPayload is returned when a delivery cannot be decoded or lacks its identity fields.
	ErrMalformedPayload = errors.New("malformed payload / 负载格式错误")
	// ErrMissingReference is returned when a record points at an entity that is not mirrored yet.
	ErrMissingReference = errors.New("referenced record not mirrored / 关联记录尚未同步")
)

// SyncError ties a failure to the event that caused it.
type SyncError struct {
	Type     EventType
	Identity string
	Err      error
}

func (e *SyncError) Error() string {
	if e.Identity == "" {
		return e.Type.String() + ": " + e.Err.Error()
	}
	return e.Type.String() + " " + e.Identity + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
