// 文件路径: internal/service/errors.go
// 模块说明: 服务层的哨兵错误，由 CLI 与管理接口映射为退出码和 HTTP 状态。
package service

import "errors"

var (
	// ErrNotFound indicates requested resource does not exist.
	ErrNotFound = errors.New("service: not found / 未找到资源")
	// ErrInvalidInput indicates a request failed validation.
	ErrInvalidInput = errors.New("service: invalid input / 参数无效")
	// ErrAllocationInUse indicates the chosen allocation already backs a server.
	ErrAllocationInUse = errors.New("service: allocation already assigned / 端口分配已被占用")
	// ErrEggNotMirrored indicates the egg referenced by a server is not in the local mirror.
	ErrEggNotMirrored = errors.New("service: egg not mirrored / 模板未同步")
)
