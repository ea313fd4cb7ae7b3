// 文件路径: internal/repository/interfaces.go
// 模块说明: 镜像库的仓储接口。Create 返回 false 表示同一远端身份已存在。
package repository

import "context"

// Store 暴露每个聚合根对应的仓储接口。
type Store interface {
	Nodes() NodeRepository
	Allocations() AllocationRepository
	Eggs() EggRepository
	Servers() ServerRepository
	Users() UserRepository
	SyncJobs() SyncJobRepository

	// WithTx runs fn against a Store bound to one transaction; fn's error rolls it back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// NodeRepository 定义节点镜像的数据访问方法。
type NodeRepository interface {
	Create(ctx context.Context, node *Node) (bool, error)
	FindByUUID(ctx context.Context, uuid string) (*Node, error)
	FindByOriginID(ctx context.Context, originID int64) (*Node, error)
	Update(ctx context.Context, node *Node) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Node, error)
}

// AllocationRepository 定义端口分配镜像的数据访问方法。
// Update keeps a positive UpdatedAt (the remote timestamp) and stamps the current time otherwise; the same holds for servers and users.
type AllocationRepository interface {
	Create(ctx context.Context, allocation *Allocation) (bool, error)
	FindByOriginID(ctx context.Context, originID int64) (*Allocation, error)
	FindByNodeAndOriginID(ctx context.Context, nodeOriginID, originID int64) (*Allocation, error)
	ExistsByNodePort(ctx context.Context, nodeOriginID int64, port int) (bool, error)
	Update(ctx context.Context, allocation *Allocation) error
	SetAssigned(ctx context.Context, originID int64, assigned bool) error
	Delete(ctx context.Context, id int64) error
	ListByNode(ctx context.Context, nodeOriginID int64) ([]*Allocation, error)
}

// EggRepository 定义模板镜像的数据访问方法。
type EggRepository interface {
	Create(ctx context.Context, egg *Egg) (bool, error)
	FindByUUID(ctx context.Context, uuid string) (*Egg, error)
	FindByOriginID(ctx context.Context, originID int64) (*Egg, error)
	ExistsByOriginID(ctx context.Context, originID int64) (bool, error)
	Update(ctx context.Context, egg *Egg) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Egg, error)
}

// ServerRepository 定义服务器镜像的数据访问方法。
type ServerRepository interface {
	Create(ctx context.Context, server *Server) (bool, error)
	FindByID(ctx context.Context, id int64) (*Server, error)
	FindByUUID(ctx context.Context, uuid string) (*Server, error)
	Update(ctx context.Context, server *Server) error
	UpdateStatus(ctx context.Context, uuid, status string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Server, error)
	ListUUIDs(ctx context.Context) ([]string, error)
}

// UserRepository 定义用户镜像的数据访问方法。
type UserRepository interface {
	Create(ctx context.Context, user *User) (bool, error)
	FindByOriginID(ctx context.Context, originID int64) (*User, error)
	ExistsByEmailAndName(ctx context.Context, email, name string) (bool, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// SyncJobRepository 持久化异步同步任务。
type SyncJobRepository interface {
	Enqueue(ctx context.Context, job *SyncJob) error
	// Claim marks up to limit pending jobs as running, oldest first, and returns them.
	Claim(ctx context.Context, limit int, now int64) ([]*SyncJob, error)
	Finish(ctx context.Context, id string, status JobStatus, lastError string, now int64) error
	FindByID(ctx context.Context, id string) (*SyncJob, error)
	List(ctx context.Context, filter SyncJobFilter) ([]*SyncJob, error)
	CountByStatus(ctx context.Context) (map[JobStatus]int64, error)
	// ResetRunning returns jobs left running by a crashed process to pending.
	ResetRunning(ctx context.Context, now int64) (int64, error)
	PurgeFinished(ctx context.Context, before int64) (int64, error)
}
