// 文件路径: internal/repository/types.go
// 模块说明: 镜像库中每类实体的结构定义；origin_id 为远端面板分配的编号。
package repository

// Node mirrors a remote panel node.
type Node struct {
	ID              int64
	OriginID        int64
	UUID            string
	Name            string
	Slug            string
	Description     string
	Public          bool
	MaintenanceMode bool
	CreatedAt       int64
	UpdatedAt       int64
}

// Allocation is an IP:port pair owned by a node.
type Allocation struct {
	ID           int64
	OriginID     int64
	NodeOriginID int64
	IP           string
	Alias        string
	Port         int
	Assigned     bool
	Public       bool
	CreatedAt    int64
	UpdatedAt    int64
}

// EggVariable is one configurable environment variable of an egg.
type EggVariable struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	EnvVariable  string `json:"env_variable"`
	DefaultValue string `json:"default_value"`
	UserViewable bool   `json:"user_viewable"`
	UserEditable bool   `json:"user_editable"`
	Rules        string `json:"rules,omitempty"`
}

// Egg is a server template.
type Egg struct {
	ID           int64
	OriginID     int64
	UUID         string
	Name         string
	Description  string
	URL          string
	DockerImages map[string]string
	Variables    []EggVariable
	Startup      string
	Slug         string
	Public       bool
	CreatedAt    int64
	UpdatedAt    int64
}

// ServerLimits are stored in local units: CPU in cores, memory and disk in MiB.
// -1 means unlimited and is never converted.
type ServerLimits struct {
	CPU       float64 `json:"cpu"`
	Memory    int64   `json:"memory"`
	Swap      int64   `json:"swap"`
	Disk      int64   `json:"disk"`
	IO        int64   `json:"io"`
	Threads   string  `json:"threads,omitempty"`
	OOMKiller bool    `json:"oom_killer"`
}

// FeatureLimits caps per-server extras.
type FeatureLimits struct {
	Databases   int64 `json:"databases"`
	Allocations int64 `json:"allocations"`
	Backups     int64 `json:"backups"`
}

// Server mirrors a remote game server. AllocationID, NodeID, OwnerID and EggID hold remote ids.
type Server struct {
	ID                int64
	OriginID          int64
	UUID              string
	Name              string
	Slug              string
	Description       string
	Status            string
	AllocationID      int64
	NodeID            int64
	OwnerID           int64
	EggID             int64
	StartOnCompletion bool
	DockerImage       string
	Startup           string
	Limits            ServerLimits
	FeatureLimits     FeatureLimits
	EggVariables      map[string]string
	CreatedAt         int64
	UpdatedAt         int64
}

// User is a local account, optionally linked to a remote panel user.
type User struct {
	ID        int64
	OriginID  int64
	Name      string
	Email     string
	Password  string
	Lang      string
	Timezone  string
	RootAdmin bool
	CreatedAt int64
	UpdatedAt int64
}

// JobType tells workers how to interpret a queued job.
type JobType string

const (
	JobTypeMirrorSync   JobType = "mirror.sync"
	JobTypeServerDelete JobType = "server.delete"
)

// JobStatus is the lifecycle of a queued job. Finished jobs are never retried.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// SyncJob is one persisted unit of asynchronous work.
type SyncJob struct {
	ID         string
	Type       JobType
	Kind       string
	Operation  string
	Subject    string
	Payload    []byte
	Status     JobStatus
	Attempts   int
	LastError  string
	CreatedAt  int64
	UpdatedAt  int64
	FinishedAt *int64
}

// SyncJobFilter narrows job listings.
type SyncJobFilter struct {
	Status JobStatus
	Limit  int
}
