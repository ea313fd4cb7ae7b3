// 文件路径: internal/panel/types.go
// 模块说明: 远端面板 API 的响应信封与各资源的属性结构。
package panel

import (
	"encoding/json"
	"strings"
)

// Pagination is the meta.pagination block of list responses.
type Pagination struct {
	Total       int `json:"total"`
	Count       int `json:"count"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type listEnvelope[T any] struct {
	Data []struct {
		Attributes T `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
	} `json:"meta"`
}

type singleEnvelope[T any] struct {
	Attributes T `json:"attributes"`
}

type errorEnvelope struct {
	Errors []struct {
		Code   string `json:"code"`
		Status string `json:"status"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Limits are expressed in remote units: cpu in percent, memory and disk in MB.
type Limits struct {
	Memory    int64   `json:"memory"`
	Swap      int64   `json:"swap"`
	Disk      int64   `json:"disk"`
	IO        int64   `json:"io"`
	CPU       float64 `json:"cpu"`
	Threads   *string `json:"threads"`
	OOMKiller bool    `json:"oom_killer"`
}

// FeatureLimits caps per-server extras on the remote side.
type FeatureLimits struct {
	Databases   int64 `json:"databases"`
	Allocations int64 `json:"allocations"`
	Backups     int64 `json:"backups"`
}

// Container is the runtime section of a remote server.
type Container struct {
	StartupCommand string         `json:"startup_command"`
	Image          string         `json:"image"`
	Environment    map[string]any `json:"environment"`
}

// Server is the application API view of a server.
type Server struct {
	ID            int64         `json:"id"`
	ExternalID    *string       `json:"external_id"`
	UUID          string        `json:"uuid"`
	Identifier    string        `json:"identifier"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Status        *string       `json:"status"`
	Suspended     bool          `json:"suspended"`
	Limits        Limits        `json:"limits"`
	FeatureLimits FeatureLimits `json:"feature_limits"`
	User          int64         `json:"user"`
	Node          int64         `json:"node"`
	Allocation    int64         `json:"allocation"`
	Egg           int64         `json:"egg"`
	Container     Container     `json:"container"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

// Node is the application API view of a node.
type Node struct {
	ID              int64  `json:"id"`
	UUID            string `json:"uuid"`
	Public          bool   `json:"public"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	FQDN            string `json:"fqdn"`
	MaintenanceMode bool   `json:"maintenance_mode"`
}

// Allocation is an IP:port pair on a remote node.
type Allocation struct {
	ID       int64   `json:"id"`
	IP       string  `json:"ip"`
	Alias    *string `json:"alias"`
	Port     int     `json:"port"`
	Notes    *string `json:"notes"`
	Assigned bool    `json:"assigned"`
}

// Egg is the application API view of an egg.
type Egg struct {
	ID           int64        `json:"id"`
	UUID         string       `json:"uuid"`
	Name         string       `json:"name"`
	Author       string       `json:"author"`
	Description  string       `json:"description"`
	DockerImages DockerImages `json:"docker_images"`
	Startup      string       `json:"startup"`
}

// User is the application API view of a user.
type User struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Language  string `json:"language"`
	Timezone  string `json:"timezone"`
	RootAdmin bool   `json:"root_admin"`
}

// Resources is the client API resource usage snapshot.
type Resources struct {
	CurrentState string `json:"current_state"`
	IsSuspended  bool   `json:"is_suspended"`
	Resources    struct {
		MemoryBytes    int64   `json:"memory_bytes"`
		CPUAbsolute    float64 `json:"cpu_absolute"`
		DiskBytes      int64   `json:"disk_bytes"`
		NetworkRxBytes int64   `json:"network_rx_bytes"`
		NetworkTxBytes int64   `json:"network_tx_bytes"`
		Uptime         int64   `json:"uptime"`
	} `json:"resources"`
}

// CreateServerRequest is the body of POST /api/application/servers. Limits use remote units.
type CreateServerRequest struct {
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	User              int64             `json:"user"`
	Egg               int64             `json:"egg"`
	DockerImage       string            `json:"docker_image,omitempty"`
	Startup           string            `json:"startup,omitempty"`
	Environment       map[string]string `json:"environment"`
	OOMKiller         bool              `json:"oom_killer"`
	StartOnCompletion bool              `json:"start_on_completion"`
	Limits            Limits            `json:"limits"`
	FeatureLimits     FeatureLimits     `json:"feature_limits"`
	Allocation        struct {
		Default int64 `json:"default"`
	} `json:"allocation"`
}

// CreateUserRequest is the body of POST /api/application/users.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// EggExport is the JSON document served from an egg's export URL.
type EggExport struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	DockerImages DockerImages        `json:"docker_images"`
	Startup      string              `json:"startup"`
	Variables    []EggExportVariable `json:"variables"`
}

// EggExportVariable is one variable definition from an egg export.
type EggExportVariable struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	EnvVariable  string `json:"env_variable"`
	DefaultValue string `json:"default_value"`
	UserViewable bool   `json:"user_viewable"`
	UserEditable bool   `json:"user_editable"`
	Rules        Rules  `json:"rules"`
}

// Rules accepts both the legacy "required|string" form and the newer list form.
type Rules string

func (r *Rules) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Rules(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*r = Rules(strings.Join(list, "|"))
	return nil
}

// DockerImages accepts a {label: image} object, a list of images or a single image string.
type DockerImages map[string]string

func (d *DockerImages) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err == nil {
		*d = m
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		out := make(map[string]string, len(list))
		for _, image := range list {
			out[image] = image
		}
		*d = out
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	if single == "" {
		*d = map[string]string{}
		return nil
	}
	*d = map[string]string{single: single}
	return nil
}
