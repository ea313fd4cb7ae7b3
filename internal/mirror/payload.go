// 文件路径: internal/mirror/payload.go
// 模块说明: 远端模型在 webhook 中的字段形状；数字与布尔值同时兼容字符串写法。
package mirror

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/creamcroissant/panelmirror/internal/panel"
)

type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	raw := unquote(b)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = flexInt(v)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", raw)
	}
	*f = flexInt(int64(v))
	return nil
}

// remoteTime is a remote timestamp in unix seconds; 0 when absent.
type remoteTime int64

var remoteTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func (t *remoteTime) UnmarshalJSON(b []byte) error {
	raw := unquote(b)
	if raw == "" || raw == "null" {
		*t = 0
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*t = remoteTime(v)
		return nil
	}
	for _, layout := range remoteTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			*t = remoteTime(parsed.Unix())
			return nil
		}
	}
	return fmt.Errorf("not a timestamp: %s", raw)
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	raw := unquote(b)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", raw)
	}
	*f = flexFloat(v)
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(unquote(b)) {
	case "1", "true":
		*f = true
	case "0", "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("not a boolean: %s", b)
	}
	return nil
}

func unquote(b []byte) string {
	return strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(b), `"`)))
}

type nodePayload struct {
	ID              flexInt  `json:"id"`
	UUID            string   `json:"uuid"`
	Name            string   `json:"name"`
	Description     *string  `json:"description"`
	Public          flexBool `json:"public"`
	MaintenanceMode flexBool `json:"maintenance_mode"`
}

type allocationPayload struct {
	ID        flexInt    `json:"id"`
	NodeID    flexInt    `json:"node_id"`
	IP        string     `json:"ip"`
	IPAlias   *string    `json:"ip_alias"`
	Port      flexInt    `json:"port"`
	UpdatedAt remoteTime `json:"updated_at"`
}

type eggPayload struct {
	ID           flexInt            `json:"id"`
	UUID         string             `json:"uuid"`
	Name         string             `json:"name"`
	Description  *string            `json:"description"`
	DockerImages panel.DockerImages `json:"docker_images"`
	Startup      string             `json:"startup"`
	UpdateURL    *string            `json:"update_url"`
}

type serverVariablePayload struct {
	EnvVariable string  `json:"env_variable"`
	ServerValue *string `json:"server_value"`
}

type serverPayload struct {
	ID              flexInt                 `json:"id"`
	UUID            string                  `json:"uuid"`
	Name            string                  `json:"name"`
	Description     *string                 `json:"description"`
	AllocationID    flexInt                 `json:"allocation_id"`
	OwnerID         flexInt                 `json:"owner_id"`
	NodeID          flexInt                 `json:"node_id"`
	EggID           flexInt                 `json:"egg_id"`
	Image           string                  `json:"image"`
	Startup         string                  `json:"startup"`
	CPU             flexFloat               `json:"cpu"`
	Memory          flexInt                 `json:"memory"`
	Swap            flexInt                 `json:"swap"`
	Disk            flexInt                 `json:"disk"`
	IO              flexInt                 `json:"io"`
	Threads         *string                 `json:"threads"`
	OOMKiller       *flexBool               `json:"oom_killer"`
	DatabaseLimit   flexInt                 `json:"database_limit"`
	AllocationLimit flexInt                 `json:"allocation_limit"`
	BackupLimit     flexInt                 `json:"backup_limit"`
	Variables       []serverVariablePayload `json:"variables"`
	UpdatedAt       remoteTime              `json:"updated_at"`
}

type userPayload struct {
	ID        flexInt    `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Language  string     `json:"language"`
	Timezone  string     `json:"timezone"`
	RootAdmin flexBool   `json:"root_admin"`
	UpdatedAt remoteTime `json:"updated_at"`
}

func decode(raw json.RawMessage, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
