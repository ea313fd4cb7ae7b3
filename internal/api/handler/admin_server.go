// 文件路径: internal/api/handler/admin_server.go
// 模块说明: 管理接口：列出镜像服务器（附带换算后的展示单位），以及把删除请求写入同步队列。
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/units"
)

const labelPrecision = 2

// DeletionQueue schedules server.delete jobs.
type DeletionQueue interface {
	EnqueueServerDeletion(ctx context.Context, uuid string) (string, error)
}

// AdminServerHandler serves /api/admin/servers.
type AdminServerHandler struct {
	servers repository.ServerRepository
	queue   DeletionQueue
	conv    units.Converter
}

// NewAdminServerHandler wires the admin server endpoints.
func NewAdminServerHandler(servers repository.ServerRepository, queue DeletionQueue, conv units.Converter) *AdminServerHandler {
	return &AdminServerHandler{servers: servers, queue: queue, conv: conv}
}

type serverLimitsView struct {
	CPU         float64 `json:"cpu"`
	CPULabel    string  `json:"cpu_label"`
	Memory      int64   `json:"memory"`
	MemoryLabel string  `json:"memory_label"`
	Disk        int64   `json:"disk"`
	DiskLabel   string  `json:"disk_label"`
	Swap        int64   `json:"swap"`
	IO          int64   `json:"io"`
}

type serverView struct {
	ID            int64                    `json:"id"`
	OriginID      int64                    `json:"origin_id"`
	UUID          string                   `json:"uuid"`
	Name          string                   `json:"name"`
	Slug          string                   `json:"slug"`
	Status        string                   `json:"status"`
	NodeID        int64                    `json:"node_id"`
	AllocationID  int64                    `json:"allocation_id"`
	OwnerID       int64                    `json:"owner_id"`
	EggID         int64                    `json:"egg_id"`
	DockerImage   string                   `json:"docker_image"`
	Limits        serverLimitsView         `json:"limits"`
	FeatureLimits repository.FeatureLimits `json:"feature_limits"`
	UpdatedAt     int64                    `json:"updated_at"`
}

// List returns every mirrored server.
func (h *AdminServerHandler) List(w http.ResponseWriter, r *http.Request) {
	servers, err := h.servers.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_servers", err)
		return
	}
	views := make([]serverView, 0, len(servers))
	for _, s := range servers {
		views = append(views, h.view(s))
	}
	respondData(w, http.StatusOK, views)
}

// Delete queues the remote-then-local deletion of {uuid} and answers 202.
func (h *AdminServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	if _, err := h.servers.FindByUUID(r.Context(), uuid); err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		respondError(w, status, "delete_server", err)
		return
	}
	id, err := h.queue.EnqueueServerDeletion(r.Context(), uuid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "delete_server", err)
		return
	}
	respondData(w, http.StatusAccepted, map[string]string{"job_id": id, "uuid": uuid})
}

func (h *AdminServerHandler) view(s *repository.Server) serverView {
	return serverView{
		ID:           s.ID,
		OriginID:     s.OriginID,
		UUID:         s.UUID,
		Name:         s.Name,
		Slug:         s.Slug,
		Status:       s.Status,
		NodeID:       s.NodeID,
		AllocationID: s.AllocationID,
		OwnerID:      s.OwnerID,
		EggID:        s.EggID,
		DockerImage:  s.DockerImage,
		Limits: serverLimitsView{
			CPU:         s.Limits.CPU,
			CPULabel:    cpuLabel(s.Limits.CPU),
			Memory:      s.Limits.Memory,
			MemoryLabel: h.sizeLabel(s.Limits.Memory),
			Disk:        s.Limits.Disk,
			DiskLabel:   h.sizeLabel(s.Limits.Disk),
			Swap:        s.Limits.Swap,
			IO:          s.Limits.IO,
		},
		FeatureLimits: s.FeatureLimits,
		UpdatedAt:     s.UpdatedAt,
	}
}

// sizeLabel renders a MiB quantity in the largest fitting binary unit.
func (h *AdminServerHandler) sizeLabel(mib int64) string {
	if mib <= 0 {
		return "unlimited"
	}
	q, err := h.conv.Convert(decimal.NewFromInt(mib), units.MiB, units.IAuto, labelPrecision)
	if err != nil {
		return strconv.FormatInt(mib, 10) + " MiB"
	}
	return q.Label()
}

func cpuLabel(cores float64) string {
	if cores <= 0 {
		return "unlimited"
	}
	return strconv.FormatFloat(cores, 'f', -1, 64) + " cores"
}
