package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

// JobLister reads the sync queue.
type JobLister interface {
	List(ctx context.Context, filter repository.SyncJobFilter) ([]*repository.SyncJob, error)
	Stats(ctx context.Context) (map[repository.JobStatus]int64, error)
}

// AdminSyncHandler serves /api/admin/sync.
type AdminSyncHandler struct {
	jobs JobLister
}

// NewAdminSyncHandler wires the queue inspection endpoints.
func NewAdminSyncHandler(jobs JobLister) *AdminSyncHandler {
	return &AdminSyncHandler{jobs: jobs}
}

type syncJobView struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Kind       string `json:"kind"`
	Operation  string `json:"operation"`
	Subject    string `json:"subject,omitempty"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// Jobs lists recent jobs, optionally filtered by ?status= and capped by ?limit=.
func (h *AdminSyncHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	filter := repository.SyncJobFilter{Status: repository.JobStatus(r.URL.Query().Get("status"))}
	switch filter.Status {
	case "", repository.JobStatusPending, repository.JobStatusRunning, repository.JobStatusDone, repository.JobStatusFailed:
	default:
		respondError(w, http.StatusBadRequest, "list_sync_jobs", fmt.Errorf("unknown status %q / 未知状态", filter.Status))
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "list_sync_jobs", fmt.Errorf("invalid limit %q / limit 无效", raw))
			return
		}
		filter.Limit = limit
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_sync_jobs", err)
		return
	}
	views := make([]syncJobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, syncJobView{
			ID:         j.ID,
			Type:       string(j.Type),
			Kind:       j.Kind,
			Operation:  j.Operation,
			Subject:    j.Subject,
			Status:     string(j.Status),
			Attempts:   j.Attempts,
			LastError:  j.LastError,
			CreatedAt:  j.CreatedAt,
			UpdatedAt:  j.UpdatedAt,
			FinishedAt: j.FinishedAt,
		})
	}
	respondData(w, http.StatusOK, views)
}

// Stats returns job counts per status.
func (h *AdminSyncHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.jobs.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sync_stats", err)
		return
	}
	out := map[string]int64{
		string(repository.JobStatusPending): 0,
		string(repository.JobStatusRunning): 0,
		string(repository.JobStatusDone):    0,
		string(repository.JobStatusFailed):  0,
	}
	for status, n := range counts {
		out[string(status)] = n
	}
	respondData(w, http.StatusOK, out)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
