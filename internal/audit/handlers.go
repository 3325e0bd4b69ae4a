package audit

import (
	"net/http"
	"time"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

// Handler exposes the admin audit trail.
type Handler struct {
	Svc Service
}

type entryView struct {
	ID         string     `json:"id"`
	ActorID    string     `json:"actorId,omitempty"`
	Action     string     `json:"action"`
	Resource   string     `json:"resource"`
	ResourceID *string    `json:"resourceId,omitempty"`
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	Status     int32      `json:"status"`
	IP         *string    `json:"ip,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// List returns the newest audit entries first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.Svc.Q.ListAuditEntries(r.Context(), int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	views := make([]entryView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toEntryView(row))
	}
	common.JSONData(w, http.StatusOK, views)
}

func toEntryView(e store.AuditEntry) entryView {
	v := entryView{
		ID:       store.UUIDString(e.ID),
		Action:   e.Action,
		Resource: e.Resource,
		Method:   e.Method,
		Path:     e.Path,
		Status:   e.Status,
	}
	if e.ActorID.Valid {
		v.ActorID = store.UUIDString(e.ActorID)
	}
	if e.ResourceID.Valid {
		v.ResourceID = &e.ResourceID.String
	}
	if e.IP.Valid {
		v.IP = &e.IP.String
	}
	if e.CreatedAt.Valid {
		v.CreatedAt = &e.CreatedAt.Time
	}
	return v
}
