// Package audit records admin mutations into an append-only trail so
// staff actions on catalog, orders and users stay reviewable.
package audit

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type querier interface {
	InsertAuditEntry(ctx context.Context, arg store.InsertAuditEntryParams) error
	ListAuditEntries(ctx context.Context, limit, offset int32) ([]store.AuditEntry, error)
}

// Service persists audit entries. A disabled service drops every
// record silently so routes never branch on configuration.
type Service struct {
	Q       querier
	Enabled bool
}

// Record writes one audit row for the handled request. The action is
// derived from the route pattern when the caller does not name one.
func (s Service) Record(ctx context.Context, action, resource string, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Q == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if action == "" {
		action = strings.ToUpper(req.Method) + " " + route
	}
	if resource == "" {
		resource = resourceFromRoute(route)
	}

	arg := store.InsertAuditEntryParams{
		Action:   action,
		Resource: resource,
		Method:   req.Method,
		Path:     req.URL.Path,
		Status:   int32(status),
		Metadata: metadata,
	}
	if arg.Status == 0 {
		arg.Status = http.StatusOK
	}
	if id, ok := common.UserID(req.Context()); ok && id != "" {
		if actor, err := store.UUIDValue(id); err == nil {
			arg.ActorID = actor
		}
	}
	if resourceID != "" {
		arg.ResourceID = &resourceID
	}
	if ip := common.ClientIP(req); ip != "" {
		arg.IP = &ip
	}
	if reqID := req.Header.Get("X-Request-ID"); reqID != "" {
		arg.RequestID = &reqID
	}
	return s.Q.InsertAuditEntry(ctx, arg)
}

// resourceFromRoute turns "/admin/promotions/{id}" into "promotions".
func resourceFromRoute(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for _, seg := range segments {
		if seg == "" || seg == "admin" || seg == "api" || seg == "v1" {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			continue
		}
		return seg
	}
	return "unknown"
}
