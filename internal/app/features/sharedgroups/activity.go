// internal/app/features/sharedgroups/activity.go
package sharedgroups

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/app/store/audit"
	"github.com/dalemusser/taskgroups/internal/app/system/paging"
	"github.com/dalemusser/taskgroups/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeChangeLog handles GET /groups/{id}/log?limit=&offset=.
func (h *Handler) ServeChangeLog(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	win, err := paging.ParseWindow(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Svc.ViewLog(ctx, a, gid, win.Limit, win.Offset)
	if err != nil {
		h.fail(w, r, "view change log", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type auditResponse struct {
	Events []audit.Event `json:"events"`
}

// ServeAudit handles GET /groups/{id}/audit?category=&limit=&offset=. Owner only.
func (h *Handler) ServeAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	win, err := paging.ParseWindow(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Svc.ViewAudit(ctx, a, gid, query.Get(r, "category"), win.Limit, win.Offset)
	if err != nil {
		h.fail(w, r, "view audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Events: events})
}

type notificationsResponse struct {
	Notifications []collab.Notification `json:"notifications"`
}

// ServeNotifications handles GET /notifications.
func (h *Handler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "list notifications")
	defer cancel()

	items, err := h.Svc.ListUserNotifications(ctx, a)
	if err != nil {
		h.fail(w, r, "list notifications", err)
		return
	}
	if items == nil {
		items = []collab.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: items})
}
