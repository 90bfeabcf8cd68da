// internal/app/features/sharedgroups/groups.go
package sharedgroups

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/app/system/timeouts"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
)

type groupsResponse struct {
	Groups []models.SharedGroup `json:"groups"`
}

func listResponse(groups []models.SharedGroup) groupsResponse {
	if groups == nil {
		groups = []models.SharedGroup{}
	}
	return groupsResponse{Groups: groups}
}

// ServeListMine handles GET /groups.
func (h *Handler) ServeListMine(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.Svc.ListMine(ctx, a)
	if err != nil {
		h.fail(w, r, "list groups", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(groups))
}

// ServeSearch handles GET /groups/search?q=.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.Svc.SearchPublic(ctx, a, query.Search(r, "q"))
	if err != nil {
		h.fail(w, r, "search groups", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(groups))
}

// ServeByName handles GET /groups/by-name/{name}.
func (h *Handler) ServeByName(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		badRequest(w, "invalid name")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	agg, err := h.Svc.GetByName(ctx, a, name)
	if err != nil {
		h.fail(w, r, "get group by name", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ServeGroup handles GET /groups/{id}.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	agg, err := h.Svc.GetByID(ctx, a, gid)
	if err != nil {
		h.fail(w, r, "get group", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
	AccessKey   string `json:"access_key"`
}

// HandleCreate handles POST /groups.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.CreateGroup(ctx, a, collab.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		AccessKey:   req.AccessKey,
	})
	if err != nil {
		h.fail(w, r, "create group", err)
		return
	}
	w.Header().Set("Location", "/groups/"+agg.Group.ID.Hex())
	writeJSON(w, http.StatusCreated, agg)
}

type settingsRequest struct {
	Description     *string `json:"description"`
	IsPublic        *bool   `json:"is_public"`
	AccessKey       *string `json:"access_key"`
	RotateAccessKey bool    `json:"rotate_access_key"`
}

// HandleUpdateSettings handles PATCH /groups/{id}.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req settingsRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.UpdateSettings(ctx, a, gid, collab.SettingsInput{
		Description:     req.Description,
		IsPublic:        req.IsPublic,
		AccessKey:       req.AccessKey,
		RotateAccessKey: req.RotateAccessKey,
	})
	if err != nil {
		h.fail(w, r, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleDelete handles DELETE /groups/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete group")
	defer cancel()

	if err := h.Svc.DeleteGroup(ctx, a, gid); err != nil {
		h.fail(w, r, "delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
