// internal/app/features/sharedgroups/membership.go
package sharedgroups

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/app/system/timeouts"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type joinRequest struct {
	Role      models.Role `json:"role"`
	AccessKey string      `json:"access_key"`
	Message   string      `json:"message"`
}

// HandleJoin handles POST /groups/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.RequestJoin(ctx, a, gid, collab.JoinInput{
		Role:      req.Role,
		AccessKey: req.AccessKey,
		Message:   req.Message,
	})
	if err != nil {
		h.fail(w, r, "join group", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type resolveRequest struct {
	Approve *bool `json:"approve"`
}

// HandleResolveRequest handles POST /groups/{id}/requests/{requestID}/resolve.
func (h *Handler) HandleResolveRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rid, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Approve == nil {
		badRequest(w, "approve is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.ResolveJoinRequest(ctx, a, gid, rid, *req.Approve)
	if err != nil {
		h.fail(w, r, "resolve request", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleDismiss handles POST /groups/{id}/requests/{requestID}/dismiss.
func (h *Handler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rid, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.DismissNotification(ctx, a, gid, rid)
	if err != nil {
		h.fail(w, r, "dismiss notification", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type roleUpgradeRequest struct {
	Role    models.Role `json:"role"`
	Message string      `json:"message"`
}

// HandleRoleUpgrade handles POST /groups/{id}/role-upgrade.
//
// While the caller's previous request is pending and younger than the
// cooldown the answer is 409 with days_left. Once the cooldown has passed a
// new filing auto-rejects the pending request and points its superseded_by at
// the new one; the owner never sees both.
func (h *Handler) HandleRoleUpgrade(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req roleUpgradeRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.RequestRoleUpgrade(ctx, a, gid, req.Role, req.Message)
	if err != nil {
		h.fail(w, r, "request role upgrade", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ServeRoleUpgradeStatus handles GET /groups/{id}/role-upgrade.
func (h *Handler) ServeRoleUpgradeStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.Svc.GetRoleUpgradeStatus(ctx, a, gid)
	if err != nil {
		h.fail(w, r, "role upgrade status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleExit handles POST /groups/{id}/exit.
func (h *Handler) HandleExit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.ExitGroup(ctx, a, gid)
	if err != nil {
		h.fail(w, r, "exit group", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type transferRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}

// HandleTransfer handles POST /groups/{id}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	newOwner, err := primitive.ObjectIDFromHex(req.NewOwnerID)
	if err != nil {
		badRequest(w, "invalid new_owner_id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.TransferOwnership(ctx, a, gid, newOwner)
	if err != nil {
		h.fail(w, r, "transfer ownership", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type memberRoleRequest struct {
	Role models.Role `json:"role"`
}

// HandleMemberRole handles PUT /groups/{id}/members/{memberID}/role.
func (h *Handler) HandleMemberRole(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	mid, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	var req memberRoleRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.UpdateMemberRole(ctx, a, gid, mid, req.Role)
	if err != nil {
		h.fail(w, r, "update member role", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleRemoveMember handles DELETE /groups/{id}/members/{memberID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	mid, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.RemoveMember(ctx, a, gid, mid)
	if err != nil {
		h.fail(w, r, "remove member", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
