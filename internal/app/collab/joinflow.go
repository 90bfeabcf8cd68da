package collab

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/taskgroups/internal/app/policy/grouppolicy"
	"github.com/dalemusser/taskgroups/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxMessageLen = 500

// JoinInput holds the fields for RequestJoin.
type JoinInput struct {
	Role      models.Role
	AccessKey string
	Message   string
}

// RequestJoin lets a non-member join. Observers join immediately; medium and
// collaborator applicants file a pending request for the owner.
func (s *Service) RequestJoin(ctx context.Context, actor Actor, groupID primitive.ObjectID, in JoinInput) (*models.GroupAggregate, error) {
	role := in.Role
	if role == "" {
		role = models.RoleObserver
	}
	if !grouppolicy.ValidJoinRole(role) {
		return nil, invalid("role must be observer, medium or collaborator")
	}
	msg, err := cleanMessage(in.Message)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, groupID, "", func(m *mutation) (change, error) {
		if m.member != nil {
			return change{}, conflict("you are already a member of this group")
		}
		g := m.agg.Group
		if !g.IsPublic && subtle.ConstantTimeCompare([]byte(in.AccessKey), []byte(g.AccessKey)) != 1 {
			return change{}, forbidden("invalid access key")
		}
		name := m.actor.displayName()

		if role == models.RoleObserver {
			m.agg.Members = append(m.agg.Members, models.GroupMember{
				GroupID:     g.ID,
				UserID:      m.actor.ID,
				DisplayName: name,
				Role:        models.RoleObserver,
				JoinedAt:    m.now,
			})
			return change{
				action:  models.ActionJoined,
				message: fmt.Sprintf("%s joined as observer", name),
			}, nil
		}

		if m.agg.PendingRequestFor(m.actor.ID) != nil {
			return change{}, conflict("you already have a pending request for this group")
		}
		m.agg.JoinRequests = append(m.agg.JoinRequests, models.JoinRequest{
			ID:            primitive.NewObjectID(),
			GroupID:       g.ID,
			Kind:          models.KindJoin,
			UserID:        m.actor.ID,
			DisplayName:   name,
			RequestedRole: role,
			Message:       msg,
			Status:        models.StatusPending,
			CreatedAt:     m.now,
		})
		return change{
			action:  models.ActionRequestedJoin,
			message: fmt.Sprintf("%s asked to join as %s", name, role),
		}, nil
	})
}

// ResolveJoinRequest approves or rejects a pending request of either kind.
func (s *Service) ResolveJoinRequest(ctx context.Context, actor Actor, groupID, requestID primitive.ObjectID, approve bool) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpResolveRequests, func(m *mutation) (change, error) {
		req := m.agg.JoinRequest(requestID)
		if req == nil {
			return change{}, notFound("request not found")
		}
		if !req.IsPending() {
			return change{}, conflict("request has already been resolved")
		}

		resolvedBy := m.actor.ID
		resolvedAt := m.now
		if !approve {
			req.Status = models.StatusRejected
			req.ResolvedAt = &resolvedAt
			req.ResolvedBy = &resolvedBy
			return change{
				action:  models.ActionRejectedRoleUpgrade,
				message: fmt.Sprintf("rejected %s as %s", req.DisplayName, req.RequestedRole),
			}, nil
		}

		existing := m.agg.Member(req.UserID)
		switch {
		case existing != nil && existing.Role == models.RoleOwner:
			return change{}, conflict("the owner's role cannot change through a request")
		case existing != nil:
			existing.Role = req.RequestedRole
		case req.Kind == models.KindRoleChange:
			return change{}, conflict("%s is no longer a member of this group", req.DisplayName)
		default:
			m.agg.Members = append(m.agg.Members, models.GroupMember{
				GroupID:     m.agg.Group.ID,
				UserID:      req.UserID,
				DisplayName: req.DisplayName,
				Role:        req.RequestedRole,
				JoinedAt:    m.now,
			})
		}
		req.Status = models.StatusApproved
		req.ResolvedAt = &resolvedAt
		req.ResolvedBy = &resolvedBy
		return change{
			action:  models.ActionApprovedRoleUpgrade,
			message: fmt.Sprintf("approved %s as %s", req.DisplayName, req.RequestedRole),
		}, nil
	})
}

// RequestRoleUpgrade files a role-change request for an existing member. A
// pending request blocks new ones until the cooldown has passed. After that
// the new request supersedes the stale one: the old request is rejected with
// SupersededBy set to the new id, so at most one request stays pending.
func (s *Service) RequestRoleUpgrade(ctx context.Context, actor Actor, groupID primitive.ObjectID, role models.Role, message string) (*models.GroupAggregate, error) {
	msg, err := cleanMessage(message)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, groupID, "", func(m *mutation) (change, error) {
		if m.member == nil {
			return change{}, forbidden("only members can request a role change")
		}
		if m.member.Role == models.RoleOwner {
			return change{}, conflict("the owner cannot request a role change")
		}
		if !grouppolicy.ValidUpgradeTarget(role) {
			return change{}, invalid("requested role must be medium or collaborator")
		}
		if m.member.Role == role {
			return change{}, invalid("you already have role %s", role)
		}

		newID := primitive.NewObjectID()
		if pending := m.agg.PendingRequestFor(m.actor.ID); pending != nil {
			elapsed := m.now.Sub(pending.CreatedAt)
			if elapsed < s.cooldown {
				return change{}, cooldownConflict(s.cooldown - elapsed)
			}
			resolvedAt := m.now
			pending.Status = models.StatusRejected
			pending.ResolvedAt = &resolvedAt
			pending.SupersededBy = &newID
		}

		name := m.actor.displayName()
		m.agg.JoinRequests = append(m.agg.JoinRequests, models.JoinRequest{
			ID:            newID,
			GroupID:       m.agg.Group.ID,
			Kind:          models.KindRoleChange,
			UserID:        m.actor.ID,
			DisplayName:   name,
			RequestedRole: role,
			Message:       msg,
			Status:        models.StatusPending,
			CreatedAt:     m.now,
		})
		return change{
			action:  models.ActionRequestedRoleUpgrade,
			message: fmt.Sprintf("%s asked to become %s", name, role),
		}, nil
	})
}

// RoleUpgradeStatus describes the caller's standing for a role change.
type RoleUpgradeStatus struct {
	GroupID     primitive.ObjectID  `json:"group_id"`
	CurrentRole models.Role         `json:"current_role,omitempty"`
	Request     *models.JoinRequest `json:"request,omitempty"`
	CanRequest  bool                `json:"can_request"`
	// DaysLeft and NextEligibleAt are set while a pending request blocks a
	// new one.
	DaysLeft       int        `json:"days_left,omitempty"`
	NextEligibleAt *time.Time `json:"next_eligible_at,omitempty"`
}

// GetRoleUpgradeStatus reports the caller's latest request and whether a
// new one may be filed now.
func (s *Service) GetRoleUpgradeStatus(ctx context.Context, actor Actor, groupID primitive.ObjectID) (RoleUpgradeStatus, error) {
	if err := actor.validate(); err != nil {
		return RoleUpgradeStatus{}, err
	}
	agg, err := s.load(ctx, groupID)
	if err != nil {
		return RoleUpgradeStatus{}, err
	}

	st := RoleUpgradeStatus{GroupID: groupID}
	member := agg.Member(actor.ID)
	if member != nil {
		st.CurrentRole = member.Role
	}
	if latest := agg.LatestRequestFor(actor.ID); latest != nil {
		r := *latest
		st.Request = &r
	}
	st.CanRequest = member != nil && member.Role != models.RoleOwner

	if pending := agg.PendingRequestFor(actor.ID); pending != nil {
		next := pending.CreatedAt.Add(s.cooldown)
		if remaining := next.Sub(s.now().UTC()); remaining > 0 {
			st.CanRequest = false
			st.DaysLeft = daysLeft(remaining)
			st.NextEligibleAt = &next
		}
	}
	return st, nil
}

// DismissNotification hides one of the caller's own resolved or pending
// requests from their notifications. It does not change the request status
// and is not a change-log event.
func (s *Service) DismissNotification(ctx context.Context, actor Actor, groupID, requestID primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, "", func(m *mutation) (change, error) {
		req := m.agg.JoinRequest(requestID)
		if req == nil || req.UserID != m.actor.ID {
			return change{}, notFound("notification not found")
		}
		if req.Dismissed {
			return change{noop: true}, nil
		}
		at := m.now
		req.Dismissed = true
		req.DismissedAt = &at
		return change{}, nil
	})
}

// withdrawPending rejects userID's pending request, if any, when the user
// leaves the group. A departed user can apply again and a stale role change
// can no longer be approved.
func withdrawPending(agg *models.GroupAggregate, userID, by primitive.ObjectID, at time.Time) {
	req := agg.PendingRequestFor(userID)
	if req == nil {
		return
	}
	req.Status = models.StatusRejected
	req.ResolvedAt = &at
	req.ResolvedBy = &by
}

func cleanMessage(raw string) (string, error) {
	msg := htmlsanitize.PlainText(raw)
	if utf8.RuneCountInString(msg) > maxMessageLen {
		return "", invalid("message must be at most %d characters", maxMessageLen)
	}
	return msg, nil
}
