package collab

import (
	"context"
	"encoding/base32"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/taskgroups/internal/app/policy/grouppolicy"
	"github.com/dalemusser/taskgroups/internal/app/system/events"
	"github.com/dalemusser/taskgroups/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 2000
	maxAccessKeyLen   = 64
)

// CreateGroupInput holds the fields for CreateGroup.
type CreateGroupInput struct {
	Name        string
	Description string
	IsPublic    bool
	AccessKey   string
}

// CreateGroup makes actor the sole owner of a new group.
func (s *Service) CreateGroup(ctx context.Context, actor Actor, in CreateGroupInput) (*models.GroupAggregate, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(htmlsanitize.PlainText(in.Name))
	if name == "" {
		return nil, invalid("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, invalid("name must be at most %d characters", maxNameLen)
	}
	desc := htmlsanitize.Sanitize(in.Description)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return nil, invalid("description must be at most %d characters", maxDescriptionLen)
	}
	key, err := checkAccessKey(in.IsPublic, in.AccessKey)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	agg := &models.GroupAggregate{
		Group: models.SharedGroup{
			ID:             primitive.NewObjectID(),
			Name:           name,
			Description:    desc,
			OwnerID:        actor.ID,
			OwnerName:      actor.displayName(),
			IsPublic:       in.IsPublic,
			AccessKey:      key,
			CreatedAt:      now,
			LastActivityAt: now,
		},
		Members: []models.GroupMember{{
			UserID:      actor.ID,
			DisplayName: actor.displayName(),
			Role:        models.RoleOwner,
			JoinedAt:    now,
		}},
	}
	agg.Members[0].GroupID = agg.Group.ID
	s.record(agg, actor, models.ActionCreated, fmt.Sprintf("created group %q", name), now)

	if err := s.repo.Create(ctx, agg); err != nil {
		return nil, fromStore(err)
	}

	s.audit.GroupChanged(ctx, agg.Group.ID, actor.ID, models.ActionCreated, map[string]string{"group_name": name})
	s.publish(ctx, events.NewGroupChanged(agg.Group.ID, actor.ID, models.ActionCreated, agg.Group.TotalChanges, now))
	return s.view(agg, actor.ID), nil
}

// checkAccessKey enforces: private groups need a key, public groups have none.
func checkAccessKey(isPublic bool, raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if isPublic {
		if key != "" {
			return "", invalid("public groups cannot have an access key")
		}
		return "", nil
	}
	if key == "" {
		return "", invalid("an access key is required for private groups")
	}
	if len(key) > maxAccessKeyLen {
		return "", invalid("access key must be at most %d characters", maxAccessKeyLen)
	}
	return key, nil
}

// TransferOwnership hands the group to another member. The previous owner
// stays on as a collaborator.
func (s *Service) TransferOwnership(ctx context.Context, actor Actor, groupID, newOwnerID primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpTransferOwnership, func(m *mutation) (change, error) {
		target := m.agg.Member(newOwnerID)
		if target == nil {
			return change{}, notFound("member not found")
		}
		if target.Role == models.RoleOwner {
			return change{}, invalid("you already own this group")
		}

		m.member.Role = models.RoleCollaborator
		target.Role = models.RoleOwner
		m.agg.Group.OwnerID = target.UserID
		m.agg.Group.OwnerName = target.DisplayName
		return change{
			action:  models.ActionTransferredOwnership,
			message: fmt.Sprintf("transferred ownership to %s", target.DisplayName),
		}, nil
	})
}

// ExitGroup removes actor from the group. The owner must transfer first.
func (s *Service) ExitGroup(ctx context.Context, actor Actor, groupID primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpExit, func(m *mutation) (change, error) {
		if m.member.Role == models.RoleOwner {
			return change{}, conflict("the owner must transfer ownership before leaving")
		}
		name := m.member.DisplayName
		m.agg.RemoveMember(m.actor.ID)
		withdrawPending(m.agg, m.actor.ID, m.actor.ID, m.now)
		return change{
			action:  models.ActionLeftGroup,
			message: fmt.Sprintf("%s left the group", name),
		}, nil
	})
}

// DeleteGroup removes the group and everything in it.
func (s *Service) DeleteGroup(ctx context.Context, actor Actor, groupID primitive.ObjectID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return err
	}
	defer unlock()

	agg, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	member := agg.Member(actor.ID)
	if !grouppolicy.Authorize(member, grouppolicy.OpDeleteGroup) {
		return s.deny(ctx, groupID, actor, member, grouppolicy.OpDeleteGroup)
	}
	if err := s.repo.Delete(ctx, groupID); err != nil {
		return fromStore(err)
	}

	now := s.now().UTC()
	s.audit.GroupDeleted(ctx, groupID, actor.ID, agg.Group.Name)
	s.publish(ctx, events.NewGroupChanged(groupID, actor.ID, events.ActionGroupDeleted, agg.Group.TotalChanges, now))
	return nil
}

// UpdateMemberRole sets a non-owner member's role directly.
func (s *Service) UpdateMemberRole(ctx context.Context, actor Actor, groupID, memberID primitive.ObjectID, role models.Role) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpChangeRoles, func(m *mutation) (change, error) {
		if !grouppolicy.AssignableRole(role) {
			return change{}, invalid("role must be collaborator, medium or observer")
		}
		target := m.agg.Member(memberID)
		if target == nil {
			return change{}, notFound("member not found")
		}
		if target.Role == models.RoleOwner {
			return change{}, conflict("the owner's role can only change through an ownership transfer")
		}
		if target.Role == role {
			return change{}, invalid("member already has role %s", role)
		}
		old := target.Role
		target.Role = role
		return change{
			action:  models.ActionUpdatedMemberRole,
			message: fmt.Sprintf("changed %s from %s to %s", target.DisplayName, old, role),
		}, nil
	})
}

// RemoveMember drops a non-owner member.
func (s *Service) RemoveMember(ctx context.Context, actor Actor, groupID, memberID primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpManageMembers, func(m *mutation) (change, error) {
		target := m.agg.Member(memberID)
		if target == nil {
			return change{}, notFound("member not found")
		}
		if target.Role == models.RoleOwner {
			return change{}, conflict("the owner cannot be removed")
		}
		name := target.DisplayName
		m.agg.RemoveMember(memberID)
		withdrawPending(m.agg, memberID, m.actor.ID, m.now)
		return change{
			action:  models.ActionRemovedMember,
			message: fmt.Sprintf("removed %s", name),
		}, nil
	})
}

// SettingsInput is a partial update of group settings. Nil fields are left
// unchanged.
type SettingsInput struct {
	Description     *string
	IsPublic        *bool
	AccessKey       *string
	RotateAccessKey bool
}

func (in SettingsInput) empty() bool {
	return in.Description == nil && in.IsPublic == nil && in.AccessKey == nil && !in.RotateAccessKey
}

// UpdateSettings changes description, visibility or access key while
// keeping the rule that exactly the private groups carry a key.
func (s *Service) UpdateSettings(ctx context.Context, actor Actor, groupID primitive.ObjectID, in SettingsInput) (*models.GroupAggregate, error) {
	if in.empty() {
		return nil, invalid("nothing to update")
	}
	if in.AccessKey != nil && in.RotateAccessKey {
		return nil, invalid("give an access key or ask for a new one, not both")
	}
	return s.mutate(ctx, actor, groupID, grouppolicy.OpUpdateSettings, func(m *mutation) (change, error) {
		g := &m.agg.Group
		var changed []string

		if in.Description != nil {
			desc := htmlsanitize.Sanitize(*in.Description)
			if utf8.RuneCountInString(desc) > maxDescriptionLen {
				return change{}, invalid("description must be at most %d characters", maxDescriptionLen)
			}
			g.Description = desc
			changed = append(changed, "description")
		}

		isPublic := g.IsPublic
		if in.IsPublic != nil {
			isPublic = *in.IsPublic
		}

		key := g.AccessKey
		switch {
		case isPublic:
			if (in.AccessKey != nil && strings.TrimSpace(*in.AccessKey) != "") || in.RotateAccessKey {
				return change{}, invalid("public groups cannot have an access key")
			}
			key = ""
		case in.RotateAccessKey:
			k, err := generateAccessKey()
			if err != nil {
				return change{}, err
			}
			key = k
		case in.AccessKey != nil:
			k, err := checkAccessKey(false, *in.AccessKey)
			if err != nil {
				return change{}, err
			}
			key = k
		case key == "":
			return change{}, invalid("an access key is required to make the group private")
		}

		if isPublic != g.IsPublic {
			changed = append(changed, "visibility")
		}
		if key != g.AccessKey {
			changed = append(changed, "access key")
		}
		g.IsPublic = isPublic
		g.AccessKey = key

		if len(changed) == 0 {
			return change{noop: true}, nil
		}
		return change{
			action:  models.ActionUpdatedSettings,
			message: "updated " + strings.Join(changed, ", "),
		}, nil
	})
}

// generateAccessKey returns 8 characters of base32 from 5 random bytes.
func generateAccessKey() (string, error) {
	b := securecookie.GenerateRandomKey(5)
	if b == nil {
		return "", internal("could not generate access key", nil)
	}
	return base32.StdEncoding.EncodeToString(b), nil
}
