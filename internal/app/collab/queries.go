package collab

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// redactGroups strips access keys from groups viewerID does not own.
func redactGroups(groups []models.SharedGroup, viewerID primitive.ObjectID) []models.SharedGroup {
	out := make([]models.SharedGroup, len(groups))
	for i, g := range groups {
		if g.OwnerID != viewerID {
			g.AccessKey = ""
		}
		out[i] = g
	}
	return out
}

// ListMine returns the groups actor belongs to.
func (s *Service) ListMine(ctx context.Context, actor Actor) ([]models.SharedGroup, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	groups, err := s.repo.ListByMember(ctx, actor.ID)
	if err != nil {
		return nil, fromStore(err)
	}
	return redactGroups(groups, actor.ID), nil
}

// SearchPublic finds public groups whose name or description contains
// query, case-insensitively. An empty query lists public groups.
func (s *Service) SearchPublic(ctx context.Context, actor Actor, query string) ([]models.SharedGroup, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	groups, err := s.repo.SearchPublic(ctx, strings.TrimSpace(query), s.searchLimit)
	if err != nil {
		return nil, fromStore(err)
	}
	return redactGroups(groups, actor.ID), nil
}

// GetByName looks a group up by name, ignoring case and diacritics.
func (s *Service) GetByName(ctx context.Context, actor Actor, name string) (*models.GroupAggregate, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	g, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fromStore(err)
	}
	return s.GetByID(ctx, actor, g.ID)
}

// GetByID returns the group as actor may see it.
func (s *Service) GetByID(ctx context.Context, actor Actor, groupID primitive.ObjectID) (*models.GroupAggregate, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	agg, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.view(agg, actor.ID), nil
}

// Notification kinds.
const (
	// NotificationIncoming is a pending request on a group the caller owns.
	NotificationIncoming = "incoming"
	// NotificationOutgoing is one of the caller's own requests.
	NotificationOutgoing = "outgoing"
)

// Notification is one entry in a user's request inbox.
type Notification struct {
	Type      string             `json:"type"`
	GroupID   primitive.ObjectID `json:"group_id"`
	GroupName string             `json:"group_name"`
	Request   models.JoinRequest `json:"request"`
	CreatedAt time.Time          `json:"created_at"`
}

// ListUserNotifications returns pending requests on groups actor owns and
// actor's own requests that were not dismissed, newest first.
func (s *Service) ListUserNotifications(ctx context.Context, actor Actor) ([]Notification, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var (
		owned    []models.SharedGroup
		incoming []models.JoinRequest
		mine     []models.JoinRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = s.repo.ListOwnedBy(gctx, actor.ID)
		if err != nil || len(owned) == 0 {
			return err
		}
		ids := make([]primitive.ObjectID, len(owned))
		for i, grp := range owned {
			ids[i] = grp.ID
		}
		incoming, err = s.repo.ListPendingRequests(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		mine, err = s.repo.ListRequestsByUser(gctx, actor.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fromStore(err)
	}

	names := make(map[primitive.ObjectID]string, len(owned))
	for _, grp := range owned {
		names[grp.ID] = grp.Name
	}
	var missing []primitive.ObjectID
	for _, r := range mine {
		if _, ok := names[r.GroupID]; !ok {
			names[r.GroupID] = ""
			missing = append(missing, r.GroupID)
		}
	}
	if len(missing) > 0 {
		others, err := s.repo.ListByIDs(ctx, missing)
		if err != nil {
			return nil, fromStore(err)
		}
		for _, grp := range others {
			names[grp.ID] = grp.Name
		}
	}

	out := make([]Notification, 0, len(incoming)+len(mine))
	for _, r := range incoming {
		if r.UserID == actor.ID {
			continue
		}
		out = append(out, Notification{Type: NotificationIncoming, GroupID: r.GroupID, GroupName: names[r.GroupID], Request: r, CreatedAt: r.CreatedAt})
	}
	for _, r := range mine {
		if r.Dismissed {
			continue
		}
		out = append(out, Notification{Type: NotificationOutgoing, GroupID: r.GroupID, GroupName: names[r.GroupID], Request: r, CreatedAt: r.CreatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
