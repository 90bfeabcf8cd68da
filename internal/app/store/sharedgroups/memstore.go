// internal/app/store/sharedgroups/memstore.go
package sharedgroupstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dalemusser/taskgroups/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps aggregates in process. It has the same contract as
// Store (sentinel errors, version compare-and-swap, deep copies in and out)
// and backs tests and the "memory" store backend.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[primitive.ObjectID]*models.GroupAggregate
	names  map[string]primitive.ObjectID
	logs   map[primitive.ObjectID][]models.ChangeLogEntry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		groups: make(map[primitive.ObjectID]*models.GroupAggregate),
		names:  make(map[string]primitive.ObjectID),
		logs:   make(map[primitive.ObjectID][]models.ChangeLogEntry),
	}
}

func (m *MemoryStore) Create(ctx context.Context, agg *models.GroupAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nameCI := text.Fold(agg.Group.Name)
	if _, taken := m.names[nameCI]; taken {
		return ErrDuplicateName
	}
	agg.Group.NameCI = nameCI
	agg.Group.Version = 1
	m.store(agg)
	m.names[nameCI] = agg.Group.ID
	agg.Changes = nil
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id primitive.ObjectID) (*models.GroupAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg, ok := m.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return agg.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, agg *models.GroupAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.groups[agg.Group.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Group.Version != agg.Group.Version {
		return ErrVersionConflict
	}
	nameCI := text.Fold(agg.Group.Name)
	if owner, taken := m.names[nameCI]; taken && owner != agg.Group.ID {
		return ErrDuplicateName
	}
	delete(m.names, cur.Group.NameCI)

	agg.Group.NameCI = nameCI
	agg.Group.Version++
	m.store(agg)
	m.names[nameCI] = agg.Group.ID
	agg.Changes = nil
	return nil
}

// store saves a copy of agg and appends its pending change-log entries.
// Callers hold the write lock.
func (m *MemoryStore) store(agg *models.GroupAggregate) {
	for _, e := range agg.Changes {
		e.GroupID = agg.Group.ID
		m.logs[agg.Group.ID] = append(m.logs[agg.Group.ID], e)
	}
	c := agg.Clone()
	c.Changes = nil
	m.groups[agg.Group.ID] = c
}

func (m *MemoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.groups[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.names, agg.Group.NameCI)
	delete(m.groups, id)
	delete(m.logs, id)
	return nil
}

func (m *MemoryStore) FindByName(ctx context.Context, name string) (models.SharedGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[text.Fold(strings.TrimSpace(name))]
	if !ok {
		return models.SharedGroup{}, ErrNotFound
	}
	return m.groups[id].Group, nil
}

func (m *MemoryStore) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.SharedGroup, error) {
	return m.filter(func(a *models.GroupAggregate) bool { return a.Member(userID) != nil }, 0), nil
}

func (m *MemoryStore) ListOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.SharedGroup, error) {
	return m.filter(func(a *models.GroupAggregate) bool { return a.Group.OwnerID == userID }, 0), nil
}

func (m *MemoryStore) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.SharedGroup, error) {
	want := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(a *models.GroupAggregate) bool { return want[a.Group.ID] }, 0), nil
}

func (m *MemoryStore) SearchPublic(ctx context.Context, query string, limit int64) ([]models.SharedGroup, error) {
	q := text.Fold(strings.TrimSpace(query))
	if limit <= 0 {
		limit = 50
	}
	return m.filter(func(a *models.GroupAggregate) bool {
		if !a.Group.IsPublic {
			return false
		}
		return q == "" ||
			strings.Contains(a.Group.NameCI, q) ||
			strings.Contains(text.Fold(a.Group.Description), q)
	}, int(limit)), nil
}

func (m *MemoryStore) ListRequestsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.JoinRequest
	for _, a := range m.groups {
		for _, r := range a.Clone().JoinRequests {
			if r.UserID == userID {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListPendingRequests(ctx context.Context, groupIDs []primitive.ObjectID) ([]models.JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.JoinRequest
	for _, id := range groupIDs {
		a, ok := m.groups[id]
		if !ok {
			continue
		}
		for _, r := range a.Clone().JoinRequests {
			if r.IsPending() {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListChangeLog(ctx context.Context, groupID primitive.ObjectID, limit, offset int64) ([]models.ChangeLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	entries := m.logs[groupID]
	out := make([]models.ChangeLogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	if offset >= int64(len(out)) {
		return nil, nil
	}
	out = out[offset:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountChangeLog(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.logs[groupID])), nil
}

// filter returns matching groups sorted by folded name. limit <= 0 means all.
func (m *MemoryStore) filter(keep func(*models.GroupAggregate) bool, limit int) []models.SharedGroup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SharedGroup
	for _, a := range m.groups {
		if keep(a) {
			out = append(out, a.Group)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameCI != out[j].NameCI {
			return out[i].NameCI < out[j].NameCI
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
