package sharedgroups_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/app/features/sharedgroups"
	sharedgroupstore "github.com/dalemusser/taskgroups/internal/app/store/sharedgroups"
	"github.com/dalemusser/taskgroups/internal/app/system/ratelimit"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"github.com/dalemusser/taskgroups/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type groupBody struct {
	Group struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		IsPublic  bool   `json:"is_public"`
		AccessKey string `json:"access_key"`
	} `json:"group"`
	Members []struct {
		UserID string      `json:"user_id"`
		Role   models.Role `json:"role"`
	} `json:"members"`
	Tasks []struct {
		ID    string `json:"id"`
		Text  string `json:"text"`
		Order int    `json:"order"`
	} `json:"tasks"`
	JoinRequests []struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		SupersededBy string `json:"superseded_by"`
	} `json:"join_requests"`
	ActiveTasks []struct {
		Text string `json:"text"`
	} `json:"active_tasks"`
	CompletedTasks []struct {
		Text string `json:"text"`
	} `json:"completed_tasks"`
}

type errBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	DaysLeft int    `json:"days_left"`
}

type env struct {
	router http.Handler
	now    time.Time
}

func newEnv(t *testing.T, limiter *ratelimit.Limiter) *env {
	t.Helper()
	e := &env{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := collab.New(sharedgroupstore.NewMemory(), zap.NewNop(), collab.Options{
		Now: func() time.Time { return e.now },
	})
	h := sharedgroups.NewHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Mount("/groups", sharedgroups.Routes(h, limiter))
	r.Mount("/notifications", sharedgroups.NotificationRoutes(h))
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, target string, body any, user testutil.TestUser) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(method, target, body, user))
	return rec
}

func (e *env) create(t *testing.T, owner testutil.TestUser, body map[string]any) groupBody {
	t.Helper()
	rec := e.do(t, "POST", "/groups", body, owner)
	rec.AssertStatus(t, http.StatusCreated)
	var g groupBody
	rec.DecodeJSON(t, &g)
	return g
}

func wantError(t *testing.T, rec *testutil.ResponseRecorder, status int, kind string) errBody {
	t.Helper()
	rec.AssertStatus(t, status)
	var b errBody
	rec.DecodeJSON(t, &b)
	if b.Error != kind {
		t.Errorf("error kind: got %q, want %q", b.Error, kind)
	}
	return b
}

func TestRequiresSignIn(t *testing.T) {
	e := newEnv(t, nil)
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewRequest("GET", "/groups"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestCreateAndAccessKeyVisibility(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Secret Chores", "access_key": "KEY123"})

	if g.Group.IsPublic || g.Group.AccessKey != "KEY123" {
		t.Fatalf("owner should see the key of a private group: %+v", g.Group)
	}

	other := testutil.NewTestUser("Nina Non")
	rec := e.do(t, "GET", "/groups/"+g.Group.ID, nil, other)
	rec.AssertStatus(t, http.StatusOK)
	var seen groupBody
	rec.DecodeJSON(t, &seen)
	if seen.Group.AccessKey != "" {
		t.Error("non-owner must not see the access key")
	}
	if len(seen.Members) != 0 || len(seen.Tasks) != 0 {
		t.Error("non-member of a private group should see the header only")
	}

	rec = e.do(t, "GET", "/groups/by-name/secret%20chores", nil, other)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &seen)
	if seen.Group.ID != g.Group.ID {
		t.Errorf("by-name lookup returned %q, want %q", seen.Group.ID, g.Group.ID)
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "is_public": true})

	observer := testutil.NewTestUser("Ollie Observer")
	e.do(t, "POST", "/groups/"+g.Group.ID+"/join", map[string]any{}, observer).AssertStatus(t, http.StatusOK)

	t.Run("forbidden", func(t *testing.T) {
		rec := e.do(t, "POST", "/groups/"+g.Group.ID+"/tasks", map[string]any{"text": "Dishes"}, observer)
		wantError(t, rec, http.StatusForbidden, "forbidden")
	})
	t.Run("not found", func(t *testing.T) {
		rec := e.do(t, "GET", "/groups/"+"0123456789abcdef01234567", nil, owner)
		wantError(t, rec, http.StatusNotFound, "not_found")
	})
	t.Run("malformed id", func(t *testing.T) {
		rec := e.do(t, "GET", "/groups/not-an-id", nil, owner)
		wantError(t, rec, http.StatusUnprocessableEntity, "validation")
	})
	t.Run("duplicate name", func(t *testing.T) {
		rec := e.do(t, "POST", "/groups", map[string]any{"name": "CHORES", "is_public": true}, owner)
		wantError(t, rec, http.StatusConflict, "conflict")
	})
	t.Run("bad body", func(t *testing.T) {
		rec := e.do(t, "POST", "/groups", `{"name":`, owner)
		wantError(t, rec, http.StatusUnprocessableEntity, "validation")
	})
	t.Run("unknown field", func(t *testing.T) {
		rec := e.do(t, "POST", "/groups", map[string]any{"name": "Other", "public": true}, owner)
		wantError(t, rec, http.StatusUnprocessableEntity, "validation")
	})
	t.Run("owner cannot exit", func(t *testing.T) {
		rec := e.do(t, "POST", "/groups/"+g.Group.ID+"/exit", nil, owner)
		wantError(t, rec, http.StatusConflict, "conflict")
	})
}

func TestRoleUpgradeCooldown(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "is_public": true})

	member := testutil.NewTestUser("Mo Member")
	e.do(t, "POST", "/groups/"+g.Group.ID+"/join", map[string]any{}, member).AssertStatus(t, http.StatusOK)

	upgrade := map[string]any{"role": "medium", "message": "please"}
	e.do(t, "POST", "/groups/"+g.Group.ID+"/role-upgrade", upgrade, member).AssertStatus(t, http.StatusOK)

	e.now = e.now.Add(2 * 24 * time.Hour)
	rec := e.do(t, "POST", "/groups/"+g.Group.ID+"/role-upgrade", upgrade, member)
	b := wantError(t, rec, http.StatusConflict, "conflict")
	if b.DaysLeft != 5 {
		t.Errorf("days_left: got %d, want 5", b.DaysLeft)
	}

	rec = e.do(t, "GET", "/groups/"+g.Group.ID+"/role-upgrade", nil, member)
	rec.AssertStatus(t, http.StatusOK)
	var status struct {
		CanRequest bool `json:"can_request"`
		DaysLeft   int  `json:"days_left"`
	}
	rec.DecodeJSON(t, &status)
	if status.CanRequest || status.DaysLeft != 5 {
		t.Errorf("unexpected status: %+v", status)
	}

	// After the cooldown a new filing replaces the stale pending one.
	e.now = e.now.Add(5 * 24 * time.Hour)
	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/role-upgrade", upgrade, member)
	rec.AssertStatus(t, http.StatusOK)
	var after groupBody
	rec.DecodeJSON(t, &after)
	if len(after.JoinRequests) != 2 {
		t.Fatalf("want 2 requests, got %+v", after.JoinRequests)
	}
	old, cur := after.JoinRequests[0], after.JoinRequests[1]
	if old.Status != "rejected" || old.SupersededBy != cur.ID {
		t.Errorf("stale request not superseded: %+v", old)
	}
	if cur.Status != "pending" {
		t.Errorf("new request status: %q", cur.Status)
	}
}

func TestJoinApproveAndNotifications(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "is_public": true})

	applicant := testutil.NewTestUser("Cole Collab")
	rec := e.do(t, "POST", "/groups/"+g.Group.ID+"/join", map[string]any{"role": "collaborator", "message": "hi"}, applicant)
	rec.AssertStatus(t, http.StatusOK)
	var joined groupBody
	rec.DecodeJSON(t, &joined)
	if len(joined.JoinRequests) != 1 || joined.JoinRequests[0].Status != "pending" {
		t.Fatalf("expected one pending request, got %+v", joined.JoinRequests)
	}
	reqID := joined.JoinRequests[0].ID

	rec = e.do(t, "GET", "/notifications", nil, owner)
	rec.AssertStatus(t, http.StatusOK)
	var inbox struct {
		Notifications []struct {
			Type      string `json:"type"`
			GroupName string `json:"group_name"`
		} `json:"notifications"`
	}
	rec.DecodeJSON(t, &inbox)
	if len(inbox.Notifications) != 1 || inbox.Notifications[0].Type != "incoming" || inbox.Notifications[0].GroupName != "Chores" {
		t.Fatalf("unexpected owner inbox: %+v", inbox.Notifications)
	}

	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/requests/"+reqID+"/resolve", map[string]any{}, owner)
	wantError(t, rec, http.StatusUnprocessableEntity, "validation")

	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/requests/"+reqID+"/resolve", map[string]any{"approve": true}, owner)
	rec.AssertStatus(t, http.StatusOK)
	var approved groupBody
	rec.DecodeJSON(t, &approved)
	found := false
	for _, m := range approved.Members {
		if m.UserID == applicant.ID && m.Role == models.RoleCollaborator {
			found = true
		}
	}
	if !found {
		t.Errorf("applicant should be a collaborator: %+v", approved.Members)
	}

	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/requests/"+reqID+"/dismiss", nil, applicant)
	rec.AssertStatus(t, http.StatusOK)
	var dismissed groupBody
	rec.DecodeJSON(t, &dismissed)
	if dismissed.Group.ID != g.Group.ID {
		t.Errorf("dismiss should return the group, got %+v", dismissed.Group)
	}
	rec = e.do(t, "GET", "/notifications", nil, applicant)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &inbox)
	if len(inbox.Notifications) != 0 {
		t.Errorf("dismissed request should leave the inbox: %+v", inbox.Notifications)
	}

	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/exit", nil, applicant)
	rec.AssertStatus(t, http.StatusOK)
	var left groupBody
	rec.DecodeJSON(t, &left)
	for _, m := range left.Members {
		if m.UserID == applicant.ID {
			t.Errorf("exit should return the group without the leaver: %+v", left.Members)
		}
	}
}

func TestTaskLifecycleAndLog(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "is_public": true})
	base := "/groups/" + g.Group.ID

	var cur groupBody
	for _, text := range []string{"A", "B", "C"} {
		rec := e.do(t, "POST", base+"/tasks", map[string]any{"text": text}, owner)
		rec.AssertStatus(t, http.StatusCreated)
		rec.DecodeJSON(t, &cur)
	}
	if len(cur.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(cur.Tasks))
	}
	a, b, c := cur.Tasks[0].ID, cur.Tasks[1].ID, cur.Tasks[2].ID

	rec := e.do(t, "PUT", base+"/tasks/order", map[string]any{"task_ids": []string{c, a, b}}, owner)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &cur)
	if got := []string{cur.Tasks[0].Text, cur.Tasks[1].Text, cur.Tasks[2].Text}; got[0] != "C" || got[1] != "A" || got[2] != "B" {
		t.Errorf("order after reorder: %v", got)
	}

	rec = e.do(t, "PUT", base+"/tasks/order", map[string]any{"task_ids": []string{c, "zzz"}}, owner)
	wantError(t, rec, http.StatusUnprocessableEntity, "validation")

	e.do(t, "PATCH", base+"/tasks/"+a, map[string]any{"text": "A2"}, owner).AssertStatus(t, http.StatusOK)
	e.do(t, "POST", base+"/tasks/"+b+"/complete", nil, owner).AssertStatus(t, http.StatusOK)
	rec = e.do(t, "POST", base+"/tasks/"+b+"/complete", nil, owner)
	wantError(t, rec, http.StatusConflict, "conflict")

	rec = e.do(t, "DELETE", base+"/tasks/"+c, nil, owner)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &cur)
	if len(cur.Tasks) != 2 {
		t.Errorf("deleted task should be hidden, got %d tasks", len(cur.Tasks))
	}
	if len(cur.ActiveTasks) != 1 || cur.ActiveTasks[0].Text != "A2" {
		t.Errorf("active tasks: %+v", cur.ActiveTasks)
	}
	if len(cur.CompletedTasks) != 1 || cur.CompletedTasks[0].Text != "B" {
		t.Errorf("completed tasks: %+v", cur.CompletedTasks)
	}

	rec = e.do(t, "GET", base+"/log?limit=2", nil, owner)
	rec.AssertStatus(t, http.StatusOK)
	var page struct {
		Entries []struct {
			Seq    int64  `json:"seq"`
			Action string `json:"action"`
		} `json:"entries"`
		Total int64 `json:"total"`
	}
	rec.DecodeJSON(t, &page)
	// create + 3 adds + reorder + edit + complete + delete
	if page.Total != 8 {
		t.Errorf("total: got %d, want 8", page.Total)
	}
	if len(page.Entries) != 2 || page.Entries[0].Seq != 8 || page.Entries[1].Seq != 7 {
		t.Errorf("expected newest two entries, got %+v", page.Entries)
	}

	rec = e.do(t, "GET", base+"/log?offset=abc", nil, owner)
	wantError(t, rec, http.StatusUnprocessableEntity, "validation")
	rec = e.do(t, "GET", base+"/log?offset=-1", nil, owner)
	wantError(t, rec, http.StatusUnprocessableEntity, "validation")
}

func TestDeleteGroup(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "is_public": true})

	e.do(t, "DELETE", "/groups/"+g.Group.ID, nil, owner).AssertStatus(t, http.StatusNoContent)
	rec := e.do(t, "GET", "/groups/"+g.Group.ID, nil, owner)
	wantError(t, rec, http.StatusNotFound, "not_found")
}

func TestJoinIsThrottled(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	defer limiter.Stop()
	e := newEnv(t, limiter)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "access_key": "KEY123"})

	guest := testutil.NewTestUser("Gus Guest")
	rec := e.do(t, "POST", "/groups/"+g.Group.ID+"/join", map[string]any{"access_key": "WRONG"}, guest)
	wantError(t, rec, http.StatusForbidden, "forbidden")

	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/join", map[string]any{"access_key": "WRONG"}, guest)
	rec.AssertStatus(t, http.StatusTooManyRequests)
}

func TestAuditTrailIsOwnerOnly(t *testing.T) {
	e := newEnv(t, nil)
	owner := testutil.NewTestUser("Uma Owner")
	g := e.create(t, owner, map[string]any{"name": "Chores", "is_public": true})

	rec := e.do(t, "GET", "/groups/"+g.Group.ID+"/audit", nil, owner)
	rec.AssertStatus(t, http.StatusOK)
	var trail struct {
		Events []map[string]any `json:"events"`
	}
	rec.DecodeJSON(t, &trail)
	if trail.Events == nil {
		t.Error("events should be an empty list, not null")
	}

	applicant := testutil.NewTestUser("Cole Collab")
	rec = e.do(t, "POST", "/groups/"+g.Group.ID+"/join", map[string]any{"role": "collaborator"}, applicant)
	rec.AssertStatus(t, http.StatusOK)
	var joined groupBody
	rec.DecodeJSON(t, &joined)
	reqID := joined.JoinRequests[0].ID
	e.do(t, "POST", "/groups/"+g.Group.ID+"/requests/"+reqID+"/resolve", map[string]any{"approve": true}, owner).AssertStatus(t, http.StatusOK)

	rec = e.do(t, "GET", "/groups/"+g.Group.ID+"/audit", nil, applicant)
	wantError(t, rec, http.StatusForbidden, "forbidden")
}
