// internal/app/features/sharedgroups/routes.go
package sharedgroups

import (
	"net/http"

	"github.com/dalemusser/taskgroups/internal/app/system/auth"
	"github.com/dalemusser/taskgroups/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /groups subrouter. requests throttles join and
// role-upgrade filings per user; nil disables throttling.
func Routes(h *Handler, requests *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	throttle := func(next http.Handler) http.Handler { return next }
	if requests != nil {
		throttle = requests.Middleware(userKey)
	}

	// Everything under /groups requires authentication
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		// DISCOVERY
		pr.Get("/", h.ServeListMine)
		pr.Get("/search", h.ServeSearch)
		pr.Get("/by-name/{name}", h.ServeByName)

		// GROUP
		pr.Post("/", h.HandleCreate)
		pr.Get("/{id}", h.ServeGroup)
		pr.Patch("/{id}", h.HandleUpdateSettings)
		pr.Delete("/{id}", h.HandleDelete)

		// MEMBERSHIP
		pr.With(throttle).Post("/{id}/join", h.HandleJoin)
		pr.Post("/{id}/requests/{requestID}/resolve", h.HandleResolveRequest)
		pr.Post("/{id}/requests/{requestID}/dismiss", h.HandleDismiss)
		pr.Get("/{id}/role-upgrade", h.ServeRoleUpgradeStatus)
		pr.With(throttle).Post("/{id}/role-upgrade", h.HandleRoleUpgrade)
		pr.Post("/{id}/exit", h.HandleExit)
		pr.Post("/{id}/transfer", h.HandleTransfer)
		pr.Put("/{id}/members/{memberID}/role", h.HandleMemberRole)
		pr.Delete("/{id}/members/{memberID}", h.HandleRemoveMember)

		// TASKS
		pr.Post("/{id}/tasks", h.HandleAddTask)
		pr.Put("/{id}/tasks/order", h.HandleReorder)
		pr.Patch("/{id}/tasks/{taskID}", h.HandleEditTask)
		pr.Post("/{id}/tasks/{taskID}/complete", h.HandleCompleteTask)
		pr.Delete("/{id}/tasks/{taskID}", h.HandleDeleteTask)

		// CHANGE LOG
		pr.Get("/{id}/log", h.ServeChangeLog)
		pr.Get("/{id}/audit", h.ServeAudit)
	})

	return r
}

// NotificationRoutes returns the /notifications subrouter.
func NotificationRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.ServeNotifications)
	return r
}

func userKey(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}
