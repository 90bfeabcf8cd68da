// internal/app/features/sharedgroups/handler.go
package sharedgroups

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/app/system/auth"
	"github.com/dalemusser/taskgroups/internal/app/system/limits"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler is the JSON front end of the collaboration engine. Every route
// resolves the signed-in user into a collab.Actor and hands the call to
// the service; the service owns all authorization.
type Handler struct {
	Svc *collab.Service
	Log *zap.Logger
}

func NewHandler(svc *collab.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Svc: svc,
		Log: logger,
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	DaysLeft int    `json:"days_left,omitempty"`
}

var statusByKind = map[collab.Kind]int{
	collab.KindNotFound:   http.StatusNotFound,
	collab.KindForbidden:  http.StatusForbidden,
	collab.KindConflict:   http.StatusConflict,
	collab.KindValidation: http.StatusUnprocessableEntity,
	collab.KindInternal:   http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// fail writes err using the engine's error taxonomy. Internal errors are
// logged and their detail is not sent to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := collab.KindOf(err)
	body := errorBody{Error: string(kind), Message: err.Error(), DaysLeft: collab.DaysLeftOf(err)}

	var ce *collab.Error
	if errors.As(err, &ce) && ce.Message != "" {
		body.Message = ce.Message
	}
	if kind == collab.KindInternal {
		h.Log.Error(op+" failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, statusByKind[kind], body)
}

// badRequest reports malformed input (body, ids, query values) as a
// validation error.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(collab.KindValidation), Message: msg})
}

// actor returns the signed-in user as an engine actor. RequireSignedIn runs
// first, so a miss here is an unparseable id.
func actor(w http.ResponseWriter, r *http.Request) (collab.Actor, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "sign in required"})
		return collab.Actor{}, false
	}
	id, err := u.ObjectID()
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "invalid user id"})
		return collab.Actor{}, false
	}
	return collab.Actor{ID: id, Name: u.Name}, true
}

// pathID parses the chi URL parameter key as an ObjectID.
func pathID(w http.ResponseWriter, r *http.Request, key string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, key))
	if err != nil {
		badRequest(w, "invalid "+key)
		return primitive.NilObjectID, false
	}
	return oid, true
}

// decode reads a JSON body into v. Unknown fields are rejected so typos in
// optional fields do not silently become no-ops.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, "request body is required")
			return false
		}
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseIDs converts hex strings to ObjectIDs.
func parseIDs(hexes []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		oid, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, errors.New("invalid id " + h)
		}
		out = append(out, oid)
	}
	return out, nil
}
