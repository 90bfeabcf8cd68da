package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants & globals                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "taskgroups-session"

	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
	userName  = "user_name"
	userEmail = "user_email"
)

// SessionName is the cookie name; InitSessionStore may override it.
var SessionName = DefaultSessionName

// Store is initialised once via InitSessionStore.
var Store *sessions.CookieStore

// bearerKey is the HS256 secret for Authorization: Bearer tokens. Empty
// disables bearer authentication.
var bearerKey []byte

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the authenticated identity injected into r.Context(). It
// comes from the session cookie or a bearer token.
type SessionUser struct {
	ID    string
	Name  string
	Email string
}

// ObjectID parses the user id.
func (u *SessionUser) ObjectID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(u.ID)
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// LoadSessionUser injects the user into context if they are logged in,
// first from the session cookie, then from a bearer token.
func LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := sessionUser(r); ok {
			next.ServeHTTP(w, withUser(r, u))
			return
		}
		if u, ok := bearerUser(r); ok {
			next.ServeHTTP(w, withUser(r, u))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionUser(r *http.Request) (*SessionUser, bool) {
	if Store == nil {
		return nil, false
	}
	sess, err := Store.Get(r, SessionName)
	if err != nil {
		return nil, false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil, false
	}
	u := &SessionUser{
		ID:    getString(sess, userIDKey),
		Name:  getString(sess, userName),
		Email: getString(sess, userEmail),
	}
	if !primitive.IsValidObjectID(u.ID) {
		return nil, false
	}
	return u, true
}

// RequireSignedIn ensures there is a user in context (set by
// LoadSessionUser). Otherwise it answers 401 with a JSON error body.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("WWW-Authenticate", `Bearer realm="taskgroups"`)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "unauthorized",
			"message": "sign in required",
		})
	})
}

// InitSessionStore initializes the global session Store using the provided
// session key and domain. The `secure` flag controls whether cookies are
// marked Secure and which SameSite mode is used.
//
// In production (secure=true), cookies should be Secure + SameSite=None
// (for cross-site use with HTTPS).
// In local dev over http://localhost, use secure=false so cookies are accepted.
func InitSessionStore(sessionKey, name, domain string, secure bool, logger *zap.Logger) error {
	if sessionKey == "" {
		return fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name != "" {
		SessionName = name
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}

	// SameSite handling: in prod with Secure cookies, we use None
	// so cookies can be sent in cross-site contexts. In dev, Lax is fine.
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}

	store.Options = opts
	Store = store

	logger.Info("session store initialized",
		zap.String("name", SessionName),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return nil
}

// SaveSessionUser marks the session as authenticated for u. The identity
// provider in front of this service calls it (or sets the same values)
// after sign-in.
func SaveSessionUser(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	if Store == nil {
		return errors.New("session store not initialized")
	}
	sess, err := Store.Get(r, SessionName)
	if err != nil && sess == nil {
		return err
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	return sess.Save(r, w)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Bearer tokens                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// Claims are the bearer token claims. Subject is the user id (hex).
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ConfigureBearer enables bearer tokens signed with secret. An empty secret
// disables them.
func ConfigureBearer(secret string) {
	if secret == "" {
		bearerKey = nil
		return
	}
	bearerKey = []byte(secret)
}

// IssueToken signs a bearer token for u valid for ttl.
func IssueToken(secret string, u SessionUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  u.Name,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerUser(r *http.Request) (*SessionUser, bool) {
	if len(bearerKey) == 0 {
		return nil, false
	}
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return nil, false
	}
	tokenString := strings.TrimSpace(h[7:])

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return bearerKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, false
	}
	if !primitive.IsValidObjectID(claims.Subject) {
		return nil, false
	}
	return &SessionUser{ID: claims.Subject, Name: claims.Name, Email: claims.Email}, true
}

// WithTestUser injects u directly, bypassing cookies and tokens.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
