package accounts

import (
	"strings"

	"flatnas/apperrors"
	"flatnas/db"
)

// Identity is who a request acts as, resolved once per request from the
// Authorization header and the active auth mode.
type Identity struct {
	Username       string
	Authenticated  bool
	TokenPresented bool
	Mode           db.AuthMode
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. A bare token is accepted as well.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	return header
}

// ResolveIdentity never fails: a missing or invalid token yields an
// anonymous identity and each endpoint decides what that means.
func (s *Service) ResolveIdentity(authorization string) Identity {
	id := Identity{Mode: s.mode.AuthMode()}

	token := BearerToken(authorization)
	if token == "" {
		return id
	}
	id.TokenPresented = true

	username, err := s.tokens.Verify(token)
	if err != nil {
		return id
	}
	id.Username = username
	id.Authenticated = true
	return id
}

// Viewer is the user whose dashboard an anonymous or signed-in visitor sees.
func (id Identity) Viewer() string {
	if id.Authenticated {
		return id.Username
	}
	return db.AdminUsername
}

// RequireUser demands a valid token.
func (id Identity) RequireUser() (string, *apperrors.AppError) {
	if id.Authenticated {
		return id.Username, nil
	}
	if id.TokenPresented {
		return "", apperrors.NewInvalidToken()
	}
	return "", apperrors.NewUnauthorized("")
}

// RequireAdmin demands a valid token for the admin account.
func (id Identity) RequireAdmin(message string) (string, *apperrors.AppError) {
	username, appErr := id.RequireUser()
	if appErr != nil {
		return "", appErr
	}
	if username != db.AdminUsername {
		return "", apperrors.NewAuthorizationError(username, "admin", message)
	}
	return username, nil
}

// BookmarkTarget picks the dashboard that receives quick-added bookmarks:
// in multi mode the token is mandatory, in single mode it falls back to admin.
func (id Identity) BookmarkTarget() (string, *apperrors.AppError) {
	if id.Mode == db.AuthModeMulti {
		return id.RequireUser()
	}
	return id.Viewer(), nil
}
