package dashboard

import (
	"errors"
	"time"

	"flatnas/apperrors"
	"flatnas/db"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
	"flatnas/utils"

	"github.com/goccy/go-json"
)

// Inbox group titles, in the order they are looked up.
const (
	InboxTitle        = "收集箱"
	InboxTitleEnglish = "Inbox"
)

// EventDataUpdated tells connected clients to refetch a user's dashboard.
const EventDataUpdated = "data-updated"

// Notifier fans an event out to every connected real-time client.
type Notifier interface {
	Broadcast(event string, data any)
}

// PasswordHasher hashes a new password for storage.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Service struct {
	users    *db.UserStore
	hasher   PasswordHasher
	notifier Notifier
	now      func() time.Time
}

func NewService(users *db.UserStore, hasher PasswordHasher, notifier Notifier) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		now:      time.Now,
	}
}

// loadErr maps repository errors to API errors. A missing admin record is
// a server fault because startup always creates it.
func loadErr(username string, err error) error {
	if errors.Is(err, db.ErrUserNotFound) {
		if username == db.AdminUsername {
			return apperrors.NewInternalError("Admin data missing").WithOperation("load_user")
		}
		return apperrors.NewUserNotFound()
	}
	return apperrors.NewInternalError("Failed to read data").WithOperation("load_user").WithInternal(err)
}

// Data returns the client view of username's dashboard.
func (s *Service) Data(username string) (map[string]json.RawMessage, error) {
	rec, err := s.users.Load(username)
	if err != nil {
		return nil, loadErr(username, err)
	}
	out, err := rec.Public(username)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to read data").WithInternal(err)
	}
	return out, nil
}

// Ping checks that username's dashboard can be loaded.
func (s *Service) Ping(username string) error {
	if _, err := s.users.Load(username); err != nil {
		return loadErr(username, err)
	}
	return nil
}

// Save replaces the whole dashboard. A password that differs from the stored
// value is hashed; an empty one keeps the stored value.
func (s *Service) Save(username string, incoming *db.UserRecord) error {
	err := s.replace(username, incoming)
	if err != nil {
		return err
	}
	metrics.RecordDashboardSave("save")
	return nil
}

// Import replaces the whole dashboard from a backup. The stored password is
// kept unless the backup carries a new one.
func (s *Service) Import(username string, incoming *db.UserRecord) error {
	err := s.replace(username, incoming)
	if err != nil {
		return err
	}
	metrics.RecordDashboardSave("import")
	return nil
}

func (s *Service) replace(username string, incoming *db.UserRecord) error {
	current := ""
	if rec, err := s.users.Load(username); err == nil {
		current = rec.Password
	} else if !errors.Is(err, db.ErrUserNotFound) {
		return loadErr(username, err)
	}

	next, err := incoming.Clone()
	if err != nil {
		return apperrors.NewBadRequest("Invalid data").WithInternal(err)
	}
	delete(next.Extra, "username")

	switch {
	case next.Password == "" || next.Password == current:
		next.Password = current
	default:
		hash, err := s.hasher.HashPassword(next.Password)
		if err != nil {
			return apperrors.NewInternalError("Failed to save").WithInternal(err)
		}
		next.Password = hash
		logger.WithUser(username).Info("dashboard password changed")
	}

	if err := s.users.Save(username, next); err != nil {
		return apperrors.NewSaveFailed(username, err)
	}
	return nil
}

// Reset restores the default template while keeping the user's password.
func (s *Service) Reset(username string) error {
	rec, err := s.users.Load(username)
	if err != nil {
		return loadErr(username, err)
	}

	fresh := s.users.DefaultTemplate()
	fresh.Password = rec.Password
	if err := s.users.Save(username, fresh); err != nil {
		return apperrors.NewSaveFailed(username, err).WithOperation("reset")
	}

	metrics.RecordDashboardSave("reset")
	logger.WithUser(username).Info("dashboard reset to default template")
	return nil
}

// SaveDefaultTemplate snapshots the admin dashboard as the template for new
// users.
func (s *Service) SaveDefaultTemplate() error {
	rec, err := s.users.Load(db.AdminUsername)
	if err != nil {
		return loadErr(db.AdminUsername, err)
	}
	if err := s.users.SaveDefaultTemplate(rec); err != nil {
		return apperrors.NewInternalError("Failed to save default template").
			WithOperation("save_default_template").
			WithInternal(err)
	}
	logger.Info("default template updated from admin dashboard")
	return nil
}

// NewBookmark is a quick-add request from the browser extension.
type NewBookmark struct {
	Title         string `json:"title" validate:"required"`
	URL           string `json:"url" validate:"required"`
	Icon          string `json:"icon"`
	CategoryTitle string `json:"categoryTitle"`
}

// AddBookmark appends a bookmark to username's dashboard and notifies every
// connected client. The target group is, in order: the group titled
// CategoryTitle, the inbox group, the first group when no category was asked
// for, or a newly created inbox group.
func (s *Service) AddBookmark(username string, req NewBookmark) error {
	if req.Title == "" || req.URL == "" {
		return apperrors.NewBadRequest("Missing title or url")
	}

	now := s.now()
	err := s.users.Update(username, func(rec *db.UserRecord) error {
		idx := targetGroup(rec.Groups, req.CategoryTitle)
		if idx < 0 {
			rec.Groups = append(rec.Groups, newInboxGroup(now))
			idx = len(rec.Groups) - 1
		}

		id, err := json.Marshal(utils.NewBookmarkID(now))
		if err != nil {
			return err
		}
		rec.Groups[idx].Items = append(rec.Groups[idx].Items, db.Bookmark{
			ID:    id,
			Title: req.Title,
			URL:   req.URL,
			Icon:  req.Icon,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return apperrors.NewUserNotFound()
		}
		return apperrors.NewSaveFailed(username, err).WithOperation("add_bookmark")
	}

	metrics.RecordDashboardSave("bookmark")
	s.notifier.Broadcast(EventDataUpdated, map[string]string{"username": username})
	return nil
}

// targetGroup returns the index of the group a bookmark goes into, or -1
// when a new inbox group must be created.
func targetGroup(groups []db.Group, categoryTitle string) int {
	if categoryTitle != "" {
		for i, g := range groups {
			if g.Title == categoryTitle {
				return i
			}
		}
	}
	for i, g := range groups {
		if g.Title == InboxTitle || g.Title == InboxTitleEnglish {
			return i
		}
	}
	if categoryTitle == "" && len(groups) > 0 {
		return 0
	}
	return -1
}

func newInboxGroup(now time.Time) db.Group {
	id, _ := json.Marshal(utils.NewGroupID(now))
	cardSize := 120.0
	layout := "vertical"
	gap := 24.0
	return db.Group{
		ID:         id,
		Title:      InboxTitle,
		Items:      []db.Bookmark{},
		CardSize:   &cardSize,
		CardLayout: &layout,
		GridGap:    &gap,
	}
}
