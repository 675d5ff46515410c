package db

import (
	"errors"

	"github.com/goccy/go-json"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidAuthMode = errors.New("invalid auth mode")
)

// AuthMode switches between one shared admin dashboard and per-user accounts.
type AuthMode string

const (
	AuthModeSingle AuthMode = "single"
	AuthModeMulti  AuthMode = "multi"
)

func (m AuthMode) Valid() bool {
	return m == AuthModeSingle || m == AuthModeMulti
}

const AdminUsername = "admin"

// UserRecord is one user's dashboard document. Fields the server does not
// interpret (backgrounds, music settings, widget layout) ride along in Extra
// so that a save never drops data written by a newer frontend.
type UserRecord struct {
	Groups    []Group                    `json:"groups"`
	Widgets   []json.RawMessage          `json:"widgets"`
	AppConfig json.RawMessage            `json:"appConfig"`
	Password  string                     `json:"password"`
	Extra     map[string]json.RawMessage `json:"-"`
}

type Group struct {
	ID         json.RawMessage            `json:"id,omitempty"`
	Title      string                     `json:"title"`
	Items      []Bookmark                 `json:"items"`
	CardSize   *float64                   `json:"cardSize,omitempty"`
	CardLayout *string                    `json:"cardLayout,omitempty"`
	GridGap    *float64                   `json:"gridGap,omitempty"`
	Extra      map[string]json.RawMessage `json:"-"`
}

type Bookmark struct {
	ID    json.RawMessage            `json:"id,omitempty"`
	Title string                     `json:"title"`
	URL   string                     `json:"url"`
	Icon  string                     `json:"icon"`
	Extra map[string]json.RawMessage `json:"-"`
}

var (
	userRecordKeys = []string{"groups", "widgets", "appConfig", "password"}
	groupKeys      = []string{"id", "title", "items", "cardSize", "cardLayout", "gridGap"}
	bookmarkKeys   = []string{"id", "title", "url", "icon"}
)

type userRecordFields UserRecord

func (r UserRecord) MarshalJSON() ([]byte, error) {
	known := userRecordFields(r)
	if known.Groups == nil {
		known.Groups = []Group{}
	}
	if known.Widgets == nil {
		known.Widgets = []json.RawMessage{}
	}
	if len(known.AppConfig) == 0 {
		known.AppConfig = json.RawMessage(`{}`)
	}
	return encodeWithExtra(known, r.Extra)
}

func (r *UserRecord) UnmarshalJSON(data []byte) error {
	var known userRecordFields
	extra, err := decodeWithExtra(data, &known, userRecordKeys)
	if err != nil {
		return err
	}
	*r = UserRecord(known)
	r.Extra = extra
	return nil
}

type groupFields Group

func (g Group) MarshalJSON() ([]byte, error) {
	known := groupFields(g)
	if known.Items == nil {
		known.Items = []Bookmark{}
	}
	return encodeWithExtra(known, g.Extra)
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var known groupFields
	extra, err := decodeWithExtra(data, &known, groupKeys)
	if err != nil {
		return err
	}
	*g = Group(known)
	g.Extra = extra
	return nil
}

type bookmarkFields Bookmark

func (b Bookmark) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(bookmarkFields(b), b.Extra)
}

func (b *Bookmark) UnmarshalJSON(data []byte) error {
	var known bookmarkFields
	extra, err := decodeWithExtra(data, &known, bookmarkKeys)
	if err != nil {
		return err
	}
	*b = Bookmark(known)
	b.Extra = extra
	return nil
}

// Clone returns a deep copy by round-tripping through JSON.
func (r *UserRecord) Clone() (*UserRecord, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out UserRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Public renders the record for a client: password removed, username added.
func (r *UserRecord) Public(username string) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	delete(out, "password")
	name, err := json.Marshal(username)
	if err != nil {
		return nil, err
	}
	out["username"] = name
	return out, nil
}

// Template strips everything that must not be shared with new users.
func (r *UserRecord) Template() (*UserRecord, error) {
	out, err := r.Clone()
	if err != nil {
		return nil, err
	}
	out.Password = ""
	delete(out.Extra, "username")
	return out, nil
}

func encodeWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func decodeWithExtra(data []byte, known any, knownKeys []string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range knownKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// FallbackTemplate is used when no default template file exists.
func FallbackTemplate() *UserRecord {
	return &UserRecord{
		Groups: []Group{{
			ID:    json.RawMessage(`"default"`),
			Title: "常用",
			Items: []Bookmark{},
		}},
		Widgets:   []json.RawMessage{},
		AppConfig: json.RawMessage(`{}`),
		Password:  "admin",
	}
}

// SystemConfig is the process-wide settings document.
type SystemConfig struct {
	AuthMode AuthMode `json:"authMode"`
}
