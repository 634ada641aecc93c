package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTitleField = "Name"
	DefaultDateField  = "Date"
	DefaultColor      = "#667eea"
	DefaultName       = "My Calendar"
)

// Source is one configured connection between a Notion database and the
// calendar.
type Source struct {
	// ID is the local identifier events point back to.
	ID string `json:"id"`
	// Name is the display name shown in the UI.
	Name string `json:"name"`
	// CollectionID is the remote database id, stored cleaned (32 lower-case
	// hex characters). Sources with an empty id are skipped on refresh.
	CollectionID string `json:"notion_database_id"`
	// DateField and TitleField name the database properties to read.
	DateField  string `json:"date_property"`
	TitleField string `json:"title_property"`
	// Color is copied onto every event of this source.
	Color string `json:"color"`
}

// NewSource returns a source with a fresh id and default field names.
func NewSource() Source {
	return Source{
		ID:         uuid.NewString(),
		Name:       DefaultName,
		DateField:  DefaultDateField,
		TitleField: DefaultTitleField,
		Color:      DefaultColor,
	}
}

// Event is a calendar-visible item derived from a Notion page. Events are
// rebuilt on every refresh, so ID is not stable across refreshes; RemoteID is.
type Event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SourceID string `json:"database_id"`
	// RemoteID is the Notion page id used for update and delete.
	RemoteID string `json:"notion_page_id,omitempty"`

	// Start and End are calendar dates at UTC midnight. A nil End means the
	// event covers Start only.
	Start time.Time  `json:"start_date"`
	End   *time.Time `json:"end_date,omitempty"`

	AllDay      bool   `json:"all_day"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastDay returns End when present, otherwise Start.
func (e Event) LastDay() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start
}

// ViewMode selects the calendar grid layout.
type ViewMode string

const (
	ViewMonth ViewMode = "month"
	ViewWeek  ViewMode = "week"
	ViewDay   ViewMode = "day"
)

// ParseViewMode accepts month/week/day in any case.
func ParseViewMode(s string) (ViewMode, bool) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewMonth:
		return ViewMonth, true
	case ViewWeek:
		return ViewWeek, true
	case ViewDay:
		return ViewDay, true
	}
	return "", false
}

// ViewState is the date the view is centered on plus its layout.
type ViewState struct {
	Mode   ViewMode  `json:"view_mode"`
	Anchor time.Time `json:"-"`
}

// AppState is everything persisted between runs.
type AppState struct {
	Credential        string    `json:"credential,omitempty"`
	Sources           []Source  `json:"sources"`
	View              ViewState `json:"-"`
	SelectedSourceIDs []string  `json:"selected_source_ids,omitempty"`
}

// DefaultAppState is used when nothing has been persisted yet.
func DefaultAppState(today time.Time) AppState {
	return AppState{
		Sources: []Source{NewSource()},
		View: ViewState{
			Mode:   ViewMonth,
			Anchor: DateOf(today),
		},
	}
}

// HasCredential reports whether remote calls can be made at all.
func (s AppState) HasCredential() bool {
	return s.Credential != ""
}

// FindSource looks up a source by its local id.
func (s AppState) FindSource(id string) (Source, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// Clone returns a copy that shares no slices with s.
func (s AppState) Clone() AppState {
	out := s
	out.Sources = append([]Source(nil), s.Sources...)
	out.SelectedSourceIDs = append([]string(nil), s.SelectedSourceIDs...)
	return out
}
