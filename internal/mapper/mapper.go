package mapper

import (
	"time"

	"github.com/google/uuid"

	"notioncal/internal/model"
	"notioncal/internal/notion"
)

// UntitledPlaceholder replaces a missing or empty title.
const UntitledPlaceholder = "Untitled"

// Mapper projects Notion pages into calendar events. The zero value is
// ready to use; NewID and Now exist so tests can pin the generated fields.
type Mapper struct {
	NewID func() string
	Now   func() time.Time
}

// Default is the Mapper used by Map and MapAll.
var Default = Mapper{}

// Map projects one page using Default.
func Map(page notion.Page, src model.Source) (model.Event, bool) {
	return Default.Map(page, src)
}

// MapAll projects every page of a source using Default.
func MapAll(pages []notion.Page, src model.Source) []model.Event {
	return Default.MapAll(pages, src)
}

// Map projects page into an event of src.
//
// The boolean is false when the page has no usable start date: the date
// property, its date object or its start value is missing or unparsable.
// Such pages are filtered, not reported. A missing title never rejects a
// page; it becomes UntitledPlaceholder.
func (m Mapper) Map(page notion.Page, src model.Source) (model.Event, bool) {
	dateProp, ok := page.Properties.Lookup(src.DateField)
	if !ok {
		return model.Event{}, false
	}
	rng, ok := dateProp.Date()
	if !ok {
		return model.Event{}, false
	}
	start, ok := ParseDate(rng.Start)
	if !ok {
		return model.Event{}, false
	}

	var end *time.Time
	if rng.End != nil {
		// An end before start would break the containment test downstream.
		if e, ok := ParseDate(*rng.End); ok && !e.Before(start) {
			end = &e
		}
	}

	now := m.now()
	return model.Event{
		ID:        m.newID(),
		Title:     titleOf(page.Properties, src.TitleField),
		SourceID:  src.ID,
		RemoteID:  page.ID,
		Start:     start,
		End:       end,
		AllDay:    true,
		Color:     src.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}, true
}

// MapAll maps pages in order, dropping the ones Map filters out.
func (m Mapper) MapAll(pages []notion.Page, src model.Source) []model.Event {
	events := make([]model.Event, 0, len(pages))
	for _, p := range pages {
		if ev, ok := m.Map(p, src); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ParseDate accepts both encodings Notion uses for date properties: a
// 10-character date ("2024-03-05") or a full RFC 3339 timestamp, of which
// only the calendar date in the timestamp's own offset is kept.
func ParseDate(v string) (time.Time, bool) {
	if len(v) == len(model.DateLayout) {
		t, err := model.ParseDate(v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return model.DateOf(t), true
}

func titleOf(props notion.Properties, field string) string {
	p, ok := props.Lookup(field)
	if !ok {
		return UntitledPlaceholder
	}
	text, ok := p.Text()
	if !ok || text == "" {
		return UntitledPlaceholder
	}
	return text
}

func (m Mapper) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m Mapper) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}
