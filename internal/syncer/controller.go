package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"notioncal/internal/grid"
	appLog "notioncal/internal/log"
	"notioncal/internal/mapper"
	"notioncal/internal/model"
	"notioncal/internal/notion"
)

var (
	ErrUnknownSource = errors.New("unknown source")
	ErrEmptyTitle    = errors.New("event title is required")
	ErrNoCredential  = errors.New("no Notion credential configured")
)

// Remote is the subset of the Notion API the controller drives.
type Remote interface {
	ListDatabases(ctx context.Context) ([]notion.Database, error)
	GetDatabase(ctx context.Context, id string) (notion.Database, error)
	QueryDatabase(ctx context.Context, id string) (notion.QueryResult, error)
	CreatePage(ctx context.Context, p notion.NewPage) (notion.Page, error)
	UpdatePage(ctx context.Context, id string, patch notion.PagePatch) (notion.Page, error)
	ArchivePage(ctx context.Context, id string) error
}

// RemoteFactory builds a Remote for a credential.
type RemoteFactory func(credential string) Remote

// Store persists AppState between runs.
type Store interface {
	Load() (*model.AppState, error)
	Save(*model.AppState) error
	Clear() error
}

// Options configures a Controller.
type Options struct {
	Remote RemoteFactory
	Store  Store
	Mapper mapper.Mapper
	// Location decides what "today" is. Defaults to time.Local.
	Location *time.Location
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// SourceFailure records a source whose fetch failed during a refresh.
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// RefreshReport summarizes the last applied refresh.
type RefreshReport struct {
	Seq        uint64          `json:"seq"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Events     int             `json:"events"`
	Failed     []SourceFailure `json:"failed,omitempty"`
	// Truncated lists sources that had more rows than one query page.
	Truncated []string `json:"truncated,omitempty"`
	// Skipped is set when no credential is configured.
	Skipped bool `json:"skipped,omitempty"`
	// Stale is set when a newer refresh was applied first and this
	// result was dropped.
	Stale bool `json:"stale,omitempty"`
	// Cancelled is set when the caller's context ended mid-refresh; the
	// partial result was dropped and the previous event set kept.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Controller owns the in-memory event set and every interaction with Notion.
//
// The event set is only ever replaced as a whole by Refresh. Writes never
// patch it; they re-read the remote truth instead. The mutex is held while
// reading or swapping state, never across network calls.
type Controller struct {
	remote RemoteFactory
	store  Store
	mapper mapper.Mapper
	loc    *time.Location
	now    func() time.Time
	log    *appLog.Logger

	mu       sync.RWMutex
	state    model.AppState
	events   []model.Event
	inflight int
	errMsg   string
	report   RefreshReport
	issued   uint64
	applied  uint64
}

// New creates a controller with the default AppState. Call Load to pick up
// persisted state.
func New(opts Options) *Controller {
	c := &Controller{
		remote: opts.Remote,
		store:  opts.Store,
		mapper: opts.Mapper,
		loc:    opts.Location,
		now:    opts.Now,
		log:    appLog.Named("syncer"),
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.state = model.DefaultAppState(c.Today())
	return c
}

// Today is the current calendar date in the controller's location.
func (c *Controller) Today() time.Time {
	return model.DateOf(c.now().In(c.loc))
}

// Location is the zone that decides today's date.
func (c *Controller) Location() *time.Location {
	return c.loc
}

// Load replaces the in-memory AppState with the persisted one, if any.
// seedCredential is used when the stored state has none.
func (c *Controller) Load(seedCredential string) error {
	var st model.AppState
	loaded, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if loaded != nil {
		st = *loaded
	} else {
		st = model.DefaultAppState(c.Today())
	}
	if st.View.Anchor.IsZero() {
		st.View.Anchor = c.Today()
	}
	if st.View.Mode == "" {
		st.View.Mode = model.ViewMonth
	}
	if st.Credential == "" && seedCredential != "" {
		st.Credential = seedCredential
	}

	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	c.log.Info("state loaded", "persisted", loaded != nil, "sources", len(st.Sources), "credential", st.HasCredential())
	return nil
}

// State returns a copy of the current AppState.
func (c *Controller) State() model.AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Events returns a copy of the current event set.
func (c *Controller) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Event(nil), c.events...)
}

// Loading reports whether a refresh is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// ErrorMessage is the user-visible error banner, or "".
func (c *Controller) ErrorMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// ClearError dismisses the banner.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
}

// LastRefresh returns the report of the most recently applied refresh.
func (c *Controller) LastRefresh() RefreshReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Refresh re-reads every configured source and replaces the event set.
//
// Sources are queried one after another. A failing source is logged and
// contributes no events; it does not abort the refresh and does not raise
// the banner. Without a credential Refresh does nothing.
func (c *Controller) Refresh(ctx context.Context) RefreshReport {
	c.mu.Lock()
	st := c.state.Clone()
	if !st.HasCredential() {
		c.mu.Unlock()
		return RefreshReport{Skipped: true}
	}
	c.issued++
	seq := c.issued
	c.inflight++
	c.errMsg = ""
	c.mu.Unlock()

	report := RefreshReport{Seq: seq, StartedAt: c.now()}
	remote := c.remote(st.Credential)

	all := make([]model.Event, 0)
	for _, src := range st.Sources {
		if src.CollectionID == "" {
			continue
		}

		res, err := remote.QueryDatabase(ctx, src.CollectionID)
		if err != nil {
			c.log.Error("source fetch failed", err, "source", src.Name, "source_id", src.ID, "database", src.CollectionID)
			report.Failed = append(report.Failed, SourceFailure{SourceID: src.ID, Name: src.Name, Error: err.Error()})
			continue
		}
		if res.HasMore {
			c.log.Info("source has more rows than one page; remainder not loaded",
				"source", src.Name, "page_size", notion.PageSize)
			report.Truncated = append(report.Truncated, src.ID)
		}

		events := c.mapper.MapAll(res.Results, src)
		c.log.Debug("source fetched", "source", src.Name, "rows", len(res.Results), "events", len(events))
		all = append(all, events...)
	}

	report.Events = len(all)
	report.FinishedAt = c.now()

	c.mu.Lock()
	c.inflight--
	switch {
	case ctx.Err() != nil:
		report.Cancelled = true
	case seq > c.applied:
		c.applied = seq
		c.events = all
		c.report = report
	default:
		report.Stale = true
	}
	c.mu.Unlock()

	switch {
	case report.Cancelled:
		c.log.Info("refresh cancelled; keeping previous events", "seq", seq, "err", ctx.Err())
	case report.Stale:
		c.log.Debug("dropping stale refresh result", "seq", seq)
	default:
		c.log.Info("refresh completed", "seq", seq, "events", len(all), "failed_sources", len(report.Failed))
	}
	return report
}

// Create adds a row to the source's database and then refreshes. It
// returns the new page id. Each call creates a new row, so callers must not
// resubmit while a call is pending.
func (c *Controller) Create(ctx context.Context, title string, date time.Time, sourceID string) (string, error) {
	st := c.State()
	if !st.HasCredential() {
		return "", nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	src, ok := st.FindSource(sourceID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	if src.CollectionID == "" {
		return "", fmt.Errorf("%w: %s has no database", ErrUnknownSource, src.Name)
	}

	page, err := c.remote(st.Credential).CreatePage(ctx, notion.NewPage{
		DatabaseID: src.CollectionID,
		TitleField: src.TitleField,
		Title:      title,
		DateField:  src.DateField,
		Date:       model.FormatDate(date),
	})
	if err != nil {
		c.fail("save failed", err)
		return "", err
	}

	c.log.Info("created event", "page_id", page.ID, "source", src.Name, "date", model.FormatDate(date))
	c.Refresh(ctx)
	return page.ID, nil
}

// Update sends the supplied fields of an existing page and then refreshes.
// The property names come from the source the page was loaded from.
func (c *Controller) Update(ctx context.Context, remoteID string, title *string, date *time.Time) error {
	st := c.State()
	if !st.HasCredential() {
		return nil
	}
	if title != nil && strings.TrimSpace(*title) == "" {
		return ErrEmptyTitle
	}

	src := c.sourceOf(st, remoteID)
	patch := notion.PagePatch{TitleField: src.TitleField, DateField: src.DateField}
	if title != nil {
		t := strings.TrimSpace(*title)
		patch.Title = &t
	}
	if date != nil {
		d := model.FormatDate(*date)
		patch.Date = &d
	}
	if patch.Empty() {
		return nil
	}

	if _, err := c.remote(st.Credential).UpdatePage(ctx, remoteID, patch); err != nil {
		c.fail("save failed", err)
		return err
	}

	c.log.Info("updated event", "page_id", remoteID)
	c.Refresh(ctx)
	return nil
}

// Delete archives a page and then refreshes.
func (c *Controller) Delete(ctx context.Context, remoteID string) error {
	st := c.State()
	if !st.HasCredential() {
		return nil
	}

	if err := c.remote(st.Credential).ArchivePage(ctx, remoteID); err != nil {
		c.fail("delete failed", err)
		return err
	}

	c.log.Info("archived event", "page_id", remoteID)
	c.Refresh(ctx)
	return nil
}

// sourceOf finds the source an event with remoteID was loaded from. Unknown
// pages fall back to the default property names.
func (c *Controller) sourceOf(st model.AppState, remoteID string) model.Source {
	c.mu.RLock()
	var sourceID string
	for _, ev := range c.events {
		if ev.RemoteID == remoteID {
			sourceID = ev.SourceID
			break
		}
	}
	c.mu.RUnlock()

	if src, ok := st.FindSource(sourceID); ok {
		return src
	}
	return model.Source{TitleField: model.DefaultTitleField, DateField: model.DefaultDateField}
}

// fail sets the banner, replacing any previous message.
func (c *Controller) fail(prefix string, err error) {
	c.log.Error(prefix, err)
	c.mu.Lock()
	c.errMsg = prefix + ": " + err.Error()
	c.mu.Unlock()
}

// ListCollections lists the databases the credential can see.
func (c *Controller) ListCollections(ctx context.Context) ([]notion.Database, error) {
	st := c.State()
	if !st.HasCredential() {
		return nil, nil
	}
	return c.remote(st.Credential).ListDatabases(ctx)
}

// GetCollection fetches one database and its property schema.
func (c *Controller) GetCollection(ctx context.Context, id string) (notion.Database, error) {
	st := c.State()
	if !st.HasCredential() {
		return notion.Database{}, ErrNoCredential
	}
	id = model.CleanCollectionID(id)
	if !model.ValidCollectionID(id) {
		return notion.Database{}, model.ErrInvalidCollectionID
	}
	return c.remote(st.Credential).GetDatabase(ctx, id)
}

// Grid renders the current view.
func (c *Controller) Grid() []grid.Cell {
	c.mu.RLock()
	view := c.state.View
	events := c.events
	c.mu.RUnlock()
	return grid.Generate(view.Anchor, view.Mode, events, c.Today())
}

// GridFor renders an arbitrary view over the current event set.
func (c *Controller) GridFor(anchor time.Time, mode model.ViewMode) []grid.Cell {
	return grid.Generate(anchor, mode, c.Events(), c.Today())
}
