package web

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"notioncal/internal/grid"
	"notioncal/internal/model"
	"notioncal/internal/notion"
	"notioncal/internal/syncer"
)

// stateResponse is GET /api/state. The credential itself is never returned.
type stateResponse struct {
	HasCredential     bool                 `json:"has_credential"`
	Sources           []model.Source       `json:"sources"`
	SelectedSourceIDs []string             `json:"selected_source_ids"`
	ViewMode          model.ViewMode       `json:"view_mode"`
	AnchorDate        string               `json:"anchor_date"`
	Today             string               `json:"today"`
	Title             string               `json:"title"`
	Loading           bool                 `json:"loading"`
	Error             string               `json:"error,omitempty"`
	LastRefresh       syncer.RefreshReport `json:"last_refresh"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	st := s.ctrl.State()
	sources := st.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		HasCredential:     st.HasCredential(),
		Sources:           sources,
		SelectedSourceIDs: st.SelectedSourceIDs,
		ViewMode:          st.View.Mode,
		AnchorDate:        model.FormatDate(st.View.Anchor),
		Today:             model.FormatDate(s.ctrl.Today()),
		Title:             grid.Title(st.View.Anchor, st.View.Mode),
		Loading:           s.ctrl.Loading(),
		Error:             s.ctrl.ErrorMessage(),
		LastRefresh:       s.ctrl.LastRefresh(),
	})
}

// settingsRequest is PUT /api/settings. Omitted fields keep their stored
// values; an explicit empty list clears them.
type settingsRequest struct {
	Credential        *string         `json:"credential"`
	Sources           *[]model.Source `json:"sources"`
	SelectedSourceIDs *[]string       `json:"selected_source_ids"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	next := s.ctrl.State()
	if req.Credential != nil {
		next.Credential = *req.Credential
	}
	if req.Sources != nil {
		next.Sources = *req.Sources
	}
	if req.SelectedSourceIDs != nil {
		next.SelectedSourceIDs = *req.SelectedSourceIDs
	}

	if err := s.ctrl.ApplySettings(r.Context(), next); err != nil {
		s.writeControllerError(w, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleDeleteSettings(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.ClearSettings(); err != nil {
		s.writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type propertyDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type databaseDTO struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Properties []propertyDTO `json:"properties"`
}

func toDatabaseDTO(db notion.Database) databaseDTO {
	props := make([]propertyDTO, 0, len(db.Properties))
	for name := range db.Properties {
		p, ok := db.Properties.Lookup(name)
		if !ok {
			continue
		}
		props = append(props, propertyDTO{Name: name, Type: p.Type()})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return databaseDTO{ID: db.ID, Name: db.Name(), Properties: props}
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.ctrl.ListCollections(r.Context())
	if err != nil {
		s.writeControllerError(w, err)
		return
	}
	out := make([]databaseDTO, 0, len(dbs))
	for _, db := range dbs {
		out = append(out, toDatabaseDTO(db))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	db, err := s.ctrl.GetCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatabaseDTO(db))
}

// eventsResponse is GET /api/events.
type eventsResponse struct {
	Events  []model.Event `json:"events"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.ctrl.Events()
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:  events,
		Loading: s.ctrl.Loading(),
		Error:   s.ctrl.ErrorMessage(),
	})
}

type createEventRequest struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	SourceID string `json:"source_id"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if !s.requireCredential(w) {
		return
	}

	id, err := s.ctrl.Create(r.Context(), req.Title, date, req.SourceID)
	if err != nil {
		s.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"remote_id": id})
}

type updateEventRequest struct {
	Title *string `json:"title"`
	Date  *string `json:"date"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var date *time.Time
	if req.Date != nil {
		d, err := model.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = &d
	}
	if !s.requireCredential(w) {
		return
	}

	if err := s.ctrl.Update(r.Context(), chi.URLParam(r, "remoteID"), req.Title, date); err != nil {
		s.writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if !s.requireCredential(w) {
		return
	}
	if err := s.ctrl.Delete(r.Context(), chi.URLParam(r, "remoteID")); err != nil {
		s.writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireCredential answers 409 for writes the controller would silently
// drop.
func (s *Server) requireCredential(w http.ResponseWriter) bool {
	if s.ctrl.State().HasCredential() {
		return true
	}
	writeError(w, http.StatusConflict, syncer.ErrNoCredential.Error())
	return false
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Refresh(r.Context()))
}

type cellDTO struct {
	Date    string        `json:"date"`
	InMonth bool          `json:"in_month"`
	Today   bool          `json:"today"`
	Events  []model.Event `json:"events"`
}

type gridResponse struct {
	ViewMode   model.ViewMode `json:"view_mode"`
	AnchorDate string         `json:"anchor_date"`
	Title      string         `json:"title"`
	Cells      []cellDTO      `json:"cells"`
}

func toGridResponse(anchor time.Time, mode model.ViewMode, cells []grid.Cell) gridResponse {
	out := gridResponse{
		ViewMode:   mode,
		AnchorDate: model.FormatDate(anchor),
		Title:      grid.Title(anchor, mode),
		Cells:      make([]cellDTO, 0, len(cells)),
	}
	for _, c := range cells {
		events := c.Events
		if events == nil {
			events = []model.Event{}
		}
		out.Cells = append(out.Cells, cellDTO{
			Date:    model.FormatDate(c.Date),
			InMonth: c.InMonth,
			Today:   c.Today,
			Events:  events,
		})
	}
	return out
}

// resolveView reads ?view= and ?date=, defaulting to the current view.
func (s *Server) resolveView(r *http.Request) (time.Time, model.ViewMode, bool) {
	view := s.ctrl.View()
	anchor, mode := view.Anchor, view.Mode

	q := r.URL.Query()
	if v := q.Get("view"); v != "" {
		m, ok := model.ParseViewMode(v)
		if !ok {
			return anchor, mode, false
		}
		mode = m
	}
	if v := q.Get("date"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			return anchor, mode, false
		}
		anchor = d
	}
	return anchor, mode, true
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	anchor, mode, ok := s.resolveView(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "view must be month, week or day and date YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, toGridResponse(anchor, mode, s.ctrl.GridFor(anchor, mode)))
}

type viewRequest struct {
	Mode string `json:"mode"`
	// Nav is "prev", "next" or "today".
	Nav string `json:"nav"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var mode model.ViewMode
	if req.Mode != "" {
		m, ok := model.ParseViewMode(req.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, "mode must be month, week or day")
			return
		}
		mode = m
	}
	nav := strings.ToLower(strings.TrimSpace(req.Nav))
	switch nav {
	case "", "prev", "next", "today":
	default:
		writeError(w, http.StatusBadRequest, "nav must be prev, next or today")
		return
	}

	view := s.ctrl.View()
	if mode != "" {
		view = s.ctrl.SetView(mode)
	}
	switch nav {
	case "prev":
		view = s.ctrl.Navigate(-1)
	case "next":
		view = s.ctrl.Navigate(1)
	case "today":
		view = s.ctrl.GoToday()
	}
	writeJSON(w, http.StatusOK, toGridResponse(view.Anchor, view.Mode, s.ctrl.Grid()))
}

// handleSaveState persists the current state, view included. Navigation
// alone never writes to the store.
func (s *Server) handleSaveState(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.SaveState(); err != nil {
		s.log.Error("persist state failed", err)
		writeError(w, http.StatusInternalServerError, "could not save state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDismissError(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ClearError()
	w.WriteHeader(http.StatusNoContent)
}
