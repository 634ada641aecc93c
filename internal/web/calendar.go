package web

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"

	"notioncal/internal/grid"
	"notioncal/internal/model"
)

var weekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var calendarTmpl = template.Must(template.New("calendar").Funcs(template.FuncMap{
	"day": func(t time.Time) int { return t.Day() },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; padding: 16px; background: #fff; }
h1 { font-size: 28px; margin: 0 0 12px; }
.banner { background: #fde2e2; color: #b00020; padding: 8px 12px; margin-bottom: 12px; }
.grid { display: grid; grid-template-columns: repeat({{.Columns}}, 1fr); gap: 2px; }
.head { font-weight: bold; text-align: center; padding: 4px; }
.cell { border: 1px solid #ddd; min-height: 110px; padding: 4px; }
.cell.out { color: #aaa; background: #fafafa; }
.cell.today { border: 2px solid #333; }
.num { font-size: 14px; font-weight: bold; }
.ev { font-size: 13px; color: #fff; border-radius: 3px; padding: 1px 4px; margin-top: 2px; overflow: hidden; white-space: nowrap; }
.empty { color: #888; padding: 24px; text-align: center; }
</style>
</head>
<body>
<div id="calendar" data-view="{{.Mode}}" data-ready="true">
<h1>{{.Title}}</h1>
{{if .Error}}<div class="banner">{{.Error}}</div>{{end}}
{{if .DayView}}
  {{range .Cells}}
  <div class="cell{{if .Today}} today{{end}}">
    {{range .Events}}<div class="ev" style="background: {{.Color}}">{{.Title}}</div>{{end}}
    {{if .Empty}}<div class="empty">No events</div>{{end}}
  </div>
  {{end}}
{{else}}
<div class="grid">
  {{range .Weekdays}}<div class="head">{{.}}</div>{{end}}
  {{range .Cells}}
  <div class="cell{{if not .InMonth}} out{{end}}{{if .Today}} today{{end}}">
    <div class="num">{{day .Date}}</div>
    {{range .Events}}<div class="ev" style="background: {{.Color}}">{{.Title}}</div>{{end}}
  </div>
  {{end}}
</div>
{{end}}
</div>
</body>
</html>
`))

type calendarPage struct {
	Title    string
	Mode     model.ViewMode
	Error    string
	DayView  bool
	Columns  int
	Weekdays []string
	Cells    []grid.Cell
}

// handleCalendarPage renders the grid as static HTML. The data-ready marker
// tells the headless capture that the page is complete.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	anchor, mode, ok := s.resolveView(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "view must be month, week or day and date YYYY-MM-DD")
		return
	}

	page := calendarPage{
		Title:    grid.Title(anchor, mode),
		Mode:     mode,
		Error:    s.ctrl.ErrorMessage(),
		DayView:  mode == model.ViewDay,
		Columns:  7,
		Weekdays: weekdayNames,
		Cells:    s.ctrl.GridFor(anchor, mode),
	}

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		s.log.Error("render calendar page failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render calendar")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// BuildICS serializes events as all-day VEVENTs. DTEND is exclusive, so it
// is one day past the last covered date.
func BuildICS(events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId("-//notioncal//EN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Notion Calendar")

	for _, ev := range events {
		uid := ev.RemoteID
		if uid == "" {
			uid = ev.ID
		}
		vev := cal.AddEvent(uid + "@notioncal")
		vev.SetSummary(ev.Title)
		vev.SetDtStampTime(stamp)
		vev.SetAllDayStartAt(ev.Start)
		vev.SetAllDayEndAt(ev.LastDay().AddDate(0, 0, 1))
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
	}
	return cal.Serialize()
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	body := BuildICS(s.ctrl.Events(), time.Now().UTC())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	_, _ = w.Write([]byte(body))
}
