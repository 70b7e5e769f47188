package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	appLog "clinicsched/internal/log"
	"clinicsched/internal/model"
	"clinicsched/internal/recurrence"
	"clinicsched/internal/timeparse"
)

//go:embed templates/agenda.html
var templateFS embed.FS

var agendaTemplate = template.Must(template.ParseFS(templateFS, "templates/agenda.html"))

type agendaItem struct {
	Time     string
	Summary  string
	Location string
	Repeat   string
}

type agendaDay struct {
	Label string
	Items []agendaItem
}

type agendaPage struct {
	Lang      string
	Title     string
	TimeZone  string
	Generated string
	Days      []agendaDay
}

// handleAgenda renders the configured horizon as a printable day list.
// The page is also the capture target for PNG snapshots.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	start, end := s.src.Horizon()
	res, err := s.src.Expand(r.Context(), start, end)
	if err != nil {
		appLog.Error("agenda: expand failed", err)
		http.Error(w, "failed to build agenda", http.StatusInternalServerError)
		return
	}

	page := buildAgenda(res.Occurrences, start, end, s.cfg.Describer(), s.now().In(s.src.Location()))

	var buf bytes.Buffer
	if err := agendaTemplate.Execute(&buf, page); err != nil {
		appLog.Error("agenda: render failed", err)
		http.Error(w, "failed to render agenda", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// buildAgenda buckets occurrences into one entry per calendar day of
// [start, end). Occurrences spanning midnight are listed on their first
// visible day.
func buildAgenda(occs []model.Occurrence, start, end time.Time, l recurrence.Locale, now time.Time) agendaPage {
	loc := start.Location()
	page := agendaPage{
		Lang:      l.Tag,
		Title:     "Agenda",
		TimeZone:  loc.String(),
		Generated: now.Format("2006-01-02 15:04"),
	}

	index := make(map[string]int)
	for day := timeparse.StartOfDay(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		index[day.Format(time.DateOnly)] = len(page.Days)
		page.Days = append(page.Days, agendaDay{Label: dayLabel(day, l)})
	}

	for _, o := range occs {
		first := o.Start.In(loc)
		if first.Before(start) {
			first = start
		}
		i, ok := index[first.Format(time.DateOnly)]
		if !ok {
			continue
		}
		item := agendaItem{
			Summary:  o.Summary,
			Location: o.Location,
		}
		if o.AllDay {
			item.Time = "—"
		} else {
			item.Time = o.Start.In(loc).Format("15:04") + "–" + o.End.In(loc).Format("15:04")
		}
		if o.Rule != "" {
			item.Repeat = l.DescribeRule(o.Rule, o.RuleAnchor())
		}
		page.Days[i].Items = append(page.Days[i].Items, item)
	}
	return page
}

func dayLabel(day time.Time, l recurrence.Locale) string {
	return fmt.Sprintf("%s, %d %s", l.Weekdays[day.Weekday()], day.Day(), l.Months[day.Month()-1])
}
