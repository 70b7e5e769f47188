package web

import (
	"net/http"
	"strconv"
	"time"

	appLog "clinicsched/internal/log"
	"clinicsched/internal/model"
	"clinicsched/internal/recurrence"
)

const eventsCacheTTL = 30 * time.Second

type eventsResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	FallbackUIDs    []string        `json:"fallback_uids,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
	WeekStart       string          `json:"week_start"`
	Locale          string          `json:"locale"`
}

type eventsCache struct {
	resp      eventsResponse
	updatedAt time.Time
}

// occurrenceDTO is one expanded instance. Repeat describes the seed's rule
// in the requested locale and is empty for single appointments.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Rule        string    `json:"rule,omitempty"`
	Repeat      string    `json:"repeat,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func newOccurrenceDTO(occ model.Occurrence, l recurrence.Locale) occurrenceDTO {
	dto := occurrenceDTO{
		SourceID:    occ.SourceID,
		UID:         occ.UID,
		InstanceKey: occ.InstanceKey,
		Summary:     occ.Summary,
		Description: occ.Description,
		Location:    occ.Location,
		AllDay:      occ.AllDay,
		Rule:        occ.Rule,
		Start:       occ.Start,
		End:         occ.End,
	}
	if occ.Rule != "" {
		dto.Repeat = l.DescribeRule(occ.Rule, occ.RuleAnchor())
	}
	return dto
}

// handleEvents returns expanded occurrences of every source.
//
// GET /api/events?days=7&backfill=1&locale=pt-BR
//   - days:     number of days ahead (default 7)
//   - backfill: number of past days to include (default 1)
//   - locale:   language of the repeat descriptions (default from config)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := max(parseIntDefault(q.Get("backfill"), 1), 0)
	locale := s.cfg.Describer()
	if tag := q.Get("locale"); tag != "" {
		locale = recurrence.LookupLocale(tag)
	}

	cacheKey := strconv.Itoa(days) + "/" + strconv.Itoa(backfill) + "/" + locale.Tag
	cacheNow := s.now()

	s.eventsMu.RLock()
	ec := s.eventsCache[cacheKey]
	s.eventsMu.RUnlock()
	if ec != nil && cacheNow.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	loc := s.src.Location()
	now := cacheNow.In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	appLog.Debug("api events request",
		"days", days,
		"backfill", backfill,
		"locale", locale.Tag,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
	)

	res, err := s.src.Expand(r.Context(), rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("api events: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		dtos = append(dtos, newOccurrenceDTO(occ, locale))
	}
	resp := eventsResponse{
		Occurrences:     dtos,
		TruncatedUIDs:   res.TruncatedEvents,
		FallbackUIDs:    res.FallbackEvents,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
		WeekStart:       s.cfg.WeekStart,
		Locale:          locale.Tag,
	}

	s.eventsMu.Lock()
	s.eventsCache[cacheKey] = &eventsCache{resp: resp, updatedAt: s.now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}
