package web

import (
	"encoding/json"
	"net/http"
	"time"

	"clinicsched/internal/recurrence"
	"clinicsched/internal/timeparse"
)

const maxBodyBytes = 1 << 20

type expandRequest struct {
	Rule          string    `json:"rule"`
	SeedStart     time.Time `json:"seed_start"`
	SeedEnd       time.Time `json:"seed_end"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	MaxIterations int       `json:"max_iterations"`
}

type expandedDTO struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type expandResponse struct {
	Occurrences []expandedDTO `json:"occurrences"`
	Count       int           `json:"count"`
	Supported   bool          `json:"supported"`
	Description string        `json:"description"`
}

// handleExpand runs the recurrence expander on an ad-hoc seed.
//
// POST /api/expand {"rule", "seed_start", "seed_end", "window_start", "window_end", "max_iterations"}
//
// Invalid rules or ranges are not errors: they produce an empty list.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req expandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = s.cfg.MaxIterations
	}

	occs := recurrence.Expand(recurrence.ExpandRequest{
		Rule:          req.Rule,
		SeedStart:     req.SeedStart,
		SeedEnd:       req.SeedEnd,
		WindowStart:   req.WindowStart,
		WindowEnd:     req.WindowEnd,
		MaxIterations: req.MaxIterations,
	})

	dtos := make([]expandedDTO, 0, len(occs))
	for _, o := range occs {
		dtos = append(dtos, expandedDTO{Key: o.Key, Start: o.Start, End: o.End})
	}

	writeJSON(w, http.StatusOK, expandResponse{
		Occurrences: dtos,
		Count:       len(dtos),
		Supported:   recurrence.Supported(req.Rule),
		Description: s.cfg.Describer().DescribeRule(req.Rule, req.SeedStart),
	})
}

type ruleResponse struct {
	Option      recurrence.Option `json:"option"`
	Rule        string            `json:"rule"`
	External    []string          `json:"external"`
	Description string            `json:"description"`
}

// handleRule builds the rule string for a repeat option.
//
// GET /api/rule?option=weekly&seed_start=2024-05-06T08:30:00-03:00
func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opt, err := recurrence.ParseOption(q.Get("option"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Get("seed_start") == "" {
		writeError(w, http.StatusBadRequest, "seed_start is required")
		return
	}
	seed, err := timeparse.ParseInstant(q.Get("seed_start"), s.src.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, _ := recurrence.BuildRule(opt, seed)
	writeJSON(w, http.StatusOK, ruleResponse{
		Option:      opt,
		Rule:        rule,
		External:    recurrence.ExternalRecurrence(rule),
		Description: s.cfg.Describer().DescribeOption(opt, seed),
	})
}

type describeResponse struct {
	Option      recurrence.Option `json:"option"`
	Supported   bool              `json:"supported"`
	Locale      string            `json:"locale"`
	Description string            `json:"description"`
}

// handleDescribe maps a rule back to its repeat option and renders it.
//
// GET /api/describe?rule=FREQ=MONTHLY&seed_start=2024-05-06&locale=pt-BR
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rule := q.Get("rule")

	var seed time.Time
	if v := q.Get("seed_start"); v != "" {
		var err error
		seed, err = timeparse.ParseInstant(v, s.src.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	locale := s.cfg.Describer()
	if tag := q.Get("locale"); tag != "" {
		locale = recurrence.LookupLocale(tag)
	}

	writeJSON(w, http.StatusOK, describeResponse{
		Option:      recurrence.ResolveOption(rule),
		Supported:   recurrence.Supported(rule),
		Locale:      locale.Tag,
		Description: locale.DescribeRule(rule, seed),
	})
}
