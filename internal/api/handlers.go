package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fedquery/internal/domain"
	"fedquery/internal/service/history"
)

type answerQuery struct {
	Store     string `json:"store"`
	Query     string `json:"query"`
	RowCount  int    `json:"row_count"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Attempts  int    `json:"attempts"`
}

type answerResponse struct {
	Rows         []domain.Row  `json:"rows"`
	Warnings     []string      `json:"warnings"`
	StrategyUsed string        `json:"strategy_used"`
	Queries      []answerQuery `json:"queries"`
	ElapsedMs    int64         `json:"elapsed_ms"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Format   string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "invalid_request",
			Message: "invalid request body",
		})
		return
	}
	// The API always answers in JSON; format exists for CLI parity.
	if req.Format != "" && req.Format != "json" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "invalid_request",
			Message: fmt.Sprintf("unsupported format %q", req.Format),
		})
		return
	}

	payload, err := h.answers.Answer(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerResponse(payload))
}

func toAnswerResponse(p *domain.AnswerPayload) answerResponse {
	resp := answerResponse{
		Rows:         p.Rows,
		Warnings:     p.Warnings,
		StrategyUsed: string(p.StrategyUsed),
		Queries:      make([]answerQuery, 0, len(p.Queries)),
		ElapsedMs:    p.Elapsed.Milliseconds(),
	}
	if resp.Rows == nil {
		resp.Rows = []domain.Row{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	for _, q := range p.Queries {
		resp.Queries = append(resp.Queries, answerQuery{
			Store:     string(q.Store),
			Query:     q.Query,
			RowCount:  q.RowCount,
			ElapsedMs: q.Elapsed.Milliseconds(),
			Attempts:  q.Attempts,
		})
	}
	return resp
}

type catalogField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type catalogCollection struct {
	Name   string         `json:"name"`
	Fields []catalogField `json:"fields"`
}

type catalogLink struct {
	Relational string `json:"relational"`
	Series     string `json:"series"`
}

type catalogResponse struct {
	Version string                         `json:"version"`
	Stores  map[string][]catalogCollection `json:"stores"`
	Links   []catalogLink                  `json:"links"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Current()

	resp := catalogResponse{
		Version: snap.Version,
		Stores:  make(map[string][]catalogCollection, len(snap.Stores)),
		Links:   make([]catalogLink, 0, len(snap.Links)),
	}
	for store, colls := range snap.Stores {
		out := make([]catalogCollection, 0, len(colls))
		for _, c := range colls {
			fields := make([]catalogField, 0, len(c.Fields))
			for _, f := range c.Fields {
				fields = append(fields, catalogField{Name: f.Name, Type: string(f.Type)})
			}
			out = append(out, catalogCollection{Name: c.Name, Fields: fields})
		}
		resp.Stores[string(store)] = out
	}
	for _, l := range snap.Links {
		resp.Links = append(resp.Links, catalogLink{
			Relational: l.Relational.String(),
			Series:     l.Series.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyEntry struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Strategy     string    `json:"strategy,omitempty"`
	Queries      []string  `json:"queries"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	RowCount     int64     `json:"row_count"`
	Warnings     []string  `json:"warnings"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

type historyResponse struct {
	Data   []historyEntry `json:"data"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "invalid_request",
			Message: "limit must be an integer",
		})
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "invalid_request",
			Message: "offset must be an integer",
		})
		return
	}

	filter := domain.HistoryFilter{Limit: limit, Offset: offset}
	if s := q.Get("status"); s != "" {
		filter.Status = &s
	}

	entries, total, err := h.history.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	// Echo the effective page bounds, clamped the same way the service
	// clamps them.
	if limit <= 0 {
		limit = history.DefaultPageSize
	} else if limit > history.MaxPageSize {
		limit = history.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	resp := historyResponse{
		Data:   make([]historyEntry, 0, len(entries)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, e := range entries {
		resp.Data = append(resp.Data, toHistoryEntry(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toHistoryEntry(e domain.HistoryEntry) historyEntry {
	out := historyEntry{
		ID:           e.ID,
		Question:     e.Question,
		Strategy:     e.Strategy,
		Queries:      e.Queries,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
		RowCount:     e.RowCount,
		Warnings:     e.Warnings,
		DurationMs:   e.DurationMs,
		CreatedAt:    e.CreatedAt,
	}
	if out.Queries == nil {
		out.Queries = []string{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
