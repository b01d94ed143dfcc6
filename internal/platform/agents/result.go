package agents

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// ErrMalformedResult is returned when a result document is not valid JSON
// or is null.
var ErrMalformedResult = errors.New("result document is not valid JSON")

// pendingStates are status values meaning the work continues remotely.
var pendingStates = map[string]bool{
	"accepted":   true,
	"queued":     true,
	"pending":    true,
	"processing": true,
	"running":    true,
}

// ParseResult decodes a result document returned from a submission or
// posted to the callback endpoint.
//
// A status of accepted, queued, pending, processing or running means the
// result will follow later. A status of failed or error, or a non-empty
// error field, is a declared failure. Anything else is a final result: the
// analysis object when present, otherwise the results object, otherwise the
// whole document. A document that is not an object, such as the paper list
// some review endpoints return, is a final result stored as is.
func ParseResult(body []byte) (*domain.RemoteResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrMalformedResult
	}
	if !isObject(trimmed) {
		return &domain.RemoteResponse{State: domain.RemoteSucceeded, Results: compact(trimmed)}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, ErrMalformedResult
	}

	resp := &domain.RemoteResponse{
		RemoteTaskID: stringField(doc, "task_id"),
		AgentUsed:    stringField(doc, "agent_used"),
	}

	status := strings.ToLower(stringField(doc, "status"))
	errMsg := stringField(doc, "error")

	switch {
	case status == "failed" || status == "error" || errMsg != "":
		resp.State = domain.RemoteFailed
		resp.Error = errMsg
		if resp.Error == "" {
			resp.Error = stringField(doc, "detail")
		}
		if resp.Error == "" {
			resp.Error = "remote analysis failed"
		}
		return resp, nil
	case pendingStates[status]:
		resp.State = domain.RemoteAccepted
		return resp, nil
	}

	resp.State = domain.RemoteSucceeded
	resp.Results = pickResults(doc, trimmed)
	resp.Analysis = extractAnalysis(doc)
	return resp, nil
}

func pickResults(doc map[string]json.RawMessage, body []byte) json.RawMessage {
	for _, key := range []string{"analysis", "results"} {
		if raw, ok := doc[key]; ok && isObject(raw) {
			return compact(raw)
		}
	}
	return compact(body)
}

// extractAnalysis reads projected paper fields from the top level of the
// document, falling back to the analysis object. Fields of the wrong shape
// are ignored.
func extractAnalysis(doc map[string]json.RawMessage) *domain.PaperAnalysis {
	sources := []map[string]json.RawMessage{doc}
	if raw, ok := doc["analysis"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil && nested != nil {
			sources = append(sources, nested)
		}
	}

	var a domain.PaperAnalysis
	found := false
	for _, src := range sources {
		if a.Keywords == nil {
			if v, ok := stringsField(src, "keywords"); ok {
				a.Keywords, found = v, true
			}
		}
		if a.ResearchAreas == nil {
			if v, ok := stringsField(src, "research_areas"); ok {
				a.ResearchAreas, found = v, true
			}
		}
		if a.RelevanceScore == nil {
			if raw, ok := src["relevance_score"]; ok {
				var score float64
				if json.Unmarshal(raw, &score) == nil {
					a.RelevanceScore, found = &score, true
				}
			}
		}
	}
	if !found {
		return nil
	}
	return &a
}

func stringField(doc map[string]json.RawMessage, key string) string {
	raw, ok := doc[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func stringsField(doc map[string]json.RawMessage, key string) ([]string, bool) {
	raw, ok := doc[key]
	if !ok {
		return nil, false
	}
	var v []string
	if json.Unmarshal(raw, &v) != nil || v == nil {
		return nil, false
	}
	return v, true
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 1 && trimmed[0] == '{'
}

func compact(raw []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return json.RawMessage(raw)
	}
	return json.RawMessage(buf.Bytes())
}
