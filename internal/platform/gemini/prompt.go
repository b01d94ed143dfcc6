package gemini

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
	}).
	ParseFS(promptFS, "prompts/*.tmpl"))

// aggregateGoals describes each project-wide task to the model.
var aggregateGoals = map[domain.TaskType]string{
	domain.TaskTypeLiteratureReview: "write a structured literature review of the papers below.",
	domain.TaskTypeTrendAnalysis:    "identify research trends across the papers below.",
	domain.TaskTypeGapAnalysis:      "identify open research gaps not addressed by the papers below.",
}

type paperPrompt struct {
	domain.PaperData
	Parameters string
}

type aggregatePrompt struct {
	Goal       string
	Papers     []domain.PaperSnapshot
	Parameters string
}

// renderPrompt builds the prompt for a submission payload.
func renderPrompt(kind domain.TaskType, payload any) (string, error) {
	var (
		name string
		data any
	)

	switch p := payload.(type) {
	case *domain.PaperAnalysisRequest:
		if kind != domain.TaskTypePaperAnalysis {
			return "", fmt.Errorf("payload does not match task type %q", kind)
		}
		name, data = "paper_analysis.tmpl", paperPrompt{PaperData: p.PaperData, Parameters: parameters(p.Parameters)}
	case *domain.AggregateRequest:
		goal, ok := aggregateGoals[kind]
		if !ok {
			return "", fmt.Errorf("payload does not match task type %q", kind)
		}
		name, data = "aggregate.tmpl", aggregatePrompt{Goal: goal, Papers: p.Papers, Parameters: parameters(p.Parameters)}
	default:
		return "", fmt.Errorf("unsupported payload %T", payload)
	}

	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// parameters drops empty parameter objects from the prompt.
func parameters(raw json.RawMessage) string {
	var obj map[string]any
	if json.Unmarshal(raw, &obj) != nil || len(obj) == 0 {
		return ""
	}
	return string(raw)
}
