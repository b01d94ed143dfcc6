package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/config"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/agents"
	"github.com/kaushalacts/research-ai-platform/internal/redact"
	"google.golang.org/genai"
)

// Name is the service name the backend reports and tasks record.
const Name = "gemini"

// ErrInvalidConfig is returned by NewBackend for unusable LLM settings.
var ErrInvalidConfig = errors.New("invalid gemini configuration")

// ContentGenerator is the subset of the genai models API the backend uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Backend runs analysis tasks through a Gemini model.
type Backend struct {
	gen      ContentGenerator
	model    string
	timeouts agents.Timeouts
	logger   *slog.Logger
}

// NewBackend creates a Backend with a genai client for the configured key.
func NewBackend(ctx context.Context, cfg config.LLMConfig, timeouts agents.Timeouts, logger *slog.Logger) (*Backend, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return NewBackendWithGenerator(client.Models, cfg.ModelName, timeouts, logger), nil
}

// NewBackendWithGenerator creates a Backend over an existing generator.
func NewBackendWithGenerator(gen ContentGenerator, model string, timeouts agents.Timeouts, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := agents.DefaultTimeouts()
	if timeouts.Submit <= 0 {
		timeouts.Submit = defaults.Submit
	}
	if timeouts.Extended <= 0 {
		timeouts.Extended = defaults.Extended
	}
	return &Backend{
		gen:      gen,
		model:    model,
		timeouts: timeouts,
		logger:   logger.With(slog.String("component", "gemini_backend"), slog.String("model", model)),
	}
}

// Name returns the service name recorded on tasks this backend accepts.
func (b *Backend) Name() string {
	return Name
}

// Submit renders a prompt for the payload, calls the model and decodes its
// JSON answer as a final result.
func (b *Backend) Submit(ctx context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
	prompt, err := renderPrompt(kind, payload)
	if err != nil {
		return nil, domain.NewServiceRejected(Name, "submit", 0, err.Error(), err)
	}

	timeout := b.timeouts.Submit
	if kind.IsAggregate() {
		timeout = b.timeouts.Extended
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := b.gen.GenerateContent(callCtx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		b.logger.WarnContext(ctx, "Gemini API call failed",
			"task_type", string(kind),
			"elapsed", time.Since(start),
			"error", redact.Error(err))
		detail := "model call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "model call timed out"
		}
		return nil, domain.NewServiceUnavailable(Name, "submit", 0, detail, err)
	}

	text, err := responseText(resp)
	if err != nil {
		b.logger.WarnContext(ctx, "Gemini returned no usable content",
			"task_type", string(kind),
			"error", err)
		return nil, domain.NewServiceRejected(Name, "submit", 0, err.Error(), err)
	}

	result, err := agents.ParseResult([]byte(stripFence(text)))
	if err != nil || result.State != domain.RemoteSucceeded {
		return nil, domain.NewServiceRejected(Name, "submit", 0,
			"model output is not an analysis object: "+redact.Body([]byte(text), 512), err)
	}
	result.RemoteTaskID = ""
	result.AgentUsed = Name + ":" + b.model

	b.logger.InfoContext(ctx, "Gemini analysis finished",
		"task_type", string(kind),
		"elapsed", time.Since(start),
		"result_bytes", len(result.Results))
	return result, nil
}

// Cancel is a no-op: the backend never leaves work running remotely.
func (b *Backend) Cancel(context.Context, string) error {
	return nil
}

var (
	errNoCandidates   = errors.New("no content generated")
	errContentBlocked = errors.New("content blocked by safety filters")
)

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errNoCandidates
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", errContentBlocked
	}
	if candidate.Content == nil {
		return "", errNoCandidates
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errNoCandidates
	}
	return sb.String(), nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
