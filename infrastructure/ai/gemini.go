// Package ai adapts the Gemini API to the planner's generator port.
package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/generation"
	"mindmap-backend/domain/interview"
	pkgerrors "mindmap-backend/pkg/errors"
)

const (
	// DefaultModel serves every operation unless configured otherwise
	DefaultModel = "gemini-3-flash-preview"

	serviceName = "gemini"
)

var errEmptyResponse = errors.New("empty model response")

// ContentModel is the slice of the genai client the generator uses.
// *genai.Models satisfies it.
type ContentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// CallRecorder receives one event per model call
type CallRecorder interface {
	RecordAICall(operation, outcome string, duration time.Duration)
}

// BreakerConfig configures the circuit breaker around model calls
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// Config configures the Gemini generator
type Config struct {
	APIKey     string        `yaml:"-"`
	FlashModel string        `yaml:"flash_model"`
	ProModel   string        `yaml:"pro_model"`
	Timeout    time.Duration `yaml:"timeout"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// DefaultConfig returns the generator defaults
func DefaultConfig() Config {
	return Config{
		FlashModel: DefaultModel,
		ProModel:   DefaultModel,
		Timeout:    60 * time.Second,
		Breaker: BreakerConfig{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
	}
}

// NewClient opens a Gemini API client
func NewClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pkgerrors.NewExternalError(serviceName, err)
	}
	return client, nil
}

// GeminiGenerator implements the generator port on top of a ContentModel
type GeminiGenerator struct {
	model    ContentModel
	cfg      Config
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	recorder CallRecorder
	logger   *zap.Logger
}

// NewGeminiGenerator wraps model with a per-call timeout and a circuit breaker
func NewGeminiGenerator(model ContentModel, cfg Config, recorder CallRecorder, logger *zap.Logger) *GeminiGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.FlashModel == "" {
		cfg.FlashModel = defaults.FlashModel
	}
	if cfg.ProModel == "" {
		cfg.ProModel = defaults.ProModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = defaults.Breaker
	}

	g := &GeminiGenerator{
		model:    model,
		cfg:      cfg,
		tracer:   otel.Tracer("mindmap-backend/ai"),
		recorder: recorder,
		logger:   logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// ClarifyIntent asks for structural questions about content
func (g *GeminiGenerator) ClarifyIntent(ctx context.Context, content string) ([]interview.Question, error) {
	raw, err := g.call(ctx, "clarify", g.cfg.FlashModel, clarifyPrompt(content), questionsSchema())
	if err != nil {
		return nil, err
	}
	return generation.DecodeQuestions(raw)
}

// ReformulateQuestions asks for a new question set that keeps the answered ones
func (g *GeminiGenerator) ReformulateQuestions(ctx context.Context, content string, questions []interview.Question, answers interview.Answers) ([]interview.Question, error) {
	raw, err := g.call(ctx, "reformulate", g.cfg.FlashModel, reformulatePrompt(content, questions, answers), questionsSchema())
	if err != nil {
		return nil, err
	}
	return generation.DecodeQuestions(raw)
}

// GenerateMap asks for the node/edge tree of the whole plan
func (g *GeminiGenerator) GenerateMap(ctx context.Context, content, clarifications string) (generation.GeneratedMap, error) {
	raw, err := g.call(ctx, "generate", g.cfg.ProModel, generatePrompt(content, clarifications), mapSchema())
	if err != nil {
		return generation.GeneratedMap{}, err
	}
	return generation.DecodeMap(raw)
}

// ExpandNode asks for children of node
func (g *GeminiGenerator) ExpandNode(ctx context.Context, node entities.Node) ([]entities.NodeFields, error) {
	raw, err := g.call(ctx, "expand", g.cfg.FlashModel, expandPrompt(node), suggestionsSchema())
	if err != nil {
		return nil, err
	}
	return generation.DecodeSuggestions(raw)
}

// BreakerState reports the circuit breaker state
func (g *GeminiGenerator) BreakerState() gobreaker.State {
	return g.breaker.State()
}

func (g *GeminiGenerator) call(ctx context.Context, operation, model, prompt string, schema *genai.Schema) ([]byte, error) {
	ctx, span := g.tracer.Start(ctx, "ai."+operation, trace.WithAttributes(
		attribute.String("ai.operation", operation),
		attribute.String("ai.model", model),
		attribute.Int("ai.prompt_length", len(prompt)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.model.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		})
		if err != nil {
			return nil, err
		}
		text := responseText(resp)
		if text == "" {
			return nil, errEmptyResponse
		}
		return text, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		g.record(operation, outcome, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("Model call failed",
			zap.String("operation", operation),
			zap.String("model", model),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.NewTimeoutError("ai." + operation).WithCause(err)
		}
		return nil, pkgerrors.NewExternalError(serviceName, err).WithDetail("operation", operation)
	}

	g.record(operation, "success", elapsed)
	text := result.(string)
	span.SetAttributes(attribute.Int("ai.response_length", len(text)))
	g.logger.Debug("Model call completed",
		zap.String("operation", operation),
		zap.String("model", model),
		zap.Duration("duration", elapsed),
	)
	return []byte(text), nil
}

func (g *GeminiGenerator) record(operation, outcome string, d time.Duration) {
	if g.recorder != nil {
		g.recorder.RecordAICall(operation, outcome, d)
	}
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
