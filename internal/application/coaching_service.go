package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clarvoy/clarvoy/infrastructure/llm"
	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// CoachPreamble opens every coaching system prompt.
const CoachPreamble = "You are Clarvoy's AI Decision Coach. You help leaders make better decisions by " +
	"identifying cognitive biases, reducing noise in group judgments, and applying structured " +
	"decision-making frameworks. You reference concepts like pre-mortem analysis, reference class " +
	"forecasting, base rates, and adversarial debate. Be concise, practical, and direct. "

// MsgMessageRequired is reported for an empty chat message.
const MsgMessageRequired = "Message is required"

// ProviderRegistry resolves coaching provider ids to clients.
// *llm.Registry satisfies it.
type ProviderRegistry interface {
	Providers() []llm.ProviderDefinition
	Resolve(id string) (llm.ProviderDefinition, bool)
	Suggest(id string) string
	Client(id string) (ports.LLMClient, error)
}

type coachingRepository interface {
	GetDecision(ctx context.Context, id int64) (domain.Decision, error)
	ListJudgments(ctx context.Context, decisionID int64) ([]domain.Judgment, error)
	ListAttachments(ctx context.Context, decisionID int64) ([]domain.Attachment, error)
}

// ProviderInfo is the public description of a coaching provider.
type ProviderInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// ChatRequest is one coaching question, optionally about a decision.
type ChatRequest struct {
	Message    string `json:"message"`
	DecisionID *int64 `json:"decisionId"`
	Provider   string `json:"provider"`
}

// ChatReply is the coach's answer.
type ChatReply struct {
	Provider  string
	Model     string
	Content   string
	TokensIn  int
	TokensOut int
}

// CoachingService answers coaching questions with the decision's noise and
// documents as context.
type CoachingService struct {
	registry ProviderRegistry
	store    coachingRepository
	noise    *NoiseService
	cfg      CoachingConfig
	logger   *zap.Logger
	tracer   trace.Tracer
}

// CoachingOption customises a CoachingService.
type CoachingOption func(*CoachingService)

// WithTracerProvider traces chats with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) CoachingOption {
	return func(s *CoachingService) { s.tracer = tp.Tracer(tracerName) }
}

const tracerName = "github.com/clarvoy/clarvoy/internal/application"

// NewCoachingService returns a service answering through registry.
func NewCoachingService(registry ProviderRegistry, store coachingRepository, noise *NoiseService, cfg CoachingConfig, logger *zap.Logger, opts ...CoachingOption) *CoachingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.DocumentChars <= 0 {
		cfg.DocumentChars = 3000
	}
	s := &CoachingService{
		registry: registry,
		store:    store,
		noise:    noise,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers lists the coaching providers in display order.
func (s *CoachingService) Providers() []ProviderInfo {
	defs := s.registry.Providers()
	out := make([]ProviderInfo, len(defs))
	for i, d := range defs {
		out[i] = ProviderInfo{ID: d.ID, Name: d.Name, Model: d.Model}
	}
	return out
}

// Chat sends req to the selected provider. An empty or unknown provider
// falls back to the default. Provider failures wrap
// domain.ErrProviderUnavailable.
func (s *CoachingService) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		verr := domain.NewValidationError("chat")
		verr.AddError(MsgMessageRequired)
		return ChatReply{}, verr
	}

	logger := logging.FromContext(ctx, s.logger)
	def, ok := s.registry.Resolve(req.Provider)
	if !ok && req.Provider != "" {
		fields := []zap.Field{zap.String("requested", req.Provider), zap.String("using", def.ID)}
		if hint := s.registry.Suggest(req.Provider); hint != "" {
			fields = append(fields, zap.String("did_you_mean", hint))
		}
		logger.Warn("unknown coaching provider", fields...)
	}

	ctx, span := s.tracer.Start(ctx, "coaching.chat", trace.WithAttributes(
		attribute.String("coaching.provider", def.ID),
		attribute.Bool("coaching.has_decision", req.DecisionID != nil),
	))
	defer span.End()

	var decisionContext string
	if req.DecisionID != nil {
		var err error
		decisionContext, err = s.DecisionContext(ctx, *req.DecisionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load context")
			return ChatReply{}, fmt.Errorf("load coaching context: %w", err)
		}
	}

	client, err := s.registry.Client(def.ID)
	if err != nil {
		logger.Error("coaching provider not configured", zap.String("provider", def.ID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider unavailable")
		return ChatReply{}, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	content, tokensIn, tokensOut, err := client.CompleteWithUsage(ctx, message, map[string]any{
		"system":     SystemPrompt(decisionContext),
		"max_tokens": s.cfg.MaxTokens,
	})
	if err != nil {
		logger.Error("coaching request failed", zap.String("provider", def.ID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return ChatReply{}, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	span.SetAttributes(
		attribute.Int("coaching.tokens.input", tokensIn),
		attribute.Int("coaching.tokens.output", tokensOut),
	)
	return ChatReply{
		Provider:  def.ID,
		Model:     client.GetModel(),
		Content:   content,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// SystemPrompt appends decisionContext to the coach preamble.
func SystemPrompt(decisionContext string) string {
	return CoachPreamble + decisionContext
}

// DecisionContext renders what the coach should know about decisionID: its
// description, the noise in its judgments and the start of every attached
// document that has text. A missing decision yields an empty context.
func (s *CoachingService) DecisionContext(ctx context.Context, decisionID int64) (string, error) {
	var (
		decision    domain.Decision
		judgments   []domain.Judgment
		attachments []domain.Attachment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		decision, err = s.store.GetDecision(gctx, decisionID)
		return err
	})
	g.Go(func() error {
		var err error
		judgments, err = s.store.ListJudgments(gctx, decisionID)
		return err
	})
	g.Go(func() error {
		var err error
		attachments, err = s.store.ListAttachments(gctx, decisionID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	report := s.noise.Calculate(domain.JudgmentScores(judgments))

	var b strings.Builder
	fmt.Fprintf(&b, "Decision context: \"%s\" - %s. Category: %s. Status: %s. %d judgments submitted. %s.",
		decision.Title, decision.Description, decision.Category, decision.Status, len(judgments), report.Summary())

	var docs []string
	for _, a := range attachments {
		if a.HasText() {
			docs = append(docs, fmt.Sprintf("[%s]: %s", a.FileName, truncateRunes(*a.ExtractedText, s.cfg.DocumentChars)))
		}
	}
	if len(docs) > 0 {
		b.WriteString("\n\nAttached documents:\n")
		b.WriteString(strings.Join(docs, "\n\n"))
	}
	return b.String(), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
