// Package service answers questions from the library: retrieval, prompt assembly,
// generation and the degradation paths around them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/fallback"
	"ragqa/internal/generator"
	"ragqa/internal/metrics"
	"ragqa/internal/prompt"
	"ragqa/internal/retrieval"
	"ragqa/internal/retry"
)

// ErrEmptyQuestion rejects a missing or blank question before retrieval runs.
var ErrEmptyQuestion = errors.New("empty question")

// Status classifies how an answer was produced.
type Status string

const (
	StatusAnswered      Status = "answered"
	StatusNoInformation Status = "no_information"
	StatusBusy          Status = "busy"
	StatusFallback      Status = "fallback"
	StatusDegraded      Status = "degraded"
	StatusNotReady      Status = "not_ready"
)

const (
	MsgNoQuestion    = "لم يصل سؤال."
	MsgNoInformation = "عذراً، لم أجد هذه المعلومة في المكتبة."
	MsgBusy          = "⚠️ الخادم مزدحم، يرجى المحاولة مرة أخرى."
	MsgNotReady      = "جارٍ تجهيز المكتبة، يرجى المحاولة بعد قليل."
	MsgDegraded      = "تعذر توليد الإجابة حالياً، يرجى المحاولة لاحقاً."
	MsgInternal      = "خطأ تقني"
)

// Answer is the outcome of one question.
type Answer struct {
	Text       string
	Status     Status
	Units      []domain.KnowledgeUnit
	Keywords   []string
	Generation uint64
	// RetryAfter is set with StatusNotReady.
	RetryAfter time.Duration
}

// Retriever finds the grounding units of a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieval.Result, error)
}

type Config struct {
	Retry retry.Policy
	// LiteralFallback serves quoted excerpts when generation fails for a reason
	// other than rate limiting.
	LiteralFallback bool
	RetryAfter      time.Duration
	Opening         string
}

type QAService struct {
	retriever Retriever
	generator generator.Generator
	builder   *prompt.Builder
	composer  *fallback.Composer
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewQAService wires the answering pipeline. gen may be nil, in which case every
// matched question takes the fallback path.
func NewQAService(r Retriever, gen generator.Generator, cfg Config, m *metrics.Metrics, logger *slog.Logger) *QAService {
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QAService{
		retriever: r,
		generator: gen,
		builder:   prompt.NewBuilder(cfg.Opening),
		composer:  fallback.NewComposer(cfg.Opening, 0, 0),
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// Ask answers question. Every handled outcome, degradations included, comes back
// as an Answer with a nil error; errors are ErrEmptyQuestion or cancellation.
func (s *QAService) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	start := time.Now()
	res, err := s.retriever.Retrieve(ctx, question)
	s.metrics.Retrieval(string(res.Mode), time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		if errors.Is(err, retrieval.ErrEmptyCorpus) || errors.Is(err, retrieval.ErrIndexNotReady) {
			return s.finish(Answer{Text: MsgNotReady, Status: StatusNotReady, RetryAfter: s.cfg.RetryAfter}), nil
		}
		s.logger.Error("service: retrieval failed", "error", err)
		return s.finish(Answer{Text: MsgDegraded, Status: StatusDegraded}), nil
	}
	if res.Empty() {
		return s.finish(Answer{Text: MsgNoInformation, Status: StatusNoInformation, Generation: res.Generation}), nil
	}

	ans := Answer{Units: res.Units, Keywords: res.Keywords, Generation: res.Generation}
	if s.generator == nil {
		return s.finish(s.degrade(ans, res.Keywords)), nil
	}

	text, err := s.generate(ctx, question, res.Units)
	switch {
	case err == nil:
		if report := prompt.CheckCitations(text); !report.OK() {
			s.metrics.CitationViolation()
			s.logger.Warn("service: answer breaks citation contract", "problems", report.Problems)
		}
		ans.Text, ans.Status = text, StatusAnswered
	case ctx.Err() != nil:
		return Answer{}, ctx.Err()
	case generator.IsRateLimited(err):
		s.logger.Warn("service: generator busy", "generator", s.generator.Name(), "error", err)
		ans.Text, ans.Status = MsgBusy, StatusBusy
	default:
		s.logger.Error("service: generation failed", "generator", s.generator.Name(), "error", err)
		ans = s.degrade(ans, res.Keywords)
	}
	return s.finish(ans), nil
}

func (s *QAService) generate(ctx context.Context, question string, units []domain.KnowledgeUnit) (string, error) {
	policy := s.cfg.Retry
	policy.Retryable = generator.IsRateLimited
	policy.OnRetry = func(attempt int, err error) {
		s.logger.Info("service: retrying generation", "attempt", attempt, "delay", policy.Delay, "error", err)
	}
	p := s.builder.Build(question, units)
	return retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		text, err := s.generator.Generate(ctx, p)
		switch {
		case err == nil:
			s.metrics.GeneratorAttempt("ok")
		case generator.IsRateLimited(err):
			s.metrics.GeneratorAttempt("rate_limited")
		case errors.Is(err, context.DeadlineExceeded):
			s.metrics.GeneratorAttempt("timeout")
		default:
			s.metrics.GeneratorAttempt("error")
		}
		return text, err
	})
}

// degrade serves literal excerpts when allowed, the degraded notice otherwise.
func (s *QAService) degrade(ans Answer, keywords []string) Answer {
	if s.cfg.LiteralFallback {
		if text := s.composer.Compose(ans.Units, keywords); text != "" {
			ans.Text, ans.Status = text, StatusFallback
			return ans
		}
	}
	ans.Text, ans.Status = MsgDegraded, StatusDegraded
	return ans
}

func (s *QAService) finish(ans Answer) Answer {
	s.metrics.Answer(string(ans.Status))
	return ans
}
