package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ahrav/promptlab/internal/logging"
)

// auditLLM writes one log line per remote call attempt: call kind, truncated
// prompt digest (and the system prompt's digest when one is set), model,
// latency, attempt number, and outcome. Prompt text and the credential never
// appear in the line.
type auditLLM struct {
	next   CoreLLM
	logger *zap.Logger
}

// AuditMiddleware creates middleware emitting the audit trail through the
// given logger. It should sit outermost so recorded latency includes time
// spent waiting on the rate limiter.
func AuditMiddleware(logger *zap.Logger) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &auditLLM{next: next, logger: logger}
	}
}

// DoRequest forwards the call and logs its outcome.
func (a *auditLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := a.next.DoRequest(ctx, prompt, opts)

	fields := []zap.Field{
		zap.String("target", extractString(opts, OptionCallKind, CallKindCompletion)),
		zap.String("prompt_digest", logging.PromptDigest(prompt)),
		zap.String("model", a.next.GetModel()),
		zap.Int("attempt", extractInt(opts, OptionAttempt, 1)),
		zap.Duration("latency", time.Since(start)),
	}
	if system := extractString(opts, OptionSystem, ""); system != "" {
		fields = append(fields, zap.String("system_digest", logging.PromptDigest(system)))
	}

	if err != nil {
		a.logger.Warn("remote call failed", append(fields, zap.Error(err))...)
		return response, tokensIn, tokensOut, err
	}

	a.logger.Info("remote call completed", append(fields,
		zap.Int("tokens_in", tokensIn),
		zap.Int("tokens_out", tokensOut),
	)...)
	return response, tokensIn, tokensOut, nil
}

// GetModel returns the model name from the wrapped implementation.
func (a *auditLLM) GetModel() string { return a.next.GetModel() }
