package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

// Judge replies are a single verdict or number; keep them short and cold.
const (
	judgeMaxTokens   = 64
	judgeTemperature = 0.0
)

// embeddedNumber matches the first standalone integer in a judge reply, the
// fallback when the reply is not a bare number ("I'd say 85 out of 100").
var embeddedNumber = regexp.MustCompile(`\d+`)

// ScoringPipeline turns a generated response into a parsed Judgment by asking
// the judge model the dimension's question. Judging goes through the same
// CompletionClient as generation, so both call kinds share one middleware
// chain and one failure taxonomy.
type ScoringPipeline struct {
	client ports.CompletionClient
	logger *zap.Logger
}

// NewScoringPipeline creates a ScoringPipeline using the given client for
// judging calls. A nil logger falls back to a no-op logger.
func NewScoringPipeline(client ports.CompletionClient, logger *zap.Logger) *ScoringPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringPipeline{client: client, logger: logger}
}

// Score asks the judge the dimension's question about the response and parses
// the reply into a Judgment. Unparseable replies return an error wrapping
// ports.ErrMalformedResponse so the scheduler can retry the unit.
func (p *ScoringPipeline) Score(ctx context.Context, response string, dim domain.Dimension, attempt int) (domain.Judgment, error) {
	prompt := p.buildJudgePrompt(response, dim)

	options := map[string]any{
		"call_kind":   "judging",
		"temperature": judgeTemperature,
		"max_tokens":  judgeMaxTokens,
		"attempt":     attempt,
	}

	raw, err := p.client.Complete(ctx, prompt, options)
	if err != nil {
		return domain.Judgment{}, fmt.Errorf("judging call for dimension %q: %w", dim.Name, err)
	}

	switch dim.Kind {
	case domain.KindBoolean:
		return p.parseBoolean(raw, dim)
	case domain.KindScale:
		return p.parseScale(raw, dim)
	default:
		return domain.Judgment{}, fmt.Errorf("dimension %q has unknown result kind %q", dim.Name, dim.Kind)
	}
}

// buildJudgePrompt renders the judging question with the response under
// evaluation. The instruction pins the reply format so parsing stays trivial.
func (p *ScoringPipeline) buildJudgePrompt(response string, dim domain.Dimension) string {
	var b strings.Builder
	b.WriteString("You are evaluating an AI assistant's response.\n\n")
	b.WriteString("Response to evaluate:\n")
	b.WriteString(response)
	b.WriteString("\n\nEvaluation question: ")
	b.WriteString(dim.Question)
	b.WriteString("\n\n")

	switch dim.Kind {
	case domain.KindBoolean:
		b.WriteString("Answer with only Y or N.")
	case domain.KindScale:
		b.WriteString(fmt.Sprintf("Answer with only an integer from %d to %d.", domain.MinScale, domain.MaxScale))
	}
	return b.String()
}

// parseBoolean maps a yes/no reply onto a Judgment. Strict Y/YES/N/NO
// matching comes first; a reply containing exactly one of the two letters is
// accepted as a fallback, anything else is malformed.
func (p *ScoringPipeline) parseBoolean(raw string, dim domain.Dimension) (domain.Judgment, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.TrimRight(cleaned, ".!")

	var passed bool
	switch cleaned {
	case "Y", "YES":
		passed = true
	case "N", "NO":
		passed = false
	default:
		hasY := strings.Contains(cleaned, "Y")
		hasN := strings.Contains(cleaned, "N")
		switch {
		case hasY && !hasN:
			passed = true
		case hasN && !hasY:
			passed = false
		default:
			return domain.Judgment{}, fmt.Errorf(
				"%w: judge reply for boolean dimension %q was %q",
				ports.ErrMalformedResponse, dim.Name, truncateReply(raw))
		}
	}

	score := domain.MinScale
	if passed {
		score = domain.MaxScale
	}
	return domain.Judgment{Kind: domain.KindBoolean, Score: score, Passed: passed, Raw: raw}, nil
}

// parseScale extracts the integer score from a judge reply. A bare integer is
// the expected shape; otherwise the first embedded number is used. Out-of-range
// values are clamped and logged rather than discarded: a judge that says 150
// meant the top of the scale, not nothing.
func (p *ScoringPipeline) parseScale(raw string, dim domain.Dimension) (domain.Judgment, error) {
	cleaned := strings.TrimSpace(raw)

	score, err := strconv.Atoi(cleaned)
	if err != nil {
		match := embeddedNumber.FindString(cleaned)
		if match == "" {
			return domain.Judgment{}, fmt.Errorf(
				"%w: judge reply for scale dimension %q contained no number: %q",
				ports.ErrMalformedResponse, dim.Name, truncateReply(raw))
		}
		score, err = strconv.Atoi(match)
		if err != nil {
			return domain.Judgment{}, fmt.Errorf(
				"%w: judge reply for scale dimension %q: %q",
				ports.ErrMalformedResponse, dim.Name, truncateReply(raw))
		}
	}

	if score < domain.MinScale || score > domain.MaxScale {
		clamped := min(max(score, domain.MinScale), domain.MaxScale)
		p.logger.Warn("judge score out of range, clamping",
			zap.String("dimension", dim.Name),
			zap.Int("raw_score", score),
			zap.Int("clamped", clamped))
		score = clamped
	}

	return domain.Judgment{Kind: domain.KindScale, Score: score, Raw: raw}, nil
}

func truncateReply(raw string) string {
	const limit = 80
	runes := []rune(raw)
	if len(runes) <= limit {
		return raw
	}
	return string(runes[:limit]) + "..."
}
