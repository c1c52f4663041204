// ABOUTME: EnsembleJudge validates a draft answer by one or more concurrent model passes
// ABOUTME: Votes are folded by Decide; numeric consistency is checked deterministically
package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
)

const (
	noClaimsConfidence = 0.95
	fallbackConfidence = 0.8
	judgeContextChunks = 8
	judgeChunkChars    = 500
	judgeMaxTokens     = 600
	maxIssueLength     = 120
)

var markerPattern = regexp.MustCompile(`\b(VALID|UNCERTAIN|INVALID):`)

// Judge validates drafts
type Judge interface {
	Validate(ctx context.Context, draft string, chunks []models.Chunk, mode models.QueryMode) (models.ValidationVerdict, error)
}

// EnsembleJudge runs one pass per configured model
type EnsembleJudge struct {
	completer   llm.Completer
	models      []string
	policy      DecisionPolicy
	temperature float64
	timeout     time.Duration
	log         logger.Logger
}

// NewEnsembleJudge resolves the judge models. Ensemble mode needs ensemble_size distinct models.
func NewEnsembleJudge(completer llm.Completer, cfg config.JudgeConfig, timeouts config.TimeoutConfig, log logger.Logger) (*EnsembleJudge, error) {
	judgeModels := cfg.Models()
	if cfg.Mode == config.JudgeModeEnsemble && len(judgeModels) < cfg.EnsembleSize {
		return nil, models.NewConfigError(fmt.Sprintf(
			"judge.ensemble_models: ensemble of %d needs %d distinct models, got %d",
			cfg.EnsembleSize, cfg.EnsembleSize, len(judgeModels)))
	}
	if len(judgeModels) == 0 || judgeModels[0] == "" {
		return nil, models.NewConfigError("judge.model: no judge model configured")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &EnsembleJudge{
		completer:   completer,
		models:      judgeModels,
		policy:      PolicyFrom(cfg),
		temperature: cfg.Temperature,
		timeout:     timeouts.Clamp(timeouts.Judge),
		log:         log,
	}, nil
}

// Models returns the judge models in pass order
func (j *EnsembleJudge) Models() []string {
	return append([]string(nil), j.models...)
}

// Validate scores a draft against its supporting chunks. RetryCount of the
// returned verdict is zero; the caller owns the retry loop.
func (j *EnsembleJudge) Validate(ctx context.Context, draft string, chunks []models.Chunk, mode models.QueryMode) (models.ValidationVerdict, error) {
	claims := ExtractClaims(draft)
	if len(claims) == 0 {
		claims = UncheckedQuantities(draft)
		if len(claims) == 0 {
			j.log.Debug("no checkable claims, skipping judge passes", "mode", mode)
			return models.ValidationVerdict{FinalConfidence: noClaimsConfidence, Accepted: true}, nil
		}
		j.log.Debug("numbers with unrecognized units, judging them as claims", "mode", mode, "claims", len(claims))
	}

	numeric := NumericIssues(draft, chunks)
	citations := CitationIssues(draft, chunks)
	prompt := buildJudgePrompt(claims, chunks)

	votes := make([]*models.JudgeVote, len(j.models))
	errs := make([]error, len(j.models))

	var g errgroup.Group
	g.SetLimit(len(j.models))
	for i, model := range j.models {
		g.Go(func() error {
			out, err := j.completer.Complete(ctx, prompt, llm.CompletionOptions{
				Model:       model,
				Temperature: j.temperature,
				MaxTokens:   judgeMaxTokens,
				Timeout:     j.timeout,
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			vote := parseVote(model, out, numeric)
			votes[i] = &vote
			return nil
		})
	}
	_ = g.Wait()

	var (
		collected []models.JudgeVote
		failures  []string
		failed    []error
	)
	for i, v := range votes {
		if v != nil {
			collected = append(collected, *v)
			continue
		}
		failures = append(failures, fmt.Sprintf("judge %s unavailable: %v", j.models[i], errs[i]))
		failed = append(failed, errs[i])
		j.log.Warn("judge pass failed", "model", j.models[i], "error", errs[i])
	}

	verdict := Decide(collected, j.policy, 0)
	verdict.Issues = appendUnique(verdict.Issues, citations...)
	verdict.Issues = appendUnique(verdict.Issues, failures...)

	if len(collected) == 0 {
		return verdict, models.Unavailable("judge", "validate", errors.Join(failed...))
	}

	j.log.Info("validation verdict", "mode", mode, "confidence", verdict.FinalConfidence,
		"accepted", verdict.Accepted, "votes", len(collected), "issues", len(verdict.Issues))
	return verdict, nil
}

func buildJudgePrompt(claims []string, chunks []models.Chunk) string {
	var sb strings.Builder
	sb.WriteString("You are a fact checker. Verify each claim against the context.\n")
	sb.WriteString("Status per claim: VALID (directly supported), UNCERTAIN (partially supported), ")
	sb.WriteString("INVALID (contradicted or missing).\n")
	sb.WriteString(`Reply with JSON only: {"confidence": 0.0-1.0, "claims": [{"claim": "...", "status": "VALID|UNCERTAIN|INVALID", "numeric": true|false, "note": "..."}]}`)
	sb.WriteString("\n\nCLAIMS:\n")
	for _, c := range claims {
		sb.WriteString("- " + c + "\n")
	}
	sb.WriteString("\nCONTEXT:\n")
	for i, c := range chunks {
		if i >= judgeContextChunks {
			break
		}
		fmt.Fprintf(&sb, "[%s, p.%d] %s\n\n", c.SourceDocument, c.PageNumber, truncate(c.Text, judgeChunkChars))
	}
	return sb.String()
}

type judgeReply struct {
	Confidence *float64      `json:"confidence"`
	Claims     []claimStatus `json:"claims"`
}

type claimStatus struct {
	Claim   string `json:"claim"`
	Status  string `json:"status"`
	Numeric bool   `json:"numeric"`
	Note    string `json:"note"`
}

// parseVote reads a pass reply. Numeric issues found deterministically apply to every vote.
func parseVote(model, reply string, numeric []string) models.JudgeVote {
	vote := models.JudgeVote{
		ModelID:                 model,
		IsNumericallyConsistent: len(numeric) == 0,
		FlaggedIssues:           append([]string(nil), numeric...),
	}

	var parsed judgeReply
	if err := llm.DecodeJSON(reply, &parsed); err == nil && (len(parsed.Claims) > 0 || parsed.Confidence != nil) {
		var valid, uncertain, total float64
		for _, c := range parsed.Claims {
			switch strings.ToUpper(strings.TrimSpace(c.Status)) {
			case "VALID":
				valid++
			case "UNCERTAIN":
				uncertain++
			case "INVALID":
				issue := "invalid claim: " + c.Claim
				if c.Note != "" {
					issue += " (" + c.Note + ")"
				}
				vote.FlaggedIssues = appendUnique(vote.FlaggedIssues, truncate(issue, maxIssueLength))
				if c.Numeric {
					vote.IsNumericallyConsistent = false
				}
			default:
				continue
			}
			total++
		}
		switch {
		case total > 0:
			vote.Confidence = (valid + 0.5*uncertain) / total
		case parsed.Confidence != nil:
			vote.Confidence = clamp01(*parsed.Confidence)
		default:
			vote.Confidence = fallbackConfidence
		}
		return vote
	}

	vote.Confidence = markerConfidence(reply)
	for _, line := range strings.Split(reply, "\n") {
		if strings.Contains(strings.ToUpper(line), "INVALID") {
			vote.FlaggedIssues = appendUnique(vote.FlaggedIssues, truncate(strings.TrimSpace(line), maxIssueLength))
		}
	}
	return vote
}

// markerConfidence scores free-text replies by their VALID:/UNCERTAIN:/INVALID: markers
func markerConfidence(reply string) float64 {
	counts := map[string]float64{}
	for _, m := range markerPattern.FindAllStringSubmatch(strings.ToUpper(reply), -1) {
		counts[m[1]]++
	}
	total := counts["VALID"] + counts["UNCERTAIN"] + counts["INVALID"]
	if total == 0 {
		return fallbackConfidence
	}
	return (counts["VALID"] + 0.5*counts["UNCERTAIN"]) / total
}
