// ABOUTME: Pure decision functions for the validation loop
// ABOUTME: Decide folds judge votes into a verdict; NextStep picks accept, retry or reject
package core

import (
	"fmt"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/models"
)

// DecisionPolicy holds the thresholds Decide applies
type DecisionPolicy struct {
	MinConfidence       float64
	DisagreementPolicy  string
	DisagreementPenalty float64
}

// PolicyFrom reads the decision policy from judge config
func PolicyFrom(cfg config.JudgeConfig) DecisionPolicy {
	return DecisionPolicy{
		MinConfidence:       cfg.MinConfidence,
		DisagreementPolicy:  cfg.DisagreementPolicy,
		DisagreementPenalty: cfg.DisagreementPenalty,
	}
}

// Decide combines votes into a verdict. It has no side effects.
func Decide(votes []models.JudgeVote, policy DecisionPolicy, retryCount int) models.ValidationVerdict {
	verdict := models.ValidationVerdict{RetryCount: retryCount}
	if len(votes) == 0 {
		verdict.Issues = []string{"no validation votes"}
		return verdict
	}

	verdict.Votes = append([]models.JudgeVote(nil), votes...)

	var sum float64
	lowest := votes[0].Confidence
	consistent, inconsistent := 0, 0
	for _, v := range votes {
		sum += v.Confidence
		lowest = min(lowest, v.Confidence)
		if v.IsNumericallyConsistent {
			consistent++
		} else {
			inconsistent++
		}
		verdict.Issues = appendUnique(verdict.Issues, v.FlaggedIssues...)
	}
	mean := sum / float64(len(votes))

	verdict.FinalConfidence = mean
	if consistent > 0 && inconsistent > 0 {
		verdict.Issues = appendUnique(verdict.Issues,
			fmt.Sprintf("judges disagree on numeric consistency (%d of %d flagged)", inconsistent, len(votes)))
		if policy.DisagreementPolicy == config.PolicyScaled {
			verdict.FinalConfidence = mean * (1 - policy.DisagreementPenalty)
		} else {
			verdict.FinalConfidence = lowest
		}
	}
	verdict.FinalConfidence = clamp01(verdict.FinalConfidence)
	verdict.Accepted = verdict.FinalConfidence >= policy.MinConfidence && inconsistent == 0
	return verdict
}

// Step is the next move of the validation loop
type Step int

const (
	StepAccept Step = iota
	StepRetry
	StepReject
)

func (s Step) String() string {
	switch s {
	case StepAccept:
		return "accept"
	case StepRetry:
		return "retry"
	default:
		return "reject"
	}
}

// NextStep retries a rejected verdict until maxRetries retries have been spent
func NextStep(verdict models.ValidationVerdict, maxRetries int) Step {
	if verdict.Accepted {
		return StepAccept
	}
	if verdict.RetryCount < maxRetries {
		return StepRetry
	}
	return StepReject
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		dup := false
		for _, existing := range list {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, item)
		}
	}
	return list
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
