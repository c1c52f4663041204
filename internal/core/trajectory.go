// ABOUTME: TrajectoryExtractor pulls MD/TVD/ID tables out of well-report chunks
// ABOUTME: Regex tier first, LLM tier when regex is weak, merged by depth range and confidence
package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
)

const (
	assumedUnitFactor  = 0.85
	qualityWeight      = 0.7
	agreementWeight    = 0.3
	agreementTolerance = 0.01
	depthMatchEpsilon  = 0.01
)

// Extractor is what the agent needs from trajectory extraction
type Extractor interface {
	Extract(ctx context.Context, wellID string, chunks []models.Chunk) (models.TrajectoryResult, error)
}

// TrajectoryExtractor runs the regex, LLM and merge tiers
type TrajectoryExtractor struct {
	completer llm.Completer
	model     string
	cfg       config.ExtractionConfig
	timeout   time.Duration
	log       logger.Logger
}

// NewTrajectoryExtractor creates an extractor. A nil completer disables the LLM tier.
func NewTrajectoryExtractor(completer llm.Completer, cfg *config.Config, log logger.Logger) *TrajectoryExtractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &TrajectoryExtractor{
		completer: completer,
		model:     cfg.Service.ExtractionModel,
		cfg:       cfg.Extraction,
		timeout:   cfg.Timeouts.Clamp(cfg.Timeouts.Extraction),
		log:       log,
	}
}

// tierResult is the validated output of one tier
type tierResult struct {
	method    models.ExtractionMethod
	points    []models.TrajectoryPoint
	rows      int
	valid     int
	unitSeen  bool
	anomalies []string
}

// quality is valid_fraction × unit_factor
func (t tierResult) quality() float64 {
	if t.rows == 0 {
		return 0
	}
	q := float64(t.valid) / float64(t.rows)
	if !t.unitSeen {
		q *= assumedUnitFactor
	}
	return q
}

func buildTier(method models.ExtractionMethod, segments []segment) tierResult {
	t := tierResult{method: method}
	var points []models.TrajectoryPoint
	for _, seg := range segments {
		valid, anomalies := validateSegment(seg)
		t.rows += len(seg.rows)
		t.valid += len(valid)
		t.anomalies = append(t.anomalies, anomalies...)
		for _, r := range valid {
			if r.hasUnit {
				t.unitSeen = true
			}
			points = append(points, models.TrajectoryPoint{
				MeasuredDepth:     r.md,
				TrueVerticalDepth: r.tvd,
				InnerDiameter:     r.id,
				Unit:              models.UnitMetres,
				SourcePage:        r.page,
			})
		}
	}
	t.points = sortDedupe(points)
	return t
}

// Extract builds a trajectory for wellID from the given chunks. No depth tokens
// yields an empty result with method none and no error.
func (e *TrajectoryExtractor) Extract(ctx context.Context, wellID string, chunks []models.Chunk) (models.TrajectoryResult, error) {
	candidates := rankCandidates(chunks)
	if len(candidates) == 0 {
		e.log.Info("no trajectory candidates", "well", wellID, "chunks", len(chunks))
		return models.EmptyTrajectory(wellID, "no chunks contain depth tokens"), nil
	}

	regexCandidates := byPage(candidates[:min(len(candidates), max(1, e.cfg.MaxCandidates))])
	var segments []segment
	for _, c := range regexCandidates {
		segments = append(segments, parseChunk(c)...)
	}
	regex := buildTier(models.MethodRegex, segments)
	e.logAnomalies(wellID, regex)

	var (
		reasons []string
		llmTier *tierResult
		llmErr  error
	)
	if len(regex.points) == 0 || regex.quality() < e.cfg.ConfidenceThreshold {
		switch {
		case e.completer == nil:
			reasons = append(reasons, "LLM extraction not configured")
		default:
			limit := min(len(candidates), max(1, e.cfg.LLMChunkLimit))
			res, err := e.extractWithLLM(ctx, wellID, candidates[:limit])
			if err != nil {
				llmErr = err
				reasons = append(reasons, fmt.Sprintf("LLM extraction unavailable: %v", err))
				e.log.Warn("llm extraction failed", "well", wellID, "error", err)
			} else {
				e.logAnomalies(wellID, res)
				llmTier = &res
			}
		}
	}

	result := merge(wellID, regex, llmTier)
	result.Reasons = append(reasons, result.Reasons...)

	if maxPoints := e.cfg.MaxPoints; maxPoints > 0 && len(result.Points) > maxPoints {
		result.Reasons = append(result.Reasons, fmt.Sprintf("truncated %d points to %d", len(result.Points), maxPoints))
		result.Points = result.Points[:maxPoints]
	}

	e.log.Info("trajectory extracted", "well", wellID, "method", result.Method,
		"points", len(result.Points), "confidence", result.Confidence, "anomalies", len(result.Anomalies))

	if result.Empty() && llmErr != nil {
		return result, models.Unavailable("extraction", "extract", llmErr)
	}
	return result, nil
}

func (e *TrajectoryExtractor) logAnomalies(wellID string, t tierResult) {
	for _, a := range t.anomalies {
		e.log.Warn("trajectory anomaly", "well", wellID, "method", t.method, "detail", a)
	}
}

// merge combines the tiers. Disjoint depth ranges are concatenated; overlapping
// ranges keep the higher-confidence tier, scored against the other tier's TVDs.
func merge(wellID string, regex tierResult, llmTier *tierResult) models.TrajectoryResult {
	res := models.EmptyTrajectory(wellID)
	res.Anomalies = append(res.Anomalies, regex.anomalies...)
	if llmTier != nil {
		res.Anomalies = append(res.Anomalies, llmTier.anomalies...)
	}

	haveRegex := len(regex.points) > 0
	haveLLM := llmTier != nil && len(llmTier.points) > 0

	var unitAssumed bool
	switch {
	case !haveRegex && !haveLLM:
		res.Reasons = append(res.Reasons, "no trajectory rows passed validation")
		return res
	case haveRegex && !haveLLM:
		res.Points, res.Method, res.Confidence = regex.points, regex.method, regex.quality()
		unitAssumed = !regex.unitSeen
	case !haveRegex && haveLLM:
		res.Points, res.Method, res.Confidence = llmTier.points, llmTier.method, llmTier.quality()
		unitAssumed = !llmTier.unitSeen
	case disjoint(regex.points, llmTier.points):
		n1, n2 := float64(len(regex.points)), float64(len(llmTier.points))
		res.Points = sortDedupe(append(append([]models.TrajectoryPoint(nil), regex.points...), llmTier.points...))
		res.Method = models.MethodHybrid
		res.Confidence = (regex.quality()*n1 + llmTier.quality()*n2) / (n1 + n2)
		unitAssumed = !regex.unitSeen || !llmTier.unitSeen
	default:
		winner, other := regex, *llmTier
		if llmTier.quality() > regex.quality() {
			winner, other = *llmTier, regex
		}
		res.Points, res.Method = winner.points, winner.method
		res.Confidence = winner.quality()
		if agreement, shared := tvdAgreement(winner.points, other.points); shared > 0 {
			res.Confidence = qualityWeight*winner.quality() + agreementWeight*agreement
		}
		unitAssumed = !winner.unitSeen
	}

	res.Confidence = clamp01(res.Confidence)
	if unitAssumed {
		res.UnitAssumed = true
		res.Reasons = append(res.Reasons, "no unit annotation found, metric assumed")
	}
	return res
}

// disjoint reports whether two sorted point sets cover non-overlapping MD ranges
func disjoint(a, b []models.TrajectoryPoint) bool {
	aLo, aHi := a[0].MeasuredDepth, a[len(a)-1].MeasuredDepth
	bLo, bHi := b[0].MeasuredDepth, b[len(b)-1].MeasuredDepth
	return aHi < bLo || bHi < aLo
}

// tvdAgreement is the share of MDs present in both sets whose TVDs agree within 1%
func tvdAgreement(a, b []models.TrajectoryPoint) (float64, int) {
	shared, agree := 0, 0
	for _, p := range a {
		for _, q := range b {
			if math.Abs(p.MeasuredDepth-q.MeasuredDepth) > depthMatchEpsilon {
				continue
			}
			shared++
			scale := math.Max(math.Abs(p.TrueVerticalDepth), math.Abs(q.TrueVerticalDepth))
			if scale == 0 || math.Abs(p.TrueVerticalDepth-q.TrueVerticalDepth) <= agreementTolerance*scale {
				agree++
			}
			break
		}
	}
	if shared == 0 {
		return 0, 0
	}
	return float64(agree) / float64(shared), shared
}

// sortDedupe orders by MD and keeps the first point at each MD
func sortDedupe(points []models.TrajectoryPoint) []models.TrajectoryPoint {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].MeasuredDepth < points[j].MeasuredDepth
	})
	out := make([]models.TrajectoryPoint, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && math.Abs(out[n-1].MeasuredDepth-p.MeasuredDepth) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// byPage puts candidates back in document order for parsing
func byPage(chunks []models.Chunk) []models.Chunk {
	out := append([]models.Chunk(nil), chunks...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourceDocument != out[j].SourceDocument {
			return out[i].SourceDocument < out[j].SourceDocument
		}
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		return out[i].ID < out[j].ID
	})
	return out
}
