// ABOUTME: Agent runs one query through routing, retrieval, generation and the validation loop
// ABOUTME: Backend failures become explicit answer statuses instead of silent fallbacks
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
)

// AnswerStatus says how far the pipeline got
type AnswerStatus string

const (
	StatusOK          AnswerStatus = "ok"
	StatusRejected    AnswerStatus = "rejected"
	StatusDegraded    AnswerStatus = "degraded"
	StatusUnavailable AnswerStatus = "unavailable"
	StatusEmpty       AnswerStatus = "empty"
)

const (
	memoryContextChars = 300
	emptyAnswer        = "No relevant passages were found in the indexed well reports."
	trajectoryQuery    = "well trajectory table MD TVD measured depth true vertical depth inner diameter"
)

// Answer is the outcome of one query
type Answer struct {
	SessionID  string                    `json:"session_id"`
	Query      string                    `json:"query"`
	Mode       models.QueryMode          `json:"mode"`
	WellID     string                    `json:"well_id,omitempty"`
	Text       string                    `json:"answer"`
	Status     AnswerStatus              `json:"status"`
	Verdict    *models.ValidationVerdict `json:"verdict,omitempty"`
	Sources    []models.RetrievalResult  `json:"sources,omitempty"`
	Trajectory *models.TrajectoryResult  `json:"trajectory,omitempty"`
	Attempts   int                       `json:"attempts"`
	Reasons    []string                  `json:"reasons,omitempty"`
}

// AskOptions override routing for one query
type AskOptions struct {
	Mode        models.QueryMode
	WellID      string
	TopK        int
	Interactive bool
}

// TurnRecorder persists answered turns
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn models.ConversationTurn, verdict models.ValidationVerdict) error
}

// WellLister lists wells known to the chunk store
type WellLister interface {
	Wells(ctx context.Context) ([]string, error)
}

// Observer receives pipeline measurements
type Observer interface {
	ObserveQuery(mode models.QueryMode, status string, elapsed time.Duration)
	ObserveDegraded(reason string)
	ObserveVerdict(accepted bool, attempts int, confidence float64)
	ObserveExtraction(method models.ExtractionMethod, points int)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(models.QueryMode, string, time.Duration) {}
func (nopObserver) ObserveDegraded(string)                               {}
func (nopObserver) ObserveVerdict(bool, int, float64)                    {}
func (nopObserver) ObserveExtraction(models.ExtractionMethod, int)       {}

// AgentDeps wires the agent. Recorder, Wells and Observer are optional.
type AgentDeps struct {
	Config    *config.Config
	Retriever Retriever
	Generator Generator
	Judge     Judge
	Extractor Extractor
	Sessions  *SessionRegistry
	Recorder  TurnRecorder
	Wells     WellLister
	Observer  Observer
	Logger    logger.Logger
}

// Agent is the query-time pipeline
type Agent struct {
	cfg       *config.Config
	router    *Router
	retriever Retriever
	generator Generator
	judge     Judge
	extractor Extractor
	sessions  *SessionRegistry
	recorder  TurnRecorder
	wells     WellLister
	observer  Observer
	log       logger.Logger
}

// NewAgent checks the required dependencies
func NewAgent(deps AgentDeps) (*Agent, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("agent requires config")
	case deps.Retriever == nil:
		return nil, errors.New("agent requires a retriever")
	case deps.Generator == nil:
		return nil, errors.New("agent requires a generator")
	case deps.Judge == nil:
		return nil, errors.New("agent requires a judge")
	case deps.Extractor == nil:
		return nil, errors.New("agent requires an extractor")
	}
	if deps.Sessions == nil {
		deps.Sessions = NewSessionRegistry(deps.Config.Memory)
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Agent{
		cfg:       deps.Config,
		router:    NewRouter(nil),
		retriever: deps.Retriever,
		generator: deps.Generator,
		judge:     deps.Judge,
		extractor: deps.Extractor,
		sessions:  deps.Sessions,
		recorder:  deps.Recorder,
		wells:     deps.Wells,
		observer:  deps.Observer,
		log:       deps.Logger,
	}, nil
}

// Sessions exposes the session registry
func (a *Agent) Sessions() *SessionRegistry {
	return a.sessions
}

// RefreshWells loads known well names into the router
func (a *Agent) RefreshWells(ctx context.Context) ([]string, error) {
	if a.wells == nil {
		return nil, nil
	}
	wells, err := a.wells.Wells(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wells: %w", err)
	}
	a.router.SetKnownWells(wells)
	return wells, nil
}

func (a *Agent) withTimeout(ctx context.Context, interactive bool) (context.Context, context.CancelFunc) {
	d := a.cfg.Timeouts.Ceiling
	if interactive {
		d = a.cfg.Timeouts.Clamp(a.cfg.Timeouts.Interactive)
	}
	return context.WithTimeout(ctx, d)
}

// Ask answers a question within a session. An empty session id starts a new session.
// Service failures are reported through Answer.Status; only invalid input and
// context errors are returned as errors.
func (a *Agent) Ask(ctx context.Context, sessionID, query string, opts AskOptions) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, errors.New("query cannot be empty")
	}

	session, release := a.sessions.Acquire(sessionID)
	defer release()

	ctx, cancel := a.withTimeout(ctx, opts.Interactive)
	defer cancel()

	started := time.Now()
	route := a.router.Route(query, session.Memory)
	if opts.Mode != "" {
		if !opts.Mode.IsValid() {
			return Answer{}, fmt.Errorf("unknown query mode %q", opts.Mode)
		}
		route.Mode = opts.Mode
	}
	if opts.WellID != "" {
		route.WellID = opts.WellID
	}

	log := a.log.With("session", session.ID, "mode", route.Mode, "well", route.WellID)
	log.Info("query routed", "query", truncate(query, 80))

	ans := Answer{SessionID: session.ID, Query: query, Mode: route.Mode, WellID: route.WellID}
	var err error
	if route.Mode == models.QueryModeExtraction {
		err = a.askExtraction(ctx, session, &ans)
	} else {
		err = a.askQuestion(ctx, session, &ans, opts.TopK, log)
	}
	if err != nil {
		return Answer{}, err
	}

	a.observer.ObserveQuery(ans.Mode, string(ans.Status), time.Since(started))
	log.Info("query answered", "status", ans.Status, "attempts", ans.Attempts, "elapsed", time.Since(started))
	return ans, nil
}

func (a *Agent) askQuestion(ctx context.Context, session *Session, ans *Answer, topK int, log logger.Logger) error {
	set, err := a.retriever.Retrieve(ctx, ans.Query, ans.Mode, ans.WellID, topK)
	if err != nil {
		return a.unavailable(ans, "retrieval", err)
	}
	ans.Sources = set.Results
	ans.Reasons = append(ans.Reasons, set.Reasons...)
	if set.Degraded {
		a.observer.ObserveDegraded(strings.Join(set.Reasons, "; "))
	}
	if len(set.Results) == 0 {
		ans.Status = StatusEmpty
		ans.Text = emptyAnswer
		return nil
	}

	chunks := set.Chunks()
	in := PromptInput{
		Query:         ans.Query,
		Mode:          ans.Mode,
		WellID:        ans.WellID,
		Chunks:        chunks,
		MemoryContext: session.Memory.FormatContext(a.cfg.Memory.ContextTurns, ans.WellID, memoryContextChars),
	}

	var (
		verdict models.ValidationVerdict
		issues  []string
	)
	for attempt := 0; ; attempt++ {
		in.PriorIssues = issues
		draft, err := a.generator.Generate(ctx, in, attempt)
		ans.Attempts = attempt + 1
		if err != nil {
			return a.unavailable(ans, "generation", err)
		}
		ans.Text = draft

		verdict, err = a.judge.Validate(ctx, draft, chunks, ans.Mode)
		verdict.RetryCount = attempt
		issues = appendUnique(issues, verdict.Issues...)
		verdict.Issues = append([]string(nil), issues...)
		if err != nil {
			ans.Verdict = &verdict
			return a.unavailable(ans, "validation", err)
		}

		step := NextStep(verdict, a.cfg.Judge.MaxRetries)
		log.Debug("validation step", "attempt", attempt, "confidence", verdict.FinalConfidence, "step", step)
		if step != StepRetry {
			break
		}
	}

	ans.Verdict = &verdict
	a.observer.ObserveVerdict(verdict.Accepted, ans.Attempts, verdict.FinalConfidence)
	switch {
	case !verdict.Accepted:
		ans.Status = StatusRejected
		ans.Reasons = append(ans.Reasons, verdict.Issues...)
	case set.Degraded:
		ans.Status = StatusDegraded
	default:
		ans.Status = StatusOK
	}

	a.remember(ctx, session, ans, verdict)
	return nil
}

func (a *Agent) askExtraction(ctx context.Context, session *Session, ans *Answer) error {
	result, err := a.extract(ctx, ans.WellID)
	ans.Attempts = 1
	ans.Trajectory = &result
	ans.Reasons = append(ans.Reasons, result.Reasons...)
	if err != nil {
		return a.unavailable(ans, "extraction", err)
	}

	switch {
	case result.Empty():
		ans.Status = StatusEmpty
		ans.Text = "No trajectory table could be extracted."
	default:
		ans.Status = StatusOK
		if containsPrefix(result.Reasons, "retrieval degraded") {
			ans.Status = StatusDegraded
		}
		ans.Text = fmt.Sprintf("Extracted %d trajectory points (MD %.1f to %.1f m) by %s, confidence %.2f.",
			len(result.Points), result.Points[0].MeasuredDepth, result.Points[len(result.Points)-1].MeasuredDepth,
			result.Method, result.Confidence)
	}
	verdict := models.ValidationVerdict{FinalConfidence: result.Confidence, Accepted: !result.Empty()}
	a.remember(ctx, session, ans, verdict)
	return nil
}

// Extract runs trajectory extraction for a well outside of any session
func (a *Agent) Extract(ctx context.Context, wellID string) (models.TrajectoryResult, error) {
	ctx, cancel := a.withTimeout(ctx, false)
	defer cancel()
	return a.extract(ctx, wellID)
}

func (a *Agent) extract(ctx context.Context, wellID string) (models.TrajectoryResult, error) {
	query := strings.TrimSpace(trajectoryQuery + " " + wellID)
	set, err := a.retriever.Retrieve(ctx, query, models.QueryModeExtraction, wellID, 0)
	if err != nil {
		return models.EmptyTrajectory(wellID, fmt.Sprintf("retrieval failed: %v", err)), err
	}

	result, err := a.extractor.Extract(ctx, wellID, set.Chunks())
	if set.Degraded {
		for _, r := range set.Reasons {
			result.Reasons = append(result.Reasons, "retrieval degraded: "+r)
		}
		a.observer.ObserveDegraded(strings.Join(set.Reasons, "; "))
	}
	a.observer.ObserveExtraction(result.Method, len(result.Points))
	return result, err
}

// unavailable turns a service failure into a status. Anything else, including
// context cancellation, is returned as an error.
func (a *Agent) unavailable(ans *Answer, stage string, err error) error {
	if !errors.Is(err, models.ErrServiceUnavailable) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	a.log.Warn("pipeline stage unavailable", "stage", stage, "error", err)
	ans.Status = StatusUnavailable
	ans.Reasons = append(ans.Reasons, fmt.Sprintf("%s unavailable: %v", stage, err))
	return nil
}

// remember logs the turn and, when accepted, appends it to session memory.
// Rejected drafts stay out of memory so their numbers never become well facts.
func (a *Agent) remember(ctx context.Context, session *Session, ans *Answer, verdict models.ValidationVerdict) {
	wells := mergeWells(nonEmpty(ans.WellID), DetectWellNames(StripCitations(ans.Text)))
	turn, err := models.NewConversationTurn(ans.Query, ans.Text, ans.Mode, wells...)
	if err != nil {
		return
	}
	if verdict.Accepted {
		turn = session.Memory.Append(turn)
	}

	if a.recorder != nil {
		if err := a.recorder.RecordTurn(ctx, session.ID, turn, verdict); err != nil {
			a.log.Warn("failed to record turn", "session", session.ID, "error", err)
		}
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// ResetSession clears the chat memory of a session, keeping its id
func (a *Agent) ResetSession(id string) bool {
	return a.sessions.Reset(id)
}
