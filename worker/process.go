package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/replydesk/compose"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/decision"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/platform"
	"github.com/xraph/replydesk/suggestion"
)

// Outcome is what Process did with an event.
type Outcome string

const (
	// OutcomeDone means the event was handled and marked done.
	OutcomeDone Outcome = "done"

	// OutcomeFailed means the event was marked failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means another worker owns the event or it is no
	// longer pending.
	OutcomeSkipped Outcome = "skipped"
)

// Action labels for events that produce no decision.
const (
	actionIgnored   = "ignored"
	actionDuplicate = "duplicate"
)

// finalizeTimeout bounds the terminal write after the processing context
// has expired.
const finalizeTimeout = 5 * time.Second

type result struct {
	action   string
	attempts int
}

// Process claims evtID and runs it to a terminal state. Losing the claim
// is not an error. Once claimed, the event always ends done or failed,
// even when ctx is cancelled or the processing timeout fires.
func (w *Worker) Process(ctx context.Context, evtID id.ID) (Outcome, error) {
	evt, err := w.store.GetEvent(ctx, evtID)
	if err != nil {
		return "", fmt.Errorf("worker: load event: %w", err)
	}
	if evt.Status != event.StatusPending {
		return OutcomeSkipped, nil
	}

	start := time.Now()
	claimed, err := w.store.CompareAndSwap(ctx, evtID, event.Transition{
		From: event.StatusPending,
		To:   event.StatusProcessing,
		At:   w.now(),
	})
	if err != nil {
		return "", fmt.Errorf("worker: claim event: %w", err)
	}
	if !claimed {
		w.logger.DebugContext(ctx, "event claimed elsewhere", "event_id", evtID.String())
		return OutcomeSkipped, nil
	}

	var span trace.Span
	if w.config.Tracer != nil {
		ctx, span = w.config.Tracer.StartEventSpan(ctx, evtID.String(), evt.TenantID)
	}

	pctx, cancel := context.WithTimeout(ctx, w.config.ProcessTimeout)
	res, handleErr := w.handle(pctx, evt)
	cancel()

	outcome, finalErr := w.finalize(ctx, evt, res, handleErr)

	w.config.Metrics.RecordProcessed(string(outcome), time.Since(start).Seconds())
	if span != nil {
		w.config.Tracer.EndEventSpan(span, string(outcome), res.action, handleErr)
	}
	return outcome, finalErr
}

// finalize writes the terminal state with a context detached from the
// caller's cancellation.
func (w *Worker) finalize(ctx context.Context, evt *event.InboundEvent, res result, handleErr error) (Outcome, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	t := event.Transition{
		From:     event.StatusProcessing,
		To:       event.StatusDone,
		At:       w.now(),
		Attempts: res.attempts,
	}
	outcome := OutcomeDone
	if handleErr != nil {
		t.To = event.StatusFailed
		t.LastError = handleErr.Error()
		outcome = OutcomeFailed
	}

	ok, err := w.store.CompareAndSwap(fctx, evt.ID, t)
	if err != nil {
		return outcome, fmt.Errorf("worker: finalize event: %w", err)
	}
	if !ok {
		return outcome, fmt.Errorf("worker: event %s left processing unexpectedly", evt.ID)
	}

	if handleErr != nil {
		w.logger.WarnContext(ctx, "event failed",
			"event_id", evt.ID.String(),
			"tenant_id", evt.TenantID,
			"attempts", res.attempts,
			"error", handleErr,
		)
	} else {
		w.logger.InfoContext(ctx, "event processed",
			"event_id", evt.ID.String(),
			"tenant_id", evt.TenantID,
			"action", res.action,
		)
	}
	return outcome, nil
}

func (w *Worker) handle(ctx context.Context, evt *event.InboundEvent) (result, error) {
	p := w.pipeline

	payload, err := evt.Decode()
	if err != nil {
		return result{}, err
	}
	if !payload.IsText() {
		return result{action: actionIgnored}, nil
	}
	text := payload.Text()

	if !p.Ledger.Claim(ctx, evt.ExternalID, evt.TenantID) {
		w.logger.InfoContext(ctx, "event already handled for tenant",
			"event_id", evt.ID.String(),
			"external_id", evt.ExternalID,
		)
		return result{action: actionDuplicate}, nil
	}

	secrets, err := p.Credentials.Resolve(ctx, evt.TenantID)
	if err != nil {
		return result{}, fmt.Errorf("resolve credentials: %w", err)
	}

	assessment := p.Classifier.Classify(text)

	found := &knowledge.Result{}
	if p.Knowledge != nil {
		r, err := p.Knowledge.Search(ctx, evt.TenantID, text, w.config.KnowledgeLimit, w.config.KnowledgeMaxChars)
		if err != nil {
			w.logger.WarnContext(ctx, "knowledge search failed, continuing without sources",
				"event_id", evt.ID.String(),
				"error", err,
			)
		} else {
			found = r
		}
	}

	reply, err := p.Composer.Compose(ctx, compose.Request{
		TenantID:  evt.TenantID,
		ContactID: evt.ContactID,
		Message:   text,
		Knowledge: found.Text,
		Sources:   found.SourceCount,
		RiskLevel: assessment.Level,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "compose failed, continuing without draft",
			"event_id", evt.ID.String(),
			"error", err,
		)
		reply = &compose.Reply{}
	}

	confidence := decision.CalculateConfidence(decision.ConfidenceInput{
		SourceCount:        found.SourceCount,
		Draft:              reply.Text,
		GuardrailTriggered: reply.GuardrailTriggered,
	})
	d := p.Decider.Decide(decision.Input{
		RiskLevel:      assessment.Level,
		SourceCount:    found.SourceCount,
		Confidence:     confidence,
		CandidateDraft: reply.Text,
		Threshold:      secrets.ConfidenceThreshold,

		MoneyRequest:           assessment.MoneyRequest,
		StructuredMoneyRequest: assessment.IsStructuredMoneyRequest(),
		OrderNumber:            assessment.OrderNumber,
	})
	w.config.Metrics.RecordDecision(string(d.Action))

	w.logger.DebugContext(ctx, "decision",
		"event_id", evt.ID.String(),
		"action", d.Action,
		"risk_level", assessment.Level,
		"sources", found.SourceCount,
		"confidence", confidence,
		"threshold", secrets.ConfidenceThreshold,
		"reason", d.Reason,
	)

	res := result{action: string(d.Action)}
	switch d.Action {
	case decision.ActionAuto:
		attempts, err := p.Sender.Send(ctx, platform.PushRequest{
			AccessToken: secrets.AccessToken,
			To:          evt.ContactID,
			Messages:    []platform.Message{platform.TextMessage(d.Draft)},
			RetryKey:    retryKey(evt),
		})
		res.attempts = attempts
		if err != nil {
			w.config.Metrics.RecordSend("failed")
			return res, err
		}
		w.config.Metrics.RecordSend("sent")
		w.recordMessage(ctx, evt, d.Draft)

	case decision.ActionSuggest, decision.ActionAsk:
		if err := w.store.CreateSuggestion(ctx, w.newSuggestion(evt, text, d, found.SourceCount, string(assessment.Level))); err != nil {
			return res, fmt.Errorf("create suggestion: %w", err)
		}

	case decision.ActionHandoff:
		if _, err := w.store.MarkHandoff(ctx, evt.TenantID, evt.ContactID, d.Reason, w.now()); err != nil {
			return res, fmt.Errorf("mark handoff: %w", err)
		}

	default:
		return res, errors.New("unknown decision action " + string(d.Action))
	}
	return res, nil
}

func (w *Worker) newSuggestion(evt *event.InboundEvent, text string, d decision.Decision, sources int, riskLevel string) *suggestion.Suggestion {
	now := w.now()
	sug := &suggestion.Suggestion{
		Entity:          entity.Entity{CreatedAt: now, UpdatedAt: now},
		ID:              id.NewSuggestionID(),
		TenantID:        evt.TenantID,
		ContactID:       evt.ContactID,
		EventID:         evt.ID,
		Kind:            suggestion.KindSuggest,
		UserMessage:     text,
		DraftReply:      d.Draft,
		SourcesCount:    sources,
		ConfidenceScore: d.Confidence,
		RiskCategory:    riskLevel,
		Status:          suggestion.StatusDraft,
		ExpiresAt:       now.Add(w.config.SuggestionTTL),
	}
	if d.Action == decision.ActionAsk {
		sug.Kind = suggestion.KindAsk
		sug.DraftReply = d.AskText
	}
	return sug
}

func (w *Worker) recordMessage(ctx context.Context, evt *event.InboundEvent, text string) {
	now := w.now()
	msg := &conversation.Message{
		Entity:    entity.Entity{CreatedAt: now, UpdatedAt: now},
		ID:        id.NewMessageID(),
		TenantID:  evt.TenantID,
		ContactID: evt.ContactID,
		EventID:   evt.ID,
		Text:      text,
		Origin:    conversation.OriginAuto,
		SentAt:    now,
	}
	if err := w.store.RecordMessage(ctx, msg); err != nil {
		w.logger.WarnContext(ctx, "failed to record sent message", "event_id", evt.ID.String(), "error", err)
	}
}

func retryKey(evt *event.InboundEvent) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(evt.TenantID+":"+evt.ExternalID)).String()
}
