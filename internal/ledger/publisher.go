package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "trialgate/pkg/domain"
	"trialgate/pkg/requestcontext"
)

// Publisher is the single write path into the ledger. The store append is
// authoritative and synchronous: an operation's transition is only reported
// successful once its event is persisted. Sink fan-out (Kafka) is best-effort
// and asynchronous via the worker's inbox.
type Publisher struct {
	store Store
	inbox chan Event
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithSinkBuffer enables asynchronous fan-out with the given inbox capacity.
func WithSinkBuffer(n int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, n)
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists the event, filling in id, actor, and timestamp from context
// when unset.
//
// Emit runs after the triggering state change has committed, so a failed
// append surfaces as an error while the state change stands. The ledger may
// lag the record by one event in that window; callers that see an Emit
// failure should treat the operation as applied and re-read the record.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = requestcontext.Now(ctx)
	}
	if event.RecordedBy == "" {
		if ident, ok := requestcontext.ActorIdentity(ctx); ok {
			event.RecordedBy = ident.Username
		}
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		if event.Details == nil {
			event.Details = make(map[string]string, 1)
		}
		if _, set := event.Details["client"]; !set {
			event.Details["client"] = DescribeClient(ua)
		}
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			// A full inbox must not block or fail the transition; the store
			// already holds the authoritative copy.
		}
	}
	return nil
}

// Inbox exposes the fan-out channel for the worker. Nil when no sink is
// configured.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// List returns one participant's trail in recorded order.
func (p *Publisher) List(ctx context.Context, participantID id.ParticipantID) ([]Event, error) {
	return p.store.ListByParticipant(ctx, participantID)
}

// Sink forwards ledger events to an external system.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker drains the publisher inbox into a sink. Run blocks until ctx is
// cancelled; sink errors are retried once and then dropped, never propagated
// back to the operation that emitted the event.
type Worker struct {
	sink  Sink
	inbox <-chan Event
}

func NewWorker(sink Sink, inbox <-chan Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
				_ = w.sink.Publish(ctx, event)
			}
		}
	}
}
