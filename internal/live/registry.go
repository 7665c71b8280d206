package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/observability"
	"go.uber.org/zap"
)

const defaultSubscriptionBuffer = 16

var ErrRegistryClosed = errors.New("live registry is closed")

// Subscription is one live connection of a recipient. Frames is never closed;
// readers select on Done to learn the subscription ended.
type Subscription struct {
	ID          string
	RecipientID int64

	frames chan Frame
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Frames() <-chan Frame {
	return s.frames
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) end() {
	s.once.Do(func() { close(s.done) })
}

// Registry maps recipients to their live subscriptions.
type Registry struct {
	buffer  int
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	subs   map[int64]map[*Subscription]struct{}
	closed bool
}

func NewRegistry(buffer int, logger *zap.Logger) *Registry {
	if buffer < 1 {
		buffer = defaultSubscriptionBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		buffer: buffer,
		logger: logger,
		subs:   make(map[int64]map[*Subscription]struct{}),
	}
}

func (r *Registry) SetMetrics(metrics *observability.Metrics) {
	r.metrics = metrics
}

// Subscribe registers a connection and queues the connected frame.
func (r *Registry) Subscribe(recipientID int64) (*Subscription, error) {
	if recipientID <= 0 {
		return nil, fmt.Errorf("%w: recipientId must be positive", domain.ErrValidation)
	}

	sub := &Subscription{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		frames:      make(chan Frame, r.buffer),
		done:        make(chan struct{}),
	}
	sub.frames <- connectedFrame()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	set, ok := r.subs[recipientID]
	if !ok {
		set = make(map[*Subscription]struct{})
		r.subs[recipientID] = set
	}
	set[sub] = struct{}{}
	r.metrics.IncLiveConnections()

	r.logger.Debug("live subscription registered",
		zap.String("subscriptionId", sub.ID),
		zap.Int64("recipientId", recipientID),
	)

	return sub, nil
}

// Unsubscribe is idempotent.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	removed := r.removeLocked(sub)
	r.mu.Unlock()

	if removed {
		r.logger.Debug("live subscription removed",
			zap.String("subscriptionId", sub.ID),
			zap.Int64("recipientId", sub.RecipientID),
		)
	}
}

// Publish pushes n to every live subscription of its recipient and returns how
// many accepted the frame. Subscriptions with a full buffer are dropped.
func (r *Registry) Publish(n domain.Notification) int {
	frame := notificationFrame(n)

	var (
		delivered int
		slow      []*Subscription
	)

	r.mu.RLock()
	for sub := range r.subs[n.RecipientID] {
		select {
		case sub.frames <- frame:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	r.mu.RUnlock()

	if len(slow) > 0 {
		r.mu.Lock()
		for _, sub := range slow {
			if r.removeLocked(sub) {
				r.metrics.IncLiveFramesDropped()
				r.logger.Warn("dropping slow live subscription",
					zap.String("subscriptionId", sub.ID),
					zap.Int64("recipientId", sub.RecipientID),
				)
			}
		}
		r.mu.Unlock()
	}

	return delivered
}

// Broadcast lets the registry serve directly as the notification broadcaster.
func (r *Registry) Broadcast(_ context.Context, n domain.Notification) error {
	r.Publish(n)
	return nil
}

// Count reports live subscriptions of a recipient.
func (r *Registry) Count(recipientID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[recipientID])
}

// Close ends every subscription and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for _, set := range r.subs {
		for sub := range set {
			r.removeLocked(sub)
		}
	}
}

func (r *Registry) removeLocked(sub *Subscription) bool {
	set, ok := r.subs[sub.RecipientID]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(r.subs, sub.RecipientID)
	}
	sub.end()
	r.metrics.DecLiveConnections()
	return true
}
