package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/observability"
)

const gradeStreamBufferSize = 16

// GradeEventStream relays grade events to the live connections of the affected student. It wraps
// the outbound publisher: local subscribers are served directly and events from other nodes arrive
// over redis pub/sub, or NATS when redis is not configured.
type GradeEventStream interface {
	GradeEventPublisher
	Subscribe(studentID uint) (<-chan GradeEvent, func())
	Start(ctx context.Context)
}

type gradeEventStream struct {
	next         GradeEventPublisher
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger

	mu          sync.RWMutex
	subscribers map[uint]map[chan GradeEvent]struct{}
}

// NewGradeEventStream wraps next, which may be nil when events should stay on this node.
func NewGradeEventStream(next GradeEventPublisher, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) GradeEventStream {
	channel, subject := gradeEventTopics(channelBase)

	return &gradeEventStream{
		next:         next,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "grade_event_stream").Logger(),
		subscribers:  make(map[uint]map[chan GradeEvent]struct{}),
	}
}

func (s *gradeEventStream) Start(ctx context.Context) {
	switch {
	case s.redis != nil && s.redisChannel != "":
		go s.consumeRedis(ctx)
	case s.nats != nil && s.natsSubject != "":
		go s.consumeNATS(ctx)
	}
}

func (s *gradeEventStream) PublishGradeUpdated(ctx context.Context, event GradeEvent) error {
	if event.Source == "" {
		event.Source = s.nodeID
	}

	s.broadcast(event)

	if s.next == nil {
		return nil
	}
	return s.next.PublishGradeUpdated(ctx, event)
}

func (s *gradeEventStream) Subscribe(studentID uint) (<-chan GradeEvent, func()) {
	channel := make(chan GradeEvent, gradeStreamBufferSize)

	s.mu.Lock()
	if _, exists := s.subscribers[studentID]; !exists {
		s.subscribers[studentID] = make(map[chan GradeEvent]struct{})
	}
	s.subscribers[studentID][channel] = struct{}{}
	s.mu.Unlock()
	observability.GradeStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if subscribers, ok := s.subscribers[studentID]; ok {
				delete(subscribers, channel)
				if len(subscribers) == 0 {
					delete(s.subscribers, studentID)
				}
			}
			close(channel)
			observability.GradeStreamClients().Dec()
		})
	}

	return channel, cleanup
}

// broadcast never blocks; a subscriber whose buffer is full misses the event.
func (s *gradeEventStream) broadcast(event GradeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers[event.StudentID] {
		select {
		case ch <- event:
		default:
			s.logger.Warn().Uint("student_id", event.StudentID).Msg("grade stream subscriber lagging, event dropped")
		}
	}
}

func (s *gradeEventStream) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("grade event redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *gradeEventStream) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats grade subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain grade event nats subscription")
		}
	}()
}

func (s *gradeEventStream) handleEvent(payload []byte) {
	var event GradeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid grade event payload")
		return
	}

	// already delivered locally by PublishGradeUpdated
	if event.Source == s.nodeID {
		return
	}

	s.broadcast(event)
}
