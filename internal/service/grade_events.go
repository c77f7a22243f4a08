package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// GradeEvent announces that an enrollment grade was recalculated.
type GradeEvent struct {
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ClassID       uint      `json:"class_id"`
	StudentID     uint      `json:"student_id"`
	Grade         *string   `json:"grade"`
	Percentage    *float64  `json:"percentage"`
	ChangedAt     time.Time `json:"changed_at"`
}

// GradeEventPublisher fans grade events out to other nodes and consumers.
type GradeEventPublisher interface {
	PublishGradeUpdated(ctx context.Context, event GradeEvent) error
}

type gradeEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewGradeEventPublisher publishes on redis pub/sub and NATS when the respective client is set.
// channelBase "lms:grades" maps to redis channel "lms:grades:updated" and NATS subject
// "lms.grades.updated".
func NewGradeEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) GradeEventPublisher {
	channel, subject := gradeEventTopics(channelBase)

	return &gradeEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "grade_event_bus").Logger(),
	}
}

func gradeEventTopics(channelBase string) (channel, subject string) {
	if channelBase == "" {
		return "", ""
	}
	return channelBase + ":updated", strings.ReplaceAll(channelBase, ":", ".") + ".updated"
}

func (b *gradeEventBus) PublishGradeUpdated(ctx context.Context, event GradeEvent) error {
	if event.Source == "" {
		event.Source = b.nodeID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			observability.GradeEventsPublished().WithLabelValues("redis", "error").Inc()
			errs = append(errs, err)
		} else {
			observability.GradeEventsPublished().WithLabelValues("redis", "ok").Inc()
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			observability.GradeEventsPublished().WithLabelValues("nats", "error").Inc()
			errs = append(errs, err)
		} else {
			observability.GradeEventsPublished().WithLabelValues("nats", "ok").Inc()
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	b.logger.Debug().Uint("class_id", event.ClassID).Uint("student_id", event.StudentID).Msg("grade event published")
	return nil
}
