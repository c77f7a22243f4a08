package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// GPAService converts a student's enrollment grades into a single unweighted GPA.
type GPAService interface {
	GPACacheInvalidator
	ComputeGPA(ctx context.Context, studentID uint) (float64, error)
}

type gpaService struct {
	students    repository.StudentRepository
	enrollments repository.EnrollmentRepository
	scale       GradeScale
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewGPAService builds the GPA calculator. cache may be nil to disable caching.
func NewGPAService(students repository.StudentRepository, enrollments repository.EnrollmentRepository, scale GradeScale, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) GPAService {
	return &gpaService{
		students:    students,
		enrollments: enrollments,
		scale:       scale,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "gpa_service").Logger(),
	}
}

var errStaleGPA = errors.New("gpa invalidated while computing")

func gpaCacheKey(studentID uint) string {
	return fmt.Sprintf("gpa:student:%d", studentID)
}

// gpaGenerationKey is bumped on every invalidation. A computed GPA is only cached when the
// generation it was read under is still current.
func gpaGenerationKey(studentID uint) string {
	return gpaCacheKey(studentID) + ":gen"
}

func (s *gpaService) ComputeGPA(ctx context.Context, studentID uint) (float64, error) {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		return 0, translateNotFound(err, ErrStudentNotFound)
	}

	cacheKey := gpaCacheKey(studentID)
	var generation string
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			if gpa, parseErr := strconv.ParseFloat(cached, 64); parseErr == nil {
				observability.GPACacheLookups().WithLabelValues("hit").Inc()
				s.logger.Debug().Uint("student_id", studentID).Msg("gpa cache hit")
				return gpa, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read gpa cache")
		}
		observability.GPACacheLookups().WithLabelValues("miss").Inc()

		var err error
		generation, err = s.cache.Get(ctx, gpaGenerationKey(studentID)).Result()
		if err != nil && err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read gpa cache generation")
		}
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return 0, err
	}

	var totalPoints float64
	var counted int
	for _, enrollment := range enrollments {
		if !enrollment.HasGrade() {
			continue
		}
		points, ok := s.scale.Points(*enrollment.Grade)
		if !ok {
			s.logger.Warn().Uint("student_id", studentID).Uint("class_id", enrollment.ClassID).Str("grade", *enrollment.Grade).Msg("skipping unknown letter grade")
			continue
		}
		totalPoints += points
		counted++
	}

	gpa := 0.0
	if counted > 0 {
		gpa = totalPoints / float64(counted)
	}

	if s.cache != nil {
		s.storeGPA(ctx, studentID, generation, gpa)
	}

	return gpa, nil
}

// storeGPA writes the cache entry only if no invalidation happened since generation was read.
func (s *gpaService) storeGPA(ctx context.Context, studentID uint, generation string, gpa float64) {
	genKey := gpaGenerationKey(studentID)
	value := strconv.FormatFloat(gpa, 'f', -1, 64)

	err := s.cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != generation {
			return errStaleGPA
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, gpaCacheKey(studentID), value, s.cacheTTL)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGPA), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug().Uint("student_id", studentID).Msg("gpa changed during computation, not caching")
	default:
		s.logger.Warn().Err(err).Msg("failed to store gpa cache")
	}
}

func (s *gpaService) InvalidateGPA(ctx context.Context, studentID uint) error {
	if s.cache == nil {
		return nil
	}

	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gpaGenerationKey(studentID))
		pipe.Del(ctx, gpaCacheKey(studentID))
		return nil
	})
	return err
}
