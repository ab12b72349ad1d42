package feedback

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/platform/metrics"
)

type Service struct {
	repo    Repository
	metrics *metrics.PortalMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) SetMetrics(m *metrics.PortalMetrics) { s.metrics = m }

func (s *Service) Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Feedback, error) {
	if req.Rating < MinRating || req.Rating > MaxRating {
		return nil, ErrInvalidRating
	}
	f := &Feedback{
		ID:          uuid.New(),
		UserID:      userID,
		Rating:      req.Rating,
		Comments:    strings.TrimSpace(req.Comments),
		SubmittedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("submit feedback: %w", err)
	}
	s.metrics.FeedbackSubmitted(strconv.Itoa(f.Rating))
	s.logger.Info().Str("feedback_id", f.ID.String()).Int("rating", f.Rating).Msg("feedback submitted")
	return f, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	if items == nil {
		items = []*Feedback{}
	}
	return items, total, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	return s.repo.Summary(ctx)
}
