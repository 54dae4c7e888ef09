package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
)

type ServiceParams struct {
	Repo Repository
	Now  func() time.Time
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements repo required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, now: now}, nil
}

// MonthKey renders the UTC month bucket used to partition token usage rows.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// EnsureLimit grants the user at least floor tokens for the current month.
// The stored limit never decreases: a downgrade event or a replayed older
// event cannot shrink an allowance already granted.
func (s *Service) EnsureLimit(ctx context.Context, userID uuid.UUID, floor int64) (*models.TokenUsage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if floor < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token floor must not be negative")
	}

	now := s.now().UTC()
	month := MonthKey(now)

	latest, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token usage")
	}

	limit := floor
	if latest != nil && latest.TokenLimit > limit {
		limit = latest.TokenLimit
	}

	usage := &models.TokenUsage{
		UserID:      userID,
		Month:       month,
		TokenLimit:  limit,
		LastResetAt: &now,
	}
	if err := s.repo.Upsert(ctx, usage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist token usage")
	}
	return usage, nil
}

// CurrentUsage returns this month's row for the user, or nil when the user
// has no entitlement yet.
func (s *Service) CurrentUsage(ctx context.Context, userID uuid.UUID) (*models.TokenUsage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	usage, err := s.repo.FindByUserMonth(ctx, userID, MonthKey(s.now()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token usage")
	}
	return usage, nil
}
