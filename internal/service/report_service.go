package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
)

var ErrInvalidReportReason = errors.New("invalid report reason")

type ReportService struct {
	users   repository.UserRepository
	reports repository.ReportRepository
}

func NewReportService(users repository.UserRepository, reports repository.ReportRepository) *ReportService {
	return &ReportService{users: users, reports: reports}
}

func (s *ReportService) Report(ctx context.Context, reporterID, reportedID int64, reason, details string) (domain.Report, error) {
	if _, err := s.users.GetByID(ctx, reportedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Report{}, ErrUserNotFound
		}
		return domain.Report{}, err
	}
	if reporterID == reportedID {
		return domain.Report{}, ErrSelfAction
	}
	r := domain.ReportReason(strings.TrimSpace(reason))
	if !r.Valid() {
		return domain.Report{}, ErrInvalidReportReason
	}

	report := domain.Report{
		ReporterID:     reporterID,
		ReportedUserID: reportedID,
		Reason:         r,
		Details:        strings.TrimSpace(details),
		CreatedAt:      time.Now().UTC(),
	}
	id, err := s.reports.Create(ctx, report)
	if err != nil {
		return domain.Report{}, err
	}
	report.ID = id
	return report, nil
}
