package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/repository"
)

const MaxReportDescriptionRunes = 1000

// MaxIDRunes matches the width of the id columns.
const MaxIDRunes = 64

var (
	reportTargetTypes = map[string]struct{}{"thread": {}, "post": {}, "user": {}}
	reportReasons     = map[string]struct{}{
		"spam":           {},
		"harassment":     {},
		"inappropriate":  {},
		"misinformation": {},
		"other":          {},
	}
)

type reportStore interface {
	Create(ctx context.Context, r *repository.Report) error
}

type ReportMetrics interface {
	IncReportSubmitted(targetType string)
}

type ReportService struct {
	reports reportStore
	metrics ReportMetrics
	now     func() time.Time
}

func NewReportService(reports reportStore, metrics ReportMetrics) *ReportService {
	return &ReportService{reports: reports, metrics: metrics, now: time.Now}
}

// ValidateSubmit reports whether Submit would accept the input, without
// storing anything.
func (s *ReportService) ValidateSubmit(reporterID, targetID, targetType, reason, description string) error {
	_, _, err := normalizeReport(reporterID, targetID, targetType, reason, description)
	return err
}

func (s *ReportService) Submit(ctx context.Context, reporterID, targetID, targetType, reason, description string) (*repository.Report, error) {
	targetID, desc, err := normalizeReport(reporterID, targetID, targetType, reason, description)
	if err != nil {
		return nil, err
	}

	r := &repository.Report{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		TargetID:    targetID,
		TargetType:  targetType,
		Reason:      reason,
		Description: desc,
		Status:      repository.ReportStatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncReportSubmitted(targetType)
	}
	return r, nil
}

func normalizeReport(reporterID, targetID, targetType, reason, description string) (string, *string, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" || utf8.RuneCountInString(targetID) > MaxIDRunes {
		return "", nil, fmt.Errorf("%w: target_id must be 1..%d characters", ErrBadRequest, MaxIDRunes)
	}
	if _, ok := reportTargetTypes[targetType]; !ok {
		return "", nil, fmt.Errorf("%w: unknown target_type %q", ErrBadRequest, targetType)
	}
	if _, ok := reportReasons[reason]; !ok {
		return "", nil, fmt.Errorf("%w: unknown reason %q", ErrBadRequest, reason)
	}
	if targetType == "user" && targetID == reporterID {
		return "", nil, fmt.Errorf("%w: cannot report yourself", ErrBadRequest)
	}

	d := strings.TrimSpace(description)
	if d == "" {
		return targetID, nil, nil
	}
	if utf8.RuneCountInString(d) > MaxReportDescriptionRunes {
		return "", nil, fmt.Errorf("%w: description exceeds %d characters", ErrBadRequest, MaxReportDescriptionRunes)
	}
	return targetID, &d, nil
}
