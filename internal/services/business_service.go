package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"swimdesk/internal/caching"
	"swimdesk/internal/directory"
	"swimdesk/internal/lib/sl"
	"swimdesk/internal/metrics"
	"swimdesk/internal/models"
	"swimdesk/internal/repositories"
	"swimdesk/internal/tiers"
)

var (
	ErrBusinessNotFound = repositories.ErrBusinessNotFound
	// ErrConfirmationRequired is returned when an owner reset is confirmed or
	// cancelled without a live token from RequestOwnerReset.
	ErrConfirmationRequired = errors.New("owner reset requires a valid confirmation token")
	ErrResetRateLimited     = errors.New("too many owner reset requests")
	ErrInvalidCriteria      = errors.New("invalid directory criteria")
)

type BusinessServiceConfig struct {
	CacheTTL        time.Duration
	OwnerResetTTL   time.Duration
	OwnerResetLimit int
	ExportBucket    string
	ExportURLExpiry time.Duration
}

// ChangeRequest is an operator edit from the detail view. UpdatedAt, when
// set, is the version of the record the operator was looking at.
type ChangeRequest struct {
	Status    *models.BusinessStatus `json:"status,omitempty" validate:"omitempty,oneof=active pending_activation suspended"`
	Tier      *string                `json:"tier,omitempty" validate:"omitempty,oneof=basic starter growth unlimited"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
}

type OwnerResetRequest struct {
	BusinessID uuid.UUID `json:"business_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type OwnerResetResult struct {
	BusinessID     uuid.UUID `json:"business_id"`
	NotificationID uuid.UUID `json:"notification_id"`
	Message        string    `json:"message"`
}

type ExportResult struct {
	Object string `json:"object"`
	URL    string `json:"url"`
	Rows   int    `json:"rows"`
}

type BusinessService interface {
	List(ctx context.Context, criteria directory.Criteria) ([]*models.Business, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Business, error)
	UpdateBusiness(ctx context.Context, id uuid.UUID, req ChangeRequest) (*models.Business, error)
	SubmitChange(ctx context.Context, change directory.PendingChange) (*models.Business, error)
	RequestOwnerReset(ctx context.Context, id uuid.UUID) (*OwnerResetRequest, error)
	ConfirmOwnerReset(ctx context.Context, id uuid.UUID, token string) (*OwnerResetResult, error)
	CancelOwnerReset(ctx context.Context, id uuid.UUID, token string) error
	ExportDirectory(ctx context.Context, criteria directory.Criteria) (*ExportResult, error)
	RefreshCache(ctx context.Context) (int, error)
}

type businessService struct {
	repo     repositories.BusinessRepository
	cache    caching.CacheService
	notifier NotificationService
	storage  MinioService
	cfg      BusinessServiceConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewBusinessService(
	repo repositories.BusinessRepository,
	cache caching.CacheService,
	notifier NotificationService,
	storage MinioService,
	cfg BusinessServiceConfig,
	log *slog.Logger,
) BusinessService {
	if cfg.OwnerResetTTL <= 0 {
		cfg.OwnerResetTTL = 10 * time.Minute
	}
	if cfg.OwnerResetLimit <= 0 {
		cfg.OwnerResetLimit = 5
	}
	if cfg.ExportURLExpiry <= 0 {
		cfg.ExportURLExpiry = 15 * time.Minute
	}
	return &businessService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		storage:  storage,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (s *businessService) List(ctx context.Context, criteria directory.Criteria) ([]*models.Business, error) {
	const op = "services.businessService.List"

	if !directory.ValidCriteria(criteria) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCriteria)
	}
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return directory.Filter(all, criteria), nil
}

// loadAll reads the full directory cache-aside. Cache failures fall back to
// the repository.
func (s *businessService) loadAll(ctx context.Context) ([]*models.Business, error) {
	const op = "services.businessService.loadAll"

	cached, err := s.cache.GetBusinesses(ctx)
	if err != nil {
		s.log.Warn("directory cache read failed", slog.String("op", op), sl.Err(err))
	} else if cached != nil {
		metrics.DirectoryQueriesTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}

	metrics.DirectoryQueriesTotal.WithLabelValues("miss").Inc()
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBusinesses(ctx, all, s.cfg.CacheTTL); err != nil {
		s.log.Warn("directory cache write failed", slog.String("op", op), sl.Err(err))
	}
	return all, nil
}

// Get resolves the detail view from the cached directory and falls back to
// the repository when the record is not cached.
func (s *businessService) Get(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	const op = "services.businessService.Get"

	cached, err := s.cache.GetBusinesses(ctx)
	if err != nil {
		s.log.Warn("directory cache read failed", slog.String("op", op), sl.Err(err))
	}
	if b, ok := directory.SelectForDetail(cached, id); ok {
		metrics.DirectoryQueriesTotal.WithLabelValues("hit").Inc()
		return b, nil
	}
	return s.fetch(ctx, id)
}

// fetch reads the stored record. Writes and owner resets start from it
// rather than from the cache.
func (s *businessService) fetch(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	const op = "services.businessService.fetch"

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// UpdateBusiness drafts req against the stored record and submits it.
func (s *businessService) UpdateBusiness(ctx context.Context, id uuid.UUID, req ChangeRequest) (*models.Business, error) {
	const op = "services.businessService.UpdateBusiness"

	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UpdatedAt != nil && !req.UpdatedAt.Equal(record.UpdatedAt) {
		return nil, fmt.Errorf("%s: %w", op, repositories.ErrStaleChange)
	}

	d, err := directory.BeginEdit(record)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.Status != nil {
		if err := d.ApplyStatusChange(*req.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if req.Tier != nil {
		t, ok := tiers.ParseTier(*req.Tier)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", op, directory.ErrInvalidTier, *req.Tier)
		}
		if err := d.ApplyTierChange(t); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	change := d.Commit()
	if change.Patch.Empty() {
		return record, nil
	}
	return s.SubmitChange(ctx, change)
}

// SubmitChange persists a pending change. Only the stored result should
// replace the operator's copy of the record.
func (s *businessService) SubmitChange(ctx context.Context, change directory.PendingChange) (*models.Business, error) {
	const op = "services.businessService.SubmitChange"

	stored, err := s.repo.ApplyChange(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.InvalidateBusinesses(ctx); err != nil {
		s.log.Warn("directory cache invalidation failed", slog.String("op", op), sl.Err(err))
	}
	if change.Patch.Tier != nil {
		metrics.TierChangesTotal.WithLabelValues("business", stored.Tier.String()).Inc()
	}

	s.log.Info("business updated",
		slog.String("op", op),
		slog.String("business_id", stored.ID.String()),
		slog.String("status", string(stored.Status)),
		slog.String("tier", stored.Tier.String()),
	)
	return stored, nil
}

func (s *businessService) RequestOwnerReset(ctx context.Context, id uuid.UUID) (*OwnerResetRequest, error) {
	const op = "services.businessService.RequestOwnerReset"

	if _, err := s.fetch(ctx, id); err != nil {
		return nil, err
	}

	limited, err := s.cache.IsRateLimited(ctx, "owner_reset:"+id.String(), s.cfg.OwnerResetLimit, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if limited {
		return nil, fmt.Errorf("%s: %w", op, ErrResetRateLimited)
	}

	token := uuid.NewString()
	if err := s.cache.SetResetToken(ctx, id, token, s.cfg.OwnerResetTTL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.OwnerResetsTotal.WithLabelValues("requested").Inc()

	return &OwnerResetRequest{
		BusinessID: id,
		Token:      token,
		ExpiresAt:  s.now().Add(s.cfg.OwnerResetTTL).UTC(),
	}, nil
}

func (s *businessService) ConfirmOwnerReset(ctx context.Context, id uuid.UUID, token string) (*OwnerResetResult, error) {
	const op = "services.businessService.ConfirmOwnerReset"

	ok, err := s.cache.ConsumeResetToken(ctx, id, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrConfirmationRequired)
	}

	b, err := s.fetch(ctx, id)
	if err != nil {
		s.restoreResetToken(ctx, id, token)
		return nil, err
	}

	n, err := s.notifier.SendOwnerReset(ctx, b)
	if err != nil {
		s.restoreResetToken(ctx, id, token)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.OwnerResetsTotal.WithLabelValues("confirmed").Inc()

	s.log.Info("owner access reset",
		slog.String("op", op),
		slog.String("business_id", id.String()),
		slog.String("notification_id", n.ID.String()),
	)

	return &OwnerResetResult{
		BusinessID:     id,
		NotificationID: n.ID,
		Message:        fmt.Sprintf("Owner access for %s has been reset. A notification was sent to %s.", b.Name, b.Owner.Email),
	}, nil
}

// restoreResetToken puts a consumed token back so the operator can retry a
// confirmation that failed before the owner was notified.
func (s *businessService) restoreResetToken(ctx context.Context, id uuid.UUID, token string) {
	const op = "services.businessService.restoreResetToken"

	if err := s.cache.SetResetToken(ctx, id, token, s.cfg.OwnerResetTTL); err != nil {
		s.log.Error("failed to restore owner reset token",
			slog.String("op", op),
			slog.String("business_id", id.String()),
			sl.Err(err),
		)
	}
}

func (s *businessService) CancelOwnerReset(ctx context.Context, id uuid.UUID, token string) error {
	const op = "services.businessService.CancelOwnerReset"

	ok, err := s.cache.ConsumeResetToken(ctx, id, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrConfirmationRequired)
	}
	metrics.OwnerResetsTotal.WithLabelValues("cancelled").Inc()
	return nil
}

var exportHeader = []string{
	"id", "name", "owner_name", "owner_email", "status", "tier", "plan", "price",
	"location", "total_clients", "active_clients", "monthly_revenue", "created_at",
}

// ExportDirectory uploads the filtered directory as CSV and returns a
// presigned download link.
func (s *businessService) ExportDirectory(ctx context.Context, criteria directory.Criteria) (*ExportResult, error) {
	const op = "services.businessService.ExportDirectory"

	businesses, err := s.List(ctx, criteria)
	if err != nil {
		return nil, err
	}

	data, err := encodeDirectoryCSV(businesses)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	object := fmt.Sprintf("directory/%s-%s.csv", s.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	if err := s.storage.EnsureBucketExists(ctx, s.cfg.ExportBucket); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.storage.UploadObject(ctx, s.cfg.ExportBucket, object, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	url, err := s.storage.GetPresignedURL(ctx, s.cfg.ExportBucket, object, s.cfg.ExportURLExpiry)
	if err != nil {
		// Nobody can download an export without a link.
		if delErr := s.storage.DeleteObject(ctx, s.cfg.ExportBucket, object); delErr != nil {
			s.log.Warn("failed to remove unreachable export",
				slog.String("op", op),
				slog.String("object", object),
				sl.Err(delErr),
			)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ExportResult{Object: object, URL: url, Rows: len(businesses)}, nil
}

func encodeDirectoryCSV(businesses []*models.Business) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, b := range businesses {
		record := []string{
			b.ID.String(),
			b.Name,
			b.Owner.Name,
			b.Owner.Email,
			string(b.Status),
			b.Tier.String(),
			b.Subscription.Plan,
			strconv.FormatFloat(b.Subscription.Price, 'f', 2, 64),
			b.Location,
			strconv.Itoa(b.Stats.TotalClients),
			strconv.Itoa(b.Stats.ActiveClients),
			strconv.FormatFloat(b.Stats.MonthlyRevenue, 'f', 2, 64),
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// RefreshCache reloads the directory from the repository into the cache and
// returns the number of records.
func (s *businessService) RefreshCache(ctx context.Context) (int, error) {
	const op = "services.businessService.RefreshCache"

	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.SetBusinesses(ctx, all, s.cfg.CacheTTL); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(all), nil
}
