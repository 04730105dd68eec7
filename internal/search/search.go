// Package search implements the federated read path: admin and assistant
// queries fan out to the local application store and the customer service in
// parallel and merge the results.
//
// The local store only speaks for PENDING and REJECTED applicants; once an
// application is VERIFIED the customer service owns the record, so VERIFIED
// local rows are filtered out of search results rather than shown as stale
// duplicates of the remote hit.
package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"onboarding/internal/collaborator/customer"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/pkg/domain"
)

// CustomerDirectory is the slice of the customer service the federated
// search needs.
type CustomerDirectory interface {
	Search(ctx context.Context, keyword string) ([]customer.Profile, error)
	Available() bool
}

// Result merges the two sides of a federated search. Degraded is set when
// the remote leg failed or was skipped; the local half is still authoritative
// for undecided applicants, so callers render it with a warning instead of
// failing the whole request.
type Result struct {
	Applications []*models.Application `json:"applications"`
	Customers    []customer.Profile    `json:"customers"`
	Degraded     bool                  `json:"degraded,omitempty"`
}

// Stats is the dashboard summary. Verified is derived rather than counted:
// total = pending + rejected + verified holds by the status invariant, so
// deriving it keeps the three numbers consistent even if rows change between
// two count queries.
type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Rejected int64 `json:"rejected"`
	Verified int64 `json:"verified"`
}

// Service runs federated queries.
type Service struct {
	store     store.Store
	customers CustomerDirectory
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New wires the federated search service. customers may be nil; every search
// then runs local-only and reports degraded.
func New(st store.Store, customers CustomerDirectory, opts ...Option) *Service {
	s := &Service{
		store:     st,
		customers: customers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search fans out to the local store and the customer service in parallel.
// A remote failure degrades to local-only results: a search must not 500
// because a collaborator is down.
func (s *Service) Search(ctx context.Context, keyword string) (*Result, error) {
	result := &Result{
		Applications: []*models.Application{},
		Customers:    []customer.Profile{},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		apps, err := s.store.Search(gctx, keyword)
		if err != nil {
			return err
		}
		for _, app := range apps {
			if app.Status == domain.KycStatusVerified {
				continue
			}
			result.Applications = append(result.Applications, app)
		}
		return nil
	})

	g.Go(func() error {
		if s.customers == nil || !s.customers.Available() {
			result.Degraded = true
			return nil
		}
		profiles, err := s.customers.Search(gctx, keyword)
		if err != nil {
			s.logger.WarnContext(gctx, "customer search degraded to local-only",
				"keyword", keyword, "error", err)
			result.Degraded = true
			return nil
		}
		result.Customers = profiles
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// DashboardStats counts total, pending, and rejected applications and
// derives the verified figure.
func (s *Service) DashboardStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Total, err = s.store.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Pending, err = s.store.CountByStatus(gctx, domain.KycStatusPending)
		return err
	})
	g.Go(func() (err error) {
		stats.Rejected, err = s.store.CountByStatus(gctx, domain.KycStatusRejected)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Verified = stats.Total - stats.Pending - stats.Rejected
	return &stats, nil
}
