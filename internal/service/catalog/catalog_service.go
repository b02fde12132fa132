// Package catalog serves the public list of bookable packages.
package catalog

import (
	"context"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/sirupsen/logrus"
)

type CatalogUseCase interface {
	ListApproved(ctx context.Context) ([]domain.Package, error)
	GetApproved(ctx context.Context, id string) (*domain.Package, error)
}

type PackageReader interface {
	GetPackage(ctx context.Context, id string) (*domain.Package, error)
	ListPackages(ctx context.Context, filter repository.PackageFilter) ([]domain.Package, error)
}

type Cache interface {
	GetApprovedPackages(ctx context.Context) ([]domain.Package, error)
	SetApprovedPackages(ctx context.Context, packages []domain.Package) error
}

type CatalogService struct {
	repo  PackageReader
	cache Cache
	log   logrus.FieldLogger
}

// NewCatalogService builds the service. cache may be nil.
func NewCatalogService(repo PackageReader, cache Cache, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{repo: repo, cache: cache, log: log}
}

// ListApproved reads through the cache. Cache errors fall back to storage.
func (s *CatalogService) ListApproved(ctx context.Context) ([]domain.Package, error) {
	if s.cache != nil {
		cached, err := s.cache.GetApprovedPackages(ctx)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			s.log.WithError(err).Warn("read package catalogue from cache")
		}
	}

	packages, err := s.repo.ListPackages(ctx, repository.PackageFilter{Status: domain.PackageStatusApproved})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetApprovedPackages(ctx, packages); err != nil {
			s.log.WithError(err).Warn("write package catalogue to cache")
		}
	}
	return packages, nil
}

// GetApproved hides packages that are not open for booking.
func (s *CatalogService) GetApproved(ctx context.Context, id string) (*domain.Package, error) {
	pkg, err := s.repo.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pkg.Bookable() {
		return nil, domain.NotFound("package %s not found", id)
	}
	return pkg, nil
}

var _ CatalogUseCase = (*CatalogService)(nil)
