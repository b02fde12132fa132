package catalog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPackageReader struct {
	mock.Mock
}

func (m *MockPackageReader) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Package), args.Error(1)
}

func (m *MockPackageReader) ListPackages(ctx context.Context, filter repository.PackageFilter) ([]domain.Package, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Package), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetApprovedPackages(ctx context.Context) ([]domain.Package, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Package), args.Error(1)
}

func (m *MockCache) SetApprovedPackages(ctx context.Context, packages []domain.Package) error {
	args := m.Called(ctx, packages)
	return args.Error(0)
}

var approvedFilter = repository.PackageFilter{Status: domain.PackageStatusApproved}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func samplePackages() []domain.Package {
	return []domain.Package{{
		ID:      "p-1",
		AgentID: "agent-1",
		Title:   "Bali",
		Price:   decimal.NewFromInt(20000),
		Status:  domain.PackageStatusApproved,
	}}
}

func TestCatalogService_ListApproved_CacheMiss(t *testing.T) {
	repo := &MockPackageReader{}
	cache := &MockCache{}
	service := NewCatalogService(repo, cache, quietLogger())
	ctx := context.Background()
	packages := samplePackages()

	cache.On("GetApprovedPackages", ctx).Return(([]domain.Package)(nil), nil).Once()
	repo.On("ListPackages", ctx, approvedFilter).Return(packages, nil).Once()
	cache.On("SetApprovedPackages", ctx, packages).Return(nil).Once()

	result, err := service.ListApproved(ctx)

	assert.NoError(t, err)
	assert.Equal(t, packages, result)
	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestCatalogService_ListApproved_CacheHit(t *testing.T) {
	repo := &MockPackageReader{}
	cache := &MockCache{}
	service := NewCatalogService(repo, cache, quietLogger())
	ctx := context.Background()
	packages := samplePackages()

	cache.On("GetApprovedPackages", ctx).Return(packages, nil).Once()

	result, err := service.ListApproved(ctx)

	assert.NoError(t, err)
	assert.Equal(t, packages, result)
	repo.AssertNotCalled(t, "ListPackages", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "SetApprovedPackages", mock.Anything, mock.Anything)
}

func TestCatalogService_ListApproved_CacheErrorFallsBack(t *testing.T) {
	repo := &MockPackageReader{}
	cache := &MockCache{}
	service := NewCatalogService(repo, cache, quietLogger())
	ctx := context.Background()
	packages := samplePackages()

	cache.On("GetApprovedPackages", ctx).Return(([]domain.Package)(nil), errors.New("cache error")).Once()
	repo.On("ListPackages", ctx, approvedFilter).Return(packages, nil).Once()
	cache.On("SetApprovedPackages", ctx, packages).Return(errors.New("cache error")).Once()

	result, err := service.ListApproved(ctx)

	assert.NoError(t, err)
	assert.Equal(t, packages, result)
	repo.AssertExpectations(t)
}

func TestCatalogService_ListApproved_RepositoryError(t *testing.T) {
	repo := &MockPackageReader{}
	cache := &MockCache{}
	service := NewCatalogService(repo, cache, quietLogger())
	ctx := context.Background()
	expectedErr := errors.New("database error")

	cache.On("GetApprovedPackages", ctx).Return(([]domain.Package)(nil), nil).Once()
	repo.On("ListPackages", ctx, approvedFilter).Return(nil, expectedErr).Once()

	result, err := service.ListApproved(ctx)

	assert.Nil(t, result)
	assert.Equal(t, expectedErr, err)
	cache.AssertNotCalled(t, "SetApprovedPackages", mock.Anything, mock.Anything)
}

func TestCatalogService_ListApproved_NoCache(t *testing.T) {
	repo := &MockPackageReader{}
	service := NewCatalogService(repo, nil, quietLogger())
	ctx := context.Background()

	repo.On("ListPackages", ctx, approvedFilter).Return(samplePackages(), nil).Once()

	result, err := service.ListApproved(ctx)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestCatalogService_GetApproved(t *testing.T) {
	repo := &MockPackageReader{}
	service := NewCatalogService(repo, nil, quietLogger())
	ctx := context.Background()

	approved := samplePackages()[0]
	pending := approved
	pending.ID = "p-2"
	pending.Status = domain.PackageStatusPending

	repo.On("GetPackage", ctx, "p-1").Return(&approved, nil)
	repo.On("GetPackage", ctx, "p-2").Return(&pending, nil)
	repo.On("GetPackage", ctx, "p-3").Return(nil, domain.NotFound("package p-3 not found"))

	got, err := service.GetApproved(ctx, "p-1")
	assert.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)

	_, err = service.GetApproved(ctx, "p-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.GetApproved(ctx, "p-3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
