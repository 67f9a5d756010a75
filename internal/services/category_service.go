package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"cookbook/internal/authz"
	"cookbook/internal/models"
	"cookbook/internal/repositories"
	"cookbook/internal/validation"
)

type CategoryService struct {
	repo repositories.CategoryRepository
}

func NewCategoryService(repo repositories.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]*models.Category, error) {
	return s.repo.List(ctx)
}

func (s *CategoryService) Create(ctx context.Context, isStaff bool, name string) (*models.Category, error) {
	if !authz.CanManageCategories(isStaff) {
		return nil, ErrForbidden
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, validation.Errors{"category": "is required"}
	case utf8.RuneCountInString(name) > 30:
		return nil, validation.Errors{"category": "must be at most 30 characters"}
	}
	c := &models.Category{Name: name}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, validation.Errors{"category": "already exists"}
		}
		return nil, err
	}
	return c, nil
}
