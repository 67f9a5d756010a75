package services

import "cookbook/internal/models"

// PageSize: рецептов на страницу каталога.
const PageSize = 6

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func newPage(items []*models.Recipe, page, total int) *models.RecipePage {
	for _, r := range items {
		r.AverageRating = RoundRating(r.AverageRating)
	}
	return &models.RecipePage{
		Items:   items,
		Page:    page,
		Size:    PageSize,
		Total:   total,
		HasNext: page*PageSize < total,
	}
}
