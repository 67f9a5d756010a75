package authz

import "cookbook/internal/models"

// CanEditRecipe: править и удалять рецепт может только автор.
func CanEditRecipe(userID int, r *models.Recipe) bool {
	return r != nil && userID != 0 && r.AuthorID == userID
}

// CanManageCategories: категории заводит только персонал.
func CanManageCategories(isStaff bool) bool {
	return isStaff
}
