package services

import (
	"fmt"
	"strings"
	"time"
)

func verificationEmail(code string, ttl time.Duration) (subject, body string) {
	return "Код подтверждения регистрации",
		fmt.Sprintf("Ваш код подтверждения: %s\n\nКод действует %d мин. Если вы не регистрировались, просто проигнорируйте это письмо.",
			code, int(ttl.Minutes()))
}

func passwordResetEmail(token string) (subject, body string) {
	return "Сброс пароля",
		fmt.Sprintf("Мы получили запрос на сброс пароля.\n\nТокен для сброса: %s\nОн действует один час. Если это были не вы, ничего не делайте.", token)
}

func savedMilestoneEmail(dish string, threshold int, url string) (subject, body string) {
	return "Поздравляем с безупречным рецептом!",
		fmt.Sprintf("Дорогой кулинар, ваш рецепт %q сохранили в избранное более %d раз! Это говорит о вашем выдающемся вкусе.\nСтраница рецепта: %s",
			dish, threshold, url)
}

func topRatedEmail(dish string, avg float64, url string) (subject, body string) {
	return "Ваш рецепт среди лучших!",
		fmt.Sprintf("Поздравляем! Ваш рецепт %q достиг рейтинга %.1f и попал в подборку лучших.\nСтраница рецепта: %s",
			dish, avg, url)
}

func recipeURL(baseURL string, id int) string {
	return fmt.Sprintf("%s/recipes/%d", strings.TrimRight(baseURL, "/"), id)
}
