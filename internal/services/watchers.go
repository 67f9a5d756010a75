package services

import (
	"context"
	"fmt"

	"cookbook/internal/config"
	"cookbook/internal/logging"
	"cookbook/internal/metrics"
	"cookbook/internal/models"
	"cookbook/internal/repositories"
	"cookbook/internal/utils"
	"cookbook/internal/worker"
)

// Watchers send one-shot milestone letters to recipe authors. The flag is set only
// after a successful send, so a failed delivery is retried on the next trigger.
// Checks of one kind for one recipe run one at a time.
type Watchers struct {
	recipes    repositories.RecipeRepository
	favorites  repositories.FavoriteRepository
	ratings    repositories.RatingRepository
	mailer     Notifier
	mirror     ChatMirror
	cfg        config.NotificationsConfig
	baseURL    string
	dispatcher worker.Dispatcher
	metrics    *metrics.Metrics
	log        logging.Logger
	locks      *utils.KeyedMutex
}

func NewWatchers(
	recipes repositories.RecipeRepository,
	favorites repositories.FavoriteRepository,
	ratings repositories.RatingRepository,
	mailer Notifier,
	mirror ChatMirror,
	cfg config.NotificationsConfig,
	baseURL string,
	dispatcher worker.Dispatcher,
	m *metrics.Metrics,
	log logging.Logger,
) *Watchers {
	return &Watchers{
		recipes:    recipes,
		favorites:  favorites,
		ratings:    ratings,
		mailer:     mailer,
		mirror:     mirror,
		cfg:        cfg,
		baseURL:    baseURL,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
		locks:      utils.NewKeyedMutex(),
	}
}

func (w *Watchers) count(kind, result string) {
	if w.metrics != nil {
		w.metrics.Notifications.WithLabelValues(kind, result).Inc()
	}
}

// AfterFavorite и AfterRating вызываются после успешной записи и ставят проверку в очередь.
func (w *Watchers) AfterFavorite(recipeID int) {
	w.submit("check-saved", func(ctx context.Context) { w.CheckSaved(ctx, recipeID) })
}

func (w *Watchers) AfterRating(recipeID int) {
	w.submit("check-top-rated", func(ctx context.Context) { w.CheckTopRated(ctx, recipeID) })
}

func (w *Watchers) submit(name string, fn func(ctx context.Context)) {
	if err := w.dispatcher.Submit(worker.Job{Name: name, Run: fn}); err != nil {
		w.log.Warn(context.Background(), "[watchers][submit] job not queued", "job", name, "err", err)
	}
}

// CheckSaved reports true when the saved-milestone letter was sent by this call.
func (w *Watchers) CheckSaved(ctx context.Context, recipeID int) bool {
	unlock := w.locks.Lock(fmt.Sprintf("saved:%d", recipeID))
	defer unlock()

	// флаг читается уже под замком
	recipe, ok := w.load(ctx, "saved", recipeID)
	if !ok || recipe.NotifiedSaved {
		return false
	}
	n, err := w.favorites.CountByRecipe(ctx, recipeID)
	if err != nil {
		w.log.Error(ctx, "[watchers][saved] count favorites failed", "recipe_id", recipeID, "err", err)
		return false
	}
	if n <= w.cfg.FavoritesThreshold {
		return false
	}

	subject, body := savedMilestoneEmail(recipe.DishName, w.cfg.FavoritesThreshold, recipeURL(w.baseURL, recipe.ID))
	return w.deliver(ctx, "saved", recipe, subject, body, w.recipes.MarkNotifiedSaved)
}

// CheckTopRated compares the rounded average with the configured threshold.
func (w *Watchers) CheckTopRated(ctx context.Context, recipeID int) bool {
	unlock := w.locks.Lock(fmt.Sprintf("top:%d", recipeID))
	defer unlock()

	recipe, ok := w.load(ctx, "top", recipeID)
	if !ok || recipe.NotifiedTop {
		return false
	}
	raw, _, err := w.ratings.Average(ctx, recipeID)
	if err != nil {
		w.log.Error(ctx, "[watchers][top] average failed", "recipe_id", recipeID, "err", err)
		return false
	}
	avg := RoundRating(raw)
	if avg <= w.cfg.TopRatingThreshold {
		return false
	}

	subject, body := topRatedEmail(recipe.DishName, avg, recipeURL(w.baseURL, recipe.ID))
	return w.deliver(ctx, "top", recipe, subject, body, w.recipes.MarkNotifiedTop)
}

func (w *Watchers) load(ctx context.Context, kind string, recipeID int) (*models.Recipe, bool) {
	recipe, err := w.recipes.GetByID(ctx, recipeID)
	if err != nil {
		w.log.Warn(ctx, "[watchers]["+kind+"] recipe not loaded", "recipe_id", recipeID, "err", err)
		return nil, false
	}
	return recipe, true
}

func (w *Watchers) deliver(
	ctx context.Context,
	kind string,
	recipe *models.Recipe,
	subject, body string,
	mark func(ctx context.Context, id int) (bool, error),
) bool {
	if err := w.mailer.Send(ctx, recipe.AuthorEmail, subject, body); err != nil {
		w.log.Error(ctx, "[watchers]["+kind+"] delivery failed, flag left unset", "recipe_id", recipe.ID, "err", err)
		w.count(kind, "failed")
		return false
	}
	flipped, err := mark(ctx, recipe.ID)
	if err != nil {
		w.log.Error(ctx, "[watchers]["+kind+"] flag update failed", "recipe_id", recipe.ID, "err", err)
		return false
	}
	if !flipped {
		// параллельная проверка успела раньше
		w.count(kind, "skipped")
		return false
	}
	w.count(kind, "sent")
	w.log.Info(ctx, "[watchers]["+kind+"] author notified", "recipe_id", recipe.ID, "author", recipe.AuthorNickname)

	if w.mirror != nil {
		if err := w.mirror.Post(ctx, subject+"\n"+body); err != nil {
			w.log.Warn(ctx, "[watchers]["+kind+"] telegram mirror failed", "recipe_id", recipe.ID, "err", err)
		}
	}
	return true
}
