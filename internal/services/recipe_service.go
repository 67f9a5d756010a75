package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"cookbook/internal/authz"
	"cookbook/internal/imageproc"
	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/pdf"
	"cookbook/internal/repositories"
	"cookbook/internal/richtext"
	"cookbook/internal/storage"
	"cookbook/internal/validation"
)

// BestMinRating: порог подборки лучших (по неокруглённому среднему).
const BestMinRating = 4.7

type RecipeInput struct {
	DishName    string         `json:"dish_name" form:"dish_name" validate:"required,max=100,capfirst"`
	CategoryID  int            `json:"category_id" form:"category_id" validate:"required,gt=0"`
	Description string         `json:"description" form:"description" validate:"required,max=500,capfirst"`
	Text        string         `json:"text" form:"text" validate:"required"`
	Picture     *models.Upload `json:"-" form:"-" validate:"-"`
}

type RecipeDetail struct {
	*models.Recipe
	UserRating *int `json:"user_rating,omitempty"`
	Favorited  bool `json:"favorited"`
}

type RecipeService struct {
	recipes    repositories.RecipeRepository
	categories repositories.CategoryRepository
	ratings    repositories.RatingRepository
	favorites  repositories.FavoriteRepository
	files      storage.Storage
	images     *imageproc.Processor
	cards      pdf.Generator
	validator  *validation.Validator
	log        logging.Logger
}

func NewRecipeService(
	recipes repositories.RecipeRepository,
	categories repositories.CategoryRepository,
	ratings repositories.RatingRepository,
	favorites repositories.FavoriteRepository,
	files storage.Storage,
	images *imageproc.Processor,
	cards pdf.Generator,
	validator *validation.Validator,
	log logging.Logger,
) *RecipeService {
	return &RecipeService{
		recipes:    recipes,
		categories: categories,
		ratings:    ratings,
		favorites:  favorites,
		files:      files,
		images:     images,
		cards:      cards,
		validator:  validator,
		log:        log,
	}
}

// prepare валидирует ввод, чистит HTML и проверяет категорию.
func (s *RecipeService) prepare(ctx context.Context, in *RecipeInput, pictureRequired bool) error {
	in.DishName = strings.TrimSpace(in.DishName)
	in.Description = strings.TrimSpace(in.Description)
	in.Text = richtext.Sanitize(in.Text)

	ve := validation.Errors{}
	if err := s.validator.Struct(in); err != nil {
		fields, ok := validation.AsErrors(err)
		if !ok {
			return err
		}
		for f, msg := range fields {
			ve.Add(f, msg)
		}
	}
	switch {
	case in.Picture != nil && len(in.Picture.Data) > 0:
		if _, err := validation.Image(in.Picture.Data); err != nil {
			ve.Add("picture", err.Error())
		}
	case pictureRequired:
		ve.Add("picture", "is required")
	}
	if in.CategoryID > 0 {
		if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			ve.Add("category_id", "unknown category")
		}
	}
	return ve.Err()
}

func (s *RecipeService) storePicture(ctx context.Context, up *models.Upload) (string, error) {
	fitted, format, err := s.images.Fit(up.Data, imageproc.SizePicture)
	if err != nil {
		return "", err
	}
	key := storage.NewKey("pictures", "picture"+imageproc.Extension(format))
	if err := s.files.Put(ctx, key, fitted, imageproc.ContentType(format)); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RecipeService) dropFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "[recipe][cleanup] file not removed", "path", key, "err", err)
	}
}

func (s *RecipeService) Create(ctx context.Context, authorID int, in RecipeInput) (*models.Recipe, error) {
	if err := s.prepare(ctx, &in, true); err != nil {
		return nil, err
	}
	key, err := s.storePicture(ctx, in.Picture)
	if err != nil {
		return nil, err
	}
	r := &models.Recipe{
		AuthorID:    authorID,
		CategoryID:  in.CategoryID,
		DishName:    in.DishName,
		Picture:     key,
		Description: in.Description,
		Text:        in.Text,
	}
	if err := s.recipes.Create(ctx, r); err != nil {
		s.dropFile(ctx, key)
		return nil, err
	}
	s.log.Info(ctx, "[recipe][create] ok", "recipe_id", r.ID, "author_id", authorID)
	return s.get(ctx, r.ID)
}

func (s *RecipeService) get(ctx context.Context, id int) (*models.Recipe, error) {
	r, err := s.recipes.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}
	r.AverageRating = RoundRating(r.AverageRating)
	return r, nil
}

// Get returns the recipe; viewerID 0 means anonymous.
func (s *RecipeService) Get(ctx context.Context, id, viewerID int) (*RecipeDetail, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &RecipeDetail{Recipe: r}
	if viewerID == 0 {
		return d, nil
	}
	v, ok, err := s.ratings.Get(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	if ok {
		d.UserRating = &v
	}
	if d.Favorited, err = s.favorites.Exists(ctx, viewerID, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *RecipeService) owned(ctx context.Context, userID, id int) (*models.Recipe, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanEditRecipe(userID, r) {
		return nil, ErrNotAuthor
	}
	return r, nil
}

// AuthorOf returns the author of recipe id.
func (s *RecipeService) AuthorOf(ctx context.Context, id int) (int, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return 0, err
	}
	return r.AuthorID, nil
}

// Update меняет поля; новая картинка необязательна, старая удаляется после записи.
func (s *RecipeService) Update(ctx context.Context, userID, id int, in RecipeInput) (*models.Recipe, error) {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, &in, false); err != nil {
		return nil, err
	}

	oldPicture, newPicture := r.Picture, ""
	if in.Picture != nil && len(in.Picture.Data) > 0 {
		if newPicture, err = s.storePicture(ctx, in.Picture); err != nil {
			return nil, err
		}
		r.Picture = newPicture
	}
	r.CategoryID = in.CategoryID
	r.DishName = in.DishName
	r.Description = in.Description
	r.Text = in.Text

	if err := s.recipes.Update(ctx, r); err != nil {
		s.dropFile(ctx, newPicture)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	if newPicture != "" {
		s.dropFile(ctx, oldPicture)
	}
	return s.get(ctx, id)
}

func (s *RecipeService) Delete(ctx context.Context, userID, id int) error {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.recipes.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrRecipeNotFound
		}
		return err
	}
	s.dropFile(ctx, r.Picture)
	s.log.Info(ctx, "[recipe][delete] ok", "recipe_id", id, "author_id", userID)
	return nil
}

func (s *RecipeService) list(ctx context.Context, f models.RecipeFilter, page int) (*models.RecipePage, error) {
	page = normalizePage(page)
	f.Limit, f.Offset = PageSize, (page-1)*PageSize
	items, total, err := s.recipes.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return newPage(items, page, total), nil
}

// Search: поиск по названию (без учёта регистра) и категории, новые первыми.
func (s *RecipeService) Search(ctx context.Context, query string, categoryID, page int) (*models.RecipePage, error) {
	return s.list(ctx, models.RecipeFilter{Query: query, CategoryID: categoryID}, page)
}

// Best lists recipes with an average of at least BestMinRating, best first.
func (s *RecipeService) Best(ctx context.Context, categoryID, page int) (*models.RecipePage, error) {
	return s.list(ctx, models.RecipeFilter{CategoryID: categoryID, MinRating: BestMinRating, OrderBy: "rating"}, page)
}

func (s *RecipeService) ByAuthor(ctx context.Context, authorID, page int) (*models.RecipePage, error) {
	return s.list(ctx, models.RecipeFilter{AuthorID: authorID}, page)
}

// Card renders the printable PDF card into w.
func (s *RecipeService) Card(ctx context.Context, id int, w io.Writer) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	card := pdf.RecipeCard{Recipe: r, Instructions: richtext.PlainText(r.Text)}
	if r.Picture != "" {
		if data, err := s.files.Get(ctx, r.Picture); err == nil {
			if format, err := imageproc.Detect(data); err == nil {
				card.Picture, card.PictureFormat = data, format
			}
		} else {
			s.log.Warn(ctx, "[recipe][card] picture not loaded", "recipe_id", id, "err", err)
		}
	}
	return s.cards.RecipeCard(w, card)
}
