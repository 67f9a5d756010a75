package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"cookbook/internal/models"
	"cookbook/internal/repositories"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentMail{to, subject, body})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type plainHasher struct{}

func (plainHasher) HashPassword(pw string) (string, error) { return "hashed:" + pw, nil }

// ---- users

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int]*models.User
	nextID int
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[int]*models.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if strings.EqualFold(e.Email, u.Email) {
			return repositories.ErrEmailTaken
		}
		if strings.EqualFold(e.Nickname, u.Nickname) {
			return repositories.ErrNicknameTaken
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (f *fakeUsers) GetByNickname(_ context.Context, nick string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return strings.EqualFold(u.Nickname, nick) })
}

func (f *fakeUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeUsers) NicknameExists(ctx context.Context, nick string) (bool, error) {
	_, err := f.GetByNickname(ctx, nick)
	return err == nil, nil
}

func (f *fakeUsers) update(id int, fn func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsers) UpdateBio(_ context.Context, id int, bio string) error {
	return f.update(id, func(u *models.User) { u.Bio = bio })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	return f.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsers) UpdateRefresh(_ context.Context, id int, token string, exp time.Time) error {
	return f.update(id, func(u *models.User) {
		u.RefreshToken, u.RefreshExpiresAt, u.RefreshRevoked = &token, &exp, false
	})
}

func (f *fakeUsers) RotateRefresh(_ context.Context, old, token string, exp time.Time) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.RefreshToken != nil && *u.RefreshToken == old && !u.RefreshRevoked && u.RefreshExpiresAt.After(time.Now()) {
			u.RefreshToken, u.RefreshExpiresAt = &token, &exp
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetByRefreshToken(_ context.Context, token string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.RefreshToken != nil && *u.RefreshToken == token })
}

func (f *fakeUsers) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// ---- recipes, ratings, favorites

type catalog struct {
	mu        sync.Mutex
	recipes   map[int]*models.Recipe
	ratings   map[[2]int]int
	favorites map[[2]int]time.Time
	nextID    int
	markErr   error
}

func newCatalog() *catalog {
	return &catalog{recipes: map[int]*models.Recipe{}, ratings: map[[2]int]int{}, favorites: map[[2]int]time.Time{}}
}

func (c *catalog) add(r *models.Recipe) *models.Recipe {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	r.ID = c.nextID
	c.recipes[r.ID] = r
	return r
}

func (c *catalog) statsLocked(id int) (float64, int) {
	sum, n := 0, 0
	for k, v := range c.ratings {
		if k[1] == id {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), n
}

// recipeRepo

type recipeRepo struct{ *catalog }

func (r recipeRepo) Create(_ context.Context, rc *models.Recipe) error {
	r.add(rc)
	return nil
}

func (r recipeRepo) GetByID(_ context.Context, id int) (*models.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.recipes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *rc
	cp.AverageRating, cp.RatingCount = r.statsLocked(id)
	return &cp, nil
}

func (r recipeRepo) Update(_ context.Context, rc *models.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recipes[rc.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *rc
	r.recipes[rc.ID] = &cp
	return nil
}

func (r recipeRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recipes[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.recipes, id)
	return nil
}

func (r recipeRepo) List(_ context.Context, f models.RecipeFilter) ([]*models.Recipe, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Recipe
	for id, rc := range r.recipes {
		cp := *rc
		cp.AverageRating, cp.RatingCount = r.statsLocked(id)
		if f.Query != "" && !strings.Contains(strings.ToLower(cp.DishName), strings.ToLower(f.Query)) {
			continue
		}
		if f.CategoryID > 0 && cp.CategoryID != f.CategoryID {
			continue
		}
		if f.AuthorID > 0 && cp.AuthorID != f.AuthorID {
			continue
		}
		if f.MinRating > 0 && cp.AverageRating < f.MinRating {
			continue
		}
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if f.OrderBy == "rating" {
			return all[i].AverageRating > all[j].AverageRating
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if f.Offset >= total {
		return []*models.Recipe{}, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (r recipeRepo) mark(id int, fn func(*models.Recipe) *bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return false, r.markErr
	}
	rc, ok := r.recipes[id]
	if !ok {
		return false, nil
	}
	flag := fn(rc)
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (r recipeRepo) MarkNotifiedSaved(_ context.Context, id int) (bool, error) {
	return r.mark(id, func(rc *models.Recipe) *bool { return &rc.NotifiedSaved })
}

func (r recipeRepo) MarkNotifiedTop(_ context.Context, id int) (bool, error) {
	return r.mark(id, func(rc *models.Recipe) *bool { return &rc.NotifiedTop })
}

// ratingRepo

type ratingRepo struct{ *catalog }

func (r ratingRepo) Upsert(_ context.Context, userID, recipeID, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recipes[recipeID]; !ok {
		return repositories.ErrInUse
	}
	r.ratings[[2]int{userID, recipeID}] = value
	return nil
}

func (r ratingRepo) Get(_ context.Context, userID, recipeID int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.ratings[[2]int{userID, recipeID}]
	return v, ok, nil
}

func (r ratingRepo) Average(_ context.Context, recipeID int) (float64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	avg, n := r.statsLocked(recipeID)
	return avg, n, nil
}

// favoriteRepo

type favoriteRepo struct{ *catalog }

func (r favoriteRepo) Add(_ context.Context, userID, recipeID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recipes[recipeID]; !ok {
		return false, repositories.ErrInUse
	}
	k := [2]int{userID, recipeID}
	if _, ok := r.favorites[k]; ok {
		return false, nil
	}
	r.favorites[k] = time.Now()
	return true, nil
}

func (r favoriteRepo) Remove(_ context.Context, userID, recipeID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]int{userID, recipeID}
	if _, ok := r.favorites[k]; !ok {
		return false, nil
	}
	delete(r.favorites, k)
	return true, nil
}

func (r favoriteRepo) Exists(_ context.Context, userID, recipeID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.favorites[[2]int{userID, recipeID}]
	return ok, nil
}

func (r favoriteRepo) CountByRecipe(_ context.Context, recipeID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.favorites {
		if k[1] == recipeID {
			n++
		}
	}
	return n, nil
}

func (r favoriteRepo) ListByUser(_ context.Context, userID, limit, offset int) ([]*models.Recipe, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Recipe
	for k := range r.favorites {
		if k[0] == userID {
			if rc, ok := r.recipes[k[1]]; ok {
				cp := *rc
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= total {
		return []*models.Recipe{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

// ---- categories

type fakeCategories struct {
	items map[int]*models.Category
}

func (f *fakeCategories) List(context.Context) ([]*models.Category, error) {
	var out []*models.Category
	for _, c := range f.items {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCategories) GetByID(_ context.Context, id int) (*models.Category, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (f *fakeCategories) Create(_ context.Context, c *models.Category) error {
	for _, e := range f.items {
		if strings.EqualFold(e.Name, c.Name) {
			return repositories.ErrDuplicate
		}
	}
	c.ID = len(f.items) + 1
	f.items[c.ID] = c
	return nil
}

// ---- password resets

type fakeResets struct {
	mu    sync.Mutex
	items map[string]*models.PasswordReset
}

func (f *fakeResets) Create(_ context.Context, userID int, token string, exp time.Time) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr := &models.PasswordReset{ID: len(f.items) + 1, UserID: userID, Token: token, ExpiresAt: exp}
	f.items[token] = pr
	return pr, nil
}

func (f *fakeResets) GetByToken(_ context.Context, token string) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.items[token]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (f *fakeResets) MarkUsed(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.items {
		if pr.ID == id && pr.UsedAt == nil {
			now := time.Now()
			pr.UsedAt = &now
			return nil
		}
	}
	return repositories.ErrNotFound
}

var errDelivery = errors.New("smtp down")
