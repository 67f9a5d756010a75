package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cookbook/internal/authz"
	"cookbook/internal/logging"
	"cookbook/internal/metrics"
	"cookbook/internal/models"
	"cookbook/internal/storage"
	"cookbook/internal/validation"
)

func newAuth(t *testing.T) (*AuthService, *fakeUsers, *authz.Tokens) {
	t.Helper()
	users := newFakeUsers()
	tokens := authz.NewTokens("test-secret", 15*time.Minute)
	svc := NewAuthService(users, tokens, time.Hour, logging.Discard())
	svc.cost = bcrypt.MinCost
	return svc, users, tokens
}

func TestLogin_IssuesParsableTokens(t *testing.T) {
	svc, users, tokens := newAuth(t)
	ctx := context.Background()
	hash, err := svc.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, &models.User{Email: "a@x.com", Nickname: "Alice", PasswordHash: hash, IsStaff: true}))

	user, pair, err := svc.Login(ctx, " a@x.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Nickname)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := tokens.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.True(t, claims.IsStaff)
}

func TestLogin_WrongPasswordAndUnknownEmail(t *testing.T) {
	svc, users, _ := newAuth(t)
	ctx := context.Background()
	hash, err := svc.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, &models.User{Email: "a@x.com", Nickname: "Alice", PasswordHash: hash}))

	_, _, err = svc.Login(ctx, "a@x.com", "secret124")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "b@x.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, users, _ := newAuth(t)
	ctx := context.Background()
	hash, err := svc.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, &models.User{Email: "a@x.com", Nickname: "Alice", PasswordHash: hash}))

	_, pair, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = svc.Refresh(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func newResetEnv(t *testing.T) (*PasswordResetService, *fakeUsers, *fakeResets, *fakeNotifier, *models.User) {
	t.Helper()
	users := newFakeUsers()
	u := &models.User{Email: "a@x.com", Nickname: "Alice", PasswordHash: "old"}
	require.NoError(t, users.Create(context.Background(), u))
	resets := &fakeResets{items: map[string]*models.PasswordReset{}}
	mail := &fakeNotifier{}
	return NewPasswordResetService(users, resets, mail, plainHasher{}, logging.Discard()), users, resets, mail, u
}

func onlyToken(t *testing.T, resets *fakeResets) string {
	t.Helper()
	require.Len(t, resets.items, 1)
	for tok := range resets.items {
		return tok
	}
	return ""
}

func TestPasswordReset_FullFlow(t *testing.T) {
	svc, users, resets, mail, u := newResetEnv(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestReset(ctx, "a@X.COM"))
	token := onlyToken(t, resets)
	require.Equal(t, 1, mail.count())
	assert.Contains(t, mail.last().body, token)

	require.NoError(t, svc.ResetPassword(ctx, token, "newpass99"))
	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hashed:newpass99", got.PasswordHash)

	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "another99"), ErrResetTokenUsed)
}

func TestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	svc, _, resets, mail, _ := newResetEnv(t)
	require.NoError(t, svc.RequestReset(context.Background(), "ghost@x.com"))
	assert.Empty(t, resets.items)
	assert.Zero(t, mail.count())

	_, ok := validation.AsErrors(svc.RequestReset(context.Background(), " "))
	assert.True(t, ok)
}

func TestPasswordReset_ExpiredAndWeak(t *testing.T) {
	svc, _, resets, _, _ := newResetEnv(t)
	ctx := context.Background()
	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	token := onlyToken(t, resets)

	_, ok := validation.AsErrors(svc.ResetPassword(ctx, token, "short"))
	assert.True(t, ok)
	_, ok = validation.AsErrors(svc.ResetPassword(ctx, token, "Alice"))
	assert.True(t, ok)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "newpass99"), ErrResetTokenInvalid)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "nope", "newpass99"), ErrResetTokenInvalid)
}

func TestCategoryCreate_StaffOnly(t *testing.T) {
	svc := NewCategoryService(&fakeCategories{items: map[int]*models.Category{}})
	ctx := context.Background()

	_, err := svc.Create(ctx, false, "Супы")
	assert.ErrorIs(t, err, ErrForbidden)

	c, err := svc.Create(ctx, true, " Супы ")
	require.NoError(t, err)
	assert.Equal(t, "Супы", c.Name)

	_, err = svc.Create(ctx, true, "супы")
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, "already exists", ve["category"])

	_, err = svc.Create(ctx, true, "")
	_, ok = validation.AsErrors(err)
	assert.True(t, ok)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUserService_ProfileAndBio(t *testing.T) {
	users := newFakeUsers()
	cat := newCatalog()
	svc := NewUserService(users, recipeRepo{cat})
	ctx := context.Background()
	u := &models.User{Email: "a@x.com", Nickname: "Alice", Avatar: models.DefaultAvatar}
	require.NoError(t, users.Create(ctx, u))
	cat.add(&models.Recipe{AuthorID: u.ID, DishName: "Плов"})
	cat.add(&models.Recipe{AuthorID: u.ID + 1, DishName: "Чужой"})

	p, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Nickname)
	require.Len(t, p.Recipes, 1)
	assert.Equal(t, "Плов", p.Recipes[0].DishName)

	_, err = svc.UpdateBio(ctx, u.ID, "люблю готовить")
	_, ok := validation.AsErrors(err)
	assert.True(t, ok)

	got, err := svc.UpdateBio(ctx, u.ID, "Люблю готовить")
	require.NoError(t, err)
	assert.Equal(t, "Люблю готовить", got.Bio)

	_, err = svc.Profile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTempJanitor_RemovesOldTempFiles(t *testing.T) {
	root := t.TempDir()
	files, err := storage.NewLocalStorage(root)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, files.Put(ctx, "tmp/avatars/old.png", []byte("x"), ""))
	require.NoError(t, files.Put(ctx, "tmp/avatars/new.png", []byte("x"), ""))
	require.NoError(t, files.Put(ctx, "avatars/keep.png", []byte("x"), ""))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "tmp", "avatars", "old.png"), past, past))
	require.NoError(t, os.Chtimes(filepath.Join(root, "avatars", "keep.png"), past, past))

	m := metrics.New()
	j := NewTempJanitor(files, time.Hour, m, logging.Discard())
	assert.Equal(t, 1, j.RunOnce(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TempPurged))

	_, err = files.Get(ctx, "tmp/avatars/new.png")
	assert.NoError(t, err)
	_, err = files.Get(ctx, "avatars/keep.png")
	assert.NoError(t, err)
}

func TestTempJanitor_RunStopsOnCancel(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	j := NewTempJanitor(files, time.Hour, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
