package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookbook/internal/cache"
	"cookbook/internal/imageproc"
	"cookbook/internal/logging"
	"cookbook/internal/metrics"
	"cookbook/internal/models"
	"cookbook/internal/storage"
	"cookbook/internal/validation"
)

type regEnv struct {
	svc     *RegistrationService
	pending *PendingRegistrations
	users   *fakeUsers
	mail    *fakeNotifier
	store   *cache.MemoryStore
	files   *storage.LocalStorage
	root    string
	clock   *fakeClock
}

func newRegEnv(t *testing.T, codes ...string) *regEnv {
	t.Helper()
	clock := newFakeClock()
	store := cache.NewMemoryStore(clock.Now)
	root := t.TempDir()
	files, err := storage.NewLocalStorage(root)
	require.NoError(t, err)

	pending := NewPendingRegistrations(store, files, 5*time.Minute, 30*time.Minute, logging.Discard())
	if len(codes) > 0 {
		var mu sync.Mutex
		pending.newCode = func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			c := codes[0]
			if len(codes) > 1 {
				codes = codes[1:]
			}
			return c, nil
		}
	}

	env := &regEnv{pending: pending, users: newFakeUsers(), mail: &fakeNotifier{}, store: store, files: files, root: root, clock: clock}
	env.svc = NewRegistrationService(env.users, pending, files, imageproc.NewProcessor(0), env.mail,
		plainHasher{}, validation.New(), metrics.New(), logging.Discard())
	return env
}

func validSignUp() SignUpInput {
	return SignUpInput{
		Email:           "a@x.com",
		Nickname:        "Alice",
		Bio:             "Люблю печь",
		Password:        "secret123",
		PasswordConfirm: "secret123",
	}
}

func avatarUpload(t *testing.T, name string) *models.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 300))))
	return &models.Upload{Filename: name, Data: buf.Bytes()}
}

func TestSignUpVerify_CreatesUserAndClearsState(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()

	res, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, 300, res.CodeTTLSeconds)
	require.Equal(t, 1, env.mail.count())
	assert.Contains(t, env.mail.last().body, "111222")

	user, err := env.svc.Verify(ctx, "a@x.com", "111222", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Nickname)
	assert.Equal(t, "hashed:secret123", user.PasswordHash)
	assert.Equal(t, models.DefaultAvatar, user.Avatar)

	assert.Equal(t, 1, env.users.len())
	assert.Zero(t, env.store.Len())

	state, err := env.svc.State(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
}

func TestVerify_SecondAttemptWithSameCode(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()

	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	_, err = env.svc.Verify(ctx, "a@x.com", "111222", "")
	require.NoError(t, err)

	_, err = env.svc.Verify(ctx, "a@x.com", "111222", "")
	assert.ErrorIs(t, err, ErrPendingNotFound)
	assert.Equal(t, 1, env.users.len())
}

func TestVerify_ConcurrentSameCodeCreatesOneUser(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()
	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Verify(ctx, "a@x.com", "111222", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrPendingNotFound)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, env.users.len())
}

func TestVerify_WrongCodeThenRightCode(t *testing.T) {
	env := newRegEnv(t, "123456")
	ctx := context.Background()
	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	_, err = env.svc.Verify(ctx, "a@x.com", "123455", "")
	assert.ErrorIs(t, err, ErrCodeInvalid)

	state, err := env.svc.State(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, StatePending, state)

	user, err := env.svc.Verify(ctx, "a@x.com", "123456", "")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
}

func TestResend_AfterCodeExpiry(t *testing.T) {
	env := newRegEnv(t, "111111", "222222")
	ctx := context.Background()
	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	env.clock.Advance(6 * time.Minute)
	_, err = env.svc.Verify(ctx, "a@x.com", "111111", "")
	assert.ErrorIs(t, err, ErrCodeExpired)

	state, err := env.svc.State(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, StateCodeExpired, state)

	require.NoError(t, env.svc.Resend(ctx, "a@x.com"))
	assert.Equal(t, 2, env.mail.count())

	_, err = env.svc.Verify(ctx, "a@x.com", "111111", "")
	assert.ErrorIs(t, err, ErrCodeInvalid)

	_, err = env.svc.Verify(ctx, "a@x.com", "222222", "")
	require.NoError(t, err)
}

func TestResend_DoesNotExtendForm(t *testing.T) {
	env := newRegEnv(t, "111111", "222222")
	ctx := context.Background()
	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	env.clock.Advance(28 * time.Minute)
	require.NoError(t, env.svc.Resend(ctx, "a@x.com"))

	env.clock.Advance(3 * time.Minute)
	_, err = env.svc.Verify(ctx, "a@x.com", "222222", "")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}

func TestResend_AfterDataExpiry(t *testing.T) {
	env := newRegEnv(t)
	ctx := context.Background()
	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)
	assert.ErrorIs(t, env.svc.Resend(ctx, "a@x.com"), ErrPendingNotFound)
	assert.Equal(t, 1, env.mail.count())
}

func TestSignUp_ValidationErrors(t *testing.T) {
	env := newRegEnv(t)
	in := SignUpInput{
		Email:           "not-an-email",
		Nickname:        "alice",
		Bio:             "люблю печь",
		Password:        "short",
		PasswordConfirm: "other",
	}
	_, err := env.svc.SignUp(context.Background(), in)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	for _, field := range []string{"email", "nickname", "bio", "password", "password_confirm"} {
		assert.Contains(t, ve, field)
	}
	assert.Zero(t, env.store.Len())
	assert.Zero(t, env.mail.count())
}

func TestSignUp_PasswordEqualToNickname(t *testing.T) {
	env := newRegEnv(t)
	in := validSignUp()
	in.Nickname = "Secret123"
	_, err := env.svc.SignUp(context.Background(), in)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, "must differ from email and nickname", ve["password"])
}

func TestSignUp_TakenEmailAndNickname(t *testing.T) {
	env := newRegEnv(t)
	require.NoError(t, env.users.Create(context.Background(), &models.User{Email: "A@X.com", Nickname: "ALICE"}))

	_, err := env.svc.SignUp(context.Background(), validSignUp())
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, "is already registered", ve["email"])
	assert.Equal(t, "is already taken", ve["nickname"])
}

func TestSignUp_BadAvatar(t *testing.T) {
	env := newRegEnv(t)
	in := validSignUp()
	in.Avatar = &models.Upload{Filename: "me.png", Data: []byte("not an image")}
	_, err := env.svc.SignUp(context.Background(), in)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, ve, "avatar")
}

func TestSignUp_DeliveryFailureKeepsPendingState(t *testing.T) {
	env := newRegEnv(t, "111111", "222222")
	env.mail.fail = errDelivery
	ctx := context.Background()

	res, err := env.svc.SignUp(ctx, validSignUp())
	assert.ErrorIs(t, err, ErrCodeDelivery)
	require.NotNil(t, res)

	env.mail.fail = nil
	require.NoError(t, env.svc.Resend(ctx, "a@x.com"))
	_, err = env.svc.Verify(ctx, "a@x.com", "222222", "")
	require.NoError(t, err)
}

func TestVerify_PromotesAvatarAndRemovesTemp(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()
	in := validSignUp()
	in.Avatar = avatarUpload(t, "me.png")

	res, err := env.svc.SignUp(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "tmp/avatars/me.png", res.AvatarTempPath)

	user, err := env.svc.Verify(ctx, "a@x.com", "111222", res.AvatarTempPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.Avatar, "avatars/"))
	assert.True(t, strings.HasSuffix(user.Avatar, ".png"))

	data, err := env.files.Get(ctx, user.Avatar)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)

	_, err = env.files.Get(ctx, res.AvatarTempPath)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVerify_ExpiredFormRemovesClientTempAvatar(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()
	in := validSignUp()
	in.Avatar = avatarUpload(t, "me.png")
	res, err := env.svc.SignUp(ctx, in)
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)
	env.age(t, res.AvatarTempPath, 31*time.Minute)
	_, err = env.svc.Verify(ctx, "a@x.com", "111222", res.AvatarTempPath)
	assert.ErrorIs(t, err, ErrPendingNotFound)

	_, err = env.files.Get(ctx, res.AvatarTempPath)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// age shifts the file's mtime back, as if it had been written d ago.
func (e *regEnv) age(t *testing.T, key string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	require.NoError(t, os.Chtimes(filepath.Join(e.root, filepath.FromSlash(key)), old, old))
}

func TestVerify_HintKeepsAnotherUsersFreshAvatar(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()
	in := validSignUp()
	in.Avatar = avatarUpload(t, "photo.png")
	res, err := env.svc.SignUp(ctx, in)
	require.NoError(t, err)

	// чужой запрос для неизвестного email указывает на тот же temp-файл
	_, err = env.svc.Verify(ctx, "stranger@x.com", "000000", res.AvatarTempPath)
	assert.ErrorIs(t, err, ErrPendingNotFound)

	_, err = env.files.Get(ctx, res.AvatarTempPath)
	require.NoError(t, err)

	user, err := env.svc.Verify(ctx, "a@x.com", "111222", "")
	require.NoError(t, err)
	assert.NotEqual(t, models.DefaultAvatar, user.Avatar)
}

func TestVerify_HintMustBeTempAvatarKey(t *testing.T) {
	env := newRegEnv(t)
	ctx := context.Background()
	require.NoError(t, env.files.Put(ctx, "tmp/other/x.png", []byte("x"), ""))
	env.age(t, "tmp/other/x.png", time.Hour)

	_, err := env.svc.Verify(ctx, "a@x.com", "000000", "tmp/other/x.png")
	assert.ErrorIs(t, err, ErrPendingNotFound)

	_, err = env.files.Get(ctx, "tmp/other/x.png")
	assert.NoError(t, err)
}

func TestVerify_IgnoresNonTempHint(t *testing.T) {
	env := newRegEnv(t)
	ctx := context.Background()
	require.NoError(t, env.files.Put(ctx, "avatars/keep.png", []byte("x"), ""))

	_, err := env.svc.Verify(ctx, "a@x.com", "000000", "avatars/keep.png")
	assert.ErrorIs(t, err, ErrPendingNotFound)

	_, err = env.files.Get(ctx, "avatars/keep.png")
	assert.NoError(t, err)
}

func TestVerify_EmailTakenMeanwhile(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()
	_, err := env.svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	// другой процесс успел создать пользователя с тем же email
	require.NoError(t, env.users.Create(ctx, &models.User{Email: "a@x.com", Nickname: "Other"}))

	_, err = env.svc.Verify(ctx, "a@x.com", "111222", "")
	assert.Error(t, err)
	assert.Zero(t, env.store.Len())
	assert.Equal(t, 1, env.users.len())
}

func TestPendingDelete_Idempotent(t *testing.T) {
	env := newRegEnv(t)
	ctx := context.Background()
	require.NoError(t, env.pending.Delete(ctx, "nobody@x.com"))

	_, err := env.pending.Save(ctx, "b@x.com", map[string]string{"email": "b@x.com"}, avatarUpload(t, "b.png"))
	require.NoError(t, err)
	require.NoError(t, env.pending.Delete(ctx, "b@x.com"))
	require.NoError(t, env.pending.Delete(ctx, "b@x.com"))

	_, err = env.files.Get(ctx, "tmp/avatars/b.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, env.store.Len())
}

func TestPendingSave_StoresPathNotBytes(t *testing.T) {
	env := newRegEnv(t, "424242")
	ctx := context.Background()

	code, err := env.pending.Save(ctx, "c@x.com", map[string]string{"nickname": "Cat"}, avatarUpload(t, "c.png"))
	require.NoError(t, err)
	assert.Equal(t, "424242", code)

	raw, ok, err := env.store.Get(ctx, "form:c@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"form_data":{"nickname":"Cat"},"avatar_path":"tmp/avatars/c.png"}`, string(raw))

	got, ok, err := env.store.Get(ctx, "code:c@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "424242", string(got))
}

func TestVerify_SmallAvatarCopiedAsIs(t *testing.T) {
	env := newRegEnv(t, "111222")
	ctx := context.Background()
	in := validSignUp()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64))))
	in.Avatar = &models.Upload{Filename: "Small.PNG", Data: buf.Bytes()}

	_, err := env.svc.SignUp(ctx, in)
	require.NoError(t, err)
	user, err := env.svc.Verify(ctx, "a@x.com", "111222", "")
	require.NoError(t, err)

	data, err := env.files.Get(ctx, user.Avatar)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), data)
}
