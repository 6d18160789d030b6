package service

// Тесты жизненного цикла сессии (internal/service/auth.go).
//
//  Проверяем:
//  - валидацию входов Register/Login/Refresh/Logout и поля в ValidationError;
//  - одинаковую ошибку для неизвестного email и неверного пароля;
//  - что Login добавляет запись в реестр, а Refresh атомарно ротирует её через storage;
//  - работу необязательного кэша отозванных токенов;
//  - маппинг ошибок storage -> service.
//
// Запуск:
//   go test ./internal/service -v -race -count=1

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-task-manager/internal/cache"
	"github.com/pribylovaa/go-task-manager/internal/config"
	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"github.com/pribylovaa/go-task-manager/mocks"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg())
	svc.now = func() time.Time { return fixedNow }
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	out := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestRegister_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	var saved *models.User
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) (*models.User, error) {
			saved = u
			cp := *u
			cp.ID = "u1"
			return &cp, nil
		})

	res, err := svc.Register(context.Background(), RegisterInput{
		Email: "  User@Example.com ", Name: " Alice ", Password: "secret1",
	})
	require.NoError(t, err)

	require.Equal(t, "u1", res.User.ID)
	require.Equal(t, "user@example.com", res.User.Email)
	require.Equal(t, "Alice", res.User.Name)
	require.NotEmpty(t, res.Tokens.AccessToken)
	require.Len(t, res.Tokens.RefreshToken, 2*refreshTokenBytes)
	require.Equal(t, fixedNow.Add(15*time.Minute), res.Tokens.AccessExpiresAt)

	// Реестр нового пользователя содержит ровно одну запись, и в ней хэш, а не сам токен.
	require.Len(t, saved.RefreshTokens, 1)
	require.Equal(t, hashToken(res.Tokens.RefreshToken), saved.RefreshTokens[0].TokenHash)
	require.Equal(t, fixedNow.Add(720*time.Hour), saved.RefreshTokens[0].ExpiresAt)
	require.NotEqual(t, "secret1", saved.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("secret1")))

	id, err := svc.verifyAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Register(context.Background(), RegisterInput{Email: "nope", Name: "A", Password: "12345"})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ElementsMatch(t, []string{"email", "name", "password"}, fieldsOf(t, err))

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "Bob <bob@example.com>", Name: "Bob", Password: "secret1",
	})
	require.ElementsMatch(t, []string{"email"}, fieldsOf(t, err))

	long := make([]rune, 51)
	for i := range long {
		long[i] = 'я'
	}
	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Name: string(long), Password: "secret1",
	})
	require.ElementsMatch(t, []string{"name"}, fieldsOf(t, err))

	// 72 байта — предел bcrypt: 73 уже ошибка валидации, а не внутренняя.
	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Name: "Bob", Password: strings.Repeat("p", 73),
	})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ElementsMatch(t, []string{"password"}, fieldsOf(t, err))
}

func TestRegister_MaxLengthPassword_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	pw := strings.Repeat("p", 72)
	st.EXPECT().UserByEmail(gomock.Any(), "max@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) (*models.User, error) {
			require.True(t, checkPassword(u.PasswordHash, pw))
			cp := *u
			cp.ID = "u1"
			return &cp, nil
		})

	res, err := svc.Register(context.Background(), RegisterInput{Email: "max@example.com", Name: "Max", Password: pw})
	require.NoError(t, err)
	require.Equal(t, "u1", res.User.ID)
}

func TestRegister_EmailTaken_CaseInsensitive(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "bob@example.com").
		Return(&models.User{ID: "u1", Email: "bob@example.com"}, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "BOB@Example.COM", Name: "Bob", Password: "secret1",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_SaveUserAlreadyExists_MapsToEmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "bob@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil, storage.ErrAlreadyExists)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Name: "Bob", Password: "secret1",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	boom := errors.New("db down")
	st.EXPECT().UserByEmail(gomock.Any(), "bob@example.com").Return(nil, boom)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Name: "Bob", Password: "secret1",
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_OK_AppendsEntry(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{
		ID: "u1", Email: "bob@example.com", Name: "Bob",
		PasswordHash: mustHashPW(t, "secret1"),
		RefreshTokens: []models.RefreshTokenEntry{
			{TokenHash: "existing", ExpiresAt: fixedNow.Add(time.Hour)},
		},
	}

	var appended models.RefreshTokenEntry
	st.EXPECT().UserByEmail(gomock.Any(), "bob@example.com").Return(user, nil)
	st.EXPECT().AppendRefreshToken(gomock.Any(), "u1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, e models.RefreshTokenEntry) error {
			appended = e
			return nil
		})

	res, err := svc.Login(context.Background(), LoginInput{Email: "Bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "u1", res.User.ID)
	require.Equal(t, hashToken(res.Tokens.RefreshToken), appended.TokenHash)
	require.Equal(t, fixedNow.Add(720*time.Hour), appended.ExpiresAt)
}

func TestLogin_UnknownEmailAndWrongPassword_SameError(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByEmail(gomock.Any(), "bob@example.com").
		Return(&models.User{ID: "u1", Email: "bob@example.com", PasswordHash: mustHashPW(t, "secret1")}, nil)

	_, errUnknown := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "secret1"})
	_, errWrong := svc.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "wrong!!"})

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_OverlongPassword_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "bob@example.com").
		Return(&models.User{ID: "u1", Email: "bob@example.com", PasswordHash: mustHashPW(t, "secret1")}, nil)

	_, err := svc.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: strings.Repeat("p", 80)})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_OAuthUserWithoutPassword_Rejected(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "oauth@example.com").
		Return(&models.User{ID: "u1", Email: "oauth@example.com", OAuthProvider: "google"}, nil)

	_, err := svc.Login(context.Background(), LoginInput{Email: "oauth@example.com", Password: "anything"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Validation(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Login(context.Background(), LoginInput{Email: "bad", Password: ""})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ElementsMatch(t, []string{"email", "password"}, fieldsOf(t, err))
}

func TestRefresh_OK_Rotates(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	const old = "old-refresh-token"
	var next models.RefreshTokenEntry
	st.EXPECT().RotateRefreshToken(gomock.Any(), hashToken(old), gomock.Any(), fixedNow).
		DoAndReturn(func(_ context.Context, _ string, e models.RefreshTokenEntry, _ time.Time) (*models.User, error) {
			next = e
			return &models.User{ID: "u1", Email: "bob@example.com", Name: "Bob"}, nil
		})

	tp, err := svc.Refresh(context.Background(), old)
	require.NoError(t, err)
	require.NotEqual(t, old, tp.RefreshToken)
	require.Equal(t, hashToken(tp.RefreshToken), next.TokenHash)
	require.Equal(t, fixedNow.Add(720*time.Hour), next.ExpiresAt)

	id, err := svc.verifyAccessToken(tp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
}

func TestRefresh_UnknownOrConsumed_InvalidToken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().RotateRefreshToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, storage.ErrNotFound)

	_, err := svc.Refresh(context.Background(), "consumed")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_Empty_Validation(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Refresh(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, []string{"refreshToken"}, fieldsOf(t, err))
}

func TestRefresh_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	boom := errors.New("db down")
	st.EXPECT().RotateRefreshToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := svc.Refresh(context.Background(), "tok")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_CacheTombstone_ShortCircuits(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	rc := mocks.NewMockRefreshCache(ctrl)
	svc.SetRefreshCache(rc)

	rc.EXPECT().Revoked(gomock.Any(), hashToken("replayed")).Return(cache.ReasonRotated, true, nil)

	_, err := svc.Refresh(context.Background(), "replayed")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_CacheMarksRotated_AndToleratesCacheErrors(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	rc := mocks.NewMockRefreshCache(ctrl)
	svc.SetRefreshCache(rc)

	h := hashToken("tok")
	gomock.InOrder(
		rc.EXPECT().Revoked(gomock.Any(), h).Return("", false, errors.New("redis down")),
		st.EXPECT().RotateRefreshToken(gomock.Any(), h, gomock.Any(), fixedNow).
			Return(&models.User{ID: "u1", Email: "bob@example.com"}, nil),
		rc.EXPECT().MarkRevoked(gomock.Any(), h, cache.ReasonRotated, 720*time.Hour).Return(errors.New("redis down")),
	)

	_, err := svc.Refresh(context.Background(), "tok")
	require.NoError(t, err)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	rc := mocks.NewMockRefreshCache(ctrl)
	svc.SetRefreshCache(rc)

	h := hashToken("tok")
	st.EXPECT().RemoveRefreshToken(gomock.Any(), h).Return(true, nil)
	rc.EXPECT().MarkRevoked(gomock.Any(), h, cache.ReasonLogout, 720*time.Hour).Return(nil)
	require.NoError(t, svc.Logout(context.Background(), "tok"))

	// Повторный выход: записи уже нет, кэш не трогаем, ошибки нет.
	st.EXPECT().RemoveRefreshToken(gomock.Any(), h).Return(false, nil)
	require.NoError(t, svc.Logout(context.Background(), "tok"))

	require.ErrorIs(t, svc.Logout(context.Background(), ""), ErrInvalidArgument)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{ID: "u1", Email: "bob@example.com", Name: "Bob", PasswordHash: "secret-hash"}
	tok, _, err := svc.issueAccessToken(user, fixedNow)
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), "u1").Return(user, nil)
	pub, err := svc.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "u1", pub.ID)

	_, err = svc.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	st.EXPECT().UserByID(gomock.Any(), "u1").Return(nil, storage.ErrNotFound)
	_, err = svc.Authenticate(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	boom := errors.New("db down")
	st.EXPECT().UserByID(gomock.Any(), "u1").Return(nil, boom)
	_, err = svc.Authenticate(context.Background(), tok)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestPruneExpired(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().DeleteExpiredTokens(gomock.Any(), fixedNow).Return(int64(3), nil)

	n, err := svc.PruneExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestRunRefreshJanitor_StopsOnCancel(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	st.EXPECT().DeleteExpiredTokens(gomock.Any(), gomock.Any()).Return(int64(0), nil).MinTimes(1)

	done := make(chan struct{})
	go func() {
		svc.RunRefreshJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
