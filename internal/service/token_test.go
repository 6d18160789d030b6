package service

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-task-manager/internal/models"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
	tok, exp, err := svc.issueAccessToken(user, svc.now())
	require.NoError(t, err)
	require.Equal(t, svc.now().Add(testCfg().AccessTokenTTL), exp)

	id, err := svc.verifyAccessToken(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
	require.Equal(t, "Alice", id.Name)
	require.Equal(t, "alice@example.com", id.Email)
	require.Equal(t, exp.Unix(), id.ExpiresAt.Unix())
}

func TestAccessToken_PayloadShape(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	tok, _, err := svc.issueAccessToken(&models.User{ID: "u1", Name: "A", Email: "a@b.co"}, svc.now())
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	require.ElementsMatch(t, []string{"id", "name", "email", "iat", "exp"}, keys)
}

func TestAccessToken_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	issued := svc.now()
	tok, _, err := svc.issueAccessToken(&models.User{ID: "u1", Email: "a@b.co"}, issued)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(testCfg().AccessTokenTTL - time.Second) }
	_, err = svc.verifyAccessToken(tok)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(testCfg().AccessTokenTTL + time.Second) }
	_, err = svc.verifyAccessToken(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_Rejects(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	good, _, err := svc.issueAccessToken(&models.User{ID: "u1", Email: "a@b.co"}, svc.now())
	require.NoError(t, err)

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		ID: "u1", Email: "a@b.co",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(svc.now()),
			ExpiresAt: jwt.NewNumericDate(svc.now().Add(time.Minute)),
		},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, accessClaims{
		ID: "u1", Email: "a@b.co",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(svc.now()),
			ExpiresAt: jwt.NewNumericDate(svc.now().Add(time.Minute)),
		},
	}).SignedString([]byte(testCfg().JWTSecret))
	require.NoError(t, err)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Email: "a@b.co",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(svc.now()),
			ExpiresAt: jwt.NewNumericDate(svc.now().Add(time.Minute)),
		},
	}).SignedString([]byte(testCfg().JWTSecret))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":   "not.a.jwt",
		"empty":     "",
		"other_key": otherKey,
		"hs512":     hs512,
		"no_id":     noID,
		"tampered":  good[:len(good)-2] + "xx",
	} {
		_, err := svc.verifyAccessToken(tok)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestAccessToken_EmptySecret(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()
	svc.cfg.JWTSecret = ""

	_, _, err := svc.issueAccessToken(&models.User{ID: "u1"}, svc.now())
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestMintRefreshToken(t *testing.T) {
	t.Parallel()

	a, ha, err := mintRefreshToken()
	require.NoError(t, err)
	b, hb, err := mintRefreshToken()
	require.NoError(t, err)

	require.Len(t, a, 2*refreshTokenBytes)
	require.NotEqual(t, a, b)
	require.NotEqual(t, ha, hb)
	require.Equal(t, hashToken(a), ha)
	require.NotContains(t, ha, a)
}
