package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"github.com/pribylovaa/go-task-manager/mocks"
)

func TestMe(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByID(gomock.Any(), "u1").Return(&models.User{ID: "u1", PasswordHash: "h"}, nil)
	st.EXPECT().UserByID(gomock.Any(), "gone").Return(nil, storage.ErrNotFound)

	u, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	_, err = svc.Me(context.Background(), "gone")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAvatars_Unavailable(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.AvatarUploadURL(context.Background(), "u1", "image/png", 10)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.ConfirmAvatar(context.Background(), "u1", "avatars/u1/x.png")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestAvatarUploadURL(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	av := mocks.NewMockAvatars(ctrl)
	svc.SetAvatars(av)

	av.EXPECT().AvatarUploadURL(gomock.Any(), "u1", "image/png", int64(10)).
		Return(&storage.UploadInfo{UploadURL: "http://s3/put", AvatarKey: "avatars/u1/k.png"}, nil)
	info, err := svc.AvatarUploadURL(context.Background(), "u1", "image/png", 10)
	require.NoError(t, err)
	require.Equal(t, "avatars/u1/k.png", info.AvatarKey)

	av.EXPECT().AvatarUploadURL(gomock.Any(), "u1", "text/plain", int64(10)).Return(nil, storage.ErrInvalidArgument)
	_, err = svc.AvatarUploadURL(context.Background(), "u1", "text/plain", 10)
	require.Equal(t, []string{"contentType"}, fieldsOf(t, err))
}

func TestConfirmAvatar(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	av := mocks.NewMockAvatars(ctrl)
	svc.SetAvatars(av)

	const key = "avatars/u1/k.png"
	av.EXPECT().CheckAvatarUpload(gomock.Any(), "u1", key).Return("https://cdn/avatars/u1/k.png", nil)
	st.EXPECT().UpdateAvatar(gomock.Any(), "u1", "https://cdn/avatars/u1/k.png", fixedNow).
		Return(&models.User{ID: "u1", AvatarURL: "https://cdn/avatars/u1/k.png"}, nil)

	u, err := svc.ConfirmAvatar(context.Background(), "u1", key)
	require.NoError(t, err)
	require.Equal(t, "https://cdn/avatars/u1/k.png", u.AvatarURL)

	av.EXPECT().CheckAvatarUpload(gomock.Any(), "u1", "avatars/u1/missing.png").Return("", storage.ErrNotFoundAvatar)
	_, err = svc.ConfirmAvatar(context.Background(), "u1", "avatars/u1/missing.png")
	require.ErrorIs(t, err, ErrNotFound)

	av.EXPECT().CheckAvatarUpload(gomock.Any(), "u1", "avatars/u2/k.png").Return("", storage.ErrInvalidArgument)
	_, err = svc.ConfirmAvatar(context.Background(), "u1", "avatars/u2/k.png")
	require.Equal(t, []string{"avatarKey"}, fieldsOf(t, err))
}
