package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

func project(owner string, members ...string) *models.Project {
	return &models.Project{ID: "p1", Name: "Roadmap", OwnerID: owner, MemberIDs: members, CreatedAt: fixedNow, UpdatedAt: fixedNow}
}

func TestGetProject_Access(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().ProjectByID(gomock.Any(), "p1").Return(project("owner", "member"), nil).Times(3)
	st.EXPECT().ProjectByID(gomock.Any(), "missing").Return(nil, storage.ErrNotFound)

	_, err := svc.GetProject(context.Background(), "owner", "p1")
	require.NoError(t, err)
	_, err = svc.GetProject(context.Background(), "member", "p1")
	require.NoError(t, err)
	_, err = svc.GetProject(context.Background(), "stranger", "p1")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetProject(context.Background(), "owner", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProject_OK_LogsActivity(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveProject(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *models.Project) (*models.Project, error) {
			require.Equal(t, "Roadmap", p.Name)
			require.Equal(t, "u1", p.OwnerID)
			cp := *p
			cp.ID = "p1"
			return &cp, nil
		})
	st.EXPECT().SaveActivity(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *models.Activity) error {
			require.Equal(t, models.ActionCreated, a.Action)
			require.Equal(t, "p1", a.ProjectID)
			require.Equal(t, fixedNow, a.Timestamp)
			return nil
		})

	p, err := svc.CreateProject(context.Background(), "u1", "  Roadmap ")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
}

func TestCreateProject_Validation(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.CreateProject(context.Background(), "u1", "   ")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, []string{"name"}, fieldsOf(t, err))
}

func TestCreateProject_ActivityFailureSwallowed(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveProject(gomock.Any(), gomock.Any()).Return(project("u1"), nil)
	st.EXPECT().SaveActivity(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	_, err := svc.CreateProject(context.Background(), "u1", "Roadmap")
	require.NoError(t, err)
}

func TestUpdateProject_OwnerOnly(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	name := "Renamed"
	st.EXPECT().ProjectByID(gomock.Any(), "p1").Return(project("owner", "member"), nil).Times(2)

	_, err := svc.UpdateProject(context.Background(), "member", "p1", &name)
	require.ErrorIs(t, err, ErrForbidden)

	renamed := project("owner", "member")
	renamed.Name = name
	st.EXPECT().RenameProject(gomock.Any(), "p1", name, fixedNow).Return(renamed, nil)
	st.EXPECT().SaveActivity(gomock.Any(), gomock.Any()).Return(nil)

	p, err := svc.UpdateProject(context.Background(), "owner", "p1", &name)
	require.NoError(t, err)
	require.Equal(t, name, p.Name)
}

func TestDeleteProject_DeletesTasks(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	gomock.InOrder(
		st.EXPECT().ProjectByID(gomock.Any(), "p1").Return(project("owner"), nil),
		st.EXPECT().DeleteTasksByProject(gomock.Any(), "p1").Return(int64(4), nil),
		st.EXPECT().DeleteProject(gomock.Any(), "p1").Return(nil),
		st.EXPECT().SaveActivity(gomock.Any(), gomock.Any()).Return(nil),
	)

	require.NoError(t, svc.DeleteProject(context.Background(), "owner", "p1"))
}

func TestAddMember(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().ProjectByID(gomock.Any(), "p1").Return(project("owner"), nil).Times(2)

	st.EXPECT().UserByID(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)
	_, err := svc.AddMember(context.Background(), "owner", "p1", "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	st.EXPECT().UserByID(gomock.Any(), "m1").Return(&models.User{ID: "m1"}, nil)
	st.EXPECT().AddProjectMember(gomock.Any(), "p1", "m1", fixedNow).Return(project("owner", "m1"), nil)
	st.EXPECT().SaveActivity(gomock.Any(), gomock.Any()).Return(nil)

	p, err := svc.AddMember(context.Background(), "owner", "p1", "m1")
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, p.MemberIDs)

	_, err = svc.AddMember(context.Background(), "owner", "p1", "")
	require.Equal(t, []string{"userId"}, fieldsOf(t, err))
}

func TestRemoveMember_NotOwner(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().ProjectByID(gomock.Any(), "p1").Return(project("owner", "m1"), nil)

	_, err := svc.RemoveMember(context.Background(), "m1", "p1", "m1")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListActivity_Limit(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().ProjectByID(gomock.Any(), "p1").Return(project("owner", "m1"), nil).Times(4)
	st.EXPECT().ActivityByProject(gomock.Any(), "p1", defaultActivityLimit).Return(nil, nil)
	st.EXPECT().ActivityByProject(gomock.Any(), "p1", maxActivityLimit).Return(nil, nil)
	st.EXPECT().ActivityByProject(gomock.Any(), "p1", 10).Return([]models.Activity{{ID: "a1"}}, nil)

	_, err := svc.ListActivity(context.Background(), "m1", "p1", 0)
	require.NoError(t, err)
	_, err = svc.ListActivity(context.Background(), "m1", "p1", 10_000)
	require.NoError(t, err)
	items, err := svc.ListActivity(context.Background(), "owner", "p1", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.ListActivity(context.Background(), "stranger", "p1", 10)
	require.ErrorIs(t, err, ErrForbidden)
}
