package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/store"
)

func TestSaveClient(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	bind(t, s, "/src/shop", "Acme", "Shop")

	c, ok, err := s.Client(ctx, "Acme")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, model.Client{Name: "Acme"}, c)

	want := model.Client{
		Name:             "Acme",
		Address:          "1 Main St",
		ContactPerson:    "Jane Roe",
		RequiresApproval: true,
		ApproverName:     "Jane Roe",
		ApproverEmail:    "jane@acme.test",
	}
	require.NoError(t, s.SaveClient(ctx, want))
	got, ok, err := s.Client(ctx, "Acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	want.RequiresApproval = false
	want.Address = ""
	require.NoError(t, s.SaveClient(ctx, want))
	clients, err := s.Clients(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Client{want}, clients)
}

func TestSaveClientRejects(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	bind(t, s, "/src/shop", "Acme", "Shop")

	err := s.SaveClient(ctx, model.Client{Name: "Acme", RequiresApproval: true, ApproverName: "Jane Roe"})
	require.ErrorIs(t, err, apperr.ErrInvalidClient)
	require.Equal(t, 1, apperr.ExitCode(err))

	err = s.SaveClient(ctx, model.Client{Name: "Globex", Address: "2 Side St"})
	require.ErrorIs(t, err, apperr.ErrBindingNotFound)
}

func TestSetProjectNumber(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	require.NoError(t, s.SetProjectNumber(ctx, b.ID, " PO-1234 "))
	got, err := s.GetBinding(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "PO-1234", got.ProjectNumber)

	require.ErrorIs(t, s.SetProjectNumber(ctx, "nope", "PO-1"), apperr.ErrBindingNotFound)
}

func TestDeleteLastBindingDropsClient(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	shop := bind(t, s, "/src/shop", "Acme", "Shop")
	blog := bind(t, s, "/src/blog", "Acme", "Blog")
	require.NoError(t, s.SaveClient(ctx, model.Client{Name: "Acme", Address: "1 Main St"}))

	_, err := s.DeleteBinding(ctx, shop.ID)
	require.NoError(t, err)
	_, ok, err := s.Client(ctx, "Acme")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.DeleteBinding(ctx, blog.ID)
	require.NoError(t, err)
	_, ok, err = s.Client(ctx, "Acme")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := store.NewMigrator(nil).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, 1, migrations[0].Version)
	require.Equal(t, "init", migrations[0].Description)
	require.Equal(t, 2, migrations[1].Version)
	require.Equal(t, "client details", migrations[1].Description)
	require.Contains(t, migrations[1].UpSQL, "project_number")
}
