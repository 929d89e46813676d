package users

import (
	"context"
	"testing"

	"github.com/angelmondragon/partsdesk-backend/pkg/config"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastArgon = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, fastArgon)
	require.NoError(t, err)
	return svc, repo
}

func TestCreateUserNormalizesAndHashes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	dto, err := svc.Create(ctx, CreateUserInput{Username: "  Cashier1 ", Password: "password123", Role: "Employee"})
	require.NoError(t, err)
	assert.Equal(t, "cashier1", dto.Username)
	assert.Equal(t, enums.UserRoleEmployee, dto.Role)
	assert.True(t, dto.IsActive)

	stored, err := repo.FindByUsername(ctx, "cashier1")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	ok, err := security.VerifyPassword("password123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUserRejectsDuplicatesAndBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Username: "admin", Password: "password123", Role: "admin"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserInput{Username: "ADMIN", Password: "password123", Role: "admin"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = svc.Create(ctx, CreateUserInput{Username: "bob", Password: "short", Role: "admin"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateUserInput{Username: "bob", Password: "password123", Role: "owner"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSetPasswordAndDeactivate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	dto, err := svc.Create(ctx, CreateUserInput{Username: "shopper", Password: "password123", Role: "customer"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, dto.ID, "new-password"))
	stored, err := repo.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("new-password", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Deactivate(ctx, dto.ID))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsActive)

	assert.True(t, pkgerrors.Is(svc.Deactivate(ctx, uuid.New()), pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.Is(svc.SetPassword(ctx, uuid.New(), "long-enough"), pkgerrors.CodeNotFound))
}
