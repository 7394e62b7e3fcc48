package service

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/models"
	"github.com/recetario/backend/internal/testhelpers"
	"github.com/recetario/backend/internal/txn"
)

func newIdentityService(t *testing.T) (*IdentityService, *gorm.DB) {
	db := testhelpers.SetupTestDB(t)
	store := cache.NewMemoryCache()
	return NewIdentityService(txn.New(db, store), store), db
}

func TestRegisterIssuesCredential(t *testing.T) {
	svc, _ := newIdentityService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "alice", "Alice", "Moreno", "Madrid")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, "", user.ID.String())
	assert.False(t, user.IsAdmin)
	assert.Len(t, token, models.TokenLength)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]+$`), token)

	resolved, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestRegisterRejectsDuplicateNick(t *testing.T) {
	svc, _ := newIdentityService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "Alice", "Moreno", "Madrid")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "alice", "Alicia", "Campos", "Sevilla")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newIdentityService(t)
	ctx := context.Background()

	cases := []struct {
		label   string
		nick    string
		name    string
		surname string
		city    string
	}{
		{"nick too short", "abc", "Alice", "Moreno", "Madrid"},
		{"nick too long", "averylongnickname", "Alice", "Moreno", "Madrid"},
		{"lowercase name", "alice", "alice", "Moreno", "Madrid"},
		{"lowercase surname", "alice", "Alice", "moreno", "Madrid"},
		{"blank city", "alice", "Alice", "Moreno", "  "},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tc.nick, tc.name, tc.surname, tc.city)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	svc, _ := newIdentityService(t)

	_, err := svc.Authenticate(context.Background(), "nosuchtokenatall1234567890abcd")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetUserCachesEntity(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Madrid", got.City)

	// A write that bypasses the coordinator never reaches the cache, so the
	// next read still serves the cached value.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("city", "Barcelona").Error)
	got, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Madrid", got.City)
}

func TestGetUserByNick(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	got, err := svc.GetUserByNick(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.GetUserByNick(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAdminRequiresAdmin(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	actor := testhelpers.CreateTestUser(t, db, "alice", false)
	target := testhelpers.CreateTestUser(t, db, "bobby", false)

	err := svc.SetAdmin(ctx, actor.ID, target.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetAdminPromoteAndDemote(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	target := testhelpers.CreateTestUser(t, db, "bobby", false)

	require.NoError(t, svc.SetAdmin(ctx, admin.ID, target.ID, true))
	got, err := svc.GetUser(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	// Two admins exist now, so demotion is allowed again.
	require.NoError(t, svc.SetAdmin(ctx, admin.ID, target.ID, false))
	got, err = svc.GetUser(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)
}

func TestSetAdminSoleAdminCannotDemoteSelf(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	err := svc.SetAdmin(ctx, admin.ID, admin.ID, false)
	assert.ErrorIs(t, err, ErrAdminFloor)
}

func TestSetAdminNoOpWhenUnchanged(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	// Revoking from the sole admin would trip the floor, but granting an
	// already-held role short-circuits before any check.
	assert.NoError(t, svc.SetAdmin(ctx, admin.ID, admin.ID, true))
}

func TestUpdateUserPreservesAdminFlag(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	fields := UserUpdate{Nick: "root", Name: "Rita", Surname: "Vega", City: "Bilbao"}
	require.NoError(t, svc.UpdateUser(ctx, admin.ID, admin.ID, fields))

	got, err := svc.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "Rita", got.Name)
	assert.Equal(t, "Bilbao", got.City)
}

func TestUpdateUserInvalidatesCache(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	_, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	_, err = svc.GetUserByNick(ctx, "alice")
	require.NoError(t, err)

	fields := UserUpdate{Nick: "alicia", Name: "Alice", Surname: "Moreno", City: "Valencia"}
	require.NoError(t, svc.UpdateUser(ctx, user.ID, user.ID, fields))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Nick)
	assert.Equal(t, "Valencia", got.City)

	_, err = svc.GetUserByNick(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserNickConflict(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	testhelpers.CreateTestUser(t, db, "bobby", false)

	fields := UserUpdate{Nick: "bobby", Name: "Alice", Surname: "Moreno", City: "Madrid"}
	err := svc.UpdateUser(ctx, user.ID, user.ID, fields)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateUserForbidden(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	actor := testhelpers.CreateTestUser(t, db, "alice", false)
	target := testhelpers.CreateTestUser(t, db, "bobby", false)

	fields := UserUpdate{Nick: "bobby", Name: "Bob", Surname: "Marin", City: "Madrid"}
	err := svc.UpdateUser(ctx, actor.ID, target.ID, fields)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteUserIdempotent(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	target := testhelpers.CreateTestUser(t, db, "bobby", false)

	require.NoError(t, svc.DeleteUser(ctx, admin.ID, target.ID))
	// Second delete finds nothing and still succeeds.
	assert.NoError(t, svc.DeleteUser(ctx, admin.ID, target.ID))
}

func TestDeleteUserSoleAdmin(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	adminA := testhelpers.CreateTestUser(t, db, "rootA", true)
	err := svc.DeleteUser(ctx, adminA.ID, adminA.ID)
	assert.ErrorIs(t, err, ErrAdminFloor)

	// Promote a second admin; the first can then be removed.
	adminB := testhelpers.CreateTestUser(t, db, "rootB", false)
	require.NoError(t, svc.SetAdmin(ctx, adminA.ID, adminB.ID, true))
	require.NoError(t, svc.DeleteUser(ctx, adminA.ID, adminA.ID))

	_, err = svc.GetUser(ctx, adminA.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserForbidden(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	actor := testhelpers.CreateTestUser(t, db, "alice", false)
	target := testhelpers.CreateTestUser(t, db, "bobby", false)

	err := svc.DeleteUser(ctx, actor.ID, target.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteUserCascades(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	user := testhelpers.CreateTestUser(t, db, "alice", false)
	require.NoError(t, db.Create(&models.Credential{UserID: user.ID, Token: "tok-alice"}).Error)
	category := testhelpers.CreateTestCategory(t, db, "DESSERTS")
	recipe := &models.Recipe{
		Title:      "FLAN",
		Steps:      "Whisk and chill",
		Time:       "40 min",
		Difficulty: models.Easy,
		CategoryID: category.ID,
		UserID:     user.ID,
		Ingredients: []models.Ingredient{
			{IngredientName: "Egg", Units: "units"},
		},
	}
	require.NoError(t, db.Create(recipe).Error)

	require.NoError(t, svc.DeleteUser(ctx, admin.ID, user.ID))

	var recipes, credentials, ingredients int64
	require.NoError(t, db.Model(&models.Recipe{}).Where("user_id = ?", user.ID).Count(&recipes).Error)
	require.NoError(t, db.Model(&models.Credential{}).Where("user_id = ?", user.ID).Count(&credentials).Error)
	require.NoError(t, db.Model(&models.Ingredient{}).Count(&ingredients).Error)
	assert.Zero(t, recipes)
	assert.Zero(t, credentials)
	// Ingredients are shared rows and survive the owner's removal.
	assert.Equal(t, int64(1), ingredients)
}

func TestListUsersPagination(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	for i := 0; i < UsersPageSize+5; i++ {
		testhelpers.CreateTestUser(t, db, fmt.Sprintf("user%02d", i), false)
	}

	first, err := svc.ListUsers(ctx, 0, false)
	require.NoError(t, err)
	assert.Len(t, first.Items, UsersPageSize)
	assert.Equal(t, int64(UsersPageSize+5), first.Total)

	second, err := svc.ListUsers(ctx, 1, false)
	require.NoError(t, err)
	assert.Len(t, second.Items, 5)
	assert.Equal(t, int64(UsersPageSize+5), second.Total)
}

func TestListUsersAlphabetical(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	testhelpers.CreateTestUser(t, db, "zorro", false)
	testhelpers.CreateTestUser(t, db, "alice", false)
	testhelpers.CreateTestUser(t, db, "manny", false)

	page, err := svc.ListUsers(ctx, 0, true)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "alice", page.Items[0].Nick)
	assert.Equal(t, "manny", page.Items[1].Nick)
	assert.Equal(t, "zorro", page.Items[2].Nick)
}

func TestListUsersPageIsCached(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	testhelpers.CreateTestUser(t, db, "alice", false)
	first, err := svc.ListUsers(ctx, 0, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Total)

	// List pages are TTL-bounded, never invalidated: a new user does not
	// show up until the entry expires.
	testhelpers.CreateTestUser(t, db, "bobby", false)
	again, err := svc.ListUsers(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Total)
}

func TestListAdmins(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	testhelpers.CreateTestUser(t, db, "root", true)
	testhelpers.CreateTestUser(t, db, "alice", false)

	page, err := svc.ListAdmins(ctx, 0, false)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "root", page.Items[0].Nick)
	assert.Equal(t, int64(1), page.Total)
}

func TestSearchUsers(t *testing.T) {
	svc, db := newIdentityService(t)
	ctx := context.Background()

	alice := testhelpers.CreateTestUser(t, db, "alice", false)
	require.NoError(t, db.Model(alice).Update("city", "Valencia").Error)
	testhelpers.CreateTestUser(t, db, "bobby", false)

	page, err := svc.SearchUsers(ctx, "", "", "Valencia", 0, false)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alice", page.Items[0].Nick)

	empty, err := svc.SearchUsers(ctx, "", "", "Oviedo", 0, false)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Zero(t, empty.Total)
}

func TestGenerateCredentialTokenShape(t *testing.T) {
	token, err := GenerateCredentialToken()
	require.NoError(t, err)
	assert.Len(t, token, models.TokenLength)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]+$`), token)
}
