package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/models"
	"github.com/recetario/backend/internal/testhelpers"
	"github.com/recetario/backend/internal/txn"
)

// fakeImageStore records the last upload and returns a fixed URL.
type fakeImageStore struct {
	uploads int
	lastLen int
}

func (f *fakeImageStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	f.uploads++
	f.lastLen = len(data)
	return "https://images.test/recipe.jpg", nil
}

func newCatalogService(t *testing.T) (*CatalogService, *gorm.DB, *fakeImageStore) {
	db := testhelpers.SetupTestDB(t)
	store := cache.NewMemoryCache()
	images := &fakeImageStore{}
	return NewCatalogService(txn.New(db, store), store, images), db, images
}

func recipeInput(title string, categoryID uuid.UUID, ingredients ...IngredientInput) RecipeInput {
	if len(ingredients) == 0 {
		ingredients = []IngredientInput{{Name: "Flour", Units: "grams"}}
	}
	return RecipeInput{
		Title:       title,
		Steps:       "Mix everything and bake",
		Time:        "30 min",
		Difficulty:  models.Easy,
		CategoryID:  categoryID,
		Ingredients: ingredients,
	}
}

func TestCreateCategoryRequiresAdmin(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	_, err := svc.CreateCategory(ctx, user.ID, "Desserts")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateCategoryUppercasesName(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	assert.Equal(t, "DESSERTS", category.CategoryName)
}

func TestCreateCategoryCaseInsensitiveConflict(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	_, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, admin.ID, "desserts")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateCategory(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	other, err := svc.CreateCategory(ctx, admin.ID, "Soups")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateCategory(ctx, admin.ID, category.ID, "pastries"))
	got, err := svc.GetCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, "PASTRIES", got.CategoryName)

	// Renaming onto another category's name is a conflict, renaming onto
	// your own is not.
	assert.ErrorIs(t, svc.UpdateCategory(ctx, admin.ID, category.ID, "soups"), ErrConflict)
	assert.NoError(t, svc.UpdateCategory(ctx, admin.ID, other.ID, "Soups"))
}

func TestDeleteCategoryIdempotent(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	assert.NoError(t, svc.DeleteCategory(ctx, admin.ID, uuid.New()))
}

func TestDeleteCategoryCascadesRecipes(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, admin.ID, category.ID))

	_, err = svc.GetRecipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetCategory(ctx, category.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Shared ingredient rows are not part of the cascade.
	var ingredients int64
	require.NoError(t, db.Model(&models.Ingredient{}).Count(&ingredients).Error)
	assert.Equal(t, int64(1), ingredients)
}

func TestCreateRecipeUnknownCategory(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	_, err := svc.CreateRecipe(ctx, user.ID, recipeInput("Flan", uuid.New()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRecipeNormalizesFields(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)

	input := recipeInput("Crema Catalana", category.ID, IngredientInput{Name: "Milk", Units: "LITERS"})
	recipe, err := svc.CreateRecipe(ctx, admin.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "CREMA CATALANA", recipe.Title)
	require.Len(t, recipe.Ingredients, 1)
	assert.Equal(t, "Milk", recipe.Ingredients[0].IngredientName)
	assert.Equal(t, "liters", recipe.Ingredients[0].Units)
}

func TestCreateRecipeTitleConflictIsCaseInsensitive(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)

	_, err = svc.CreateRecipe(ctx, admin.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, admin.ID, recipeInput("FLAN", category.ID))
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.CreateRecipe(ctx, admin.ID, recipeInput("flan", category.ID))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateRecipeValidation(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)

	bad := recipeInput("Flan", category.ID)
	bad.Difficulty = "IMPOSSIBLE"
	_, err = svc.CreateRecipe(ctx, admin.ID, bad)
	assert.ErrorIs(t, err, ErrValidation)

	noIngredients := recipeInput("Flan", category.ID)
	noIngredients.Ingredients = nil
	_, err = svc.CreateRecipe(ctx, admin.ID, noIngredients)
	assert.ErrorIs(t, err, ErrValidation)

	longTitle := recipeInput("A title that is far too long to fit the column", category.ID)
	_, err = svc.CreateRecipe(ctx, admin.ID, longTitle)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIngredientDedupAcrossRecipes(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Baking")
	require.NoError(t, err)

	first, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Bread", category.ID,
		IngredientInput{Name: "Flour", Units: "grams"}))
	require.NoError(t, err)

	// Different casing of both name and units resolves to the same row.
	second, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Pizza", category.ID,
		IngredientInput{Name: "FLOUR", Units: "GRAMS"}))
	require.NoError(t, err)

	require.Len(t, first.Ingredients, 1)
	require.Len(t, second.Ingredients, 1)
	assert.Equal(t, first.Ingredients[0].ID, second.Ingredients[0].ID)

	var total int64
	require.NoError(t, db.Model(&models.Ingredient{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)
}

func TestIngredientDedupWithinSubmission(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Baking")
	require.NoError(t, err)

	recipe, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Bread", category.ID,
		IngredientInput{Name: "Flour", Units: "grams"},
		IngredientInput{Name: "flour", Units: "Grams"},
		IngredientInput{Name: "Flour", Units: "cups"}))
	require.NoError(t, err)
	assert.Len(t, recipe.Ingredients, 2)
}

func TestUpdateRecipeRebuildsIngredients(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Baking")
	require.NoError(t, err)

	recipe, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Bread", category.ID,
		IngredientInput{Name: "Flour", Units: "grams"},
		IngredientInput{Name: "Salt", Units: "grams"}))
	require.NoError(t, err)

	update := recipeInput("Bread", category.ID,
		IngredientInput{Name: "Flour", Units: "grams"},
		IngredientInput{Name: "Yeast", Units: "grams"})
	require.NoError(t, svc.UpdateRecipe(ctx, admin.ID, recipe.ID, update))

	got, err := svc.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(got.Ingredients))
	for _, ing := range got.Ingredients {
		names = append(names, ing.IngredientName)
	}
	assert.ElementsMatch(t, []string{"Flour", "Yeast"}, names)

	// The dropped association does not delete the shared row.
	var salt int64
	require.NoError(t, db.Model(&models.Ingredient{}).Where("ingredient_name = ?", "Salt").Count(&salt).Error)
	assert.Equal(t, int64(1), salt)
}

func TestUpdateRecipeAuthorization(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	owner := testhelpers.CreateTestUser(t, db, "alice", false)
	other := testhelpers.CreateTestUser(t, db, "bobby", false)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, owner.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)

	update := recipeInput("Flan de Huevo", category.ID)
	assert.ErrorIs(t, svc.UpdateRecipe(ctx, other.ID, recipe.ID, update), ErrForbidden)
	assert.NoError(t, svc.UpdateRecipe(ctx, owner.ID, recipe.ID, update))
	assert.NoError(t, svc.UpdateRecipe(ctx, admin.ID, recipe.ID, recipeInput("Flan", category.ID)))
}

func TestUpdateRecipeTitleConflict(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, admin.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Natillas", category.ID))
	require.NoError(t, err)

	err = svc.UpdateRecipe(ctx, admin.ID, recipe.ID, recipeInput("flan", category.ID))
	assert.ErrorIs(t, err, ErrConflict)

	// Keeping your own title is not a conflict.
	assert.NoError(t, svc.UpdateRecipe(ctx, admin.ID, recipe.ID, recipeInput("Natillas", category.ID)))
}

func TestUpdateRecipeInvalidatesCache(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)

	_, err = svc.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	_, err = svc.GetRecipeByTitle(ctx, "Flan")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateRecipe(ctx, admin.ID, recipe.ID, recipeInput("Natillas", category.ID)))

	got, err := svc.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "NATILLAS", got.Title)

	// The stale alternate-key entry is gone too.
	_, err = svc.GetRecipeByTitle(ctx, "Flan")
	assert.ErrorIs(t, err, ErrNotFound)
	byTitle, err := svc.GetRecipeByTitle(ctx, "natillas")
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, byTitle.ID)
}

func TestDeleteRecipe(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	owner := testhelpers.CreateTestUser(t, db, "alice", false)
	other := testhelpers.CreateTestUser(t, db, "bobby", false)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, owner.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteRecipe(ctx, other.ID, recipe.ID), ErrForbidden)
	require.NoError(t, svc.DeleteRecipe(ctx, owner.ID, recipe.ID))
	// Idempotent: already gone is a success even for an unrelated actor.
	assert.NoError(t, svc.DeleteRecipe(ctx, other.ID, recipe.ID))

	_, err = svc.GetRecipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecipeByTitleIsCaseInsensitive(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, admin.ID, recipeInput("Crema Catalana", category.ID))
	require.NoError(t, err)

	got, err := svc.GetRecipeByTitle(ctx, "crema catalana")
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, got.ID)
}

func TestListRecipesPagination(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	for i := 0; i < CatalogPageSize+2; i++ {
		_, err := svc.CreateRecipe(ctx, admin.ID, recipeInput(fmt.Sprintf("Recipe %02d", i), category.ID))
		require.NoError(t, err)
	}

	first, err := svc.ListRecipes(ctx, 0, false)
	require.NoError(t, err)
	assert.Len(t, first.Items, CatalogPageSize)
	assert.Equal(t, int64(CatalogPageSize+2), first.Total)

	second, err := svc.ListRecipes(ctx, 1, false)
	require.NoError(t, err)
	assert.Len(t, second.Items, 2)
}

func TestListRecipesByCategoryAndUser(t *testing.T) {
	svc, db, _ := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	alice := testhelpers.CreateTestUser(t, db, "alice", false)
	desserts, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	soups, err := svc.CreateCategory(ctx, admin.ID, "Soups")
	require.NoError(t, err)

	_, err = svc.CreateRecipe(ctx, alice.ID, recipeInput("Flan", desserts.ID))
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, admin.ID, recipeInput("Gazpacho", soups.ID))
	require.NoError(t, err)

	byCategory, err := svc.ListRecipesByCategory(ctx, desserts.ID, 0, false)
	require.NoError(t, err)
	require.Len(t, byCategory.Items, 1)
	assert.Equal(t, "FLAN", byCategory.Items[0].Title)

	byUser, err := svc.ListRecipesByUser(ctx, alice.ID, 0, false)
	require.NoError(t, err)
	require.Len(t, byUser.Items, 1)
	assert.Equal(t, "FLAN", byUser.Items[0].Title)
}

func TestAttachRecipeImage(t *testing.T) {
	svc, db, images := newCatalogService(t)
	ctx := context.Background()

	admin := testhelpers.CreateTestUser(t, db, "root", true)
	owner := testhelpers.CreateTestUser(t, db, "alice", false)
	other := testhelpers.CreateTestUser(t, db, "bobby", false)
	category, err := svc.CreateCategory(ctx, admin.ID, "Desserts")
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, owner.ID, recipeInput("Flan", category.ID))
	require.NoError(t, err)

	_, err = svc.AttachRecipeImage(ctx, other.ID, recipe.ID, []byte("jpegdata"), "image/jpeg")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, images.uploads)

	url, err := svc.AttachRecipeImage(ctx, owner.ID, recipe.ID, []byte("jpegdata"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://images.test/recipe.jpg", url)
	assert.Equal(t, 1, images.uploads)

	got, err := svc.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, url, got.ImageURL)
}

func TestAttachRecipeImageWithoutStore(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	store := cache.NewMemoryCache()
	svc := NewCatalogService(txn.New(db, store), store, nil)
	ctx := context.Background()

	user := testhelpers.CreateTestUser(t, db, "alice", false)
	_, err := svc.AttachRecipeImage(ctx, user.ID, uuid.New(), []byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
