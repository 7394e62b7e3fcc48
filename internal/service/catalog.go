package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/models"
	"github.com/recetario/backend/internal/policy"
	"github.com/recetario/backend/internal/txn"
)

// CatalogPageSize is the page size for recipe and category listings.
const CatalogPageSize = 10

// IngredientInput is one submitted ingredient line.
type IngredientInput struct {
	Name  string
	Units string
}

// RecipeInput carries the recipe fields for create and update.
type RecipeInput struct {
	Title       string
	Steps       string
	Time        string
	Difficulty  models.Difficulty
	CategoryID  uuid.UUID
	Ingredients []IngredientInput
}

// RecipePage is one page of recipes plus the total count of the filtered set.
type RecipePage struct {
	Items []models.Recipe `json:"items" xml:"recipes>recipe"`
	Total int64           `json:"total" xml:"total"`
}

// CategoryPage is one page of categories plus the total count.
type CategoryPage struct {
	Items []models.Category `json:"items" xml:"categories>category"`
	Total int64             `json:"total" xml:"total"`
}

// ImageStore persists raw image bytes and returns a public URL.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// CatalogService owns categories, ingredients and recipes: name uniqueness,
// ingredient dedup, explicit cascades and the cache-aside read paths.
type CatalogService struct {
	co     *txn.Coordinator
	cache  cache.Cache
	images ImageStore
}

func NewCatalogService(co *txn.Coordinator, c cache.Cache, images ImageStore) *CatalogService {
	return &CatalogService{co: co, cache: c, images: images}
}

// CreateCategory persists a category with its name upper-cased. Admin only;
// case-insensitive collisions are rejected, not merged.
func (s *CatalogService) CreateCategory(ctx context.Context, actorID uuid.UUID, name string) (*models.Category, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	category := &models.Category{CategoryName: strings.ToUpper(strings.TrimSpace(name))}
	if err := category.Validate(); err != nil {
		return nil, validationError(err)
	}

	var count int64
	if err := s.co.DB().WithContext(ctx).Model(&models.Category{}).Where("category_name = ?", category.CategoryName).Count(&count).Error; err != nil {
		return nil, storeError(err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: category %q already exists", ErrConflict, category.CategoryName)
	}

	err := s.co.Run(ctx, func(u *txn.Unit) error {
		if err := u.Tx.Create(category).Error; err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory renames a category. Admin only.
func (s *CatalogService) UpdateCategory(ctx context.Context, actorID, categoryID uuid.UUID, name string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	db := s.co.DB().WithContext(ctx)
	var category models.Category
	if err := db.First(&category, "id = ?", categoryID).Error; err != nil {
		return storeError(err)
	}
	newName := strings.ToUpper(strings.TrimSpace(name))
	if newName == "" {
		return fmt.Errorf("%w: categoryName: must not be blank", ErrValidation)
	}

	var other models.Category
	err := db.Where("category_name = ?", newName).First(&other).Error
	if err == nil && other.ID != categoryID {
		return fmt.Errorf("%w: category %q already exists", ErrConflict, newName)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeError(err)
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		if err := u.Tx.Model(&models.Category{}).Where("id = ?", categoryID).Update("category_name", newName).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(cache.Entity(cache.KindCategory, categoryID.String()))
		return nil
	})
}

// DeleteCategory removes a category and cascades to its recipes inside the
// same unit. Idempotent: a missing category is a success.
func (s *CatalogService) DeleteCategory(ctx context.Context, actorID, categoryID uuid.UUID) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	db := s.co.DB().WithContext(ctx)
	var category models.Category
	if err := db.First(&category, "id = ?", categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return storeError(err)
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		var recipes []models.Recipe
		if err := u.Tx.Where("category_id = ?", categoryID).Find(&recipes).Error; err != nil {
			return storeError(err)
		}
		for i := range recipes {
			if err := u.Tx.Model(&recipes[i]).Association("Ingredients").Clear(); err != nil {
				return storeError(err)
			}
			if err := u.Tx.Delete(&models.Recipe{}, "id = ?", recipes[i].ID).Error; err != nil {
				return storeError(err)
			}
			u.Invalidate(
				cache.Entity(cache.KindRecipe, recipes[i].ID.String()),
				cache.Entity(cache.KindRecipe, recipes[i].Title),
			)
		}
		if err := u.Tx.Delete(&models.Category{}, "id = ?", categoryID).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(cache.Entity(cache.KindCategory, categoryID.String()))
		return nil
	})
}

// GetCategory reads through the cache by id.
func (s *CatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	key := cache.Entity(cache.KindCategory, id.String())
	var category models.Category
	if err := s.cache.Get(ctx, key, &category); err == nil {
		return &category, nil
	}
	if err := s.co.DB().WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, storeError(err)
	}
	_ = s.cache.Set(ctx, key, category, cache.NoTTL)
	return &category, nil
}

// ListCategories returns one page of categories.
func (s *CatalogService) ListCategories(ctx context.Context, page int, alphabetical bool) (*CategoryPage, error) {
	key := cache.List(cache.KindCategoryList, page, fmt.Sprintf("%t", alphabetical))
	var cached CategoryPage
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	db := s.co.DB().WithContext(ctx).Model(&models.Category{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storeError(err)
	}
	var items []models.Category
	if err := db.Order("id").Offset(page * CatalogPageSize).Limit(CatalogPageSize).Find(&items).Error; err != nil {
		return nil, storeError(err)
	}
	if alphabetical {
		sort.SliceStable(items, func(i, j int) bool { return items[i].CategoryName < items[j].CategoryName })
	}
	result := &CategoryPage{Items: items, Total: total}
	_ = s.cache.Set(ctx, key, result, cache.ListTTL)
	return result, nil
}

// CreateRecipe persists a recipe for the acting user. The category must
// resolve before the title check; the ingredient list is deduplicated
// against existing rows.
func (s *CatalogService) CreateRecipe(ctx context.Context, actorID uuid.UUID, input RecipeInput) (*models.Recipe, error) {
	recipe := recipeFromInput(input)
	recipe.UserID = actorID
	if err := recipe.Validate(); err != nil {
		return nil, validationError(err)
	}

	db := s.co.DB().WithContext(ctx)
	var category models.Category
	if err := db.First(&category, "id = ?", input.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: category %s", ErrNotFound, input.CategoryID)
		}
		return nil, storeError(err)
	}

	var count int64
	if err := db.Model(&models.Recipe{}).Where("title = ?", recipe.Title).Count(&count).Error; err != nil {
		return nil, storeError(err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: recipe %q already exists", ErrConflict, recipe.Title)
	}

	err := s.co.Run(ctx, func(u *txn.Unit) error {
		resolved, err := resolveIngredients(u.Tx, recipe.Ingredients)
		if err != nil {
			return err
		}
		recipe.Ingredients = resolved
		if err := u.Tx.Create(recipe).Error; err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

// UpdateRecipe rewrites a recipe atomically. The category is re-validated
// exactly like creation; a failed resolve rejects the whole update. The
// ingredient association list is cleared and rebuilt from the new list,
// which handles addition, removal and modification in one pass.
func (s *CatalogService) UpdateRecipe(ctx context.Context, actorID, recipeID uuid.UUID, input RecipeInput) error {
	db := s.co.DB().WithContext(ctx)
	var existing models.Recipe
	if err := db.First(&existing, "id = ?", recipeID).Error; err != nil {
		return storeError(err)
	}
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanModify(actor.ID, existing.UserID, actor.IsAdmin) {
		return fmt.Errorf("%w: not the recipe creator", ErrForbidden)
	}

	updated := recipeFromInput(input)
	updated.UserID = existing.UserID
	if err := updated.Validate(); err != nil {
		return validationError(err)
	}

	var category models.Category
	if err := db.First(&category, "id = ?", input.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: category %s", ErrNotFound, input.CategoryID)
		}
		return storeError(err)
	}

	var other models.Recipe
	err = db.Where("title = ?", updated.Title).First(&other).Error
	if err == nil && other.ID != recipeID {
		return fmt.Errorf("%w: recipe %q already exists", ErrConflict, updated.Title)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeError(err)
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		resolved, err := resolveIngredients(u.Tx, updated.Ingredients)
		if err != nil {
			return err
		}
		updates := map[string]any{
			"title":       updated.Title,
			"steps":       updated.Steps,
			"time":        updated.Time,
			"difficulty":  updated.Difficulty,
			"category_id": input.CategoryID,
		}
		if err := u.Tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Updates(updates).Error; err != nil {
			return storeError(err)
		}
		target := models.Recipe{ID: recipeID}
		if err := u.Tx.Model(&target).Association("Ingredients").Clear(); err != nil {
			return storeError(err)
		}
		if len(resolved) > 0 {
			if err := u.Tx.Model(&target).Association("Ingredients").Append(&resolved); err != nil {
				return storeError(err)
			}
		}
		u.Invalidate(
			cache.Entity(cache.KindRecipe, recipeID.String()),
			cache.Entity(cache.KindRecipe, existing.Title),
		)
		if updated.Title != existing.Title {
			u.Invalidate(cache.Entity(cache.KindRecipe, updated.Title))
		}
		return nil
	})
}

// DeleteRecipe removes a recipe. Deletes are idempotent across the catalog:
// a missing recipe is a success and performs no store mutation.
func (s *CatalogService) DeleteRecipe(ctx context.Context, actorID, recipeID uuid.UUID) error {
	db := s.co.DB().WithContext(ctx)
	var recipe models.Recipe
	if err := db.First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return storeError(err)
	}
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanModify(actor.ID, recipe.UserID, actor.IsAdmin) {
		return fmt.Errorf("%w: not the recipe creator", ErrForbidden)
	}

	return s.co.Run(ctx, func(u *txn.Unit) error {
		if err := u.Tx.Model(&recipe).Association("Ingredients").Clear(); err != nil {
			return storeError(err)
		}
		if err := u.Tx.Delete(&models.Recipe{}, "id = ?", recipeID).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(
			cache.Entity(cache.KindRecipe, recipeID.String()),
			cache.Entity(cache.KindRecipe, recipe.Title),
		)
		return nil
	})
}

// GetRecipe reads through the cache by id, ingredients included.
func (s *CatalogService) GetRecipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	key := cache.Entity(cache.KindRecipe, id.String())
	var recipe models.Recipe
	if err := s.cache.Get(ctx, key, &recipe); err == nil {
		return &recipe, nil
	}
	if err := s.co.DB().WithContext(ctx).Preload("Ingredients").First(&recipe, "id = ?", id).Error; err != nil {
		return nil, storeError(err)
	}
	_ = s.cache.Set(ctx, key, recipe, cache.NoTTL)
	return &recipe, nil
}

// GetRecipeByTitle reads through the cache by the alternate title key. The
// lookup value is upper-cased the same way titles are stored.
func (s *CatalogService) GetRecipeByTitle(ctx context.Context, title string) (*models.Recipe, error) {
	upper := strings.ToUpper(strings.TrimSpace(title))
	key := cache.Entity(cache.KindRecipe, upper)
	var recipe models.Recipe
	if err := s.cache.Get(ctx, key, &recipe); err == nil {
		return &recipe, nil
	}
	if err := s.co.DB().WithContext(ctx).Preload("Ingredients").Where("title = ?", upper).First(&recipe).Error; err != nil {
		return nil, storeError(err)
	}
	_ = s.cache.Set(ctx, key, recipe, cache.NoTTL)
	return &recipe, nil
}

// ListRecipes returns one page of all recipes.
func (s *CatalogService) ListRecipes(ctx context.Context, page int, alphabetical bool) (*RecipePage, error) {
	key := cache.List(cache.KindRecipeList, page, fmt.Sprintf("%t", alphabetical))
	return s.recipePage(ctx, key, page, alphabetical, func(db *gorm.DB) *gorm.DB { return db })
}

// ListRecipesByCategory returns one page of a category's recipes.
func (s *CatalogService) ListRecipesByCategory(ctx context.Context, categoryID uuid.UUID, page int, alphabetical bool) (*RecipePage, error) {
	key := cache.List(cache.KindRecipesByCat, page, categoryID.String(), fmt.Sprintf("%t", alphabetical))
	return s.recipePage(ctx, key, page, alphabetical, func(db *gorm.DB) *gorm.DB {
		return db.Where("category_id = ?", categoryID)
	})
}

// ListRecipesByUser returns one page of a user's recipes.
func (s *CatalogService) ListRecipesByUser(ctx context.Context, userID uuid.UUID, page int, alphabetical bool) (*RecipePage, error) {
	key := cache.List(cache.KindRecipesByUser, page, userID.String(), fmt.Sprintf("%t", alphabetical))
	return s.recipePage(ctx, key, page, alphabetical, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	})
}

// AttachRecipeImage uploads image bytes for a recipe and persists the URL.
func (s *CatalogService) AttachRecipeImage(ctx context.Context, actorID, recipeID uuid.UUID, data []byte, contentType string) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("%w: image storage not configured", ErrStoreUnavailable)
	}
	db := s.co.DB().WithContext(ctx)
	var recipe models.Recipe
	if err := db.First(&recipe, "id = ?", recipeID).Error; err != nil {
		return "", storeError(err)
	}
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return "", err
	}
	if !policy.CanModify(actor.ID, recipe.UserID, actor.IsAdmin) {
		return "", fmt.Errorf("%w: not the recipe creator", ErrForbidden)
	}

	url, err := s.images.Upload(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	err = s.co.Run(ctx, func(u *txn.Unit) error {
		if err := u.Tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Update("image_url", url).Error; err != nil {
			return storeError(err)
		}
		u.Invalidate(
			cache.Entity(cache.KindRecipe, recipeID.String()),
			cache.Entity(cache.KindRecipe, recipe.Title),
		)
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (s *CatalogService) recipePage(ctx context.Context, key cache.Key, page int, alphabetical bool, filter func(*gorm.DB) *gorm.DB) (*RecipePage, error) {
	var cached RecipePage
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	db := filter(s.co.DB().WithContext(ctx).Model(&models.Recipe{}))
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storeError(err)
	}
	var items []models.Recipe
	if err := db.Preload("Ingredients").Order("id").Offset(page * CatalogPageSize).Limit(CatalogPageSize).Find(&items).Error; err != nil {
		return nil, storeError(err)
	}
	if alphabetical {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	}
	result := &RecipePage{Items: items, Total: total}
	_ = s.cache.Set(ctx, key, result, cache.ListTTL)
	return result, nil
}

func (s *CatalogService) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanAdminister(actor.IsAdmin) {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func (s *CatalogService) loadActor(ctx context.Context, actorID uuid.UUID) (*models.User, error) {
	var actor models.User
	if err := s.co.DB().WithContext(ctx).First(&actor, "id = ?", actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown actor", ErrForbidden)
		}
		return nil, storeError(err)
	}
	return &actor, nil
}

func recipeFromInput(input RecipeInput) *models.Recipe {
	recipe := &models.Recipe{
		Title:      strings.ToUpper(strings.TrimSpace(input.Title)),
		Steps:      input.Steps,
		Time:       input.Time,
		Difficulty: input.Difficulty,
		CategoryID: input.CategoryID,
	}
	for _, ing := range input.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, models.Ingredient{
			IngredientName: strings.TrimSpace(ing.Name),
			Units:          strings.ToLower(strings.TrimSpace(ing.Units)),
		})
	}
	return recipe
}

// resolveIngredients maps each submitted ingredient to the existing row with
// the same name (case-insensitive) and units, keeping the table free of
// duplicate pairs. Unmatched ingredients stay as new rows to be created with
// the recipe. Units are already lower-cased by recipeFromInput.
func resolveIngredients(tx *gorm.DB, submitted []models.Ingredient) ([]models.Ingredient, error) {
	resolved := make([]models.Ingredient, 0, len(submitted))
	seen := make(map[string]bool, len(submitted))
	for _, ing := range submitted {
		pair := strings.ToLower(ing.IngredientName) + "\x00" + ing.Units
		if seen[pair] {
			continue
		}
		seen[pair] = true
		var existing models.Ingredient
		err := tx.Where("LOWER(ingredient_name) = ? AND units = ?",
			strings.ToLower(ing.IngredientName), ing.Units).First(&existing).Error
		switch {
		case err == nil:
			resolved = append(resolved, existing)
		case errors.Is(err, gorm.ErrRecordNotFound):
			resolved = append(resolved, ing)
		default:
			return nil, storeError(err)
		}
	}
	return resolved, nil
}
