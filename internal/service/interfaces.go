package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/recetario/backend/internal/models"
)

// Identity is the surface the HTTP layer consumes for users and
// credentials.
type Identity interface {
	Register(ctx context.Context, nick, name, surname, city string) (*models.User, string, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByNick(ctx context.Context, nick string) (*models.User, error)
	ListUsers(ctx context.Context, page int, alphabetical bool) (*UserPage, error)
	ListAdmins(ctx context.Context, page int, alphabetical bool) (*UserPage, error)
	SearchUsers(ctx context.Context, name, surname, city string, page int, alphabetical bool) (*UserPage, error)
	SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, makeAdmin bool) error
	UpdateUser(ctx context.Context, actorID, targetID uuid.UUID, fields UserUpdate) error
	DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) error
}

// Catalog is the surface the HTTP layer consumes for categories, recipes
// and ingredients.
type Catalog interface {
	CreateCategory(ctx context.Context, actorID uuid.UUID, name string) (*models.Category, error)
	UpdateCategory(ctx context.Context, actorID, categoryID uuid.UUID, name string) error
	DeleteCategory(ctx context.Context, actorID, categoryID uuid.UUID) error
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context, page int, alphabetical bool) (*CategoryPage, error)
	CreateRecipe(ctx context.Context, actorID uuid.UUID, input RecipeInput) (*models.Recipe, error)
	UpdateRecipe(ctx context.Context, actorID, recipeID uuid.UUID, input RecipeInput) error
	DeleteRecipe(ctx context.Context, actorID, recipeID uuid.UUID) error
	GetRecipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error)
	GetRecipeByTitle(ctx context.Context, title string) (*models.Recipe, error)
	ListRecipes(ctx context.Context, page int, alphabetical bool) (*RecipePage, error)
	ListRecipesByCategory(ctx context.Context, categoryID uuid.UUID, page int, alphabetical bool) (*RecipePage, error)
	ListRecipesByUser(ctx context.Context, userID uuid.UUID, page int, alphabetical bool) (*RecipePage, error)
	AttachRecipeImage(ctx context.Context, actorID, recipeID uuid.UUID, data []byte, contentType string) (string, error)
}
