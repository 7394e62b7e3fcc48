package api

import (
	"github.com/google/uuid"

	"github.com/recetario/backend/internal/models"
	"github.com/recetario/backend/internal/service"
)

type RegisterRequest struct {
	Nick    string `json:"nick" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Surname string `json:"surname" binding:"required"`
	City    string `json:"city" binding:"required"`
}

type UpdateUserRequest struct {
	Nick    string `json:"nick" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Surname string `json:"surname" binding:"required"`
	City    string `json:"city" binding:"required"`
}

type SetAdminRequest struct {
	Admin bool `json:"admin"`
}

type CategoryRequest struct {
	CategoryName string `json:"category_name" binding:"required"`
}

type IngredientRequest struct {
	IngredientName string `json:"ingredient_name" binding:"required"`
	Units          string `json:"units" binding:"required"`
}

type RecipeRequest struct {
	Title       string              `json:"title" binding:"required"`
	Steps       string              `json:"steps" binding:"required"`
	Time        string              `json:"time" binding:"required"`
	Difficulty  string              `json:"difficulty" binding:"required"`
	CategoryID  uuid.UUID           `json:"category_id" binding:"required"`
	Ingredients []IngredientRequest `json:"ingredients" binding:"required,dive"`
}

func (r RecipeRequest) toInput() service.RecipeInput {
	input := service.RecipeInput{
		Title:      r.Title,
		Steps:      r.Steps,
		Time:       r.Time,
		Difficulty: models.Difficulty(r.Difficulty),
		CategoryID: r.CategoryID,
	}
	for _, ing := range r.Ingredients {
		input.Ingredients = append(input.Ingredients, service.IngredientInput{
			Name:  ing.IngredientName,
			Units: ing.Units,
		})
	}
	return input
}

// CredentialResponse is returned once, at registration.
type CredentialResponse struct {
	APIKey string `json:"api_key" xml:"apiKey"`
}
