package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/middleware"
	"github.com/recetario/backend/internal/service"
)

// maxImageBytes caps recipe image uploads.
const maxImageBytes = 5 << 20

// RecipeHandler exposes recipe reads and the creator/admin mutations.
type RecipeHandler struct {
	catalog service.Catalog
	renderer
}

func NewRecipeHandler(catalog service.Catalog, c cache.Cache) *RecipeHandler {
	return &RecipeHandler{catalog: catalog, renderer: renderer{cache: c}}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.ListRecipes)
		recipes.GET("/:id", h.GetRecipe)
		recipes.GET("/title/:title", h.GetRecipeByTitle)
		recipes.POST("", auth, h.CreateRecipe)
		recipes.PUT("/:id", auth, h.UpdateRecipe)
		recipes.DELETE("/:id", auth, h.DeleteRecipe)
		recipes.POST("/:id/image", auth, h.AttachImage)
	}
	router.GET("/users/:id/recipes", h.ListUserRecipes)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipe, err := h.catalog.CreateRecipe(c.Request.Context(), actor.ID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, recipe)
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	recipe, err := h.catalog.GetRecipe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCached(c, http.StatusOK, cache.Entity(cache.KindRecipe, id.String()), cache.NoTTL, recipe)
}

func (h *RecipeHandler) GetRecipeByTitle(c *gin.Context) {
	recipe, err := h.catalog.GetRecipeByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCached(c, http.StatusOK, cache.Entity(cache.KindRecipe, recipe.Title), cache.NoTTL, recipe)
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	alpha := c.Query("sort") == "alpha"
	result, err := h.catalog.ListRecipes(c.Request.Context(), page, alpha)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Count", strconv.FormatInt(result.Total, 10))
	key := cache.List(cache.KindRecipeList, page, strconv.FormatBool(alpha))
	h.respondCached(c, http.StatusOK, key, cache.ListTTL, result)
}

// ListUserRecipes pages through the recipes created by one user.
func (h *RecipeHandler) ListUserRecipes(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	page, ok := pageParam(c)
	if !ok {
		return
	}
	alpha := c.Query("sort") == "alpha"
	result, err := h.catalog.ListRecipesByUser(c.Request.Context(), id, page, alpha)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Count", strconv.FormatInt(result.Total, 10))
	key := cache.List(cache.KindRecipesByUser, page, id.String(), strconv.FormatBool(alpha))
	h.respondCached(c, http.StatusOK, key, cache.ListTTL, result)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.UpdateRecipe(c.Request.Context(), actor.ID, id, req.toInput()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipe updated"})
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	if err := h.catalog.DeleteRecipe(c.Request.Context(), actor.ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}

// AttachImage stores the raw request body as the recipe image.
func (h *RecipeHandler) AttachImage(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImageBytes))
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty or unreadable image body"})
		return
	}
	url, err := h.catalog.AttachRecipeImage(c.Request.Context(), actor.ID, id, data, c.ContentType())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}
