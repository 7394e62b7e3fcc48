package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/middleware"
	"github.com/recetario/backend/internal/service"
)

// CategoryHandler exposes category reads and the admin-only mutations.
type CategoryHandler struct {
	catalog service.Catalog
	renderer
}

func NewCategoryHandler(catalog service.Catalog, c cache.Cache) *CategoryHandler {
	return &CategoryHandler{catalog: catalog, renderer: renderer{cache: c}}
}

func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	categories := router.Group("/categories")
	{
		categories.GET("", h.ListCategories)
		categories.GET("/:id", h.GetCategory)
		categories.GET("/:id/recipes", h.ListCategoryRecipes)
		categories.POST("", auth, h.CreateCategory)
		categories.PUT("/:id", auth, h.UpdateCategory)
		categories.DELETE("/:id", auth, h.DeleteCategory)
	}
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), actor.ID, req.CategoryName)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, category)
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	category, err := h.catalog.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCached(c, http.StatusOK, cache.Entity(cache.KindCategory, id.String()), cache.NoTTL, category)
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	alpha := c.Query("sort") == "alpha"
	result, err := h.catalog.ListCategories(c.Request.Context(), page, alpha)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Count", strconv.FormatInt(result.Total, 10))
	key := cache.List(cache.KindCategoryList, page, strconv.FormatBool(alpha))
	h.respondCached(c, http.StatusOK, key, cache.ListTTL, result)
}

// ListCategoryRecipes pages through the recipes of one category.
func (h *CategoryHandler) ListCategoryRecipes(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	page, ok := pageParam(c)
	if !ok {
		return
	}
	alpha := c.Query("sort") == "alpha"
	result, err := h.catalog.ListRecipesByCategory(c.Request.Context(), id, page, alpha)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Count", strconv.FormatInt(result.Total, 10))
	key := cache.List(cache.KindRecipesByCat, page, id.String(), strconv.FormatBool(alpha))
	h.respondCached(c, http.StatusOK, key, cache.ListTTL, result)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.UpdateCategory(c.Request.Context(), actor.ID, id, req.CategoryName); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category updated"})
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	if err := h.catalog.DeleteCategory(c.Request.Context(), actor.ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}
