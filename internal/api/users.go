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

// UserHandler exposes registration, user reads and the authenticated user
// mutations.
type UserHandler struct {
	identity service.Identity
	renderer
}

func NewUserHandler(identity service.Identity, c cache.Cache) *UserHandler {
	return &UserHandler{identity: identity, renderer: renderer{cache: c}}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	users := router.Group("/users")
	{
		users.POST("", h.Register)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.GET("/nick/:nick", h.GetUserByNick)
		users.PUT("/:id", auth, h.UpdateUser)
		users.DELETE("/:id", auth, h.DeleteUser)
		users.PUT("/:id/admin", auth, h.SetAdmin)
	}
	router.GET("/admins", h.ListAdmins)
}

// Register creates an account and returns the one-time visible credential.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, token, err := h.identity.Register(c.Request.Context(), req.Nick, req.Name, req.Surname, req.City)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, CredentialResponse{APIKey: token})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	user, err := h.identity.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCached(c, http.StatusOK, cache.Entity(cache.KindUser, id.String()), cache.NoTTL, user)
}

func (h *UserHandler) GetUserByNick(c *gin.Context) {
	nick := c.Param("nick")
	user, err := h.identity.GetUserByNick(c.Request.Context(), nick)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCached(c, http.StatusOK, cache.Entity(cache.KindUser, nick), cache.NoTTL, user)
}

// ListUsers serves both the plain listing and the name/surname/city search.
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	alpha := c.Query("sort") == "alpha"
	name, surname, city := c.Query("name"), c.Query("surname"), c.Query("city")

	var (
		result *service.UserPage
		key    cache.Key
		err    error
	)
	if name != "" || surname != "" || city != "" {
		key = cache.List(cache.KindUserSearch, page, name, surname, city, strconv.FormatBool(alpha))
		result, err = h.identity.SearchUsers(c.Request.Context(), name, surname, city, page, alpha)
	} else {
		key = cache.List(cache.KindUserList, page, strconv.FormatBool(alpha))
		result, err = h.identity.ListUsers(c.Request.Context(), page, alpha)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Count", strconv.FormatInt(result.Total, 10))
	h.respondCached(c, http.StatusOK, key, cache.ListTTL, result)
}

func (h *UserHandler) ListAdmins(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	alpha := c.Query("sort") == "alpha"
	result, err := h.identity.ListAdmins(c.Request.Context(), page, alpha)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Count", strconv.FormatInt(result.Total, 10))
	key := cache.List(cache.KindAdminList, page, strconv.FormatBool(alpha))
	h.respondCached(c, http.StatusOK, key, cache.ListTTL, result)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := service.UserUpdate{Nick: req.Nick, Name: req.Name, Surname: req.Surname, City: req.City}
	if err := h.identity.UpdateUser(c.Request.Context(), actor.ID, id, fields); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := h.identity.DeleteUser(c.Request.Context(), actor.ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *UserHandler) SetAdmin(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.identity.SetAdmin(c.Request.Context(), actor.ID, id, req.Admin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "admin flag updated"})
}

// pageParam parses the required page query parameter. Writes the error
// response itself when the parameter is missing or malformed.
func pageParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("page", "0")
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page parameter"})
		return 0, false
	}
	return page, true
}
