package router

import (
	"github.com/gin-gonic/gin"

	"github.com/recetario/backend/internal/api"
	"github.com/recetario/backend/internal/middleware"
	"github.com/recetario/backend/internal/service"
)

// SetupRouter configures the application routes. Reads are public;
// mutations go through the credential middleware.
func SetupRouter(
	userHandler *api.UserHandler,
	categoryHandler *api.CategoryHandler,
	recipeHandler *api.RecipeHandler,
	identity service.Identity,
	allowedOrigins []string,
) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.CORS(allowedOrigins))

	auth := middleware.AuthMiddleware(identity)

	v1 := router.Group("/api/v1")
	userHandler.RegisterRoutes(v1, auth)
	categoryHandler.RegisterRoutes(v1, auth)
	recipeHandler.RegisterRoutes(v1, auth)

	return router
}
