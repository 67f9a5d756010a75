package routes

import (
	"github.com/gin-gonic/gin"

	"cookbook/internal/authz"
	"cookbook/internal/handlers"
	"cookbook/internal/middleware"
)

type Handlers struct {
	Registration *handlers.RegistrationHandler
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Recipes      *handlers.RecipeHandler
	Categories   *handlers.CategoryHandler
}

func SetupRoutes(r *gin.Engine, tokens *authz.Tokens, h Handlers) *gin.Engine {
	auth := middleware.AuthMiddleware(tokens)
	optional := middleware.OptionalAuth(tokens)

	// ---- public
	r.POST("/login", h.Auth.Login)
	r.POST("/refresh", h.Auth.RefreshToken)
	r.POST("/password/forgot", h.Auth.ForgotPassword)
	r.POST("/password/reset", h.Auth.ResetPassword)

	signup := r.Group("/signup")
	{
		signup.POST("", h.Registration.SignUp)
		signup.GET("/:email", h.Registration.State)
		signup.POST("/:email/verify", h.Registration.Verify)
		signup.POST("/:email/resend", h.Registration.Resend)
	}

	r.GET("/categories", h.Categories.List)
	r.GET("/profile/:id", h.Users.Profile)
	r.GET("/users/:nickname/favorites", h.Recipes.Favorites)

	// ---- recipes: чтение анонимно, запись по токену
	recipes := r.Group("/recipes")
	{
		recipes.GET("/search", h.Recipes.Search)
		recipes.GET("/best", h.Recipes.Best)
		recipes.GET("/:id", optional, h.Recipes.Get)
		recipes.GET("/:id/pdf", h.Recipes.Card)

		recipes.POST("", auth, h.Recipes.Create)
		recipes.PUT("/:id", auth, h.Recipes.Owner(), h.Recipes.Update)
		recipes.DELETE("/:id", auth, h.Recipes.Owner(), h.Recipes.Delete)
		recipes.POST("/:id/rate", auth, h.Recipes.Rate)
		recipes.POST("/:id/favorite", auth, h.Recipes.ToggleFavorite)
	}

	// ---- protected
	account := r.Group("/account", auth)
	{
		account.GET("", h.Users.Account)
		account.PUT("", h.Users.UpdateAccount)
	}
	r.POST("/categories", auth, middleware.RequireStaff(), h.Categories.Create)

	return r
}
