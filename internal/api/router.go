package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"cmms-backend/internal/mw"
)

// RouterOptions tunes the request middleware.
type RouterOptions struct {
	RateLimit rate.Limit
	Burst     int
	CacheTTL  time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps, opts RouterOptions) *gin.Engine {
	r := gin.Default()
	handler := NewHandler(d)

	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(10)
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	rateLimiter := mw.RateLimiter(opts.RateLimit, opts.Burst)

	// Cached machine listings are dropped whenever the workbook changes.
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	d.Sync.OnInvalidate(cacheStore.Flush)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/login", handler.Login)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(mw.Auth(d.Tokens, d.Sessions, d.Users))

		authed.POST("/logout", handler.Logout)
		authed.GET("/session", handler.GetSession)
		authed.GET("/sessions", handler.GetActiveSessions)
		authed.GET("/users", handler.ListUsers)
		authed.POST("/users", handler.CreateUser)

		authed.GET("/machine-types", handler.GetMachineTypes)
		authed.POST("/machine-types", handler.PostMachineType)
		authed.GET("/machine-types/:type_id", handler.GetMachineType)
		authed.PUT("/machine-types/:type_id", handler.PutMachineType)
		authed.DELETE("/machine-types/:type_id", handler.DeleteMachineType)

		authed.GET("/machines/:type_id", caching, handler.GetMachines)
		authed.POST("/machines/:type_id", handler.PostMachine)
		authed.GET("/machines/:type_id/:position", caching, handler.GetMachine)
		authed.PUT("/machines/:type_id/:position", handler.PutMachine)
		authed.DELETE("/machines/:type_id/:position", handler.DeleteMachine)

		authed.GET("/search", handler.GetSearch)
		authed.GET("/search/history", handler.GetSearchHistory)

		authed.GET("/favorites", handler.GetFavorites)
		authed.PUT("/favorites/:type_id/:machine_id", handler.PutFavorite)
		authed.DELETE("/favorites/:type_id/:machine_id", handler.DeleteFavorite)

		authed.GET("/notifications", handler.GetNotifications)
		authed.POST("/notifications/:id/read", handler.PostNotificationRead)

		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)

		authed.GET("/sync", handler.GetSync)
		authed.POST("/sync/fetch", handler.PostSyncFetch)
	}

	return r
}
