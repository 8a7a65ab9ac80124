// Package web provides the JSON API server for the classifieds backend.
package web

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rcollings/realtyads/internal/ad"
	"github.com/rcollings/realtyads/internal/auth"
	"github.com/rcollings/realtyads/internal/logging"
)

// Server is the API HTTP server.
type Server struct {
	ads    *ad.Service
	users  auth.UserLoader
	secret string
	engine *gin.Engine
}

// NewServer creates an API server. devMode enables gin's debug noise;
// production runs in release mode.
func NewServer(ads *ad.Service, users auth.UserLoader, jwtSecret string, devMode bool) *Server {
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		ads:    ads,
		users:  users,
		secret: jwtSecret,
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(logging.RequestLogger())
	s.engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")

	// Public listing views.
	api.GET("/get-ad/:slug", s.handleGetAd)
	api.GET("/get-ad-sale/:page", s.handleSaleFeed)
	api.GET("/get-ad-rent/:page", s.handleRentFeed)
	api.POST("/search-ads", s.handleSearch)

	// Signed-in flows.
	signedIn := api.Group("", auth.RequireSignIn(s.secret))
	signedIn.POST("/create-ad", s.handleCreateAd)
	signedIn.PUT("/update-ad/:slug", s.handleUpdateAd)
	signedIn.DELETE("/delete-ad/:slug", s.handleDeleteAd)
	signedIn.PUT("/update-ad-status/:slug", s.handleUpdateStatus)
	signedIn.GET("/user-ads/:page", s.handleUserAds)
	signedIn.PUT("/toggle-wishlist/:adId", s.handleToggleWishlist)
	signedIn.GET("/wishlist/:page", s.handleWishlist)
	signedIn.POST("/contact-agent", s.handleContactAgent)
	signedIn.GET("/enquired-ads/:page", s.handleEnquired)

	// Admin only.
	admin := signedIn.Group("", auth.RequireAdmin(s.users))
	admin.PUT("/toggle-published/:adId", s.handleTogglePublished)
}

// Handler returns the underlying HTTP handler, for http.Server and tests.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}
