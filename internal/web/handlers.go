package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rcollings/realtyads/internal/ad"
	"github.com/rcollings/realtyads/internal/auth"
	"github.com/rcollings/realtyads/internal/geo"
	"github.com/rcollings/realtyads/internal/user"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateAd(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}

	var in ad.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}

	created, owner, err := s.ads.Create(c.Request.Context(), callerID, &in)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ad created successfully",
		"ad":      created,
		"user":    owner,
	})
}

func (s *Server) handleUpdateAd(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}

	var in ad.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}

	updated, owner, err := s.ads.Update(c.Request.Context(), callerID, c.Param("slug"), &in)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ad updated successfully",
		"ad":      updated,
		"user":    owner,
	})
}

func (s *Server) handleDeleteAd(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}

	if err := s.ads.Delete(c.Request.Context(), callerID, c.Param("slug")); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ad deleted successfully",
	})
}

func (s *Server) handleGetAd(c *gin.Context) {
	found, related, err := s.ads.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ad fetched successfully",
		"ad":      found,
		"related": related,
	})
}

func (s *Server) handleSaleFeed(c *gin.Context) {
	s.feed(c, "Ads for sale fetched successfully", s.ads.SaleFeed)
}

func (s *Server) handleRentFeed(c *gin.Context) {
	s.feed(c, "Ads for rent fetched successfully", s.ads.RentFeed)
}

func (s *Server) handleUserAds(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}
	s.feed(c, "Your ads fetched successfully", func(ctx context.Context, page int) (*ad.Page, error) {
		return s.ads.UserAds(ctx, callerID, page)
	})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}

	updated, err := s.ads.UpdateStatus(c.Request.Context(), callerID, c.Param("slug"), body.Status)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ad status updated",
		"ad":      updated,
	})
}

func (s *Server) handleTogglePublished(c *gin.Context) {
	adID, err := primitive.ObjectIDFromHex(c.Param("adId"))
	if err != nil {
		s.badRequest(c, "Ad ID is invalid")
		return
	}

	updated, published, err := s.ads.TogglePublished(c.Request.Context(), adID)
	if err != nil {
		s.fail(c, err)
		return
	}

	message := "Ad unpublished"
	if published {
		message = "Ad published"
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"ad":      updated,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req ad.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}

	page, err := s.ads.Search(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     strconv.FormatInt(page.TotalAds, 10) + " matching ads found",
		"ads":         page.Ads,
		"totalAds":    page.TotalAds,
		"totalPages":  page.TotalPages,
		"currentPage": page.CurrentPage,
	})
}

func (s *Server) handleToggleWishlist(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}

	adID, err := primitive.ObjectIDFromHex(c.Param("adId"))
	if err != nil {
		s.badRequest(c, "Ad ID is invalid")
		return
	}

	wishlist, added, err := s.ads.ToggleWishlist(c.Request.Context(), callerID, adID)
	if err != nil {
		s.fail(c, err)
		return
	}

	message := "Ad removed from wishlist"
	if added {
		message = "Ad added to wishlist"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  message,
		"wishlist": wishlist,
	})
}

func (s *Server) handleWishlist(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}
	s.feed(c, "Wishlist fetched successfully", func(ctx context.Context, page int) (*ad.Page, error) {
		return s.ads.Wishlist(ctx, callerID, page)
	})
}

func (s *Server) handleEnquired(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}
	s.feed(c, "Enquired ads fetched successfully", func(ctx context.Context, page int) (*ad.Page, error) {
		return s.ads.Enquired(ctx, callerID, page)
	})
}

func (s *Server) handleContactAgent(c *gin.Context) {
	callerID, ok := auth.UserID(c)
	if !ok {
		s.fail(c, ad.ErrNotAuthorized)
		return
	}

	var body struct {
		AdID    string `json:"adId"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}

	adID, err := primitive.ObjectIDFromHex(body.AdID)
	if err != nil {
		s.badRequest(c, "Ad ID and message are required")
		return
	}

	link, err := s.ads.ContactAgent(c.Request.Context(), callerID, adID, body.Message)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Your enquiry has been emailed to the agent",
		"link":    link,
	})
}

// feed runs a paginated listing lookup with the :page path parameter.
func (s *Server) feed(c *gin.Context, message string, fetch func(ctx context.Context, page int) (*ad.Page, error)) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		s.badRequest(c, "Page must be a number")
		return
	}

	result, err := fetch(c.Request.Context(), page)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     message,
		"ads":         result.Ads,
		"totalAds":    result.TotalAds,
		"totalPages":  result.TotalPages,
		"currentPage": result.CurrentPage,
	})
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

// fail maps domain errors onto HTTP status classes with the standard
// envelope. Unknown errors are logged and masked.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *ad.ValidationError

	switch {
	case errors.As(err, &verr):
		s.badRequest(c, verr.Error())
	case errors.Is(err, geo.ErrInvalidAddress):
		s.badRequest(c, "Please provide a valid address")
	case errors.Is(err, ad.ErrInvalidPage):
		s.badRequest(c, "Invalid page number")
	case errors.Is(err, ad.ErrSelfEnquiry):
		s.badRequest(c, "You cannot contact yourself")
	case errors.Is(err, ad.ErrNoMatches):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No matching ads found"})
	case errors.Is(err, ad.ErrNotFound), errors.Is(err, user.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Ad not found"})
	case errors.Is(err, ad.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "You are not authorized to do that"})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Something went wrong. Try again."})
	}
}
