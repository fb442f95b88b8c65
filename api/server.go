// Package api serves a read-only HTTP view of the watcher state.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pevans/propwatch/config"
	"github.com/pevans/propwatch/listing"
	"github.com/pevans/propwatch/logger"
	"github.com/pevans/propwatch/store"
)

// DefaultRunLimit is the number of runs returned when no limit is given.
const DefaultRunLimit = 20

// Server represents the HTTP API server.
type Server struct {
	store   store.RecordStore
	queries []config.Query
	log     logger.Logger
}

// NewServer creates a new API server.
func NewServer(records store.RecordStore, queries []config.Query, log logger.Logger) *Server {
	return &Server{
		store:   records,
		queries: queries,
		log:     log,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.GET("/listings", s.HandleListListings)
	api.GET("/queries", s.HandleListQueries)
	api.GET("/runs", s.HandleListRuns)

	return router
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
			s.log.Error("HTTP request with errors", fields...)
			return
		}
		s.log.Debug("HTTP request", fields...)
	}
}

// ListListingsResponse represents the response for GET /api/v1/listings.
type ListListingsResponse struct {
	Listings []listing.Listing `json:"listings"`
	Total    int               `json:"total"`
}

// QueryInfo is a configured query and its compiled search URL.
type QueryInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListQueriesResponse represents the response for GET /api/v1/queries.
type ListQueriesResponse struct {
	Queries []QueryInfo `json:"queries"`
	Total   int         `json:"total"`
}

// ListRunsResponse represents the response for GET /api/v1/runs.
type ListRunsResponse struct {
	Runs  []store.Run `json:"runs"`
	Total int         `json:"total"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps domain errors to HTTP responses.
func (s *Server) handleError(c *gin.Context, err error) {
	c.Error(err)
	switch {
	case errors.Is(err, store.ErrCorruptStore):
		c.JSON(http.StatusInternalServerError, errorResponse("corrupt_store", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListListings handles GET /api/v1/listings.
func (s *Server) HandleListListings(c *gin.Context) {
	batch, err := s.store.Load(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	listings := batch.Sorted()
	c.JSON(http.StatusOK, ListListingsResponse{
		Listings: listings,
		Total:    len(listings),
	})
}

// HandleListQueries handles GET /api/v1/queries.
func (s *Server) HandleListQueries(c *gin.Context) {
	queries := make([]QueryInfo, 0, len(s.queries))
	for _, q := range s.queries {
		queries = append(queries, QueryInfo{Name: q.Name, URL: q.URL.String()})
	}

	c.JSON(http.StatusOK, ListQueriesResponse{
		Queries: queries,
		Total:   len(queries),
	})
}

// HandleListRuns handles GET /api/v1/runs.
func (s *Server) HandleListRuns(c *gin.Context) {
	recorder, ok := s.store.(store.RunRecorder)
	if !ok {
		c.JSON(http.StatusNotImplemented, errorResponse("not_implemented", "Run history requires a SQL store"))
		return
	}

	limit := DefaultRunLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("bad_request", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := recorder.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{
		Runs:  runs,
		Total: len(runs),
	})
}
