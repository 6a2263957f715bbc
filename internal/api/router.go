// Package api serves the authoritative ledger over JSON.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jask/finledger/internal/ledger"
)

const (
	// UserHeader carries the id of the user the request acts for.
	UserHeader      = "X-User-ID"
	RequestIDHeader = "X-Request-ID"
)

// Store is the ledger of one user.
type Store interface {
	ledger.Source
	ledger.Mutator
	ledger.Catalog
}

// StoreFunc returns the store scoped to userID.
type StoreFunc func(userID int64) Store

type server struct {
	stores StoreFunc
	log    *zap.Logger
}

// NewRouter builds the gin engine with all ledger routes.
func NewRouter(stores StoreFunc, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{stores: stores, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", UserHeader, RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "finledger"})
	})

	api := r.Group("/api", s.authenticate)
	api.GET("/groups", s.groups)
	api.GET("/categories", s.categories)
	api.POST("/categories", s.createCategory)
	api.PUT("/categories/:id", s.updateCategory)
	api.DELETE("/categories/:id", s.deleteCategory)
	api.GET("/rules", s.rules)
	api.POST("/rules", s.createRule)
	api.PUT("/rules/:id", s.updateRule)
	api.DELETE("/rules/:id", s.deleteRule)
	api.GET("/transactions", s.transactions)
	api.POST("/transactions", s.createTransaction)
	api.PUT("/transactions/:id", s.updateTransaction)
	api.DELETE("/transactions/:id", s.deleteTransaction)
	api.GET("/summary", s.summary)
	api.GET("/summary/categories", s.categorySummary)
	return r
}

// requestID reuses the caller's request id or assigns one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *server) authenticate(c *gin.Context) {
	id, err := strconv.ParseInt(c.GetHeader(UserHeader), 10, 64)
	if err != nil || id <= 0 {
		s.fail(c, ledger.ErrUnauthorized)
		return
	}
	c.Set("store", s.stores(id))
	c.Next()
}

func store(c *gin.Context) Store {
	return c.MustGet("store").(Store)
}

// StatusFor maps the ledger error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
