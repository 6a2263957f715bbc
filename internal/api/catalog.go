package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jask/finledger/internal/ledger"
)

// CategoryInput is the body of category writes.
type CategoryInput struct {
	ParentID int64  `json:"parent_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return nil
}

func (s *server) createCategory(c *gin.Context) {
	var in CategoryInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	cat, err := store(c).CreateCategory(c.Request.Context(), in.ParentID, in.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (s *server) updateCategory(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in CategoryInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	cat, err := store(c).UpdateCategory(c.Request.Context(), ledger.Category{ID: id, Name: in.Name, ParentID: &in.ParentID})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (s *server) deleteCategory(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := store(c).DeleteCategory(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) createRule(c *gin.Context) {
	var r ledger.Rule
	if err := bindJSON(c, &r); err != nil {
		s.fail(c, err)
		return
	}
	r.ID = 0
	stored, err := store(c).CreateRule(c.Request.Context(), r)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *server) updateRule(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var r ledger.Rule
	if err := bindJSON(c, &r); err != nil {
		s.fail(c, err)
		return
	}
	r.ID = id
	stored, err := store(c).UpdateRule(c.Request.Context(), r)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *server) deleteRule(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := store(c).DeleteRule(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
