package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jask/finledger/internal/ledger"
)

func (s *server) groups(c *gin.Context) {
	groups, err := store(c).Groups(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if groups == nil {
		groups = []ledger.Group{}
	}
	c.JSON(http.StatusOK, groups)
}

func (s *server) categories(c *gin.Context) {
	cats, err := store(c).Categories(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if cats == nil {
		cats = []ledger.Category{}
	}
	c.JSON(http.StatusOK, cats)
}

func (s *server) rules(c *gin.Context) {
	rules, err := store(c).Rules(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if rules == nil {
		rules = []ledger.Rule{}
	}
	c.JSON(http.StatusOK, rules)
}

func intParam(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", ledger.ErrValidation, key, s)
	}
	return n, nil
}

func (s *server) transactions(c *gin.Context) {
	q, err := ParseQuery(c.Request.URL.Query())
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := intParam(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	txs, err := store(c).Transactions(c.Request.Context(), q, offset, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, txs)
}

func bindTransaction(c *gin.Context) (ledger.Transaction, error) {
	var t ledger.Transaction
	if err := c.ShouldBindJSON(&t); err != nil {
		return t, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return t, nil
}

func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", ledger.ErrValidation, c.Param("id"))
	}
	return id, nil
}

func (s *server) createTransaction(c *gin.Context) {
	t, err := bindTransaction(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t.ID = 0
	stored, err := store(c).CreateTransaction(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *server) updateTransaction(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := bindTransaction(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t.ID = id
	stored, err := store(c).UpdateTransaction(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *server) deleteTransaction(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	old, err := store(c).DeleteTransaction(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, old)
}

func (s *server) summary(c *gin.Context) {
	v := c.Request.URL.Query()
	accounts, err := ParseAccounts(v)
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := ParseRange(v)
	if err != nil {
		s.fail(c, err)
		return
	}
	rows, err := store(c).Summary(c.Request.Context(), accounts, r)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rows == nil {
		rows = []ledger.Summary{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *server) categorySummary(c *gin.Context) {
	v := c.Request.URL.Query()
	typ, err := strconv.Atoi(v.Get("type"))
	if err != nil || (ledger.TxType(typ) != ledger.TypeExpense && ledger.TxType(typ) != ledger.TypeIncome) {
		s.fail(c, fmt.Errorf("%w: type must be %d or %d", ledger.ErrValidation, ledger.TypeExpense, ledger.TypeIncome))
		return
	}
	accounts, err := ParseAccounts(v)
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := ParseRange(v)
	if err != nil {
		s.fail(c, err)
		return
	}
	rows, err := store(c).CategorySummary(c.Request.Context(), ledger.TxType(typ), accounts, r)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rows == nil {
		rows = []ledger.CategorySum{}
	}
	c.JSON(http.StatusOK, rows)
}
