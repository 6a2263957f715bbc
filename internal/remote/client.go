// Package remote reads and writes the ledger through the finledger HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jask/finledger/internal/api"
	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
)

// Client implements ledger.Source, ledger.Mutator and ledger.Catalog over
// HTTP.
type Client struct {
	base string
	user int64
	http *http.Client
	log  *zap.Logger
}

var (
	_ ledger.Source  = (*Client)(nil)
	_ ledger.Mutator = (*Client)(nil)
	_ ledger.Catalog = (*Client)(nil)
)

func New(baseURL string, userID int64, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/") + "/api",
		user: userID,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

// statusError maps a failed response back onto the ledger errors.
func statusError(code int, msg string) error {
	var sentinel error
	switch code {
	case http.StatusUnauthorized:
		sentinel = ledger.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ledger.ErrForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = ledger.ErrValidation
	case http.StatusNotFound:
		sentinel = ledger.ErrNotFound
	default:
		return fmt.Errorf("server returned %d: %s", code, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	rid := uuid.NewString()
	req.Header.Set(api.UserHeader, strconv.FormatInt(c.user, 10))
	req.Header.Set(api.RequestIDHeader, rid)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api call",
		zap.String("request_id", rid),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return statusError(resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response", method, path)
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Transactions(ctx context.Context, q ledger.Query, offset, limit int) ([]ledger.Transaction, error) {
	v := url.Values{}
	api.EncodeQuery(q, v)
	if offset > 0 {
		v.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out []ledger.Transaction
	err := c.do(ctx, http.MethodGet, "/transactions", v, nil, &out)
	return out, err
}

func (c *Client) Groups(ctx context.Context) ([]ledger.Group, error) {
	var out []ledger.Group
	err := c.do(ctx, http.MethodGet, "/groups", nil, nil, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context) ([]ledger.Category, error) {
	var out []ledger.Category
	err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out)
	return out, err
}

func (c *Client) Rules(ctx context.Context) ([]ledger.Rule, error) {
	var out []ledger.Rule
	err := c.do(ctx, http.MethodGet, "/rules", nil, nil, &out)
	return out, err
}

func (c *Client) Summary(ctx context.Context, accountIDs []int64, r daterange.Range) ([]ledger.Summary, error) {
	v := url.Values{}
	api.EncodeAccounts(accountIDs, v)
	api.EncodeRange(r, v)
	var out []ledger.Summary
	err := c.do(ctx, http.MethodGet, "/summary", v, nil, &out)
	return out, err
}

func (c *Client) CategorySummary(ctx context.Context, typ ledger.TxType, accountIDs []int64, r daterange.Range) ([]ledger.CategorySum, error) {
	v := url.Values{}
	v.Set("type", strconv.Itoa(int(typ)))
	api.EncodeAccounts(accountIDs, v)
	api.EncodeRange(r, v)
	var out []ledger.CategorySum
	err := c.do(ctx, http.MethodGet, "/summary/categories", v, nil, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	var out ledger.Transaction
	err := c.do(ctx, http.MethodPost, "/transactions", nil, t, &out)
	return out, err
}

func (c *Client) UpdateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	var out ledger.Transaction
	err := c.do(ctx, http.MethodPut, "/transactions/"+strconv.FormatInt(t.ID, 10), nil, t, &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	var out ledger.Transaction
	err := c.do(ctx, http.MethodDelete, "/transactions/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, parentID int64, name string) (ledger.Category, error) {
	var out ledger.Category
	err := c.do(ctx, http.MethodPost, "/categories", nil, api.CategoryInput{ParentID: parentID, Name: name}, &out)
	return out, err
}

func (c *Client) UpdateCategory(ctx context.Context, cat ledger.Category) (ledger.Category, error) {
	in := api.CategoryInput{Name: cat.Name}
	if cat.ParentID != nil {
		in.ParentID = *cat.ParentID
	}
	var out ledger.Category
	err := c.do(ctx, http.MethodPut, "/categories/"+strconv.FormatInt(cat.ID, 10), nil, in, &out)
	return out, err
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/categories/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) CreateRule(ctx context.Context, r ledger.Rule) (ledger.Rule, error) {
	var out ledger.Rule
	err := c.do(ctx, http.MethodPost, "/rules", nil, r, &out)
	return out, err
}

func (c *Client) UpdateRule(ctx context.Context, r ledger.Rule) (ledger.Rule, error) {
	var out ledger.Rule
	err := c.do(ctx, http.MethodPut, "/rules/"+strconv.FormatInt(r.ID, 10), nil, r, &out)
	return out, err
}

func (c *Client) DeleteRule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/rules/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
