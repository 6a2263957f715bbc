package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
)

const dateLayout = "2006-01-02"

// EncodeQuery writes q as URL parameters. ParseQuery reads them back.
func EncodeQuery(q ledger.Query, v url.Values) {
	EncodeAccounts(q.AccountIDs, v)
	EncodeRange(q.Range, v)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID != nil {
		v.Set("category", strconv.FormatInt(*q.CategoryID, 10))
	}
	if q.Currency != "" {
		v.Set("currency", q.Currency)
	}
}

func EncodeAccounts(ids []int64, v url.Values) {
	if len(ids) == 0 {
		return
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	v.Set("accounts", strings.Join(parts, ","))
}

func EncodeRange(r daterange.Range, v url.Values) {
	v.Set("label", r.Label)
	v.Set("kind", r.Kind.String())
	if !r.From.IsZero() {
		v.Set("from", r.From.Format(dateLayout))
	}
	if !r.To.IsZero() {
		v.Set("to", r.To.Format(dateLayout))
	}
}

func ParseQuery(v url.Values) (ledger.Query, error) {
	var q ledger.Query
	var err error
	if q.AccountIDs, err = ParseAccounts(v); err != nil {
		return q, err
	}
	if q.Range, err = ParseRange(v); err != nil {
		return q, err
	}
	q.Search = v.Get("search")
	q.Currency = v.Get("currency")
	if s := v.Get("category"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, fmt.Errorf("%w: category %q", ledger.ErrValidation, s)
		}
		q.CategoryID = &id
	}
	return q, nil
}

func ParseAccounts(v url.Values) ([]int64, error) {
	s := v.Get("accounts")
	if s == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: account id %q", ledger.ErrValidation, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseRange reads label, kind, from and to. Missing bounds leave the
// range open on that side.
func ParseRange(v url.Values) (daterange.Range, error) {
	r := daterange.Range{Label: v.Get("label"), Kind: daterange.ParseKind(v.Get("kind"))}
	parse := func(key string) (time.Time, error) {
		s := v.Get(key)
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s date %q", ledger.ErrValidation, key, s)
		}
		return t, nil
	}
	var err error
	if r.From, err = parse("from"); err != nil {
		return r, err
	}
	if r.To, err = parse("to"); err != nil {
		return r, err
	}
	if r.Label == "" && r.From.IsZero() && r.To.IsZero() {
		r = daterange.All()
	}
	return r, nil
}
