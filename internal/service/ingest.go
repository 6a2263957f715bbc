package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/ledger"
)

// IngestService imports bank statement exports into one account.
type IngestService struct {
	Ledger  *LedgerService
	Matcher *RuleMatcher
}

type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// line is one parsed statement row.
type line struct {
	date     time.Time
	amount   decimal.Decimal
	party    string
	details  string
	category string
}

// ImportCSV reads rows of date (2006-01-02), amount, party, details and an
// optional category name. Negative amounts are expenses.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader, accountID int64, tz *time.Location) (IngestResult, error) {
	return s.importRows(ctx, r, accountID, 4, func(rec []string) (line, error) {
		date, err := parseLocalDate(rec[0], tz)
		if err != nil {
			return line{}, fmt.Errorf("date: %w", err)
		}
		amount, err := parseAmount(rec[1])
		if err != nil {
			return line{}, fmt.Errorf("amount: %w", err)
		}
		l := line{date: date, amount: amount, party: strings.TrimSpace(rec[2]), details: strings.TrimSpace(rec[3])}
		if len(rec) > 4 {
			l.category = strings.TrimSpace(rec[4])
		}
		return l, nil
	})
}

// ImportANZSimple ingests ANZ export with no headers: date, amount, description.
func (s *IngestService) ImportANZSimple(ctx context.Context, r io.Reader, accountID int64, tz *time.Location) (IngestResult, error) {
	return s.importRows(ctx, r, accountID, 3, func(rec []string) (line, error) {
		date, err := parseANZDate(rec[0], tz)
		if err != nil {
			return line{}, fmt.Errorf("date: %w", err)
		}
		amount, err := parseAmount(rec[1])
		if err != nil {
			return line{}, fmt.Errorf("amount: %w", err)
		}
		return line{date: date, amount: amount, party: strings.TrimSpace(rec[2])}, nil
	})
}

func (s *IngestService) importRows(ctx context.Context, r io.Reader, accountID int64, columns int, parse func([]string) (line, error)) (IngestResult, error) {
	res := IngestResult{}
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	n := 0
	for {
		n++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		if len(rec) < columns {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: expected %d columns", n, columns))
			continue
		}
		l, err := parse(rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d %w", n, err))
			continue
		}
		if l.amount.IsZero() {
			res.Skipped++
			continue
		}
		if _, err := s.Ledger.Create(ctx, s.transaction(accountID, l)); err != nil {
			// the session is gone; later lines would fail the same way
			if k := Classify(err); k == KindUnauthorized || k == KindForbidden || k == KindCanceled {
				return res, err
			}
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}

func (s *IngestService) transaction(accountID int64, l line) ledger.Transaction {
	rec := Record{Type: ledger.TypeIncome, Party: l.party, Details: l.details, CategoryName: l.category}
	if l.amount.IsNegative() {
		rec.Type = ledger.TypeExpense
	}
	var category int64
	if s.Matcher != nil {
		if sug, ok := s.Matcher.Suggest(rec); ok {
			category = sug.CategoryID
		}
	}
	leg := ledger.Leg{AccountID: accountID, Amount: l.amount.Abs()}
	t := ledger.Transaction{Opdate: l.date, Party: l.party, Details: l.details}
	if rec.Type == ledger.TypeExpense {
		t.Body = &ledger.Expense{Account: leg, CategoryID: category}
	} else {
		t.Body = &ledger.Income{Recipient: leg, CategoryID: category}
	}
	return t
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Decimal{}, errors.New("empty amount")
	}
	return decimal.NewFromString(s)
}

func parseLocalDate(s string, loc *time.Location) (time.Time, error) {
	layout := "2006-01-02"
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseANZDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	layout := "2/01/2006" // day/month/year (supports single-digit day)
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
