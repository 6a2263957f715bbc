package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jask/finledger/internal/ledger"
)

// Kind is the failure class of an error.
type Kind int

const (
	KindNone Kind = iota
	KindTransient
	KindUnauthorized
	KindForbidden
	KindValidation
	KindNotFound
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	default:
		return "transient"
	}
}

// Classify maps err onto the ledger error taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ledger.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return KindForbidden
	case errors.Is(err, ledger.ErrValidation):
		return KindValidation
	case errors.Is(err, ledger.ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindTransient
	}
}

// Message renders err for display.
func Message(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindUnauthorized:
		return "Session expired, please sign in again"
	case KindForbidden:
		return "You do not have permission for this action"
	case KindValidation:
		return "Rejected: " + detail(err, ledger.ErrValidation)
	case KindNotFound:
		return "Not found: " + detail(err, ledger.ErrNotFound)
	case KindCanceled:
		return "Canceled"
	default:
		return "Something went wrong, try again: " + err.Error()
	}
}

// detail strips the sentinel prefix from a wrapped "sentinel: detail" error.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
