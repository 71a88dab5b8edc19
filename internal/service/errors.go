package service

import (
	"errors"
	"fmt"
)

// RejectionCode names why a purchase was refused. Every code is a client
// error; none of them leaves anything behind in the ledger.
type RejectionCode string

const (
	EventNotFound          RejectionCode = "EventNotFound"
	EventAlreadyOccurred   RejectionCode = "EventAlreadyOccurred"
	MembershipRequired     RejectionCode = "MembershipRequired"
	LotClosed              RejectionCode = "LotClosed"
	CategoryInactive       RejectionCode = "CategoryInactive"
	InsufficientInventory  RejectionCode = "InsufficientInventory"
	PurchaseLimitExceeded  RejectionCode = "PurchaseLimitExceeded"
	AttendeeDataIncomplete RejectionCode = "AttendeeDataIncomplete"
	InvalidRequest         RejectionCode = "InvalidRequest"
)

// Rejection is the typed failure of a purchase. Subject names the offending
// entity ("category 12", "lot 3") when there is one.
type Rejection struct {
	Code    RejectionCode
	Message string
	Subject string
}

func (r *Rejection) Error() string {
	if r.Subject == "" {
		return fmt.Sprintf("%s: %s", r.Code, r.Message)
	}
	return fmt.Sprintf("%s (%s): %s", r.Code, r.Subject, r.Message)
}

func reject(code RejectionCode, subject, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a *Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ErrBackendUnavailable wraps storage and connectivity failures so callers
// can tell "the ledger could not be reached" apart from any business
// outcome.
var ErrBackendUnavailable = errors.New("backend unavailable")

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}
