package model

import (
	"strings"
	"time"
)

// ScanResult classifies a door scan. Only ScanAdmitted lets the holder in.
type ScanResult string

const (
	ScanAdmitted    ScanResult = "admitted"
	ScanAlreadyUsed ScanResult = "already_used"
	ScanCancelled   ScanResult = "cancelled"
	ScanNotYetValid ScanResult = "not_yet_valid"
	ScanWrongEvent  ScanResult = "wrong_event"
	ScanNotFound    ScanResult = "not_found"
)

// codeAliases folds the characters Crockford base32 treats as aliases.
var codeAliases = strings.NewReplacer("O", "0", "I", "1", "L", "1")

// NormalizeScanCode upper-cases a code and folds the alias characters after
// the event prefix, so hand-typed codes still match.
func NormalizeScanCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	prefix, rest, found := strings.Cut(code, "-")
	if !found {
		return code
	}
	return prefix + "-" + codeAliases.Replace(rest)
}

// ScanRequest is what a scanning device submits.
type ScanRequest struct {
	ScanCode string
	EventID  uint64
}

// ScanOutcome is returned for every scan that reached the ledger. Attendee
// and category fields are filled for admitted and already_used results;
// UsedAt carries the original use timestamp for already_used.
type ScanOutcome struct {
	Result       ScanResult
	TicketID     string
	AttendeeName string
	IDDocument   string
	CategoryName string
	UsedAt       *time.Time
}
