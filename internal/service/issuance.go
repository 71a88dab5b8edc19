package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Crockford base32: no I, L, O or U, so codes survive being read aloud or
// retyped from paper.
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	codeGroups   = 2
	codeGroupLen = 5
	tokenBytes   = 32
)

// Issuer mints scan codes, validation tokens and ticket ids.
//
// A scan code looks like EV42-7K3QD-M9XAT: the event prefix plus 50 random
// bits. It is printable and transcribable but not a secret. The validation
// token is 256 random bits and is the actual proof of authenticity.
type Issuer struct {
	rand io.Reader
}

func NewIssuer() *Issuer { return &Issuer{rand: rand.Reader} }

// ScanCode returns a fresh code for the event.
func (i *Issuer) ScanCode(eventID uint64) (string, error) {
	buf := make([]byte, codeGroups*codeGroupLen)
	if _, err := io.ReadFull(i.rand, buf); err != nil {
		return "", fmt.Errorf("scan code entropy: %w", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "EV%d", eventID)
	for g := 0; g < codeGroups; g++ {
		sb.WriteByte('-')
		for _, b := range buf[g*codeGroupLen : (g+1)*codeGroupLen] {
			sb.WriteByte(codeAlphabet[b&31])
		}
	}
	return sb.String(), nil
}

// ValidationToken returns 32 random bytes, hex encoded.
func (i *Issuer) ValidationToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(i.rand, buf); err != nil {
		return "", fmt.Errorf("validation token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Mint fills in the identity of a ticket: id, scan code and token.
func (i *Issuer) Mint(t model.Ticket) (model.Ticket, error) {
	code, err := i.ScanCode(t.EventID)
	if err != nil {
		return t, err
	}
	token, err := i.ValidationToken()
	if err != nil {
		return t, err
	}
	t.ID = uuid.NewString()
	t.ScanCode = code
	t.ValidationToken = token
	return t, nil
}
