package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// APIError is the single classified error for any transport or
// provider-reported failure. The linking state machine treats all of these
// identically: record the message, flip the connection to error.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func Errorf(format string, args ...any) *APIError {
	return &APIError{Message: fmt.Sprintf(format, args...)}
}

// ExternalAccount is an account the provider reports during session
// finalization. UID is the stable dedup key for reconciliation.
type ExternalAccount struct {
	UID            string
	IBAN           string
	Identification json.RawMessage
}

type AuthorizationStart struct {
	// ExternalAuthRef is the provider's handle for the started flow:
	// authorization_id (Enable Banking) or requisition id (GoCardless).
	ExternalAuthRef string
	ConsentURL      string
}

type SessionResult struct {
	SessionRef string
	ValidUntil *time.Time
	Accounts   []ExternalAccount
}

type Balance struct {
	Amount    decimal.Decimal
	Currency  string
	Type      string
	UpdatedAt *time.Time
}

// Transaction is the provider-neutral wire shape of a booked or pending entry.
type Transaction struct {
	TransactionID       string
	Amount              decimal.Decimal
	Currency            string
	BookingDate         time.Time
	ValueDate           *time.Time
	Status              string
	Remittance          string
	CreditorName        string
	CreditorIBAN        string
	DebtorName          string
	DebtorIBAN          string
	BankTransactionCode string
	EntryReference      string
}

// Adapter is the capability contract every provider binding satisfies.
// Implementations return *APIError for every failure.
type Adapter interface {
	// StartAuthorization begins the consent flow. state is an opaque caller
	// reference (the connection id) echoed back through the redirect.
	StartAuthorization(ctx context.Context, institutionID, country, redirectURL, state string, validUntil time.Time) (*AuthorizationStart, error)
	// FinalizeSession exchanges the callback code (Enable Banking) or the
	// stored requisition id (GoCardless) for an authorized session.
	FinalizeSession(ctx context.Context, codeOrRef string) (*SessionResult, error)
	ListLinkedAccountIDs(ctx context.Context, sessionRef string) ([]string, error)
	// RevokeSession is best-effort; callers may discard the error.
	RevokeSession(ctx context.Context, sessionRef string) error
	FetchBalance(ctx context.Context, accountUID string) (*Balance, error)
	FetchTransactions(ctx context.Context, accountUID string, from time.Time) ([]Transaction, error)
}
