package enablebanking

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/moguls753/kontor/internal/providers"
)

const DefaultBaseURL = "https://api.enablebanking.com"

// Client binds the adapter contract to the Enable Banking API. Every request
// carries a short-lived RS256-signed JWT identifying the application.
type Client struct {
	baseURL    string
	appID      string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

func NewClient(appID, privateKeyPEM, baseURL string) (*Client, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("enablebanking: parse private key: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		privateKey: key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) signToken(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": "enablebanking.com",
		"aud": "api.enablebanking.com",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = c.appID
	return token.SignedString(c.privateKey)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return providers.Errorf("enablebanking: encode request: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return providers.Errorf("enablebanking: build request: %v", err)
	}
	bearer, err := c.signToken(time.Now())
	if err != nil {
		return providers.Errorf("enablebanking: sign token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.Errorf("enablebanking: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return providers.Errorf("enablebanking: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.Errorf("enablebanking: decode response: %v", err)
	}
	return nil
}

// Ping fetches the application the key pair belongs to, proving the
// credential can sign requests the API accepts.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/application", nil, nil)
}

type startAuthResponse struct {
	URL             string `json:"url"`
	AuthorizationID string `json:"authorization_id"`
}

func (c *Client) StartAuthorization(ctx context.Context, institutionID, country, redirectURL, state string, validUntil time.Time) (*providers.AuthorizationStart, error) {
	body := map[string]any{
		"access":       map[string]any{"valid_until": validUntil.UTC().Format(time.RFC3339)},
		"aspsp":        map[string]any{"name": institutionID, "country": country},
		"state":        state,
		"redirect_url": redirectURL,
	}
	var resp startAuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth", body, &resp); err != nil {
		return nil, err
	}
	return &providers.AuthorizationStart{ExternalAuthRef: resp.AuthorizationID, ConsentURL: resp.URL}, nil
}

type sessionAccount struct {
	UID       string `json:"uid"`
	AccountID struct {
		IBAN string `json:"iban"`
	} `json:"account_id"`
	Identification json.RawMessage `json:"identification"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Accounts  []sessionAccount `json:"accounts"`
	Access    struct {
		ValidUntil string `json:"valid_until"`
	} `json:"access"`
}

func (c *Client) FinalizeSession(ctx context.Context, code string) (*providers.SessionResult, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"code": code}, &resp); err != nil {
		return nil, err
	}

	result := &providers.SessionResult{SessionRef: resp.SessionID}
	if t, err := time.Parse(time.RFC3339, resp.Access.ValidUntil); err == nil {
		result.ValidUntil = &t
	}
	for _, acct := range resp.Accounts {
		result.Accounts = append(result.Accounts, providers.ExternalAccount{
			UID:            acct.UID,
			IBAN:           acct.AccountID.IBAN,
			Identification: acct.Identification,
		})
	}
	return result, nil
}

func (c *Client) ListLinkedAccountIDs(ctx context.Context, sessionRef string) ([]string, error) {
	var resp struct {
		Accounts []string `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionRef), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) RevokeSession(ctx context.Context, sessionRef string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionRef), nil, nil)
}

type balancesResponse struct {
	Balances []struct {
		BalanceAmount struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"balance_amount"`
		BalanceType        string `json:"balance_type"`
		LastChangeDateTime string `json:"last_change_date_time"`
	} `json:"balances"`
}

func (c *Client) FetchBalance(ctx context.Context, accountUID string) (*providers.Balance, error) {
	var resp balancesResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountUID)+"/balances", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Balances) == 0 {
		return nil, providers.Errorf("enablebanking: no balances for account %s", accountUID)
	}
	b := resp.Balances[0]
	amount, err := decimal.NewFromString(b.BalanceAmount.Amount)
	if err != nil {
		return nil, providers.Errorf("enablebanking: bad balance amount %q", b.BalanceAmount.Amount)
	}
	balance := &providers.Balance{
		Amount:   amount,
		Currency: b.BalanceAmount.Currency,
		Type:     b.BalanceType,
	}
	if t, err := time.Parse(time.RFC3339, b.LastChangeDateTime); err == nil {
		balance.UpdatedAt = &t
	}
	return balance, nil
}

type wireTransaction struct {
	EntryReference    string `json:"entry_reference"`
	TransactionAmount struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"transaction_amount"`
	CreditDebitIndicator string `json:"credit_debit_indicator"`
	Creditor             struct {
		Name string `json:"name"`
	} `json:"creditor"`
	CreditorAccount struct {
		IBAN string `json:"iban"`
	} `json:"creditor_account"`
	Debtor struct {
		Name string `json:"name"`
	} `json:"debtor"`
	DebtorAccount struct {
		IBAN string `json:"iban"`
	} `json:"debtor_account"`
	BookingDate           string   `json:"booking_date"`
	ValueDate             string   `json:"value_date"`
	Status                string   `json:"status"`
	RemittanceInformation []string `json:"remittance_information"`
	BankTransactionCode   struct {
		Code string `json:"code"`
	} `json:"bank_transaction_code"`
}

type transactionsResponse struct {
	Transactions    []wireTransaction `json:"transactions"`
	ContinuationKey string            `json:"continuation_key"`
}

func (c *Client) FetchTransactions(ctx context.Context, accountUID string, from time.Time) ([]providers.Transaction, error) {
	var out []providers.Transaction
	continuation := ""
	for {
		path := "/accounts/" + url.PathEscape(accountUID) + "/transactions?date_from=" + from.Format("2006-01-02")
		if continuation != "" {
			path += "&continuation_key=" + url.QueryEscape(continuation)
		}
		var resp transactionsResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		for _, wt := range resp.Transactions {
			tx, err := convertTransaction(wt)
			if err != nil {
				return nil, err
			}
			out = append(out, tx)
		}
		if resp.ContinuationKey == "" {
			break
		}
		continuation = resp.ContinuationKey
	}
	return out, nil
}

func convertTransaction(wt wireTransaction) (providers.Transaction, error) {
	amount, err := decimal.NewFromString(wt.TransactionAmount.Amount)
	if err != nil {
		return providers.Transaction{}, providers.Errorf("enablebanking: bad transaction amount %q", wt.TransactionAmount.Amount)
	}
	// Amounts come unsigned with a separate direction indicator.
	if wt.CreditDebitIndicator == "DBIT" && amount.IsPositive() {
		amount = amount.Neg()
	}
	booking, err := time.Parse("2006-01-02", wt.BookingDate)
	if err != nil {
		return providers.Transaction{}, providers.Errorf("enablebanking: bad booking date %q", wt.BookingDate)
	}
	tx := providers.Transaction{
		TransactionID:       wt.EntryReference,
		Amount:              amount,
		Currency:            wt.TransactionAmount.Currency,
		BookingDate:         booking,
		Status:              mapStatus(wt.Status),
		Remittance:          strings.Join(wt.RemittanceInformation, " "),
		CreditorName:        wt.Creditor.Name,
		CreditorIBAN:        wt.CreditorAccount.IBAN,
		DebtorName:          wt.Debtor.Name,
		DebtorIBAN:          wt.DebtorAccount.IBAN,
		BankTransactionCode: wt.BankTransactionCode.Code,
		EntryReference:      wt.EntryReference,
	}
	if vd, err := time.Parse("2006-01-02", wt.ValueDate); err == nil {
		tx.ValueDate = &vd
	}
	return tx, nil
}

func mapStatus(status string) string {
	if strings.EqualFold(status, "PDNG") || strings.EqualFold(status, "pending") {
		return "pending"
	}
	return "booked"
}

var _ providers.Adapter = (*Client)(nil)
