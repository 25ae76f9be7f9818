package enablebanking

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moguls753/kontor/internal/providers"
)

func testKeyPair(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block)), &key.PublicKey
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *rsa.PublicKey) {
	t.Helper()
	pemKey, pub := testKeyPair(t)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient("app-1", pemKey, server.URL)
	require.NoError(t, err)
	return client, pub
}

func TestNewClientRejectsBadKey(t *testing.T) {
	_, err := NewClient("app-1", "not a pem key", "")
	require.Error(t, err)
}

func TestRequestsCarrySignedJWT(t *testing.T) {
	var bearer string
	client, pub := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		bearer = r.Header.Get("Authorization")
		w.Write([]byte(`{"accounts":[]}`))
	})

	_, err := client.ListLinkedAccountIDs(context.Background(), "sess-1")
	require.NoError(t, err)

	require.True(t, len(bearer) > 7 && bearer[:7] == "Bearer ")
	token, err := jwt.Parse(bearer[7:], func(token *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "app-1", token.Header["kid"])
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "enablebanking.com", claims["iss"])
	assert.Equal(t, "api.enablebanking.com", claims["aud"])
}

func TestStartAuthorization(t *testing.T) {
	var body map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"url":"https://tilisy.enablebanking.com/auth?x=1","authorization_id":"auth-1"}`))
	})

	validUntil := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	start, err := client.StartAuthorization(context.Background(), "Sparkasse", "DE", "http://localhost/callback", "42", validUntil)
	require.NoError(t, err)
	assert.Equal(t, "auth-1", start.ExternalAuthRef)
	assert.Equal(t, "https://tilisy.enablebanking.com/auth?x=1", start.ConsentURL)

	aspsp := body["aspsp"].(map[string]any)
	assert.Equal(t, "Sparkasse", aspsp["name"])
	assert.Equal(t, "DE", aspsp["country"])
	access := body["access"].(map[string]any)
	assert.Equal(t, "2027-03-01T00:00:00Z", access["valid_until"])
	assert.Equal(t, "http://localhost/callback", body["redirect_url"])
	assert.Equal(t, "42", body["state"])
}

func TestFinalizeSession(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "code-xyz", body["code"])
		w.Write([]byte(`{
			"session_id":"sess-1",
			"access":{"valid_until":"2027-03-01T00:00:00Z"},
			"accounts":[
				{"uid":"acct-1","account_id":{"iban":"DE89370400440532013000"},"identification":{"other":{"id":"123"}}},
				{"uid":"acct-2","account_id":{}}
			]
		}`))
	})

	session, err := client.FinalizeSession(context.Background(), "code-xyz")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.SessionRef)
	require.NotNil(t, session.ValidUntil)
	assert.Equal(t, 2027, session.ValidUntil.Year())
	require.Len(t, session.Accounts, 2)
	assert.Equal(t, "acct-1", session.Accounts[0].UID)
	assert.Equal(t, "DE89370400440532013000", session.Accounts[0].IBAN)
	assert.JSONEq(t, `{"other":{"id":"123"}}`, string(session.Accounts[0].Identification))
	assert.Empty(t, session.Accounts[1].IBAN)
}

func TestRevokeSession(t *testing.T) {
	var method, path string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.RevokeSession(context.Background(), "sess-1"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/sessions/sess-1", path)
}

func TestPing(t *testing.T) {
	var method, path string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.Write([]byte(`{"name":"kontor"}`))
	})

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, "/application", path)
}

func TestFetchBalance(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/balances", r.URL.Path)
		w.Write([]byte(`{"balances":[{"balance_amount":{"amount":"990.10","currency":"EUR"},"balance_type":"CLBD","last_change_date_time":"2026-08-30T11:00:00Z"}]}`))
	})

	balance, err := client.FetchBalance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "990.1", balance.Amount.String())
	assert.Equal(t, "CLBD", balance.Type)
	require.NotNil(t, balance.UpdatedAt)
}

func TestFetchTransactionsNegatesDebits(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[
			{
				"entry_reference":"ref-1",
				"transaction_amount":{"amount":"12.99","currency":"EUR"},
				"credit_debit_indicator":"DBIT",
				"creditor":{"name":"REWE Markt GmbH"},
				"booking_date":"2026-08-28",
				"status":"BOOK",
				"remittance_information":["REWE","SAGT DANKE"],
				"bank_transaction_code":{"code":"PMNT"}
			},
			{
				"entry_reference":"ref-2",
				"transaction_amount":{"amount":"2500.00","currency":"EUR"},
				"credit_debit_indicator":"CRDT",
				"debtor":{"name":"ACME GmbH"},
				"booking_date":"2026-08-29",
				"status":"PDNG"
			}
		]}`))
	})

	txs, err := client.FetchTransactions(context.Background(), "acct-1", time.Now().AddDate(0, -3, 0))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	debit := txs[0]
	assert.Equal(t, "ref-1", debit.TransactionID)
	assert.Equal(t, "-12.99", debit.Amount.String())
	assert.Equal(t, "booked", debit.Status)
	assert.Equal(t, "REWE SAGT DANKE", debit.Remittance)
	assert.Equal(t, "PMNT", debit.BankTransactionCode)

	credit := txs[1]
	assert.Equal(t, "2500", credit.Amount.String())
	assert.Equal(t, "pending", credit.Status)
}

func TestFetchTransactionsFollowsContinuationKey(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("continuation_key") == "" {
			w.Write([]byte(`{"transactions":[{"entry_reference":"ref-1","transaction_amount":{"amount":"1.00","currency":"EUR"},"booking_date":"2026-08-28"}],"continuation_key":"next"}`))
			return
		}
		assert.Equal(t, "next", r.URL.Query().Get("continuation_key"))
		w.Write([]byte(`{"transactions":[{"entry_reference":"ref-2","transaction_amount":{"amount":"2.00","currency":"EUR"},"booking_date":"2026-08-27"}]}`))
	})

	txs, err := client.FetchTransactions(context.Background(), "acct-1", time.Now().AddDate(0, -1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, txs, 2)
	assert.Equal(t, "ref-1", txs[0].TransactionID)
	assert.Equal(t, "ref-2", txs[1].TransactionID)
}

func TestHTTPErrorsBecomeAPIErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"session expired"}`))
	})

	_, err := client.FetchBalance(context.Background(), "acct-1")
	var apiErr *providers.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "HTTP 422")
	assert.Contains(t, apiErr.Message, "session expired")
}
