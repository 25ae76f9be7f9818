package routes

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moguls753/kontor/internal/jobs"
	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/secrets"
)

type nopQueue struct{}

func (nopQueue) PublishSyncAccounts(ctx context.Context, job *jobs.SyncAccountsJob) error { return nil }
func (nopQueue) Close() error                                                             { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *models.User) {
	return newTestRouterWithProviders(t, "", "")
}

func newTestRouterWithProviders(t *testing.T, ebBaseURL, gcBaseURL string) (*gin.Engine, *gorm.DB, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.BankConnection{},
		&models.Account{},
		&models.TransactionRecord{},
		&models.Category{},
		&models.GoCardlessCredential{},
		&models.EnableBankingCredential{},
		&models.LLMCredential{},
	))

	user := &models.User{EmailAddress: "jo@example.com", PasswordDigest: "x"}
	require.NoError(t, db.Create(user).Error)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := secrets.NewCipher(key)
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, db, Deps{
		Cipher:               cipher,
		Queue:                nopQueue{},
		BaseURL:              "http://localhost:8080",
		EnableBankingBaseURL: ebBaseURL,
		GoCardlessBaseURL:    gcBaseURL,
	})
	return r, db, user
}

func request(t *testing.T, r *gin.Engine, method, path string, user *models.User, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", user.ID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpointNeedsNoIdentity(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := request(t, r, http.MethodGet, "/up", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRejectsMissingIdentity(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := request(t, r, http.MethodGet, "/api/v1/categories", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIRejectsUnknownUser(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := request(t, r, http.MethodGet, "/api/v1/categories", &models.User{ID: 9999}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCategoryLifecycle(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/categories", user, `{"name":"Groceries"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Groceries", created.Name)

	w = request(t, r, http.MethodPut, fmt.Sprintf("/api/v1/categories/%d", created.ID), user, `{"name":"Food"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, http.MethodGet, "/api/v1/categories", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Food", listed[0].Name)

	w = request(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", created.ID), user, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateDefaultCategoriesIsIdempotent(t *testing.T) {
	r, db, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/categories/create_defaults", user, `{"locale":"de"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = request(t, r, http.MethodPost, "/api/v1/categories/create_defaults", user, `{"locale":"de"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var count int64
	db.Model(&models.Category{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, len(models.DefaultCategories["de"]), count)
}

func TestCredentialsShowNeverLeaksSecrets(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/credentials", user, `{
		"gocardless": {"secret_id": "sid", "secret_key": "skey"},
		"llm": {"base_url": "http://localhost:11434/v1", "model": "llama3", "api_key": "super-secret"}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, http.MethodGet, "/api/v1/credentials", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "sid")
	assert.NotContains(t, body, "skey")
	assert.NotContains(t, body, "super-secret")

	var parsed map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Equal(t, true, parsed["gocardless"]["configured"])
	assert.Equal(t, true, parsed["llm"]["configured"])
	assert.Equal(t, false, parsed["enable_banking"]["configured"])
}

func TestCredentialTestReportsUnconfiguredSections(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/credentials/test", user, "")
	require.Equal(t, http.StatusOK, w.Code)

	var parsed map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	for _, section := range []string{"enable_banking", "gocardless", "llm"} {
		assert.Equal(t, false, parsed[section]["configured"], section)
	}
}

func TestCredentialTestExercisesConfiguredProviders(t *testing.T) {
	ebServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/application", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		w.Write([]byte(`{"name":"kontor"}`))
	}))
	defer ebServer.Close()

	gcServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/new/", r.URL.Path)
		w.Write([]byte(`{"access":"acc","access_expires":86400,"refresh":"ref","refresh_expires":2592000}`))
	}))
	defer gcServer.Close()

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"choices":[{"message":{"content":"OK"}}]}`))
	}))
	defer llmServer.Close()

	r, _, user := newTestRouterWithProviders(t, ebServer.URL, gcServer.URL)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	body, err := json.Marshal(map[string]any{
		"enable_banking": map[string]string{"app_id": "app-1", "private_key_pem": pemKey},
		"gocardless":     map[string]string{"secret_id": "sid", "secret_key": "skey"},
		"llm":            map[string]string{"base_url": llmServer.URL, "model": "llama3", "api_key": "k"},
	})
	require.NoError(t, err)
	w := request(t, r, http.MethodPost, "/api/v1/credentials", user, string(body))
	require.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, http.MethodPost, "/api/v1/credentials/test", user, "")
	require.Equal(t, http.StatusOK, w.Code)

	var parsed map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	for _, section := range []string{"enable_banking", "gocardless", "llm"} {
		assert.Equal(t, true, parsed[section]["configured"], section)
		assert.Equal(t, true, parsed[section]["ok"], section)
	}
}

func TestCredentialTestReportsProviderFailure(t *testing.T) {
	gcServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Authentication failed"}`))
	}))
	defer gcServer.Close()

	r, _, user := newTestRouterWithProviders(t, "", gcServer.URL)

	w := request(t, r, http.MethodPost, "/api/v1/credentials", user,
		`{"gocardless": {"secret_id": "sid", "secret_key": "wrong"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, http.MethodPost, "/api/v1/credentials/test", user, "")
	require.Equal(t, http.StatusOK, w.Code)

	var parsed map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Equal(t, true, parsed["gocardless"]["configured"])
	assert.Equal(t, false, parsed["gocardless"]["ok"])
	assert.Contains(t, parsed["gocardless"]["error"], "HTTP 401")
}

func TestBankConnectionCreateValidation(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/bank_connections", user, `{"provider":"enable_banking"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "institution_id")
}

func TestBankConnectionCreateWithoutCredential(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/bank_connections", user,
		`{"provider":"enable_banking","institution_id":"Sparkasse","country_code":"DE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestTransactionIndexEmpty(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodGet, "/api/v1/transactions?page=1&per_page=10", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	var parsed struct {
		Transactions []any `json:"transactions"`
		Total        int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Empty(t, parsed.Transactions)
	assert.Zero(t, parsed.Total)
}

func TestCategorizeWithoutLLMCredential(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodPost, "/api/v1/transactions/categorize", user, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestUnknownAccountIs404(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodGet, "/api/v1/accounts/999", user, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardEmptyState(t *testing.T) {
	r, _, user := newTestRouter(t)

	w := request(t, r, http.MethodGet, "/api/v1/dashboard", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Contains(t, parsed, "total_balance")
	assert.Contains(t, parsed, "uncategorized_count")
}
