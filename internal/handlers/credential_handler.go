package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moguls753/kontor/internal/llm"
	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/providers/gocardless"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/secrets"
	"github.com/moguls753/kontor/internal/services/linking"
)

type CredentialHandler struct {
	creds    *repository.CredentialRepository
	cipher   *secrets.Cipher
	adapters *linking.Factory
}

func NewCredentialHandler(creds *repository.CredentialRepository, cipher *secrets.Cipher, adapters *linking.Factory) *CredentialHandler {
	return &CredentialHandler{creds: creds, cipher: cipher, adapters: adapters}
}

// Show reports which credentials exist. Secret material never leaves the
// server.
func (h *CredentialHandler) Show(c *gin.Context) {
	userID := currentUserID(c)

	eb, err := h.creds.EnableBanking(userID)
	if err != nil {
		renderError(c, err)
		return
	}
	gc, err := h.creds.GoCardless(userID)
	if err != nil {
		renderError(c, err)
		return
	}
	llmCred, err := h.creds.LLM(userID)
	if err != nil {
		renderError(c, err)
		return
	}

	out := gin.H{
		"enable_banking": gin.H{"configured": eb != nil},
		"gocardless":     gin.H{"configured": gc != nil},
		"llm":            gin.H{"configured": llmCred != nil},
	}
	if eb != nil {
		out["enable_banking"] = gin.H{"configured": true, "app_id": eb.AppID}
	}
	if llmCred != nil {
		out["llm"] = gin.H{"configured": true, "base_url": llmCred.BaseURL, "model": llmCred.Model}
	}
	c.JSON(http.StatusOK, out)
}

// Test exercises each configured credential against its provider and reports
// the outcome per section. GoCardless token state is the only thing it may
// mutate, as a side effect of obtaining a token.
func (h *CredentialHandler) Test(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	out := gin.H{}

	eb, err := h.creds.EnableBanking(userID)
	if err != nil {
		renderError(c, err)
		return
	}
	if eb == nil {
		out["enable_banking"] = gin.H{"configured": false}
	} else {
		client, err := h.adapters.EnableBankingClient(ctx, userID)
		if err == nil {
			err = client.Ping(ctx)
		}
		out["enable_banking"] = testOutcome(err)
	}

	gc, err := h.creds.GoCardless(userID)
	if err != nil {
		renderError(c, err)
		return
	}
	if gc == nil {
		out["gocardless"] = gin.H{"configured": false}
	} else {
		tokenClient := gocardless.NewClient(h.adapters.GoCardlessBaseURL, nil)
		_, err := h.adapters.Tokens.EnsureValid(ctx, gc, tokenClient)
		out["gocardless"] = testOutcome(err)
	}

	llmCred, err := h.creds.LLM(userID)
	if err != nil {
		renderError(c, err)
		return
	}
	if llmCred == nil {
		out["llm"] = gin.H{"configured": false}
	} else {
		apiKey, err := h.cipher.Reveal(llmCred.APIKey)
		if err == nil {
			client := llm.NewClient(llmCred.BaseURL, llmCred.Model, apiKey)
			_, err = client.Chat(ctx, "You are a connectivity check.", "Reply with the single word OK.")
		}
		out["llm"] = testOutcome(err)
	}

	c.JSON(http.StatusOK, out)
}

func testOutcome(err error) gin.H {
	if err != nil {
		return gin.H{"configured": true, "ok": false, "error": err.Error()}
	}
	return gin.H{"configured": true, "ok": true}
}

type credentialRequest struct {
	EnableBanking *struct {
		AppID         string `json:"app_id"`
		PrivateKeyPEM string `json:"private_key_pem"`
	} `json:"enable_banking"`
	GoCardless *struct {
		SecretID  string `json:"secret_id"`
		SecretKey string `json:"secret_key"`
	} `json:"gocardless"`
	LLM *struct {
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
		APIKey  string `json:"api_key"`
	} `json:"llm"`
}

// Upsert creates or replaces the submitted credential sections.
func (h *CredentialHandler) Upsert(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID := currentUserID(c)

	if req.EnableBanking != nil {
		if req.EnableBanking.AppID == "" || req.EnableBanking.PrivateKeyPEM == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"enable_banking app_id and private_key_pem can't be blank"}})
			return
		}
		cred, err := h.creds.EnableBanking(userID)
		if err != nil {
			renderError(c, err)
			return
		}
		if cred == nil {
			cred = &models.EnableBankingCredential{UserID: userID}
		}
		cred.AppID = req.EnableBanking.AppID
		if cred.PrivateKeyPEM, err = h.cipher.Encrypt(req.EnableBanking.PrivateKeyPEM); err != nil {
			renderError(c, err)
			return
		}
		if err := h.creds.SaveEnableBanking(cred); err != nil {
			renderError(c, err)
			return
		}
	}

	if req.GoCardless != nil {
		if req.GoCardless.SecretID == "" || req.GoCardless.SecretKey == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"gocardless secret_id and secret_key can't be blank"}})
			return
		}
		cred, err := h.creds.GoCardless(userID)
		if err != nil {
			renderError(c, err)
			return
		}
		if cred == nil {
			cred = &models.GoCardlessCredential{UserID: userID}
		}
		if cred.SecretID, err = h.cipher.Encrypt(req.GoCardless.SecretID); err != nil {
			renderError(c, err)
			return
		}
		if cred.SecretKey, err = h.cipher.Encrypt(req.GoCardless.SecretKey); err != nil {
			renderError(c, err)
			return
		}
		// New static secrets invalidate any token state.
		cred.AccessToken = ""
		cred.RefreshToken = ""
		cred.AccessExpiresAt = nil
		cred.RefreshExpiresAt = nil
		if err := h.creds.SaveGoCardless(cred); err != nil {
			renderError(c, err)
			return
		}
	}

	if req.LLM != nil {
		base := strings.TrimSpace(req.LLM.BaseURL)
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"llm base_url must start with http:// or https://"}})
			return
		}
		if req.LLM.Model == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"llm model can't be blank"}})
			return
		}
		cred, err := h.creds.LLM(userID)
		if err != nil {
			renderError(c, err)
			return
		}
		if cred == nil {
			cred = &models.LLMCredential{UserID: userID}
		}
		cred.BaseURL = base
		cred.Model = req.LLM.Model
		if req.LLM.APIKey != "" {
			if cred.APIKey, err = h.cipher.Encrypt(req.LLM.APIKey); err != nil {
				renderError(c, err)
				return
			}
		}
		if err := h.creds.SaveLLM(cred); err != nil {
			renderError(c, err)
			return
		}
	}

	h.Show(c)
}
