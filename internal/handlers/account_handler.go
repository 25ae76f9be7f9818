package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/repository"
)

type AccountHandler struct {
	accounts *repository.AccountRepository
}

func NewAccountHandler(accounts *repository.AccountRepository) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Index(c *gin.Context) {
	accounts, err := h.accounts.ListByUser(currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]gin.H, 0, len(accounts))
	for i := range accounts {
		out = append(out, accountJSON(&accounts[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *AccountHandler) Show(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	account, err := h.accounts.GetForUser(id, currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountJSON(account))
}

func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	account, err := h.accounts.GetForUser(id, currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.accounts.Rename(account, req.Name); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountJSON(account))
}

func accountJSON(a *models.Account) gin.H {
	out := gin.H{
		"id":                 a.ID,
		"account_uid":        a.AccountUID,
		"iban":               a.IBAN,
		"name":               a.DisplayName(),
		"currency":           a.Currency,
		"balance_amount":     a.BalanceAmount,
		"balance_type":       a.BalanceType,
		"balance_updated_at": a.BalanceUpdatedAt,
		"last_synced_at":     a.LastSyncedAt,
	}
	if a.BankConnection != nil {
		out["bank_connection"] = gin.H{
			"id":               a.BankConnection.ID,
			"provider":         a.BankConnection.Provider,
			"institution_name": a.BankConnection.InstitutionName,
		}
	}
	return out
}
