package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/services/linking"
)

type BankConnectionHandler struct {
	connections *repository.BankConnectionRepository
	service     *linking.Service
}

func NewBankConnectionHandler(connections *repository.BankConnectionRepository, service *linking.Service) *BankConnectionHandler {
	return &BankConnectionHandler{connections: connections, service: service}
}

func (h *BankConnectionHandler) Index(c *gin.Context) {
	connections, err := h.connections.ListByUser(currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]gin.H, 0, len(connections))
	for i := range connections {
		out = append(out, connectionJSON(&connections[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *BankConnectionHandler) Show(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	bc, err := h.connections.GetForUser(id, currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, connectionJSON(bc))
}

type createConnectionRequest struct {
	Provider        string `json:"provider"`
	InstitutionID   string `json:"institution_id"`
	InstitutionName string `json:"institution_name"`
	CountryCode     string `json:"country_code"`
}

func (h *BankConnectionHandler) Create(c *gin.Context) {
	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	bc, redirectURL, err := h.service.Create(c.Request.Context(), currentUserID(c), linking.CreateParams{
		Provider:        req.Provider,
		InstitutionID:   req.InstitutionID,
		InstitutionName: req.InstitutionName,
		CountryCode:     req.CountryCode,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": bc.ID, "redirect_url": redirectURL})
}

// Callback is the provider's consent redirect target; the response is always
// a frontend redirect, success or failure.
func (h *BankConnectionHandler) Callback(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	target, err := h.service.HandleCallback(
		c.Request.Context(),
		currentUserID(c),
		id,
		c.Query("code"),
		c.Query("error"),
	)
	if err != nil {
		renderError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *BankConnectionHandler) Sync(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.RequestSync(c.Request.Context(), currentUserID(c), id); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": true})
}

func (h *BankConnectionHandler) Destroy(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Destroy(c.Request.Context(), currentUserID(c), id); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func connectionJSON(bc *models.BankConnection) gin.H {
	accounts := make([]gin.H, 0, len(bc.Accounts))
	for i := range bc.Accounts {
		a := &bc.Accounts[i]
		accounts = append(accounts, gin.H{
			"id":             a.ID,
			"iban":           a.IBAN,
			"name":           a.DisplayName(),
			"currency":       a.Currency,
			"balance_amount": a.BalanceAmount,
		})
	}
	return gin.H{
		"id":               bc.ID,
		"provider":         bc.Provider,
		"institution_id":   bc.InstitutionID,
		"institution_name": bc.InstitutionName,
		"country_code":     bc.CountryCode,
		"status":           bc.Status,
		"valid_until":      bc.ValidUntil,
		"last_synced_at":   bc.LastSyncedAt,
		"error_message":    bc.ErrorMessage,
		"accounts":         accounts,
	}
}
