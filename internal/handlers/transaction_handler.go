package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/services/categorizer"
)

type TransactionHandler struct {
	transactions *repository.TransactionRepository
	categorizer  *categorizer.Service
}

func NewTransactionHandler(transactions *repository.TransactionRepository, svc *categorizer.Service) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, categorizer: svc}
}

func (h *TransactionHandler) Index(c *gin.Context) {
	filter := repository.TransactionFilter{
		Query:         c.Query("q"),
		Uncategorized: c.Query("uncategorized") == "true",
	}
	if v, err := strconv.ParseUint(c.Query("account_id"), 10, 64); err == nil {
		filter.AccountID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("category_id"), 10, 64); err == nil {
		filter.CategoryID = uint(v)
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(c.Query("per_page")); err == nil {
		filter.PerPage = v
	}
	if t, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		filter.From = &t
	}
	if t, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		filter.To = &t
	}

	records, total, err := h.transactions.Search(currentUserID(c), filter)
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]gin.H, 0, len(records))
	for i := range records {
		out = append(out, transactionJSON(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "total": total})
}

// Categorize runs the batched LLM pipeline over the user's uncategorized
// transactions and returns the run summary.
func (h *TransactionHandler) Categorize(c *gin.Context) {
	result, err := h.categorizer.CategorizeUncategorized(c.Request.Context(), currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func transactionJSON(tx *models.TransactionRecord) gin.H {
	out := gin.H{
		"id":                    tx.ID,
		"account_id":            tx.AccountID,
		"transaction_id":        tx.TransactionID,
		"amount":                tx.Amount,
		"currency":              tx.Currency,
		"booking_date":          tx.BookingDate.Format("2006-01-02"),
		"status":                tx.Status,
		"remittance":            tx.Remittance,
		"creditor_name":         tx.CreditorName,
		"debtor_name":           tx.DebtorName,
		"bank_transaction_code": tx.BankTransactionCode,
	}
	if tx.ValueDate != nil {
		out["value_date"] = tx.ValueDate.Format("2006-01-02")
	}
	if tx.Category != nil {
		out["category"] = gin.H{"id": tx.Category.ID, "name": tx.Category.Name}
	}
	return out
}
