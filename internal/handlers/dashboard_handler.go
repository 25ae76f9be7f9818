package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/moguls753/kontor/internal/repository"
)

type DashboardHandler struct {
	accounts     *repository.AccountRepository
	transactions *repository.TransactionRepository
}

func NewDashboardHandler(accounts *repository.AccountRepository, transactions *repository.TransactionRepository) *DashboardHandler {
	return &DashboardHandler{accounts: accounts, transactions: transactions}
}

// Show aggregates the current month: balances, income, expenses and the
// change against the start-of-month balance.
func (h *DashboardHandler) Show(c *gin.Context) {
	userID := currentUserID(c)

	accounts, err := h.accounts.ListByUser(userID)
	if err != nil {
		renderError(c, err)
		return
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	records, err := h.transactions.InPeriod(userID, monthStart, now)
	if err != nil {
		renderError(c, err)
		return
	}

	totalBalance := decimal.Zero
	for i := range accounts {
		if accounts[i].BalanceAmount.Valid {
			totalBalance = totalBalance.Add(accounts[i].BalanceAmount.Decimal)
		}
	}

	income, expenses := decimal.Zero, decimal.Zero
	uncategorized := 0
	for i := range records {
		amount := records[i].Amount
		if amount.IsPositive() {
			income = income.Add(amount)
		} else if amount.IsNegative() {
			expenses = expenses.Add(amount)
		}
		if records[i].CategoryID == nil {
			uncategorized++
		}
	}
	net := income.Add(expenses)

	var changePercent *float64
	previousBalance := totalBalance.Sub(net)
	if !previousBalance.IsZero() {
		v, _ := net.Div(previousBalance.Abs()).Mul(decimal.NewFromInt(100)).Round(1).Float64()
		changePercent = &v
	}

	recent, err := h.transactions.Recent(userID, 5)
	if err != nil {
		renderError(c, err)
		return
	}
	recentJSON := make([]gin.H, 0, len(recent))
	for i := range recent {
		recentJSON = append(recentJSON, transactionJSON(&recent[i]))
	}

	accountsJSON := make([]gin.H, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		accountsJSON = append(accountsJSON, gin.H{
			"id":             a.ID,
			"name":           a.DisplayName(),
			"iban":           a.IBAN,
			"balance_amount": a.BalanceAmount,
			"currency":       a.Currency,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_balance":          totalBalance,
		"balance_change":         net,
		"balance_change_percent": changePercent,
		"income":                 income,
		"expenses":               expenses,
		"transaction_count":      len(records),
		"uncategorized_count":    uncategorized,
		"accounts":               accountsJSON,
		"recent_transactions":    recentJSON,
	})
}
