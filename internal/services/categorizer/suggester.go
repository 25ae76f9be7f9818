package categorizer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/moguls753/kontor/internal/logger"
	"github.com/moguls753/kontor/internal/models"
)

const (
	maxSuggestions        = 10
	suggestionSampleLimit = 100
)

// Suggest proposes brand-new category names from uncategorized transactions.
// It is read-only and advisory: any transport or parse failure yields an
// empty list instead of an error.
func (s *Service) Suggest(ctx context.Context, userID uint) ([]string, error) {
	client, err := s.client(userID)
	if err != nil {
		return nil, err
	}

	categories, err := s.categories.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.transactions.Uncategorized(userID, suggestionSampleLimit)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return []string{}, nil
	}

	existing := make(map[string]bool, len(categories))
	for i := range categories {
		existing[strings.ToLower(categories[i].Name)] = true
	}

	content, err := client.Chat(ctx, suggestSystemPrompt, suggestUserPrompt(transactions))
	if err != nil {
		logger.L.Error().Err(err).Msg("LLM suggestion call failed")
		return []string{}, nil
	}

	var proposed []string
	if err := json.Unmarshal([]byte(stripFences(content)), &proposed); err != nil {
		logger.L.Error().Err(err).Msg("LLM suggestion parse error")
		return []string{}, nil
	}

	suggestions := make([]string, 0, maxSuggestions)
	seen := make(map[string]bool)
	for _, name := range proposed {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if existing[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		suggestions = append(suggestions, name)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

const suggestSystemPrompt = `<role>
You are a personal finance assistant. Your task is to propose useful new category names for the user's bank transactions.
</role>

<rules>
- Propose short, reusable category names (e.g. "Streaming", "Transport")
- Base your proposals on the remittance text, creditor name, debtor name and transaction type
- Do not propose one category per transaction; group similar transactions
- Respond with ONLY a JSON array of category name strings
</rules>

<response_format>
["Category Name", "Another Category"]
</response_format>`

// suggestUserPrompt sends the same non-sensitive fields as categorization
// plus the bank transaction type code; amounts and IBANs stay out.
func suggestUserPrompt(transactions []models.TransactionRecord) string {
	var b strings.Builder
	b.WriteString("<transactions>\n")
	for i := range transactions {
		tx := &transactions[i]
		var parts []string
		if tx.Remittance != "" {
			parts = append(parts, tx.Remittance)
		}
		if tx.CreditorName != "" {
			parts = append(parts, "creditor: "+tx.CreditorName)
		}
		if tx.DebtorName != "" {
			parts = append(parts, "debtor: "+tx.DebtorName)
		}
		if tx.BankTransactionCode != "" {
			parts = append(parts, "type: "+tx.BankTransactionCode)
		}
		if len(parts) == 0 {
			continue
		}
		b.WriteString("- " + strings.Join(parts, " | ") + "\n")
	}
	b.WriteString("</transactions>")
	return b.String()
}
