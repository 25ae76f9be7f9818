package categorizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/moguls753/kontor/internal/llm"
	"github.com/moguls753/kontor/internal/logger"
	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/secrets"
)

const (
	batchSize       = 30
	maxTransactions = 500
)

// ErrNotConfigured signals a missing LLM credential; surfaced immediately,
// never retried.
var ErrNotConfigured = errors.New("LLM not configured")

// ChatClient is the single LLM operation the engines need.
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service assigns existing categories to uncategorized transactions in fixed
// batches, defensively parsing whatever the model returns.
type Service struct {
	transactions *repository.TransactionRepository
	categories   *repository.CategoryRepository
	creds        *repository.CredentialRepository
	cipher       *secrets.Cipher

	// newClient is swappable in tests.
	newClient func(baseURL, model, apiKey string) ChatClient
}

func NewService(
	transactions *repository.TransactionRepository,
	categories *repository.CategoryRepository,
	creds *repository.CredentialRepository,
	cipher *secrets.Cipher,
) *Service {
	return &Service{
		transactions: transactions,
		categories:   categories,
		creds:        creds,
		cipher:       cipher,
		newClient: func(baseURL, model, apiKey string) ChatClient {
			return llm.NewClient(baseURL, model, apiKey)
		},
	}
}

// Result summarizes one categorization run.
type Result struct {
	Total       int            `json:"total"`
	Categorized int            `json:"categorized"`
	Failed      int            `json:"failed"`
	Breakdown   map[string]int `json:"breakdown"`
}

func (s *Service) client(userID uint) (ChatClient, error) {
	cred, err := s.creds.LLM(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNotConfigured
	}
	apiKey, err := s.cipher.Reveal(cred.APIKey)
	if err != nil {
		return nil, err
	}
	return s.newClient(cred.BaseURL, cred.Model, apiKey), nil
}

// CategorizeUncategorized runs the batched pipeline. A failing batch counts
// its full size as failed and never aborts the remaining batches.
func (s *Service) CategorizeUncategorized(ctx context.Context, userID uint) (*Result, error) {
	client, err := s.client(userID)
	if err != nil {
		return nil, err
	}

	categories, err := s.categories.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.transactions.Uncategorized(userID, maxTransactions)
	if err != nil {
		return nil, err
	}

	result := &Result{Total: len(transactions), Breakdown: map[string]int{}}
	if len(transactions) == 0 {
		return result, nil
	}

	names := make([]string, len(categories))
	byLowerName := make(map[string]*models.Category, len(categories))
	for i := range categories {
		names[i] = categories[i].Name
		byLowerName[strings.ToLower(categories[i].Name)] = &categories[i]
	}

	for start := 0; start < len(transactions); start += batchSize {
		end := start + batchSize
		if end > len(transactions) {
			end = len(transactions)
		}
		batch := transactions[start:end]

		content, err := client.Chat(ctx, categorizeSystemPrompt, categorizeUserPrompt(batch, names))
		if err != nil {
			result.Failed += len(batch)
			logger.L.Error().Err(err).Msg("LLM categorization batch failed")
			continue
		}

		assignments := parseAssignments(content)
		for i := range batch {
			tx := &batch[i]
			name, ok := assignments[strconv.FormatUint(uint64(tx.ID), 10)]
			if !ok || name == "" {
				continue
			}
			category, ok := byLowerName[strings.ToLower(name)]
			if !ok {
				// Invented names are ignored, never created.
				continue
			}
			if err := s.transactions.SetCategory(tx.ID, &category.ID); err != nil {
				result.Failed++
				logger.L.Error().Err(err).Uint("transaction_id", tx.ID).Msg("failed to apply category")
				continue
			}
			result.Categorized++
			result.Breakdown[category.Name]++
		}
	}

	return result, nil
}

const categorizeSystemPrompt = `<role>
You are a bank transaction categorizer. Your task is to assign each transaction to the most fitting category from the provided list.
</role>

<rules>
- ONLY use category names exactly as they appear in the <categories> list
- NEVER invent, modify, or create new category names
- If a transaction does not clearly match any category, use null
- When in doubt, prefer null over guessing
- Base your decision on the remittance text, creditor name, and debtor name
- Respond with ONLY a JSON object mapping transaction IDs to category names or null
</rules>

<response_format>
{"1": "Category Name", "2": "Another Category", "3": null}
</response_format>`

// categorizeUserPrompt lists only non-sensitive free-text fields; amounts and
// IBANs are deliberately never sent.
func categorizeUserPrompt(batch []models.TransactionRecord, categoryNames []string) string {
	var b strings.Builder
	b.WriteString("<categories>\n")
	b.WriteString(strings.Join(categoryNames, ", "))
	b.WriteString("\n</categories>\n\n<transactions>\n")
	for i := range batch {
		tx := &batch[i]
		parts := []string{fmt.Sprintf("id:%d", tx.ID)}
		if tx.Remittance != "" {
			parts = append(parts, tx.Remittance)
		}
		if tx.CreditorName != "" {
			parts = append(parts, "creditor: "+tx.CreditorName)
		}
		if tx.DebtorName != "" {
			parts = append(parts, "debtor: "+tx.DebtorName)
		}
		b.WriteString("- " + strings.Join(parts, " | ") + "\n")
	}
	b.WriteString("</transactions>")
	return b.String()
}

// parseAssignments degrades to an empty map on malformed output; a parse
// failure must not fail the batch.
func parseAssignments(content string) map[string]string {
	var raw map[string]*string
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		logger.L.Error().Err(err).Msg("LLM response parse error")
		return map[string]string{}
	}
	assignments := make(map[string]string, len(raw))
	for id, name := range raw {
		if name != nil {
			assignments[id] = *name
		}
	}
	return assignments
}

// stripFences removes surrounding Markdown code fences the model may emit
// despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		return s
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
