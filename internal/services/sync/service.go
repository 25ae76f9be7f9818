package sync

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/moguls753/kontor/internal/jobs"
	"github.com/moguls753/kontor/internal/logger"
	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/providers"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/services/linking"
)

const (
	// defaultLookback bounds the first transaction pull for an account.
	defaultLookback = 90 * 24 * time.Hour
	// resyncOverlap re-reads a window before the last sync so late-booked
	// entries are not missed; dedup keys keep this idempotent.
	resyncOverlap = 7 * 24 * time.Hour
)

// Service pulls balances and transactions for one connection. It is the
// handler behind the sync queue and tolerates redelivery: every write is a
// create-if-absent on a stable external key or a plain column update.
type Service struct {
	connections  *repository.BankConnectionRepository
	accounts     *repository.AccountRepository
	transactions *repository.TransactionRepository
	adapters     linking.AdapterFactory
}

func NewService(
	connections *repository.BankConnectionRepository,
	accounts *repository.AccountRepository,
	transactions *repository.TransactionRepository,
	adapters linking.AdapterFactory,
) *Service {
	return &Service{
		connections:  connections,
		accounts:     accounts,
		transactions: transactions,
		adapters:     adapters,
	}
}

// HandleJob implements jobs.JobHandler.
func (s *Service) HandleJob(ctx context.Context, job *jobs.SyncAccountsJob) error {
	bc, err := s.connections.Get(job.ConnectionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Connection was deleted while the job sat in the queue.
		return nil
	}
	if err != nil {
		return err
	}

	if !bc.Active() {
		if bc.Status == models.StatusAuthorized && bc.ValidUntil != nil && !bc.ValidUntil.After(time.Now()) {
			bc.Status = models.StatusExpired
			if err := s.connections.Save(bc); err != nil {
				return err
			}
		}
		logger.L.Info().Uint("connection_id", bc.ID).Str("status", bc.Status).Msg("skipping sync for non-active connection")
		return nil
	}

	adapter, err := s.adapters.ForProvider(ctx, bc.UserID, bc.Provider)
	if err != nil {
		return err
	}

	accounts, err := s.accounts.ListByConnection(bc.ID)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range accounts {
		if err := s.syncAccount(ctx, adapter, &accounts[i]); err != nil {
			logger.L.Error().Err(err).Str("account_uid", accounts[i].AccountUID).Msg("account sync failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		s.recordFailure(bc, firstErr)
		return firstErr
	}

	now := time.Now()
	bc.LastSyncedAt = &now
	bc.ErrorMessage = ""
	return s.connections.Save(bc)
}

// recordFailure writes a provider rejection onto the connection so the user
// sees why syncing stopped. An elapsed authorization window means the consent
// ran out; everything else the provider reports is an error.
func (s *Service) recordFailure(bc *models.BankConnection, cause error) {
	var apiErr *providers.APIError
	if !errors.As(cause, &apiErr) {
		return
	}
	if bc.ValidUntil != nil && !bc.ValidUntil.After(time.Now()) {
		bc.Status = models.StatusExpired
	} else {
		bc.Status = models.StatusError
	}
	bc.ErrorMessage = apiErr.Message
	if err := s.connections.Save(bc); err != nil {
		logger.L.Error().Err(err).Uint("connection_id", bc.ID).Msg("failed to record sync failure")
	}
}

func (s *Service) syncAccount(ctx context.Context, adapter providers.Adapter, account *models.Account) error {
	balance, err := adapter.FetchBalance(ctx, account.AccountUID)
	if err != nil {
		return err
	}
	account.BalanceAmount = decimal.NullDecimal{Decimal: balance.Amount, Valid: true}
	account.BalanceType = balance.Type
	if balance.Currency != "" {
		account.Currency = balance.Currency
	}
	if balance.UpdatedAt != nil {
		account.BalanceUpdatedAt = balance.UpdatedAt
	} else {
		now := time.Now()
		account.BalanceUpdatedAt = &now
	}

	from := time.Now().Add(-defaultLookback)
	if account.LastSyncedAt != nil {
		from = account.LastSyncedAt.Add(-resyncOverlap)
	}
	wire, err := adapter.FetchTransactions(ctx, account.AccountUID, from)
	if err != nil {
		return err
	}
	for _, tx := range wire {
		record := &models.TransactionRecord{
			AccountID:           account.ID,
			TransactionID:       tx.TransactionID,
			Amount:              tx.Amount,
			Currency:            tx.Currency,
			BookingDate:         tx.BookingDate,
			ValueDate:           tx.ValueDate,
			Status:              tx.Status,
			Remittance:          tx.Remittance,
			CreditorName:        tx.CreditorName,
			CreditorIBAN:        tx.CreditorIBAN,
			DebtorName:          tx.DebtorName,
			DebtorIBAN:          tx.DebtorIBAN,
			BankTransactionCode: tx.BankTransactionCode,
			EntryReference:      tx.EntryReference,
		}
		if err := s.transactions.FirstOrCreateByExternalID(record); err != nil {
			return err
		}
	}

	now := time.Now()
	account.LastSyncedAt = &now
	return s.accounts.Save(account)
}
