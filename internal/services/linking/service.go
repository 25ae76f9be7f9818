package linking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/moguls753/kontor/internal/jobs"
	"github.com/moguls753/kontor/internal/logger"
	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/providers"
	"github.com/moguls753/kontor/internal/repository"
)

// ErrNotConfigured signals a missing provider credential. It is never
// retried and surfaces straight to the caller.
var ErrNotConfigured = errors.New("not configured")

// ValidationError carries a field-level message for a rejected create.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// authorizationWindow is how long a started consent flow stays valid.
const authorizationWindow = 180 * 24 * time.Hour

// Service owns the BankConnection lifecycle: pending → authorized →
// {expired, error}, with error reachable from every provider failure.
type Service struct {
	connections *repository.BankConnectionRepository
	accounts    *repository.AccountRepository
	adapters    AdapterFactory
	queue       jobs.Publisher
	baseURL     string
}

func NewService(
	connections *repository.BankConnectionRepository,
	accounts *repository.AccountRepository,
	adapters AdapterFactory,
	queue jobs.Publisher,
	baseURL string,
) *Service {
	return &Service{
		connections: connections,
		accounts:    accounts,
		adapters:    adapters,
		queue:       queue,
		baseURL:     baseURL,
	}
}

type CreateParams struct {
	Provider        string
	InstitutionID   string
	InstitutionName string
	CountryCode     string
}

// Create persists a pending connection and starts the provider's
// authorization flow. On a provider failure the pending row is kept in error
// state so the user can see why linking failed.
func (s *Service) Create(ctx context.Context, userID uint, params CreateParams) (*models.BankConnection, string, error) {
	if params.InstitutionID == "" {
		return nil, "", &ValidationError{Field: "institution_id", Message: "can't be blank"}
	}
	if params.Provider != models.ProviderEnableBanking && params.Provider != models.ProviderGoCardless {
		return nil, "", &ValidationError{Field: "provider", Message: "is not supported"}
	}

	adapter, err := s.adapters.ForProvider(ctx, userID, params.Provider)
	if err != nil {
		return nil, "", err
	}

	bc := &models.BankConnection{
		UserID:          userID,
		Provider:        params.Provider,
		InstitutionID:   params.InstitutionID,
		InstitutionName: params.InstitutionName,
		CountryCode:     params.CountryCode,
		Status:          models.StatusPending,
	}
	if err := s.connections.Create(bc); err != nil {
		return nil, "", err
	}

	state := strconv.FormatUint(uint64(bc.ID), 10)
	start, err := adapter.StartAuthorization(ctx, bc.InstitutionID, bc.CountryCode, s.callbackURL(bc.ID), state, time.Now().Add(authorizationWindow))
	if err != nil {
		s.recordError(bc, err)
		return bc, "", err
	}

	switch bc.Provider {
	case models.ProviderEnableBanking:
		bc.AuthorizationID = start.ExternalAuthRef
	case models.ProviderGoCardless:
		bc.RequisitionID = start.ExternalAuthRef
		bc.Link = start.ConsentURL
	}
	if err := s.connections.Save(bc); err != nil {
		return bc, "", err
	}
	return bc, start.ConsentURL, nil
}

// HandleCallback finalizes the consent redirect. The returned string is the
// frontend redirect target encoding success or failure.
func (s *Service) HandleCallback(ctx context.Context, userID, connectionID uint, code, providerError string) (string, error) {
	bc, err := s.connections.GetForUser(connectionID, userID)
	if err != nil {
		return "", err
	}

	if providerError != "" {
		bc.Status = models.StatusError
		bc.ErrorMessage = providerError
		if err := s.connections.Save(bc); err != nil {
			return "", err
		}
		return s.errorRedirect(bc.ID), nil
	}

	adapter, err := s.adapters.ForProvider(ctx, userID, bc.Provider)
	if err != nil {
		s.recordError(bc, err)
		return s.errorRedirect(bc.ID), nil
	}

	finalizeRef := code
	if bc.Provider == models.ProviderGoCardless {
		finalizeRef = bc.RequisitionID
	}

	session, err := adapter.FinalizeSession(ctx, finalizeRef)
	if err != nil {
		s.recordError(bc, err)
		return s.errorRedirect(bc.ID), nil
	}

	bc.Status = models.StatusAuthorized
	bc.ErrorMessage = ""
	if bc.Provider == models.ProviderEnableBanking {
		ref := session.SessionRef
		bc.SessionID = &ref
	}
	if session.ValidUntil != nil {
		bc.ValidUntil = session.ValidUntil
	}
	if err := s.connections.Save(bc); err != nil {
		return "", err
	}

	external := session.Accounts
	if len(external) == 0 {
		ids, err := adapter.ListLinkedAccountIDs(ctx, s.sessionRef(bc))
		if err != nil {
			s.recordError(bc, err)
			return s.errorRedirect(bc.ID), nil
		}
		for _, id := range ids {
			external = append(external, providers.ExternalAccount{UID: id})
		}
	}
	if err := s.reconcileAccounts(bc, external); err != nil {
		return "", err
	}

	if err := s.enqueueSync(ctx, bc); err != nil {
		logger.L.Error().Err(err).Uint("connection_id", bc.ID).Msg("failed to enqueue sync")
	}
	return fmt.Sprintf("/?bank_connection_success=%d", bc.ID), nil
}

// RequestSync only enqueues; the worker does the pulling.
func (s *Service) RequestSync(ctx context.Context, userID, connectionID uint) error {
	bc, err := s.connections.GetForUser(connectionID, userID)
	if err != nil {
		return err
	}
	return s.enqueueSync(ctx, bc)
}

// Destroy revokes the provider session best-effort, then cascades the delete.
// A failed revoke never blocks the deletion.
func (s *Service) Destroy(ctx context.Context, userID, connectionID uint) error {
	bc, err := s.connections.GetForUser(connectionID, userID)
	if err != nil {
		return err
	}

	if ref := s.sessionRef(bc); ref != "" {
		if adapter, err := s.adapters.ForProvider(ctx, userID, bc.Provider); err == nil {
			if err := adapter.RevokeSession(ctx, ref); err != nil {
				logger.L.Warn().Err(err).Uint("connection_id", bc.ID).Msg("session revoke failed, deleting anyway")
			}
		}
	}

	return s.connections.Delete(bc)
}

// reconcileAccounts is create-if-absent keyed by the external account id;
// rows that already exist keep their user-assigned name and all data.
func (s *Service) reconcileAccounts(bc *models.BankConnection, external []providers.ExternalAccount) error {
	for _, ext := range external {
		account := &models.Account{
			BankConnectionID: bc.ID,
			AccountUID:       ext.UID,
			IBAN:             ext.IBAN,
			Name:             bc.InstitutionName,
			Identification:   datatypes.JSON(ext.Identification),
		}
		if err := s.accounts.FirstOrCreateByUID(account); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueueSync(ctx context.Context, bc *models.BankConnection) error {
	return s.queue.PublishSyncAccounts(ctx, &jobs.SyncAccountsJob{
		ConnectionID: bc.ID,
		UserID:       bc.UserID,
	})
}

// sessionRef is the provider-issued handle of an authorized linking:
// session_id for Enable Banking, requisition_id for GoCardless.
func (s *Service) sessionRef(bc *models.BankConnection) string {
	if bc.Provider == models.ProviderGoCardless {
		return bc.RequisitionID
	}
	if bc.SessionID != nil {
		return *bc.SessionID
	}
	return ""
}

func (s *Service) recordError(bc *models.BankConnection, cause error) {
	bc.Status = models.StatusError
	bc.ErrorMessage = cause.Error()
	if err := s.connections.Save(bc); err != nil {
		logger.L.Error().Err(err).Uint("connection_id", bc.ID).Msg("failed to record connection error")
	}
}

func (s *Service) callbackURL(connectionID uint) string {
	return fmt.Sprintf("%s/api/v1/bank_connections/%d/callback", s.baseURL, connectionID)
}

func (s *Service) errorRedirect(connectionID uint) string {
	return fmt.Sprintf("/?bank_connection_error=%d", connectionID)
}
