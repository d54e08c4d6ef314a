package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config                  Config
	logger                  Logger
	loggerProvider          LoggerProvider
	metricsRecorder         MetricsRecorder
	errorFactory            ErrorFactory
	errorMapper             ErrorMapper
	secretProvider          SecretProvider
	persistenceClient       any
	repositoryFactory       any
	configProvider          ConfigProvider
	optionsResolver         OptionsResolver
	connectionLocker        ConnectionLocker
	refreshBackoffScheduler RefreshBackoffScheduler
	registry                Registry
	providerLinkStore       ProviderLinkStore
	connectionStore         ConnectionStore
	credentialStore         CredentialStore
	auditStore              AuditStore
	txRunner                TxRunner
	jobEnqueuer             JobEnqueuer
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	ConnectionLocker  ConnectionLocker
	RefreshScheduler  RefreshBackoffScheduler
	Registry          Registry
	ProviderLinkStore ProviderLinkStore
	ConnectionStore   ConnectionStore
	CredentialStore   CredentialStore
	AuditStore        AuditStore
	TxRunner          TxRunner
	JobEnqueuer       JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bankfeed", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("bankfeed"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewAdapterRegistry()
	}
	if builder.connectionLocker == nil {
		builder.connectionLocker = NewMemoryConnectionLocker()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if _, isNop := builder.metricsRecorder.(NopMetricsRecorder); !isNop && finalConfig.ServiceName != "" {
		builder.metricsRecorder = NewTaggedMetricsRecorder(builder.metricsRecorder, map[string]string{
			"service": finalConfig.ServiceName,
		})
	}

	if builder.repositoryFactory != nil && storeResolutionNeeded(builder) {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				adoptStores(&builder, stores)
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			adoptStores(&builder, stores)
		}
	}

	return &Service{
		config:                  finalConfig,
		logger:                  logger,
		loggerProvider:          provider,
		metricsRecorder:         builder.metricsRecorder,
		errorFactory:            builder.errorFactory,
		errorMapper:             builder.errorMapper,
		secretProvider:          builder.secretProvider,
		persistenceClient:       builder.persistenceClient,
		repositoryFactory:       builder.repositoryFactory,
		configProvider:          builder.configProvider,
		optionsResolver:         builder.optionsResolver,
		connectionLocker:        builder.connectionLocker,
		refreshBackoffScheduler: builder.refreshScheduler,
		registry:                builder.registry,
		providerLinkStore:       builder.providerLinkStore,
		connectionStore:         builder.connectionStore,
		credentialStore:         builder.credentialStore,
		auditStore:              builder.auditStore,
		txRunner:                builder.txRunner,
		jobEnqueuer:             builder.jobEnqueuer,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func storeResolutionNeeded(builder serviceBuilder) bool {
	return builder.providerLinkStore == nil ||
		builder.connectionStore == nil ||
		builder.credentialStore == nil ||
		builder.auditStore == nil ||
		builder.txRunner == nil
}

func adoptStores(builder *serviceBuilder, stores StoreProvider) {
	if builder.providerLinkStore == nil {
		builder.providerLinkStore = stores.ProviderLinkStore()
	}
	if builder.connectionStore == nil {
		builder.connectionStore = stores.ConnectionStore()
	}
	if builder.credentialStore == nil {
		builder.credentialStore = stores.CredentialStore()
	}
	if builder.auditStore == nil {
		builder.auditStore = stores.AuditStore()
	}
	if builder.txRunner == nil {
		builder.txRunner = stores.TxRunner()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		ConnectionLocker:  s.connectionLocker,
		RefreshScheduler:  s.refreshBackoffScheduler,
		Registry:          s.registry,
		ProviderLinkStore: s.providerLinkStore,
		ConnectionStore:   s.connectionStore,
		CredentialStore:   s.credentialStore,
		AuditStore:        s.auditStore,
		TxRunner:          s.txRunner,
		JobEnqueuer:       s.jobEnqueuer,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// runAtomic executes fn within one unit of work when a transaction
// runner is configured. Stores built by the same factory pick the
// transaction up from ctx.
func (s *Service) runAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txRunner == nil {
		return fn(ctx)
	}
	return s.txRunner.RunInTx(ctx, fn)
}

func (s *Service) resolveOwnedLink(ctx context.Context, providerLinkID, userID string) (ProviderLink, error) {
	if s.providerLinkStore == nil {
		return ProviderLink{}, fmt.Errorf("core: provider link store is not configured")
	}
	providerLinkID = strings.TrimSpace(providerLinkID)
	if providerLinkID == "" {
		return ProviderLink{}, fmt.Errorf("core: provider link id is required")
	}
	link, err := s.providerLinkStore.Get(ctx, providerLinkID)
	if err != nil {
		return ProviderLink{}, err
	}
	if link.ID == "" {
		return ProviderLink{}, NewNotFoundError(fmt.Sprintf("provider link %q not found", providerLinkID))
	}
	if strings.TrimSpace(userID) != "" && link.UserID != strings.TrimSpace(userID) {
		return ProviderLink{}, NewOwnershipError(fmt.Sprintf("provider link %q does not belong to caller", providerLinkID))
	}
	return link, nil
}

func (s *Service) resolveAdapter(providerKey string) (AdapterEntry, error) {
	if s.registry == nil {
		return AdapterEntry{}, fmt.Errorf("core: adapter registry is not configured")
	}
	entry, ok := s.registry.Lookup(providerKey)
	if !ok {
		return AdapterEntry{}, newBankfeedError(
			fmt.Sprintf("adapter not registered for provider %q", providerKey),
			goerrors.CategoryNotFound,
			BankfeedErrorAdapterNotFound,
		)
	}
	if !entry.Configured {
		return AdapterEntry{}, newBankfeedError(
			fmt.Sprintf("adapter not configured for provider %q", providerKey),
			goerrors.CategoryConflict,
			BankfeedErrorAdapterUnconfigured,
		)
	}
	return entry, nil
}

func (s *Service) appendAudit(ctx context.Context, record AuditRecord) error {
	if s.auditStore == nil {
		return nil
	}
	if err := record.Action.Validate(); err != nil {
		return err
	}
	record.Details = RedactSensitiveMap(record.Details)
	if record.Actor == "" {
		record.Actor = SystemActor
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.auditStore.Append(ctx, record)
	return err
}

type StoreCredentialsInput struct {
	ProviderLinkID string
	UserID         string
	Tokens         TokenPayload
	Requester      RequesterContext
}

func (in StoreCredentialsInput) Validate() error {
	if strings.TrimSpace(in.ProviderLinkID) == "" {
		return fmt.Errorf("core: provider link id is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("core: user id is required")
	}
	if strings.TrimSpace(in.Tokens.AccessToken) == "" {
		return fmt.Errorf("core: access token is required")
	}
	return nil
}

// StoreInitialCredentials is the idempotent create-or-update entry
// point used after a successful OAuth exchange. A first call creates
// the credential and moves a pending connection to active; repeat calls
// update the stored credential under the rotation rules.
func (s *Service) StoreInitialCredentials(ctx context.Context, in StoreCredentialsInput) (credential Credential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": in.ProviderLinkID,
		"user_id":          in.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "store_credentials", err, fields)
	}()

	if err = in.Validate(); err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}

	link, err := s.resolveOwnedLink(ctx, in.ProviderLinkID, in.UserID)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	fields["provider_key"] = link.ProviderKey

	connection, err := s.connectionStore.GetByProviderLink(ctx, link.ID)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	fields["connection_id"] = connection.ID

	accessCiphertext, refreshCiphertext, err := s.sealTokens(ctx, in.Tokens)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}

	now := time.Now().UTC()
	err = s.runAtomic(ctx, func(txCtx context.Context) error {
		existing, loadErr := s.credentialStore.GetByConnection(txCtx, connection.ID)
		if loadErr != nil && !IsNotFound(s.mapError(loadErr)) {
			return loadErr
		}

		action := AuditActionCredentialUpdated
		if existing.ID == "" {
			action = AuditActionCredentialCreated
			created := Credential{
				ConnectionID:           connection.ID,
				AccessTokenCiphertext:  accessCiphertext,
				RefreshTokenCiphertext: refreshCiphertext,
				IDToken:                in.Tokens.IDToken,
				Scope:                  in.Tokens.Scope,
			}
			if in.Tokens.ExpiresIn != nil {
				expiresAt := now.Add(*in.Tokens.ExpiresIn)
				created.ExpiresAt = &expiresAt
			}
			saved, createErr := s.credentialStore.Create(txCtx, created)
			if createErr != nil {
				return createErr
			}
			credential = saved
		} else {
			updated := existing
			rotation := refreshCiphertext
			if !in.Tokens.HasRefreshToken() {
				rotation = nil
			}
			updated.ApplyRotation(accessCiphertext, rotation, in.Tokens.ExpiresIn, in.Tokens.IDToken, now)
			if strings.TrimSpace(in.Tokens.Scope) != "" {
				updated.Scope = in.Tokens.Scope
			}
			saved, updateErr := s.credentialStore.Update(txCtx, updated)
			if updateErr != nil {
				return updateErr
			}
			credential = saved
		}

		// A revoked connection re-enters at pending when the user
		// re-runs the exchange flow.
		if connection.Status == ConnectionStatusRevoked && action == AuditActionCredentialCreated {
			connection.resetForReconnect(now)
		}
		if connection.Status == ConnectionStatusPending {
			if markErr := connection.MarkConnected(now); markErr != nil {
				return markErr
			}
			saved, updateErr := s.connectionStore.Update(txCtx, connection)
			if updateErr != nil {
				return updateErr
			}
			connection = saved
		}

		details := map[string]any{
			"provider_key":      link.ProviderKey,
			"has_refresh_token": in.Tokens.HasRefreshToken(),
			"scope":             in.Tokens.Scope,
		}
		if in.Tokens.ExpiresIn != nil {
			details["expires_in_seconds"] = int(in.Tokens.ExpiresIn.Seconds())
		}
		return s.appendAudit(txCtx, AuditRecord{
			ConnectionID:   connection.ID,
			ProviderLinkID: link.ID,
			Actor:          in.Requester.Actor(),
			Action:         action,
			Details:        details,
			IPAddress:      in.Requester.IPAddress,
			UserAgent:      in.Requester.UserAgent,
			CreatedAt:      now,
		})
	})
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	return credential, nil
}

// GetValidAccessToken returns a plaintext access token, refreshing the
// stored credential first when it is expired or about to expire. This
// is the only place token material leaves the service decrypted.
func (s *Service) GetValidAccessToken(ctx context.Context, providerLinkID, userID string) (token string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
		"user_id":          userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_access_token", err, fields)
	}()

	link, err := s.resolveOwnedLink(ctx, providerLinkID, userID)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	connection, err := s.connectionStore.GetByProviderLink(ctx, link.ID)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	fields["connection_id"] = connection.ID

	credential, err := s.credentialStore.GetByConnection(ctx, connection.ID)
	if err != nil {
		mapped := s.mapError(err)
		if IsNotFound(mapped) {
			err = s.mapError(NewNotConnectedError(fmt.Sprintf("provider link %q has no stored credential", link.ID)))
			return "", err
		}
		err = mapped
		return "", err
	}

	now := time.Now().UTC()
	if credential.NeedsRefreshWithin(now, s.config.RefreshLeadWindow()) {
		switch {
		case credential.HasRefreshToken():
			refreshed, refreshErr := s.RefreshCredentials(ctx, providerLinkID, userID)
			if refreshErr != nil {
				err = refreshErr
				return "", err
			}
			credential = refreshed
		case credential.IsExpired(now):
			err = s.mapError(NewMissingRefreshTokenError(
				fmt.Sprintf("credential for provider link %q is expired and has no refresh token", link.ID),
			))
			return "", err
		default:
			// Expiring soon with no refresh token. The token is still
			// valid, so serve it until it actually expires.
		}
	}

	plaintext, err := s.openSecret(ctx, credential.AccessTokenCiphertext)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	return string(plaintext), nil
}

// RefreshCredentials rotates the stored tokens against the upstream
// provider. It acquires the per-connection refresh lock, never retries
// on its own, and records the outcome on both the connection and the
// audit trail inside one unit of work.
func (s *Service) RefreshCredentials(ctx context.Context, providerLinkID, userID string) (credential Credential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
		"user_id":          userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_credentials", err, fields)
	}()

	link, err := s.resolveOwnedLink(ctx, providerLinkID, userID)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	fields["provider_key"] = link.ProviderKey

	connection, err := s.connectionStore.GetByProviderLink(ctx, link.ID)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	fields["connection_id"] = connection.ID

	stored, err := s.credentialStore.GetByConnection(ctx, connection.ID)
	if err != nil {
		mapped := s.mapError(err)
		if IsNotFound(mapped) {
			err = s.mapError(NewNotConnectedError(fmt.Sprintf("provider link %q has no stored credential", link.ID)))
			return Credential{}, err
		}
		err = mapped
		return Credential{}, err
	}
	if !stored.HasRefreshToken() {
		err = s.mapError(NewMissingRefreshTokenError(
			fmt.Sprintf("credential for provider link %q has no refresh token", link.ID),
		))
		return Credential{}, err
	}

	unlock := func() {}
	if s.connectionLocker != nil && !isRefreshLockHeld(ctx, connection.ID) {
		lockHandle, lockErr := s.connectionLocker.Acquire(ctx, connection.ID, s.config.RefreshLockTTL())
		if lockErr != nil {
			err = s.mapError(lockErr)
			return Credential{}, err
		}
		ctx = context.WithValue(ctx, refreshLockContextKey{}, connection.ID)
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	entry, err := s.resolveAdapter(link.ProviderKey)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}

	refreshPlain, err := s.openSecret(ctx, stored.RefreshTokenCiphertext)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}

	now := time.Now().UTC()
	payload, upstreamErr := entry.Adapter.RefreshTokens(ctx, string(refreshPlain))
	if upstreamErr != nil {
		reason := upstreamErr.Error()
		recordErr := s.runAtomic(ctx, func(txCtx context.Context) error {
			if markErr := connection.MarkSyncFailed(now, reason); markErr != nil {
				return markErr
			}
			if _, updateErr := s.connectionStore.Update(txCtx, connection); updateErr != nil {
				return updateErr
			}
			return s.appendAudit(txCtx, AuditRecord{
				ConnectionID:   connection.ID,
				ProviderLinkID: link.ID,
				Actor:          SystemActor,
				Action:         AuditActionCredentialRefreshFailed,
				Details: map[string]any{
					"provider_key": link.ProviderKey,
					"reason":       reason,
					"error_count":  connection.ErrorCount,
				},
				CreatedAt: now,
			})
		})
		if recordErr != nil {
			err = s.mapError(recordErr)
			return Credential{}, err
		}
		err = s.mapError(NewUpstreamError(
			fmt.Sprintf("token refresh failed for provider %q", link.ProviderKey),
			upstreamErr,
		))
		return Credential{}, err
	}

	accessCiphertext, refreshCiphertext, err := s.sealTokens(ctx, payload)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	rotated := payload.HasRefreshToken()
	if !rotated {
		refreshCiphertext = nil
	}

	updated := stored
	updated.ApplyRotation(accessCiphertext, refreshCiphertext, payload.ExpiresIn, payload.IDToken, now)
	if strings.TrimSpace(payload.Scope) != "" {
		updated.Scope = payload.Scope
	}

	err = s.runAtomic(ctx, func(txCtx context.Context) error {
		saved, updateErr := s.credentialStore.Update(txCtx, updated)
		if updateErr != nil {
			return updateErr
		}
		credential = saved

		if markErr := connection.MarkSyncSuccessful(now, nil); markErr != nil {
			return markErr
		}
		if _, updateErr := s.connectionStore.Update(txCtx, connection); updateErr != nil {
			return updateErr
		}

		return s.appendAudit(txCtx, AuditRecord{
			ConnectionID:   connection.ID,
			ProviderLinkID: link.ID,
			Actor:          SystemActor,
			Action:         AuditActionCredentialRefreshed,
			Details: map[string]any{
				"provider_key":          link.ProviderKey,
				"refresh_count":         credential.RefreshCount,
				"refresh_token_rotated": rotated,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	return credential, nil
}

// RevokeCredentials deletes the stored credential and marks the
// connection revoked. Calling it again once the credential is gone is
// not an error.
func (s *Service) RevokeCredentials(ctx context.Context, providerLinkID, userID string, requester RequesterContext) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
		"user_id":          userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_credentials", err, fields)
	}()

	link, err := s.resolveOwnedLink(ctx, providerLinkID, userID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	connection, err := s.connectionStore.GetByProviderLink(ctx, link.ID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	fields["connection_id"] = connection.ID

	now := time.Now().UTC()
	err = s.runAtomic(ctx, func(txCtx context.Context) error {
		if deleteErr := s.credentialStore.DeleteByConnection(txCtx, connection.ID); deleteErr != nil {
			if !IsNotFound(s.mapError(deleteErr)) {
				return deleteErr
			}
		}
		if connection.Status != ConnectionStatusRevoked {
			if markErr := connection.MarkRevoked(now, "revoked by user"); markErr != nil {
				return markErr
			}
			if _, updateErr := s.connectionStore.Update(txCtx, connection); updateErr != nil {
				return updateErr
			}
		}
		return s.appendAudit(txCtx, AuditRecord{
			ConnectionID:   connection.ID,
			ProviderLinkID: link.ID,
			Actor:          requester.Actor(),
			Action:         AuditActionCredentialRevoked,
			Details: map[string]any{
				"provider_key": link.ProviderKey,
			},
			IPAddress: requester.IPAddress,
			UserAgent: requester.UserAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// GetCredentialMetadata reports credential state without decrypting
// anything. An absent credential is not an error; Found is false.
func (s *Service) GetCredentialMetadata(ctx context.Context, providerLinkID string) (metadata CredentialMetadata, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_credential_metadata", err, fields)
	}()

	link, err := s.resolveOwnedLink(ctx, providerLinkID, "")
	if err != nil {
		err = s.mapError(err)
		return CredentialMetadata{}, err
	}
	connection, err := s.connectionStore.GetByProviderLink(ctx, link.ID)
	if err != nil {
		err = s.mapError(err)
		return CredentialMetadata{}, err
	}

	credential, err := s.credentialStore.GetByConnection(ctx, connection.ID)
	if err != nil {
		if IsNotFound(s.mapError(err)) {
			err = nil
			return CredentialMetadata{}, nil
		}
		err = s.mapError(err)
		return CredentialMetadata{}, err
	}

	now := time.Now().UTC()
	metadata = CredentialMetadata{
		Found:           true,
		HasAccessToken:  len(credential.AccessTokenCiphertext) > 0,
		HasRefreshToken: credential.HasRefreshToken(),
		ExpiresAt:       credential.ExpiresAt,
		IsExpired:       credential.IsExpired(now),
		NeedsRefresh:    credential.NeedsRefreshWithin(now, s.config.RefreshLeadWindow()),
		RefreshCount:    credential.RefreshCount,
		LastRefreshedAt: credential.LastRefreshedAt,
		Scope:           credential.Scope,
	}
	return metadata, nil
}

// CreateProviderLink creates a link together with its pending
// connection.
func (s *Service) CreateProviderLink(ctx context.Context, in CreateProviderLinkInput) (link ProviderLink, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_key": in.ProviderKey,
		"user_id":      in.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_provider_link", err, fields)
	}()

	if s.providerLinkStore == nil || s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: provider link and connection stores are required"))
		return ProviderLink{}, err
	}
	if _, err = s.resolveAdapter(in.ProviderKey); err != nil {
		err = s.mapError(err)
		return ProviderLink{}, err
	}

	frequency := in.SyncFrequencyMinutes
	if frequency <= 0 {
		frequency = s.config.Sync.DefaultFrequencyMinutes
	}
	if frequency <= 0 {
		frequency = DefaultSyncFrequencyMinutes
	}

	err = s.runAtomic(ctx, func(txCtx context.Context) error {
		created, createErr := s.providerLinkStore.Create(txCtx, in)
		if createErr != nil {
			return createErr
		}
		link = created
		fields["provider_link_id"] = link.ID

		_, connErr := s.connectionStore.Create(txCtx, Connection{
			ProviderLinkID:       link.ID,
			Status:               ConnectionStatusPending,
			SyncFrequencyMinutes: frequency,
		})
		return connErr
	})
	if err != nil {
		err = s.mapError(err)
		return ProviderLink{}, err
	}
	return link, nil
}

// DeleteProviderLink removes the link; the store cascades connection,
// credential, and audit rows.
func (s *Service) DeleteProviderLink(ctx context.Context, providerLinkID, userID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
		"user_id":          userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_provider_link", err, fields)
	}()

	link, err := s.resolveOwnedLink(ctx, providerLinkID, userID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.providerLinkStore.Delete(ctx, link.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// RecordSyncSuccess lets sync jobs report a completed account sync
// through the same state machine the refresh path uses.
func (s *Service) RecordSyncSuccess(ctx context.Context, providerLinkID string, accounts []string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "record_sync_success", err, fields)
	}()

	connection, err := s.connectionStore.GetByProviderLink(ctx, strings.TrimSpace(providerLinkID))
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = connection.MarkSyncSuccessful(time.Now().UTC(), accounts); err != nil {
		err = s.mapError(err)
		return err
	}
	if _, err = s.connectionStore.Update(ctx, connection); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// RecordSyncFailure applies the failure counter and backoff schedule
// for a sync that could not complete.
func (s *Service) RecordSyncFailure(ctx context.Context, providerLinkID, reason string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": providerLinkID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "record_sync_failure", err, fields)
	}()

	connection, err := s.connectionStore.GetByProviderLink(ctx, strings.TrimSpace(providerLinkID))
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = connection.MarkSyncFailed(time.Now().UTC(), reason); err != nil {
		err = s.mapError(err)
		return err
	}
	if _, err = s.connectionStore.Update(ctx, connection); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// ListAuditTrail exposes the append-only audit records for status and
// compliance views.
func (s *Service) ListAuditTrail(ctx context.Context, filter AuditFilter) (page AuditPage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_link_id": filter.ProviderLinkID,
		"connection_id":    filter.ConnectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_audit_trail", err, fields)
	}()

	if s.auditStore == nil {
		err = s.mapError(fmt.Errorf("core: audit store is not configured"))
		return AuditPage{}, err
	}
	page, err = s.auditStore.List(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return AuditPage{}, err
	}
	return page, nil
}

func (s *Service) sealTokens(ctx context.Context, payload TokenPayload) (access, refresh []byte, err error) {
	if s.secretProvider == nil {
		return nil, nil, fmt.Errorf("core: secret provider is not configured")
	}
	access, err = s.secretProvider.Encrypt(ctx, []byte(payload.AccessToken))
	if err != nil {
		return nil, nil, NewCipherError("access token encryption failed", err)
	}
	if payload.HasRefreshToken() {
		refresh, err = s.secretProvider.Encrypt(ctx, []byte(payload.RefreshToken))
		if err != nil {
			return nil, nil, NewCipherError("refresh token encryption failed", err)
		}
	}
	return access, refresh, nil
}

func (s *Service) openSecret(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if s.secretProvider == nil {
		return nil, fmt.Errorf("core: secret provider is not configured")
	}
	plaintext, err := s.secretProvider.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, NewCipherError("credential decryption failed", err)
	}
	return plaintext, nil
}

type refreshLockContextKey struct{}

func isRefreshLockHeld(ctx context.Context, connectionID string) bool {
	if ctx == nil {
		return false
	}
	held, ok := ctx.Value(refreshLockContextKey{}).(string)
	return ok && held == connectionID
}
