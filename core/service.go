package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the unlock lifecycle and constructs the follow-up engines.
// All coordination happens through the stores; the service keeps no
// lifecycle state in memory.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	persistenceClient any
	repositoryFactory any

	leadStore            LeadStore
	providerStore        ProviderStore
	unlockStore          UnlockStore
	clientFollowUpStore  ClientFollowUpStore
	reminderStore        ProviderReminderStore
	contactFollowUpStore ContactFollowUpStore
	auditLog             AuditLog

	smsSender      SMSSender
	emailSender    EmailSender
	paymentGateway PaymentGateway
	jobEnqueuer    JobEnqueuer
	tokenSigner    *AcceptTokenSigner
	nowFn          func() time.Time

	clientFollowUps *ClientFollowUpEngine
	providerNudges  *ProviderNudgeEngine
	contactCheckins *ContactCheckinEngine
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("leads", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("leads"); named != nil {
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
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
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

	if err := resolveStoresFromFactory(&builder); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	service := &Service{
		config:               finalConfig,
		logger:               logger,
		loggerProvider:       provider,
		metricsRecorder:      builder.metricsRecorder,
		errorFactory:         builder.errorFactory,
		errorMapper:          builder.errorMapper,
		configProvider:       builder.configProvider,
		optionsResolver:      builder.optionsResolver,
		persistenceClient:    builder.persistenceClient,
		repositoryFactory:    builder.repositoryFactory,
		leadStore:            builder.leadStore,
		providerStore:        builder.providerStore,
		unlockStore:          builder.unlockStore,
		clientFollowUpStore:  builder.clientFollowUpStore,
		reminderStore:        builder.reminderStore,
		contactFollowUpStore: builder.contactFollowUpStore,
		auditLog:             builder.auditLog,
		smsSender:            builder.smsSender,
		emailSender:          builder.emailSender,
		paymentGateway:       builder.paymentGateway,
		jobEnqueuer:          builder.jobEnqueuer,
		tokenSigner:          NewAcceptTokenSigner(finalConfig.Token.Secret, finalConfig.Token.TTL),
		nowFn:                builder.nowFn,
	}

	if builder.clientFollowUpStore != nil {
		engine, engineErr := NewClientFollowUpEngine(
			builder.clientFollowUpStore,
			service,
			builder.smsSender,
			finalConfig.Engine,
			logger,
			builder.nowFn,
		)
		if engineErr != nil {
			return nil, mapBuildError(builder.errorMapper, engineErr)
		}
		service.clientFollowUps = engine
	}
	if builder.reminderStore != nil {
		engine, engineErr := NewProviderNudgeEngine(
			builder.reminderStore,
			builder.unlockStore,
			builder.leadStore,
			builder.smsSender,
			finalConfig.Engine,
			logger,
			builder.nowFn,
		)
		if engineErr != nil {
			return nil, mapBuildError(builder.errorMapper, engineErr)
		}
		service.providerNudges = engine
	}
	if builder.contactFollowUpStore != nil {
		engine, engineErr := NewContactCheckinEngine(
			builder.contactFollowUpStore,
			builder.providerStore,
			builder.leadStore,
			builder.smsSender,
			finalConfig.Engine,
			logger,
			builder.nowFn,
		)
		if engineErr != nil {
			return nil, mapBuildError(builder.errorMapper, engineErr)
		}
		service.contactCheckins = engine
	}

	return service, nil
}

// Setup is a convenience alias for NewService.
func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func resolveStoresFromFactory(builder *serviceBuilder) error {
	if builder.repositoryFactory == nil {
		return nil
	}

	var provider StoreProvider
	if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
		built, err := storeFactory.BuildStores(builder.persistenceClient)
		if err != nil {
			return err
		}
		provider = built
	} else if typed, ok := builder.repositoryFactory.(StoreProvider); ok {
		provider = typed
	}
	if provider == nil {
		return nil
	}

	if builder.leadStore == nil {
		builder.leadStore = provider.LeadStore()
	}
	if builder.providerStore == nil {
		builder.providerStore = provider.ProviderStore()
	}
	if builder.unlockStore == nil {
		builder.unlockStore = provider.UnlockStore()
	}
	if builder.clientFollowUpStore == nil {
		builder.clientFollowUpStore = provider.ClientFollowUpStore()
	}
	if builder.reminderStore == nil {
		builder.reminderStore = provider.ProviderReminderStore()
	}
	if builder.contactFollowUpStore == nil {
		builder.contactFollowUpStore = provider.ContactFollowUpStore()
	}
	if builder.auditLog == nil {
		builder.auditLog = provider.AuditLog()
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) ClientFollowUps() *ClientFollowUpEngine {
	if s == nil {
		return nil
	}
	return s.clientFollowUps
}

func (s *Service) ProviderNudges() *ProviderNudgeEngine {
	if s == nil {
		return nil
	}
	return s.providerNudges
}

func (s *Service) ContactCheckins() *ContactCheckinEngine {
	if s == nil {
		return nil
	}
	return s.contactCheckins
}

// NewScheduler wires the three follow-up engines into a tick loop using
// the configured interval.
func (s *Service) NewScheduler() (*Scheduler, error) {
	if s == nil {
		return nil, newLeadsError("core: service is nil", goerrors.CategoryInternal, LeadsErrorInternal)
	}
	processors := make([]FollowUpProcessor, 0, 3)
	if s.clientFollowUps != nil {
		processors = append(processors, s.clientFollowUps)
	}
	if s.providerNudges != nil {
		processors = append(processors, s.providerNudges)
	}
	if s.contactCheckins != nil {
		processors = append(processors, s.contactCheckins)
	}
	return NewScheduler(s.config.Engine.TickInterval, s.logger, s.nowFn, processors...)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) now() time.Time {
	if s != nil && s.nowFn != nil {
		return s.nowFn().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) audit(ctx context.Context, leadID string, providerID string, action string, details map[string]any) {
	if s == nil || s.auditLog == nil {
		return
	}
	entry := UnlockAuditEntry{
		LeadID:     leadID,
		ProviderID: providerID,
		Action:     action,
		Details:    cloneFields(details),
		CreatedAt:  s.now(),
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		s.logError(ctx, "audit append failed", map[string]any{
			"lead_id":     leadID,
			"provider_id": providerID,
			"action":      action,
			"error":       err.Error(),
		})
	}
}
