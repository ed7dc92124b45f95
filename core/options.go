package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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
	nowFn          func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithLeadStore(store LeadStore) Option {
	return func(b *serviceBuilder) {
		b.leadStore = store
	}
}

func WithProviderStore(store ProviderStore) Option {
	return func(b *serviceBuilder) {
		b.providerStore = store
	}
}

func WithUnlockStore(store UnlockStore) Option {
	return func(b *serviceBuilder) {
		b.unlockStore = store
	}
}

func WithClientFollowUpStore(store ClientFollowUpStore) Option {
	return func(b *serviceBuilder) {
		b.clientFollowUpStore = store
	}
}

func WithProviderReminderStore(store ProviderReminderStore) Option {
	return func(b *serviceBuilder) {
		b.reminderStore = store
	}
}

func WithContactFollowUpStore(store ContactFollowUpStore) Option {
	return func(b *serviceBuilder) {
		b.contactFollowUpStore = store
	}
}

func WithAuditLog(log AuditLog) Option {
	return func(b *serviceBuilder) {
		b.auditLog = log
	}
}

func WithSMSSender(sender SMSSender) Option {
	return func(b *serviceBuilder) {
		b.smsSender = sender
	}
}

func WithEmailSender(sender EmailSender) Option {
	return func(b *serviceBuilder) {
		b.emailSender = sender
	}
}

func WithPaymentGateway(gateway PaymentGateway) Option {
	return func(b *serviceBuilder) {
		b.paymentGateway = gateway
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

// WithClock injects the time source used for scheduling decisions. Tests
// drive the engines deterministically through it.
func WithClock(nowFn func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.nowFn = nowFn
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("leads", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		nowFn:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return leadsErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.BaseURL) != "" {
		layer["base_url"] = cfg.BaseURL
	}
	if includeZero || cfg.LeadTTL > 0 {
		layer["lead_ttl"] = cfg.LeadTTL
	}

	engine := map[string]any{}
	if includeZero || cfg.Engine.TickInterval > 0 {
		engine["tick_interval"] = cfg.Engine.TickInterval
	}
	if includeZero || cfg.Engine.ClientBookingOffset > 0 {
		engine["client_booking_offset"] = cfg.Engine.ClientBookingOffset
	}
	if includeZero || cfg.Engine.ClientFallbackDelay > 0 {
		engine["client_fallback_delay"] = cfg.Engine.ClientFallbackDelay
	}
	if includeZero || cfg.Engine.ClientBatchSize > 0 {
		engine["client_batch_size"] = cfg.Engine.ClientBatchSize
	}
	if includeZero || cfg.Engine.ClientExpiry > 0 {
		engine["client_expiry"] = cfg.Engine.ClientExpiry
	}
	if includeZero || cfg.Engine.NudgeDelay > 0 {
		engine["nudge_delay"] = cfg.Engine.NudgeDelay
	}
	if includeZero || cfg.Engine.NudgeBatchSize > 0 {
		engine["nudge_batch_size"] = cfg.Engine.NudgeBatchSize
	}
	if includeZero || cfg.Engine.CheckinDelay > 0 {
		engine["checkin_delay"] = cfg.Engine.CheckinDelay
	}
	if includeZero || cfg.Engine.CheckinBatchSize > 0 {
		engine["checkin_batch_size"] = cfg.Engine.CheckinBatchSize
	}
	if len(engine) > 0 {
		layer["engine"] = engine
	}

	pricing := map[string]any{}
	if includeZero || cfg.Pricing.DefaultCents > 0 {
		pricing["default_cents"] = cfg.Pricing.DefaultCents
	}
	if includeZero || len(cfg.Pricing.ByServiceType) > 0 {
		byType := make(map[string]int, len(cfg.Pricing.ByServiceType))
		for key, value := range cfg.Pricing.ByServiceType {
			byType[key] = value
		}
		pricing["by_service_type"] = byType
	}
	if len(pricing) > 0 {
		layer["pricing"] = pricing
	}

	token := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Token.Secret) != "" {
		token["secret"] = cfg.Token.Secret
	}
	if includeZero || cfg.Token.TTL > 0 {
		token["ttl"] = cfg.Token.TTL
	}
	if len(token) > 0 {
		layer["token"] = token
	}

	return layer
}
