package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-leads/core"
	leadmigrations "github.com/goliatone/go-leads/migrations"
	sqlstore "github.com/goliatone/go-leads/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-leads-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:leads-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = leadmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != leadmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, leadmigrations.WithValidationTargets(leadmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func seedLeadAndProvider(t *testing.T, factory *sqlstore.RepositoryFactory) (core.Lead, core.Provider) {
	t.Helper()
	ctx := context.Background()
	lead, err := factory.LeadStore().Create(ctx, core.Lead{
		ID:          uuid.NewString(),
		City:        "Austin",
		ServiceType: "massage",
		ClientName:  "Dana",
		ClientPhone: "+15125550100",
		ClientEmail: "dana@example.com",
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	provider, err := factory.SQLProviderStore().Seed(ctx, core.Provider{
		ID:    uuid.NewString(),
		Phone: "+15125550111",
		Name:  "Calm Hands",
	})
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	return lead, provider
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"provider_lead_unlocks",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "provider_lead_unlocks" {
		t.Fatalf("expected provider_lead_unlocks table, got %q", tableName)
	}
}

func TestLeadStoreCloseWinsOnce(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, _ := seedLeadAndProvider(t, factory)

	won, err := factory.LeadStore().Close(ctx, lead.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !won {
		t.Fatal("first close should win")
	}
	won, err = factory.LeadStore().Close(ctx, lead.ID)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if won {
		t.Fatal("second close should lose the guard")
	}
	got, err := factory.LeadStore().Get(ctx, lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsClosed {
		t.Fatal("lead should be closed")
	}
}

func TestProviderStorePhoneVariants(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()

	// legacy row stored before phone normalization, bare ten digits
	legacy, err := factory.SQLProviderStore().Seed(ctx, core.Provider{
		ID:    uuid.NewString(),
		Phone: "5125550122",
		Name:  "Legacy Spa",
	})
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	got, err := factory.ProviderStore().GetByPhone(ctx, "+15125550122")
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if got.ID != legacy.ID {
		t.Fatalf("resolved %q, want %q", got.ID, legacy.ID)
	}

	if _, err := factory.ProviderStore().GetByPhone(ctx, "+19995550000"); err == nil {
		t.Fatal("unknown phone should not resolve")
	}
}

func TestUnlockStoreCreateIfAbsentReplays(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)

	unlock := core.Unlock{
		ID:         uuid.NewString(),
		LeadID:     lead.ID,
		ProviderID: provider.ID,
		Status:     core.UnlockStatusPending,
		PriceCents: 1500,
	}
	first, err := factory.UnlockStore().CreateIfAbsent(ctx, unlock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !first.Created {
		t.Fatal("first insert should create")
	}

	replay := unlock
	replay.ID = uuid.NewString()
	second, err := factory.UnlockStore().CreateIfAbsent(ctx, replay)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.Created {
		t.Fatal("replay should not create")
	}
	if second.Unlock.ID != first.Unlock.ID {
		t.Fatalf("replay returned %q, want %q", second.Unlock.ID, first.Unlock.ID)
	}
}

func TestUnlockStoreGuardedTransition(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)

	created, err := factory.UnlockStore().CreateIfAbsent(ctx, core.Unlock{
		ID:         uuid.NewString(),
		LeadID:     lead.ID,
		ProviderID: provider.ID,
		Status:     core.UnlockStatusPending,
		PriceCents: 1500,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sentAt := time.Now().UTC()
	updated, applied, err := factory.UnlockStore().Transition(
		ctx, created.Unlock.ID,
		core.UnlockStatusPending, core.UnlockStatusTeaserSent,
		core.UnlockMutation{TeaserSentAt: &sentAt},
	)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !applied {
		t.Fatal("guard should match on first transition")
	}
	if updated.Status != core.UnlockStatusTeaserSent || updated.TeaserSentAt == nil {
		t.Fatalf("updated = %+v", updated)
	}

	// the guard loses once the row moved on
	current, applied, err := factory.UnlockStore().Transition(
		ctx, created.Unlock.ID,
		core.UnlockStatusPending, core.UnlockStatusTeaserSent,
		core.UnlockMutation{},
	)
	if err != nil {
		t.Fatalf("replayed transition: %v", err)
	}
	if applied {
		t.Fatal("stale guard should not apply")
	}
	if current.Status != core.UnlockStatusTeaserSent {
		t.Fatalf("current = %+v", current)
	}
}

func TestUnlockStoreLookups(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)

	created, err := factory.UnlockStore().CreateIfAbsent(ctx, core.Unlock{
		ID:         uuid.NewString(),
		LeadID:     lead.ID,
		ProviderID: provider.ID,
		Status:     core.UnlockStatusPending,
		PriceCents: 1500,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	unlockID := created.Unlock.ID

	if _, _, err := factory.UnlockStore().Transition(
		ctx, unlockID, core.UnlockStatusPending, core.UnlockStatusTeaserSent, core.UnlockMutation{},
	); err != nil {
		t.Fatalf("tease: %v", err)
	}

	open, err := factory.UnlockStore().FindOpenByProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if open.ID != unlockID {
		t.Fatalf("open = %+v", open)
	}

	sessionID := "cs_" + unlockID
	if _, _, err := factory.UnlockStore().Transition(
		ctx, unlockID, core.UnlockStatusTeaserSent, core.UnlockStatusPaymentLinkSent,
		core.UnlockMutation{CheckoutSessionID: &sessionID},
	); err != nil {
		t.Fatalf("link: %v", err)
	}

	bySession, err := factory.UnlockStore().GetByCheckoutSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if bySession.ID != unlockID {
		t.Fatalf("by session = %+v", bySession)
	}

	byPair, err := factory.UnlockStore().GetByPair(ctx, lead.ID, provider.ID)
	if err != nil {
		t.Fatalf("get by pair: %v", err)
	}
	if byPair.CheckoutSessionID != sessionID {
		t.Fatalf("by pair = %+v", byPair)
	}

	// settled rows stop matching FindOpenByProvider
	if _, _, err := factory.UnlockStore().Transition(
		ctx, unlockID, core.UnlockStatusPaymentLinkSent, core.UnlockStatusDeclined, core.UnlockMutation{},
	); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := factory.UnlockStore().FindOpenByProvider(ctx, provider.ID); err == nil {
		t.Fatal("declined unlock should not be open")
	}
}

func TestRequeueCandidatesExcludeHoldersAndOptOuts(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, holder := seedLeadAndProvider(t, factory)

	fresh, err := factory.SQLProviderStore().Seed(ctx, core.Provider{
		ID:    uuid.NewString(),
		Phone: "+15125550133",
		Name:  "Fresh Hands",
	})
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	if _, err := factory.SQLProviderStore().Seed(ctx, core.Provider{
		ID:          uuid.NewString(),
		Phone:       "+15125550144",
		Name:        "Opted Out",
		SMSOptedOut: true,
	}); err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	if _, err := factory.UnlockStore().CreateIfAbsent(ctx, core.Unlock{
		ID:         uuid.NewString(),
		LeadID:     lead.ID,
		ProviderID: holder.ID,
		Status:     core.UnlockStatusPending,
		PriceCents: 1500,
	}); err != nil {
		t.Fatalf("create unlock: %v", err)
	}

	candidates, err := factory.ProviderStore().ListRequeueCandidates(ctx, lead.ID)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != fresh.ID {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestClientFollowUpStoreLifecycle(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)
	store := factory.ClientFollowUpStore()
	now := time.Now().UTC()

	created, err := store.CreateIfAbsent(ctx, core.ClientFollowUp{
		LeadID:       lead.ID,
		ProviderID:   provider.ID,
		ClientPhone:  lead.ClientPhone,
		ClientName:   lead.ClientName,
		ProviderName: provider.Name,
		Status:       core.FollowUpStatusScheduled,
		SendAfter:    now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Created {
		t.Fatal("expected fresh row")
	}

	replay, err := store.CreateIfAbsent(ctx, core.ClientFollowUp{
		LeadID:      lead.ID,
		ProviderID:  provider.ID,
		ClientPhone: lead.ClientPhone,
		Status:      core.FollowUpStatusScheduled,
		SendAfter:   now,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Created || replay.FollowUp.ID != created.FollowUp.ID {
		t.Fatalf("replay = %+v", replay)
	}

	due, err := store.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != created.FollowUp.ID {
		t.Fatalf("due = %+v", due)
	}

	sentAt := now
	row, applied, err := store.Transition(
		ctx, created.FollowUp.ID,
		core.FollowUpStatusScheduled, core.FollowUpStatusSent,
		core.FollowUpMutation{SentAt: &sentAt},
	)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !applied || row.Status != core.FollowUpStatusSent || row.SentAt == nil {
		t.Fatalf("row = %+v applied=%v", row, applied)
	}

	open, err := store.FindOpenByPhones(ctx, core.PhoneVariants(lead.ClientPhone))
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if open.ID != created.FollowUp.ID {
		t.Fatalf("open = %+v", open)
	}

	expired, err := store.ExpireStale(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d", expired)
	}
	if _, err := store.FindOpenByPhones(ctx, core.PhoneVariants(lead.ClientPhone)); err == nil {
		t.Fatal("expired row should not be open")
	}
}

func TestClientFollowUpStoreRowPerProviderPair(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, first := seedLeadAndProvider(t, factory)
	store := factory.ClientFollowUpStore()
	now := time.Now().UTC()

	second, err := factory.SQLProviderStore().Seed(ctx, core.Provider{
		ID:    uuid.NewString(),
		Phone: "+15125550155",
		Name:  "Steady Touch",
	})
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	firstRow, err := store.CreateIfAbsent(ctx, core.ClientFollowUp{
		LeadID:      lead.ID,
		ProviderID:  first.ID,
		ClientPhone: lead.ClientPhone,
		Status:      core.FollowUpStatusScheduled,
		SendAfter:   now,
	})
	if err != nil {
		t.Fatalf("create first pair: %v", err)
	}

	// same lead, requeued to a second provider
	secondRow, err := store.CreateIfAbsent(ctx, core.ClientFollowUp{
		LeadID:      lead.ID,
		ProviderID:  second.ID,
		ClientPhone: lead.ClientPhone,
		Status:      core.FollowUpStatusScheduled,
		SendAfter:   now,
	})
	if err != nil {
		t.Fatalf("create second pair: %v", err)
	}
	if !secondRow.Created {
		t.Fatalf("second pair should be a fresh row, got %+v", secondRow.FollowUp)
	}
	if secondRow.FollowUp.ID == firstRow.FollowUp.ID {
		t.Fatal("distinct pairs must not share a row")
	}
	if secondRow.FollowUp.ProviderID != second.ID {
		t.Fatalf("row = %+v", secondRow.FollowUp)
	}

	pairReplay, err := store.CreateIfAbsent(ctx, core.ClientFollowUp{
		LeadID:      lead.ID,
		ProviderID:  second.ID,
		ClientPhone: lead.ClientPhone,
		Status:      core.FollowUpStatusScheduled,
		SendAfter:   now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("pair replay: %v", err)
	}
	if pairReplay.Created || pairReplay.FollowUp.ID != secondRow.FollowUp.ID {
		t.Fatalf("pair replay = %+v", pairReplay)
	}
}

func TestProviderReminderStoreLifecycle(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)
	store := factory.ProviderReminderStore()
	now := time.Now().UTC()

	created, err := store.CreateIfAbsent(ctx, core.ProviderReminder{
		LeadID:        lead.ID,
		ProviderID:    provider.ID,
		ProviderPhone: provider.Phone,
		Status:        core.ReminderStatusScheduled,
		SendAfter:     now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Created {
		t.Fatal("expected fresh row")
	}

	replay, err := store.CreateIfAbsent(ctx, core.ProviderReminder{
		LeadID:        lead.ID,
		ProviderID:    provider.ID,
		ProviderPhone: provider.Phone,
		Status:        core.ReminderStatusScheduled,
		SendAfter:     now,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Created {
		t.Fatalf("replay = %+v", replay)
	}

	due, err := store.ListDue(ctx, now, 50)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %+v", due)
	}

	sentAt := now
	row, applied, err := store.Transition(ctx, created.Reminder.ID, core.ReminderStatusScheduled, core.ReminderStatusSent, &sentAt)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !applied || row.Status != core.ReminderStatusSent {
		t.Fatalf("row = %+v applied=%v", row, applied)
	}

	due, err = store.ListDue(ctx, now.Add(time.Hour), 50)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("sent row still due: %+v", due)
	}
}

func TestContactFollowUpStoreStats(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)
	store := factory.ContactFollowUpStore()
	now := time.Now().UTC()

	created, err := store.CreateIfAbsent(ctx, core.ContactFollowUp{
		LeadID:     lead.ID,
		ProviderID: provider.ID,
		Status:     core.CheckinStatusScheduled,
		SendAfter:  now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sentAt := now
	if _, _, err := store.Transition(ctx, created.Checkin.ID, core.CheckinStatusScheduled, core.CheckinStatusSent, nil, nil, &sentAt); err != nil {
		t.Fatalf("send: %v", err)
	}

	open, err := store.FindOpenByProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if open.ID != created.Checkin.ID {
		t.Fatalf("open = %+v", open)
	}

	respondedAt := now
	value := core.CheckinResponseContacted
	row, applied, err := store.Transition(ctx, created.Checkin.ID, core.CheckinStatusSent, core.CheckinStatusResponded, &respondedAt, &value, nil)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !applied || row.ResponseValue == nil || *row.ResponseValue != core.CheckinResponseContacted {
		t.Fatalf("row = %+v applied=%v", row, applied)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAsked != 1 || stats.Responded != 1 || stats.Contacted != 1 || stats.NotYet != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestAuditStoreAppendAndList(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	lead, provider := seedLeadAndProvider(t, factory)

	store := factory.AuditLog().(*sqlstore.UnlockAuditStore)
	for _, action := range []string{"unlock_created", "teaser_sent"} {
		if err := store.Append(ctx, core.UnlockAuditEntry{
			LeadID:     lead.ID,
			ProviderID: provider.ID,
			Action:     action,
			Details:    map[string]any{"source": "test"},
		}); err != nil {
			t.Fatalf("append %s: %v", action, err)
		}
	}

	entries, err := store.ListByLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "unlock_created" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestPaymentDeliveryStoreClaims(t *testing.T) {
	factory, cleanup := newFactory(t)
	defer cleanup()
	ctx := context.Background()
	store := factory.PaymentDeliveryStore()

	claimID, accepted, err := store.Claim(ctx, "evt_1", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !accepted || claimID == "" {
		t.Fatalf("claim = %q accepted=%v", claimID, accepted)
	}

	// a second worker loses while the lease holds
	_, accepted, err = store.Claim(ctx, "evt_1", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if accepted {
		t.Fatal("live lease should block the second claim")
	}

	if err := store.Complete(ctx, claimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, accepted, err = store.Claim(ctx, "evt_1", time.Minute)
	if err != nil {
		t.Fatalf("post-complete claim: %v", err)
	}
	if accepted {
		t.Fatal("completed event should never be reclaimed")
	}

	// an expired lease can be reclaimed
	secondID, accepted, err := store.Claim(ctx, "evt_2", -time.Minute)
	if err != nil {
		t.Fatalf("claim evt_2: %v", err)
	}
	if !accepted {
		t.Fatal("fresh claim should win")
	}
	if err := store.Fail(ctx, secondID, fmt.Errorf("processor crashed"), time.Now()); err != nil {
		t.Fatalf("fail: %v", err)
	}
	reclaimed, accepted, err := store.Claim(ctx, "evt_2", time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !accepted || reclaimed != secondID {
		t.Fatalf("reclaim = %q accepted=%v", reclaimed, accepted)
	}
}
