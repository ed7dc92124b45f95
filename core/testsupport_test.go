package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memLeadStore struct {
	mu    sync.Mutex
	leads map[string]Lead
}

func newMemLeadStore() *memLeadStore {
	return &memLeadStore{leads: map[string]Lead{}}
}

func (s *memLeadStore) Create(_ context.Context, lead Lead) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *memLeadStore) Get(_ context.Context, leadID string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return Lead{}, fmt.Errorf("store: lead %s not found", leadID)
	}
	return lead, nil
}

func (s *memLeadStore) Close(_ context.Context, leadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return false, fmt.Errorf("store: lead %s not found", leadID)
	}
	if lead.IsClosed {
		return false, nil
	}
	lead.IsClosed = true
	s.leads[leadID] = lead
	return true, nil
}

type memProviderStore struct {
	mu        sync.Mutex
	providers map[string]Provider
	unlocks   *memUnlockStore
}

func newMemProviderStore(unlocks *memUnlockStore) *memProviderStore {
	return &memProviderStore{providers: map[string]Provider{}, unlocks: unlocks}
}

func (s *memProviderStore) add(provider Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[provider.ID] = provider
}

func (s *memProviderStore) Get(_ context.Context, providerID string) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	provider, ok := s.providers[providerID]
	if !ok {
		return Provider{}, fmt.Errorf("store: provider %s not found", providerID)
	}
	return provider, nil
}

func (s *memProviderStore) GetByPhone(_ context.Context, phone string) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range PhoneVariants(phone) {
		for _, provider := range s.providers {
			if provider.Phone == candidate {
				return provider, nil
			}
		}
	}
	return Provider{}, fmt.Errorf("store: provider with phone %s not found", phone)
}

func (s *memProviderStore) ListRequeueCandidates(ctx context.Context, leadID string) ([]Provider, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	candidates := make([]Provider, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, s.providers[id])
	}
	s.mu.Unlock()

	eligible := make([]Provider, 0, len(candidates))
	for _, provider := range candidates {
		if provider.SMSOptedOut {
			continue
		}
		if s.unlocks != nil {
			if _, err := s.unlocks.GetByPair(ctx, leadID, provider.ID); err == nil {
				continue
			}
		}
		eligible = append(eligible, provider)
	}
	return eligible, nil
}

type memUnlockStore struct {
	mu      sync.Mutex
	unlocks map[string]Unlock
}

func newMemUnlockStore() *memUnlockStore {
	return &memUnlockStore{unlocks: map[string]Unlock{}}
}

func (s *memUnlockStore) CreateIfAbsent(_ context.Context, unlock Unlock) (CreateUnlockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.unlocks {
		if existing.LeadID == unlock.LeadID && existing.ProviderID == unlock.ProviderID {
			return CreateUnlockResult{Unlock: existing}, nil
		}
	}
	s.unlocks[unlock.ID] = unlock
	return CreateUnlockResult{Unlock: unlock, Created: true}, nil
}

func (s *memUnlockStore) Get(_ context.Context, unlockID string) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, ok := s.unlocks[unlockID]
	if !ok {
		return Unlock{}, fmt.Errorf("store: unlock %s not found", unlockID)
	}
	return unlock, nil
}

func (s *memUnlockStore) GetByPair(_ context.Context, leadID string, providerID string) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, unlock := range s.unlocks {
		if unlock.LeadID == leadID && unlock.ProviderID == providerID {
			return unlock, nil
		}
	}
	return Unlock{}, fmt.Errorf("store: unlock for lead %s provider %s not found", leadID, providerID)
}

func (s *memUnlockStore) GetByCheckoutSession(_ context.Context, sessionID string) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, unlock := range s.unlocks {
		if unlock.CheckoutSessionID == sessionID {
			return unlock, nil
		}
	}
	return Unlock{}, fmt.Errorf("store: unlock for session %s not found", sessionID)
}

func (s *memUnlockStore) FindOpenByProvider(_ context.Context, providerID string) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Unlock
	for id := range s.unlocks {
		unlock := s.unlocks[id]
		if unlock.ProviderID != providerID || unlock.Status.Settled() || unlock.Status == UnlockStatusPending {
			continue
		}
		if found == nil || unlock.CreatedAt.After(found.CreatedAt) {
			copied := unlock
			found = &copied
		}
	}
	if found == nil {
		return Unlock{}, fmt.Errorf("store: no open unlock for provider %s not found", providerID)
	}
	return *found, nil
}

func (s *memUnlockStore) Transition(_ context.Context, unlockID string, from UnlockStatus, to UnlockStatus, set UnlockMutation) (Unlock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, ok := s.unlocks[unlockID]
	if !ok {
		return Unlock{}, false, fmt.Errorf("store: unlock %s not found", unlockID)
	}
	if unlock.Status != from {
		return unlock, false, nil
	}
	unlock.Status = to
	if set.PaymentLinkURL != nil {
		unlock.PaymentLinkURL = *set.PaymentLinkURL
	}
	if set.CheckoutSessionID != nil {
		unlock.CheckoutSessionID = *set.CheckoutSessionID
	}
	if set.TTLExpiresAt != nil {
		unlock.TTLExpiresAt = set.TTLExpiresAt
	}
	if set.TeaserSentAt != nil {
		unlock.TeaserSentAt = set.TeaserSentAt
	}
	if set.YReceivedAt != nil {
		unlock.YReceivedAt = set.YReceivedAt
	}
	if set.PaymentLinkSentAt != nil {
		unlock.PaymentLinkSentAt = set.PaymentLinkSentAt
	}
	if set.PaidAt != nil {
		unlock.PaidAt = set.PaidAt
	}
	if set.UnlockedAt != nil {
		unlock.UnlockedAt = set.UnlockedAt
	}
	if set.RevealedAt != nil {
		unlock.RevealedAt = set.RevealedAt
	}
	s.unlocks[unlockID] = unlock
	return unlock, true, nil
}

type memFollowUpStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]ClientFollowUp
}

func newMemFollowUpStore() *memFollowUpStore {
	return &memFollowUpStore{rows: map[int64]ClientFollowUp{}}
}

func (s *memFollowUpStore) CreateIfAbsent(_ context.Context, followUp ClientFollowUp) (CreateFollowUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.LeadID == followUp.LeadID && existing.ProviderID == followUp.ProviderID {
			return CreateFollowUpResult{FollowUp: existing}, nil
		}
	}
	s.nextID++
	followUp.ID = s.nextID
	s.rows[followUp.ID] = followUp
	return CreateFollowUpResult{FollowUp: followUp, Created: true}, nil
}

func (s *memFollowUpStore) ListDue(_ context.Context, now time.Time, limit int) ([]ClientFollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]ClientFollowUp, 0)
	for _, row := range s.rows {
		if row.Status == FollowUpStatusScheduled && !row.SendAfter.After(now) {
			due = append(due, row)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memFollowUpStore) Transition(_ context.Context, id int64, from FollowUpStatus, to FollowUpStatus, set FollowUpMutation) (ClientFollowUp, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ClientFollowUp{}, false, fmt.Errorf("store: follow-up %d not found", id)
	}
	if row.Status != from {
		return row, false, nil
	}
	row.Status = to
	if set.SentAt != nil {
		row.SentAt = set.SentAt
	}
	if set.RepliedAt != nil {
		row.RepliedAt = set.RepliedAt
	}
	if set.RecoveryOfferedAt != nil {
		row.RecoveryOfferedAt = set.RecoveryOfferedAt
	}
	s.rows[id] = row
	return row, true, nil
}

func (s *memFollowUpStore) FindOpenByPhones(_ context.Context, phones []string) (ClientFollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *ClientFollowUp
	for id := range s.rows {
		row := s.rows[id]
		if row.Status != FollowUpStatusSent && row.Status != FollowUpStatusRecoveryOffered {
			continue
		}
		for _, phone := range phones {
			if row.ClientPhone == phone {
				if found == nil || row.ID > found.ID {
					copied := row
					found = &copied
				}
			}
		}
	}
	if found == nil {
		return ClientFollowUp{}, fmt.Errorf("store: follow-up not found")
	}
	return *found, nil
}

func (s *memFollowUpStore) ExpireStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, row := range s.rows {
		if row.Status != FollowUpStatusSent && row.Status != FollowUpStatusNoReplied && row.Status != FollowUpStatusRecoveryOffered {
			continue
		}
		if row.SentAt == nil || !row.SentAt.Before(cutoff) {
			continue
		}
		row.Status = FollowUpStatusExpired
		s.rows[id] = row
		count++
	}
	return count, nil
}

func (s *memFollowUpStore) get(id int64) ClientFollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type memReminderStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]ProviderReminder
}

func newMemReminderStore() *memReminderStore {
	return &memReminderStore{rows: map[int64]ProviderReminder{}}
}

func (s *memReminderStore) CreateIfAbsent(_ context.Context, reminder ProviderReminder) (CreateReminderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.LeadID == reminder.LeadID && existing.ProviderID == reminder.ProviderID {
			return CreateReminderResult{Reminder: existing}, nil
		}
	}
	s.nextID++
	reminder.ID = s.nextID
	s.rows[reminder.ID] = reminder
	return CreateReminderResult{Reminder: reminder, Created: true}, nil
}

func (s *memReminderStore) ListDue(_ context.Context, now time.Time, limit int) ([]ProviderReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]ProviderReminder, 0)
	for _, row := range s.rows {
		if row.Status == ReminderStatusScheduled && !row.SendAfter.After(now) {
			due = append(due, row)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memReminderStore) Transition(_ context.Context, id int64, from ReminderStatus, to ReminderStatus, sentAt *time.Time) (ProviderReminder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ProviderReminder{}, false, fmt.Errorf("store: reminder %d not found", id)
	}
	if row.Status != from {
		return row, false, nil
	}
	row.Status = to
	if sentAt != nil {
		row.SentAt = sentAt
	}
	s.rows[id] = row
	return row, true, nil
}

func (s *memReminderStore) get(id int64) ProviderReminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type memCheckinStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]ContactFollowUp
}

func newMemCheckinStore() *memCheckinStore {
	return &memCheckinStore{rows: map[int64]ContactFollowUp{}}
}

func (s *memCheckinStore) CreateIfAbsent(_ context.Context, checkin ContactFollowUp) (CreateCheckinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.LeadID == checkin.LeadID && existing.ProviderID == checkin.ProviderID {
			return CreateCheckinResult{Checkin: existing}, nil
		}
	}
	s.nextID++
	checkin.ID = s.nextID
	s.rows[checkin.ID] = checkin
	return CreateCheckinResult{Checkin: checkin, Created: true}, nil
}

func (s *memCheckinStore) ListDue(_ context.Context, now time.Time, limit int) ([]ContactFollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]ContactFollowUp, 0)
	for _, row := range s.rows {
		if row.Status == CheckinStatusScheduled && !row.SendAfter.After(now) {
			due = append(due, row)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memCheckinStore) Transition(_ context.Context, id int64, from CheckinStatus, to CheckinStatus, respondedAt *time.Time, responseValue *int, sentAt *time.Time) (ContactFollowUp, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ContactFollowUp{}, false, fmt.Errorf("store: check-in %d not found", id)
	}
	if row.Status != from {
		return row, false, nil
	}
	row.Status = to
	if respondedAt != nil {
		row.RespondedAt = respondedAt
	}
	if responseValue != nil {
		row.ResponseValue = responseValue
	}
	if sentAt != nil {
		row.SentAt = sentAt
	}
	s.rows[id] = row
	return row, true, nil
}

func (s *memCheckinStore) FindOpenByProvider(_ context.Context, providerID string) (ContactFollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *ContactFollowUp
	for id := range s.rows {
		row := s.rows[id]
		if row.ProviderID != providerID || row.Status != CheckinStatusSent {
			continue
		}
		if found == nil || row.ID > found.ID {
			copied := row
			found = &copied
		}
	}
	if found == nil {
		return ContactFollowUp{}, fmt.Errorf("store: check-in not found")
	}
	return *found, nil
}

func (s *memCheckinStore) Stats(_ context.Context) (ContactCheckinStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats ContactCheckinStats
	for _, row := range s.rows {
		if row.Status == CheckinStatusScheduled {
			continue
		}
		stats.TotalAsked++
		if row.Status != CheckinStatusResponded || row.ResponseValue == nil {
			continue
		}
		stats.Responded++
		switch *row.ResponseValue {
		case CheckinResponseContacted:
			stats.Contacted++
		case CheckinResponseNotYet:
			stats.NotYet++
		}
	}
	return stats, nil
}

func (s *memCheckinStore) get(id int64) ContactFollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type memAuditLog struct {
	mu      sync.Mutex
	entries []UnlockAuditEntry
}

func (l *memAuditLog) Append(_ context.Context, entry UnlockAuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memAuditLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	actions := make([]string, 0, len(l.entries))
	for _, entry := range l.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type sentMessage struct {
	Phone string
	Text  string
}

type stubSMSSender struct {
	mu       sync.Mutex
	messages []sentMessage
	failFor  map[string]error
}

func newStubSMSSender() *stubSMSSender {
	return &stubSMSSender{failFor: map[string]error{}}
}

func (s *stubSMSSender) Send(_ context.Context, phone string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[phone]; ok && err != nil {
		return err
	}
	s.messages = append(s.messages, sentMessage{Phone: phone, Text: text})
	return nil
}

func (s *stubSMSSender) sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *stubSMSSender) failPhone(phone string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[phone] = err
}

type stubEmailSender struct {
	mu    sync.Mutex
	sent  []string
	errOn error
}

func (s *stubEmailSender) Send(_ context.Context, to string, _ string, _ string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errOn != nil {
		return s.errOn
	}
	s.sent = append(s.sent, to)
	return nil
}

type stubPaymentGateway struct {
	mu       sync.Mutex
	sessions int
	paid     map[string]bool
	failNext error
}

func newStubPaymentGateway() *stubPaymentGateway {
	return &stubPaymentGateway{paid: map[string]bool{}}
}

func (g *stubPaymentGateway) CreateCheckoutSession(_ context.Context, _ Lead, unlock Unlock) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return "", "", err
	}
	g.sessions++
	sessionID := fmt.Sprintf("cs_%s_%d", unlock.ID, g.sessions)
	return "https://pay.example.com/" + sessionID, sessionID, nil
}

func (g *stubPaymentGateway) VerifyPayment(_ context.Context, sessionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paid[sessionID], nil
}

func (g *stubPaymentGateway) markSessionPaid(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[sessionID] = true
}

type serviceHarness struct {
	service   *Service
	clock     *fakeClock
	leads     *memLeadStore
	providers *memProviderStore
	unlocks   *memUnlockStore
	followUps *memFollowUpStore
	reminders *memReminderStore
	checkins  *memCheckinStore
	audit     *memAuditLog
	sms       *stubSMSSender
	email     *stubEmailSender
	gateway   *stubPaymentGateway
}

func newServiceHarness(t interface{ Fatalf(string, ...any) }) *serviceHarness {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	unlocks := newMemUnlockStore()
	harness := &serviceHarness{
		clock:     clock,
		leads:     newMemLeadStore(),
		providers: newMemProviderStore(unlocks),
		unlocks:   unlocks,
		followUps: newMemFollowUpStore(),
		reminders: newMemReminderStore(),
		checkins:  newMemCheckinStore(),
		audit:     &memAuditLog{},
		sms:       newStubSMSSender(),
		email:     &stubEmailSender{},
		gateway:   newStubPaymentGateway(),
	}

	service, err := NewService(Config{
		BaseURL: "https://leads.example.com",
		Token:   TokenConfig{Secret: "test-secret"},
	},
		WithLeadStore(harness.leads),
		WithProviderStore(harness.providers),
		WithUnlockStore(harness.unlocks),
		WithClientFollowUpStore(harness.followUps),
		WithProviderReminderStore(harness.reminders),
		WithContactFollowUpStore(harness.checkins),
		WithAuditLog(harness.audit),
		WithSMSSender(harness.sms),
		WithEmailSender(harness.email),
		WithPaymentGateway(harness.gateway),
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	harness.service = service
	return harness
}

func (h *serviceHarness) seedLead(id string) Lead {
	lead := Lead{
		ID:                  id,
		City:                "Austin",
		ServiceType:         "massage",
		PreferredTimeWindow: "weekday evenings",
		BudgetRange:         "$100-150",
		NotesSnippet:        "deep tissue preferred",
		ClientName:          "Dana",
		ClientPhone:         "+15125550100",
		ClientEmail:         "dana@example.com",
		ExactAddress:        "812 Congress Ave",
		ZipCode:             "78701",
		CreatedAt:           h.clock.Now(),
		ExpiresAt:           h.clock.Now().Add(24 * time.Hour),
	}
	if _, err := h.leads.Create(context.Background(), lead); err != nil {
		panic(err)
	}
	return lead
}

func (h *serviceHarness) seedProvider(id string, phone string) Provider {
	provider := Provider{
		ID:         id,
		Phone:      phone,
		Email:      id + "@example.com",
		Name:       "Provider " + id,
		IsVerified: true,
		CreatedAt:  h.clock.Now(),
	}
	h.providers.add(provider)
	return provider
}
