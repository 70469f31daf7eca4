package remind

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/lock"
	"github.com/shaiso/sortie/internal/platform"
	"github.com/shaiso/sortie/internal/recipients"
	"github.com/shaiso/sortie/internal/repo"
)

// --- Фейковые хранилища ---

type fakeReminders struct {
	rows []domain.Reminder
}

func (s *fakeReminders) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	var due []domain.Reminder
	for i := range s.rows {
		if s.rows[i].IsDue(now) {
			due = append(due, s.rows[i])
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeReminders) MarkSent(_ context.Context, id uuid.UUID) error {
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].Sent = true
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *fakeReminders) sent(id uuid.UUID) bool {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return s.rows[i].Sent
		}
	}
	return false
}

// fakeEventStore держит события вместе с публикациями. SetThread и
// AddReminderMessageID пишут в канонические строки, GetByID отдаёт
// копию — как чтение из настоящего хранилища.
type fakeEventStore struct {
	events map[uuid.UUID]*domain.Event
}

func (s *fakeEventStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, ok := s.events[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *ev
	copied.Publications = append([]domain.Publication(nil), ev.Publications...)
	for i := range copied.Publications {
		copied.Publications[i].ReminderMessageIDs = append([]string(nil), ev.Publications[i].ReminderMessageIDs...)
	}
	return &copied, nil
}

func (s *fakeEventStore) SetThread(_ context.Context, id uuid.UUID, state domain.ThreadState) error {
	for _, ev := range s.events {
		for i := range ev.Publications {
			if ev.Publications[i].ID == id {
				ev.Publications[i].Thread = state
				return nil
			}
		}
	}
	return repo.ErrNotFound
}

func (s *fakeEventStore) AddReminderMessageID(_ context.Context, id uuid.UUID, messageID string) error {
	for _, ev := range s.events {
		for i := range ev.Publications {
			if ev.Publications[i].ID == id {
				ev.Publications[i].ReminderMessageIDs = append(ev.Publications[i].ReminderMessageIDs, messageID)
				return nil
			}
		}
	}
	return repo.ErrNotFound
}

// publication возвращает каноническое состояние публикации.
func (s *fakeEventStore) publication(id uuid.UUID) *domain.Publication {
	for _, ev := range s.events {
		for i := range ev.Publications {
			if ev.Publications[i].ID == id {
				copied := ev.Publications[i]
				return &copied
			}
		}
	}
	return nil
}

type fakeSquadrons struct {
	byID map[uuid.UUID]domain.Squadron
}

func (s *fakeSquadrons) ListByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Squadron, error) {
	var out []domain.Squadron
	for _, id := range ids {
		if sq, ok := s.byID[id]; ok {
			out = append(out, sq)
		}
	}
	return out, nil
}

type fakeResolver struct {
	result  *recipients.Result
	err     error
	calls   int
	filters []domain.Response
}

func (f *fakeResolver) Resolve(_ context.Context, _ *domain.Event, filters []domain.Response) (*recipients.Result, error) {
	f.calls++
	f.filters = filters
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &recipients.Result{}, nil
	}
	return f.result, nil
}

// --- Сборка процессора ---

type fixture struct {
	reminders *fakeReminders
	store     *fakeEventStore
	squadrons *fakeSquadrons
	resolver  *fakeResolver
	client    *platform.MemoryClient
	locker    *lock.MemoryLocker
	proc      *Processor
}

func newFixture() *fixture {
	f := &fixture{
		reminders: &fakeReminders{},
		store:     &fakeEventStore{events: make(map[uuid.UUID]*domain.Event)},
		squadrons: &fakeSquadrons{byID: make(map[uuid.UUID]domain.Squadron)},
		resolver:  &fakeResolver{},
		client:    platform.NewMemoryClient(),
		locker:    lock.NewMemoryLocker(),
	}
	f.proc = New(Config{
		Reminders:    f.reminders,
		Events:       f.store,
		Publications: f.store,
		Squadrons:    f.squadrons,
		Resolver:     f.resolver,
		Client:       f.client,
		Locker:       f.locker,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *fixture) addSquadron(name, serverID, channelID string, allowThreads bool) domain.Squadron {
	sq := domain.Squadron{
		ID:           uuid.New(),
		Name:         name,
		ServerID:     serverID,
		ChannelID:    channelID,
		AllowThreads: allowThreads,
		Active:       true,
	}
	f.squadrons.byID[sq.ID] = sq
	return sq
}

func (f *fixture) addEvent(name string, start time.Time, squadrons ...domain.Squadron) *domain.Event {
	ids := make([]uuid.UUID, len(squadrons))
	for i := range squadrons {
		ids[i] = squadrons[i].ID
	}
	ev := &domain.Event{
		ID:          uuid.New(),
		Name:        name,
		StartAt:     start,
		EndAt:       start.Add(2 * time.Hour),
		Status:      domain.StatusScheduled,
		SquadronIDs: ids,
	}
	f.store.events[ev.ID] = ev
	return ev
}

// publishTo отправляет анонс в канал эскадрильи и вешает публикацию
// на событие, как это сделал бы процессор публикаций.
func (f *fixture) publishTo(t *testing.T, ev *domain.Event, sq domain.Squadron) *domain.Publication {
	t.Helper()
	msgID, err := f.client.SendMessage(context.Background(), sq.ServerID, sq.ChannelID, platform.Message{Content: "announcement"})
	if err != nil {
		t.Fatalf("failed to seed announcement: %v", err)
	}
	stored := f.store.events[ev.ID]
	stored.Publications = append(stored.Publications, domain.Publication{
		ID:         uuid.New(),
		EventID:    ev.ID,
		ServerID:   sq.ServerID,
		ChannelID:  sq.ChannelID,
		SquadronID: sq.ID,
		MessageID:  msgID,
		Thread:     domain.NoThread(),
	})
	return &stored.Publications[len(stored.Publications)-1]
}

func (f *fixture) addReminder(ev *domain.Event) domain.Reminder {
	rem := domain.Reminder{
		ID:               uuid.New(),
		EventID:          ev.ID,
		Kind:             domain.ReminderFirst,
		ScheduledAt:      time.Now().Add(-time.Minute),
		NotifyAccepted:   true,
		NotifyNoResponse: true,
	}
	f.reminders.rows = append(f.reminders.rows, rem)
	return rem
}

func recipient(identity string, squadrons ...uuid.UUID) recipients.Recipient {
	return recipients.Recipient{
		Identity:    identity,
		DisplayName: identity,
		Response:    domain.ResponseAccepted,
		SquadronIDs: squadrons,
	}
}

// --- Tick Tests ---

func TestProcessor_Tick_SendsToChannel(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	pub := f.publishTo(t, ev, alpha)
	rem := f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("b", alpha.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := f.client.MessagesIn("chan-alpha")
	if len(msgs) != 2 {
		t.Fatalf("expected announcement and reminder, got %d messages", len(msgs))
	}
	reminder := msgs[1]
	if !strings.Contains(reminder.Content, "Ops Night") {
		t.Errorf("reminder should mention event name, got %q", reminder.Content)
	}
	if !strings.Contains(reminder.Content, "<@a>") || !strings.Contains(reminder.Content, "<@b>") {
		t.Errorf("reminder should mention both recipients, got %q", reminder.Content)
	}

	// Отправленное в канал напоминание записано для зачистки
	stored := f.store.publication(pub.ID)
	if len(stored.ReminderMessageIDs) != 1 || stored.ReminderMessageIDs[0] != reminder.ID {
		t.Errorf("reminder message should be recorded on publication, got %v", stored.ReminderMessageIDs)
	}
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder should be marked sent")
	}
}

func TestProcessor_Tick_MentionsPerDestination(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	bravo := f.addSquadron("Bravo", "srv-1", "chan-bravo", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, bravo)
	f.publishTo(t, ev, alpha)
	f.publishTo(t, ev, bravo)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("b", bravo.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Каждое направление пингует только своих
	alphaMsgs := f.client.MessagesIn("chan-alpha")
	if len(alphaMsgs) != 2 {
		t.Fatalf("expected 2 messages in chan-alpha, got %d", len(alphaMsgs))
	}
	if !strings.Contains(alphaMsgs[1].Content, "<@a>") || strings.Contains(alphaMsgs[1].Content, "<@b>") {
		t.Errorf("alpha reminder should mention only a, got %q", alphaMsgs[1].Content)
	}

	bravoMsgs := f.client.MessagesIn("chan-bravo")
	if len(bravoMsgs) != 2 {
		t.Fatalf("expected 2 messages in chan-bravo, got %d", len(bravoMsgs))
	}
	if !strings.Contains(bravoMsgs[1].Content, "<@b>") || strings.Contains(bravoMsgs[1].Content, "<@a>") {
		t.Errorf("bravo reminder should mention only b, got %q", bravoMsgs[1].Content)
	}
}

func TestProcessor_Tick_SharedChannelAggregates(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-shared", false)
	bravo := f.addSquadron("Bravo", "srv-1", "chan-shared", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, bravo)
	f.publishTo(t, ev, alpha)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("b", bravo.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Общий канал — одна рассылка с объединёнными упоминаниями
	msgs := f.client.MessagesIn("chan-shared")
	if len(msgs) != 2 {
		t.Fatalf("expected announcement and one reminder, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, "<@a>") || !strings.Contains(msgs[1].Content, "<@b>") {
		t.Errorf("shared reminder should mention both recipients, got %q", msgs[1].Content)
	}
}

func TestProcessor_Tick_RecipientInTwoDestinations(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	bravo := f.addSquadron("Bravo", "srv-1", "chan-bravo", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, bravo)
	f.publishTo(t, ev, alpha)
	f.publishTo(t, ev, bravo)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID, bravo.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Состоящий в обеих эскадрильях пингуется в обоих каналах
	for _, channel := range []string{"chan-alpha", "chan-bravo"} {
		msgs := f.client.MessagesIn(channel)
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages in %s, got %d", channel, len(msgs))
		}
		if !strings.Contains(msgs[1].Content, "<@a>") {
			t.Errorf("reminder in %s should mention a, got %q", channel, msgs[1].Content)
		}
	}
}

// --- Thread Tests ---

func TestProcessor_Tick_CreatesThread(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	ev.Settings.UseThreads = true
	pub := f.publishTo(t, ev, alpha)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.store.publication(pub.ID)
	threadID, ok := stored.Thread.Created()
	if !ok {
		t.Fatal("publication should carry the created thread")
	}
	if !f.client.HasThread(threadID) {
		t.Fatalf("thread %s should exist", threadID)
	}

	// Напоминание ушло в тред, канал остался с одним анонсом
	inThread := f.client.ThreadMessages(threadID)
	if len(inThread) != 1 {
		t.Fatalf("expected 1 message in thread, got %d", len(inThread))
	}
	if !strings.Contains(inThread[0].Content, "<@a>") {
		t.Errorf("thread reminder should mention recipient, got %q", inThread[0].Content)
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 1 {
		t.Errorf("channel should keep only the announcement, got %d messages", got)
	}

	// Сообщения треда не записываются: их зачистит удаление треда
	if len(stored.ReminderMessageIDs) != 0 {
		t.Errorf("thread posts should not be recorded, got %v", stored.ReminderMessageIDs)
	}
}

func TestProcessor_Tick_ReusesExistingThread(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	bravo := f.addSquadron("Bravo", "srv-1", "chan-bravo", true)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, bravo)
	ev.Settings.UseThreads = true
	pubA := f.publishTo(t, ev, alpha)
	pubB := f.publishTo(t, ev, bravo)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("b", bravo.ID),
	}}

	// Тред уже есть у первой публикации; попытка создать второй
	// провалила бы тест
	threadID, err := f.client.CreateThread(context.Background(), alpha.ChannelID, pubA.MessageID, "existing")
	if err != nil {
		t.Fatalf("failed to seed thread: %v", err)
	}
	f.store.events[ev.ID].Publications[0].Thread = domain.ThreadCreated(threadID)
	f.client.FailWith(platform.OpCreateThread, alpha.ChannelID, platform.ErrForbidden)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Обе рассылки в одном треде
	inThread := f.client.ThreadMessages(threadID)
	if len(inThread) != 2 {
		t.Fatalf("expected 2 messages in thread, got %d", len(inThread))
	}

	// threadId пропагирован во вторую публикацию
	if id, ok := f.store.publication(pubB.ID).Thread.Created(); !ok || id != threadID {
		t.Errorf("thread id should propagate to second publication, got %v, %v", id, ok)
	}
}

func TestProcessor_Tick_ThreadNeedsEverySquadron(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	bravo := f.addSquadron("Bravo", "srv-1", "chan-bravo", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, bravo)
	ev.Settings.UseThreads = true
	pubA := f.publishTo(t, ev, alpha)
	f.publishTo(t, ev, bravo)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("b", bravo.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Одна эскадрилья против — тред не создаётся, но отказ не sticky
	stored := f.store.publication(pubA.ID)
	if !stored.Thread.None() {
		t.Errorf("thread state should stay empty, got %+v", stored.Thread)
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 2 {
		t.Errorf("reminder should fall back to channel, got %d messages", got)
	}
	if got := len(f.client.MessagesIn("chan-bravo")); got != 2 {
		t.Errorf("reminder should fall back to channel, got %d messages", got)
	}
}

func TestProcessor_Tick_ThreadFailureIsSticky(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	ev.Settings.UseThreads = true
	pub := f.publishTo(t, ev, alpha)
	first := f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}
	f.client.FailWith(platform.OpCreateThread, alpha.ChannelID, platform.ErrForbidden)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Отказ платформы: напоминание ушло в канал, отказ зафиксирован
	if got := len(f.client.MessagesIn("chan-alpha")); got != 2 {
		t.Fatalf("reminder should fall back to channel, got %d messages", got)
	}
	if !f.store.publication(pub.ID).Thread.Disabled() {
		t.Error("thread state should be disabled after platform refusal")
	}
	if !f.reminders.sent(first.ID) {
		t.Error("reminder should be marked sent despite thread failure")
	}

	// Второе напоминание не пробует создать тред заново
	f.client.FailWith(platform.OpCreateThread, alpha.ChannelID, nil)
	f.addReminder(ev)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.store.publication(pub.ID).Thread.Disabled() {
		t.Error("disabled state should survive the second reminder")
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 3 {
		t.Errorf("second reminder should go to channel, got %d messages", got)
	}
}

func TestProcessor_Tick_DisabledThreadRecovers(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	ev.Settings.UseThreads = true
	pub := f.publishTo(t, ev, alpha)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}

	// Отказ записан, но тред у анонса появился помимо нас
	f.store.events[ev.ID].Publications[0].Thread = domain.ThreadDisabled()
	threadID, err := f.client.CreateThread(context.Background(), alpha.ChannelID, pub.MessageID, "manual")
	if err != nil {
		t.Fatalf("failed to seed thread: %v", err)
	}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id, ok := f.store.publication(pub.ID).Thread.Created(); !ok || id != threadID {
		t.Errorf("publication should recover the existing thread, got %v, %v", id, ok)
	}
	if got := len(f.client.ThreadMessages(threadID)); got != 1 {
		t.Errorf("reminder should land in the recovered thread, got %d messages", got)
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 1 {
		t.Errorf("channel should keep only the announcement, got %d messages", got)
	}
}

func TestProcessor_Tick_ThreadRaceFetchesExisting(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	ev.Settings.UseThreads = true
	pub := f.publishTo(t, ev, alpha)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}

	// Тред у анонса уже есть, но хранилище о нём не знает:
	// создание вернёт ErrThreadExists, и процессор заберёт существующий
	threadID, err := f.client.CreateThread(context.Background(), alpha.ChannelID, pub.MessageID, "raced")
	if err != nil {
		t.Fatalf("failed to seed thread: %v", err)
	}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id, ok := f.store.publication(pub.ID).Thread.Created(); !ok || id != threadID {
		t.Errorf("publication should adopt the existing thread, got %v, %v", id, ok)
	}
	if got := len(f.client.ThreadMessages(threadID)); got != 1 {
		t.Errorf("reminder should land in the existing thread, got %d messages", got)
	}
}

// --- Fallback and Retire Tests ---

func TestProcessor_Tick_OrphansFallBackToFirstPublication(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ghost := f.addSquadron("Ghost", "", "", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, ghost)
	pub := f.publishTo(t, ev, alpha)
	f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("c", ghost.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Получатель без направления уходит отдельной рассылкой
	// в канал первого анонса
	msgs := f.client.MessagesIn("chan-alpha")
	if len(msgs) != 3 {
		t.Fatalf("expected announcement, reminder and orphan dispatch, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, "<@a>") || strings.Contains(msgs[1].Content, "<@c>") {
		t.Errorf("destination reminder should mention only a, got %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[2].Content, "<@c>") || strings.Contains(msgs[2].Content, "<@a>") {
		t.Errorf("orphan dispatch should mention only c, got %q", msgs[2].Content)
	}

	if got := len(f.store.publication(pub.ID).ReminderMessageIDs); got != 2 {
		t.Errorf("both reminder messages should be recorded, got %d", got)
	}
}

func TestProcessor_Tick_MissingEventRetires(t *testing.T) {
	f := newFixture()
	rem := domain.Reminder{
		ID:             uuid.New(),
		EventID:        uuid.New(),
		Kind:           domain.ReminderFirst,
		ScheduledAt:    time.Now().Add(-time.Minute),
		NotifyAccepted: true,
	}
	f.reminders.rows = append(f.reminders.rows, rem)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Событие удалено — напоминание гасится и не повторяется
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder for missing event should be marked sent")
	}
	if f.resolver.calls != 0 {
		t.Errorf("resolver should not be called, got %d calls", f.resolver.calls)
	}
}

func TestProcessor_Tick_InactiveEventRetires(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	ev.Status = domain.StatusCancelled
	f.publishTo(t, ev, alpha)
	rem := f.addReminder(ev)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.reminders.sent(rem.ID) {
		t.Error("reminder for cancelled event should be marked sent")
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 1 {
		t.Errorf("no reminder should be dispatched, got %d messages", got)
	}
}

func TestProcessor_Tick_NoRecipientsRetires(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", true)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	ev.Settings.UseThreads = true
	pub := f.publishTo(t, ev, alpha)
	rem := f.addReminder(ev)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Пинговать некого: ни рассылки, ни треда
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder without recipients should be marked sent")
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 1 {
		t.Errorf("channel should keep only the announcement, got %d messages", got)
	}
	if !f.store.publication(pub.ID).Thread.None() {
		t.Error("no thread should be created for an empty reminder")
	}
}

func TestProcessor_Tick_NoNotifyGroupsRetires(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	f.publishTo(t, ev, alpha)
	rem := domain.Reminder{
		ID:          uuid.New(),
		EventID:     ev.ID,
		Kind:        domain.ReminderFirst,
		ScheduledAt: time.Now().Add(-time.Minute),
	}
	f.reminders.rows = append(f.reminders.rows, rem)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.reminders.sent(rem.ID) {
		t.Error("reminder with no notify groups should be marked sent")
	}
	if f.resolver.calls != 0 {
		t.Errorf("resolver should not be called, got %d calls", f.resolver.calls)
	}
}

// --- Failure Tests ---

func TestProcessor_Tick_DispatchFailureStillMarksSent(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	bravo := f.addSquadron("Bravo", "srv-1", "chan-bravo", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha, bravo)
	f.publishTo(t, ev, alpha)
	f.publishTo(t, ev, bravo)
	rem := f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
		recipient("b", bravo.ID),
	}}
	f.client.FailWith(platform.OpSend, "chan-bravo", platform.ErrRateLimited)

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("dispatch failures should not surface, got %v", err)
	}

	// Здоровое направление доставлено, строка погашена навсегда
	if got := len(f.client.MessagesIn("chan-alpha")); got != 2 {
		t.Errorf("healthy destination should receive the reminder, got %d messages", got)
	}
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder should be marked sent despite dispatch failure")
	}
}

func TestProcessor_Tick_ResolverErrorKeepsRowDue(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	f.publishTo(t, ev, alpha)
	rem := f.addReminder(ev)
	f.resolver.err = errors.New("attendance store down")

	if err := f.proc.Tick(context.Background()); err == nil {
		t.Fatal("expected error from failed resolution")
	}
	if f.reminders.sent(rem.ID) {
		t.Error("reminder should stay due after resolver failure")
	}

	// Следующий тик после восстановления доводит рассылку
	f.resolver.err = nil
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder should be sent after recovery")
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 2 {
		t.Errorf("expected delivered reminder, got %d messages", got)
	}
}

// --- Lock Tests ---

func TestProcessor_Tick_LockedReminderSkipped(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	f.publishTo(t, ev, alpha)
	rem := f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}

	lease, err := f.locker.TryAcquire(context.Background(), lock.KeyFor(rem.ID))
	if err != nil {
		t.Fatalf("failed to hold row lock: %v", err)
	}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.reminders.sent(rem.ID) {
		t.Error("locked reminder should be skipped, not processed")
	}
	if got := len(f.client.MessagesIn("chan-alpha")); got != 1 {
		t.Errorf("nothing should be dispatched, got %d messages", got)
	}

	// После освобождения строки следующий тик её обрабатывает
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder should be processed after lock release")
	}
}

func TestProcessor_Tick_LockedEventSkipped(t *testing.T) {
	f := newFixture()
	alpha := f.addSquadron("Alpha", "srv-1", "chan-alpha", false)
	ev := f.addEvent("Ops Night", time.Now().Add(2*time.Hour), alpha)
	f.publishTo(t, ev, alpha)
	rem := f.addReminder(ev)
	f.resolver.result = &recipients.Result{Recipients: []recipients.Recipient{
		recipient("a", alpha.ID),
	}}

	lease, err := f.locker.TryAcquire(context.Background(), lock.KeyFor(ev.ID))
	if err != nil {
		t.Fatalf("failed to hold event lock: %v", err)
	}

	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.reminders.sent(rem.ID) {
		t.Error("reminder should be skipped while event is held")
	}

	// Блокировка строки не должна остаться висеть после скипа
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if err := f.proc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.reminders.sent(rem.ID) {
		t.Error("reminder should be processed after event release")
	}
}
