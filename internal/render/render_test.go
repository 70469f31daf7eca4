package render

import (
	"strings"
	"testing"
	"time"

	"github.com/shaiso/sortie/internal/domain"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestTimeUntil(t *testing.T) {
	cases := []struct {
		delta time.Duration
		want  string
	}{
		{2*24*time.Hour + 3*time.Hour, "2 days and 3 hours"},
		{45 * time.Minute, "45 minutes"},
		{0, "now"},
		{-5 * time.Minute, "now"},
		{24 * time.Hour, "1 day"},
		{25 * time.Hour, "1 day and 1 hour"},
		{2 * time.Hour, "2 hours"},
		{time.Hour + time.Minute, "1 hour and 1 minute"},
		{time.Minute, "1 minute"},
		{30 * time.Second, "1 minute"},
		{3*24*time.Hour + 45*time.Minute, "3 days"},
	}

	for _, c := range cases {
		if got := TimeUntil(base, base.Add(c.delta)); got != c.want {
			t.Errorf("delta %v: expected %q, got %q", c.delta, c.want, got)
		}
	}
}

func TestAnnouncement(t *testing.T) {
	event := &domain.Event{
		Name:        "Operation Clear Field",
		Description: "Night strike training.",
		StartAt:     base.Add(2 * time.Hour),
		EndAt:       base.Add(4 * time.Hour),
		Settings:    domain.EventSettings{Timezone: "UTC"},
	}
	counts := domain.AttendanceCounts{Accepted: 5, Tentative: 2, Declined: 1}

	got := Announcement(event, counts, "UTC", base)

	for _, want := range []string{
		"**Operation Clear Field**",
		"Night strike training.",
		"Starts: Tue, 10 Mar 2026 14:00 UTC",
		"Starts in 2 hours.",
		"Attendance: 5 accepted, 2 tentative, 1 declined.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("announcement should contain %q, got:\n%s", want, got)
		}
	}
}

func TestAnnouncement_StartedEvent(t *testing.T) {
	event := &domain.Event{
		Name:    "Briefing",
		StartAt: base.Add(-time.Hour),
		EndAt:   base.Add(time.Hour),
	}

	got := Announcement(event, domain.AttendanceCounts{}, "UTC", base)
	if !strings.Contains(got, "Started.") {
		t.Errorf("announcement for a started event should say Started, got:\n%s", got)
	}
}

func TestAnnouncement_TimezoneFallback(t *testing.T) {
	event := &domain.Event{
		Name:    "Briefing",
		StartAt: base,
		EndAt:   base.Add(time.Hour),
	}

	// Пояс события не задан — используется общий
	got := Announcement(event, domain.AttendanceCounts{}, "Europe/Moscow", base)
	if !strings.Contains(got, "15:00 MSK") {
		t.Errorf("expected fallback timezone MSK in output:\n%s", got)
	}
}

func TestReminderBody(t *testing.T) {
	event := &domain.Event{Name: "Op Night Owl", StartAt: base.Add(45 * time.Minute)}
	got := ReminderBody(event, base)
	if got != "Reminder: **Op Night Owl** starts in 45 minutes." {
		t.Errorf("unexpected reminder body: %q", got)
	}

	event.StartAt = base.Add(-time.Minute)
	got = ReminderBody(event, base)
	if got != "Reminder: **Op Night Owl** is starting now!" {
		t.Errorf("unexpected started reminder body: %q", got)
	}
}

func TestMentions(t *testing.T) {
	if got := Mentions(nil); got != "" {
		t.Errorf("expected empty mentions, got %q", got)
	}
	if got := Mentions([]string{"100", "200"}); got != "<@100> <@200>" {
		t.Errorf("unexpected mentions: %q", got)
	}
}

func TestThreadName_Truncation(t *testing.T) {
	event := &domain.Event{Name: strings.Repeat("x", 150)}
	got := ThreadName(event)
	if runes := []rune(got); len(runes) != 100 {
		t.Errorf("expected 100 runes, got %d", len(runes))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("truncated name should end with ellipsis")
	}

	event.Name = "Short"
	if got := ThreadName(event); got != "Short" {
		t.Errorf("short name should pass through, got %q", got)
	}
}
