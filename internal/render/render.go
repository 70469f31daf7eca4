// Package render — текст сообщений: анонсы, напоминания, обратный отсчёт.
//
// Весь пользовательский текст собирается здесь, процессоры оперируют
// готовыми строками. Язык сообщений — английский, как в каналах
// эскадрилий.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/sortie/internal/domain"
)

// maxThreadName — лимит платформы на длину названия треда.
const maxThreadName = 100

// TimeUntil возвращает человекочитаемое время до start с точностью
// день/час/минута: "2 days and 3 hours", "45 minutes", "now" для
// уже наступившего времени. Положительный остаток меньше минуты
// округляется вверх до "1 minute".
func TimeUntil(now, start time.Time) string {
	d := start.Sub(now)
	if d <= 0 {
		return "now"
	}

	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		if hours > 0 {
			return plural(days, "day") + " and " + plural(hours, "hour")
		}
		return plural(days, "day")
	case hours > 0:
		if minutes > 0 {
			return plural(hours, "hour") + " and " + plural(minutes, "minute")
		}
		return plural(hours, "hour")
	case minutes > 0:
		return plural(minutes, "minute")
	default:
		return "1 minute"
	}
}

// Announcement собирает текст анонса события: название, описание,
// времена в поясе события, строка отсчёта и сводка посещаемости.
// Тот же текст используется живыми правками обратного отсчёта.
func Announcement(event *domain.Event, counts domain.AttendanceCounts, fallbackTZ string, now time.Time) string {
	loc := event.Timezone(fallbackTZ)

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", event.Name)
	if event.Description != "" {
		b.WriteString(event.Description)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Starts: %s\n", event.StartAt.In(loc).Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Ends: %s\n", event.EndAt.In(loc).Format("Mon, 02 Jan 2006 15:04 MST"))
	b.WriteString(countdownLine(now, event.StartAt))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Attendance: %d accepted, %d tentative, %d declined.",
		counts.Accepted, counts.Tentative, counts.Declined)
	return b.String()
}

// ReminderBody собирает тело напоминания без списка упоминаний:
// его процессор добавляет отдельно для каждого направления.
func ReminderBody(event *domain.Event, now time.Time) string {
	until := TimeUntil(now, event.StartAt)
	if until == "now" {
		return fmt.Sprintf("Reminder: **%s** is starting now!", event.Name)
	}
	return fmt.Sprintf("Reminder: **%s** starts in %s.", event.Name, until)
}

// Mentions собирает строку упоминаний для списка identity.
func Mentions(identities []string) string {
	if len(identities) == 0 {
		return ""
	}
	parts := make([]string, len(identities))
	for i, id := range identities {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, " ")
}

// ThreadName возвращает название треда события, усечённое до лимита
// платформы.
func ThreadName(event *domain.Event) string {
	name := event.Name
	if len(name) > maxThreadName {
		runes := []rune(name)
		if len(runes) > maxThreadName {
			name = string(runes[:maxThreadName-1]) + "…"
		}
	}
	return name
}

func countdownLine(now, start time.Time) string {
	until := TimeUntil(now, start)
	if until == "now" {
		return "Started."
	}
	return fmt.Sprintf("Starts in %s.", until)
}

// plural возвращает "1 day" / "2 days".
func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
