package domain

import "time"

// Response — ответ участника на приглашение.
type Response string

const (
	// ResponseAccepted — участие подтверждено.
	ResponseAccepted Response = "ACCEPTED"

	// ResponseTentative — участие под вопросом.
	ResponseTentative Response = "TENTATIVE"

	// ResponseDeclined — участие отклонено.
	ResponseDeclined Response = "DECLINED"

	// ResponseNone — участник не ответил. В хранилище таких записей
	// нет: резолвер получателей синтезирует их из состава эскадрилий.
	ResponseNone Response = "NO_RESPONSE"
)

// String возвращает строковое представление Response.
func (r Response) String() string {
	return string(r)
}

// ParseResponse парсит строку в Response.
func ParseResponse(s string) Response {
	switch s {
	case "ACCEPTED":
		return ResponseAccepted
	case "TENTATIVE":
		return ResponseTentative
	case "DECLINED":
		return ResponseDeclined
	default:
		return ResponseNone
	}
}

// AttendanceRecord — отметка участника на сообщении-анонсе.
// Участник может переотмечаться сколько угодно раз и на любом из
// анонсов события; актуальным считается последний по UpdatedAt ответ.
type AttendanceRecord struct {
	// ID — уникальный идентификатор записи.
	ID int64 `json:"id"`

	// MessageID — сообщение-анонс, на котором сделана отметка.
	MessageID string `json:"message_id"`

	// Identity — платформенный идентификатор участника.
	Identity string `json:"identity"`

	// DisplayName — отображаемое имя на момент отметки.
	DisplayName string `json:"display_name"`

	// Response — выбранный ответ.
	Response Response `json:"response"`

	// UpdatedAt — время последнего изменения отметки.
	UpdatedAt time.Time `json:"updated_at"`
}

// LatestByIdentity оставляет по одной записи на identity — самую
// свежую. Вход обязан быть упорядочен по updated_at по убыванию
// (контракт хранилища); сохраняется порядок первых вхождений.
func LatestByIdentity(records []AttendanceRecord) []AttendanceRecord {
	seen := make(map[string]bool, len(records))
	var latest []AttendanceRecord
	for _, rec := range records {
		if seen[rec.Identity] {
			continue
		}
		seen[rec.Identity] = true
		latest = append(latest, rec)
	}
	return latest
}

// AttendanceCounts — суммарная посещаемость события по группам ответов.
type AttendanceCounts struct {
	Accepted  int `json:"accepted"`
	Tentative int `json:"tentative"`
	Declined  int `json:"declined"`
}

// Total возвращает количество ответивших.
func (c AttendanceCounts) Total() int {
	return c.Accepted + c.Tentative + c.Declined
}

// CountResponses считает посещаемость по списку актуальных записей.
func CountResponses(records []AttendanceRecord) AttendanceCounts {
	var c AttendanceCounts
	for i := range records {
		switch records[i].Response {
		case ResponseAccepted:
			c.Accepted++
		case ResponseTentative:
			c.Tentative++
		case ResponseDeclined:
			c.Declined++
		}
	}
	return c
}
