// Package recipients — резолвер получателей напоминаний.
//
// По событию и набору фильтров ответов вычисляет дедуплицированный
// список identity для упоминания: актуальные ответы (последний
// по updatedAt на любом из анонсов события), синтетические записи
// "не ответил" для молчащих участников и финальный фильтр по
// действующему составу.
package recipients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
)

// AttendanceStore — чтение отметок посещаемости.
type AttendanceStore interface {
	// ListForMessages возвращает отметки по сообщениям-анонсам,
	// свежие первыми (updated_at по убыванию).
	ListForMessages(ctx context.Context, messageIDs []string) ([]domain.AttendanceRecord, error)
}

// RosterStore — чтение состава эскадрилий.
type RosterStore interface {
	ListMembers(ctx context.Context, squadronIDs []uuid.UUID) ([]domain.Member, error)
}

// Recipient — получатель напоминания.
type Recipient struct {
	Identity    string
	DisplayName string

	// Response — актуальный ответ; ResponseNone для синтезированных
	// записей "не ответил".
	Response domain.Response

	// SquadronIDs — эскадрильи получателя среди участвующих в событии.
	// По ним получатель привязывается к направлениям рассылки.
	// Пусто, если получатель отвечал, но уже не числится в составе.
	SquadronIDs []uuid.UUID
}

// Result — итог резолюции получателей.
type Result struct {
	// Recipients — финальный список в детерминированном порядке:
	// ответившие (свежие первыми), затем молчащие в порядке состава.
	Recipients []Recipient

	// BeforeActiveFilter и AfterActiveFilter — размер списка до и
	// после фильтра по действующему составу.
	BeforeActiveFilter int
	AfterActiveFilter  int
}

// Resolver — резолвер получателей.
type Resolver struct {
	attendance AttendanceStore
	roster     RosterStore
	logger     *slog.Logger
}

// Config — конфигурация Resolver.
type Config struct {
	Attendance AttendanceStore
	Roster     RosterStore
	Logger     *slog.Logger
}

// New создаёт новый Resolver.
func New(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		attendance: cfg.Attendance,
		roster:     cfg.Roster,
		logger:     logger,
	}
}

// Resolve вычисляет получателей события для набора фильтров ответов.
//
// 1. Читает отметки по всем анонсам события и оставляет по одной
//    на identity — самую свежую (latest-response-wins).
// 2. Отбирает ответивших, чей актуальный ответ попадает в фильтры.
// 3. Для фильтра NO_RESPONSE синтезирует записи: действующие участники
//    эскадрилий события минус все, у кого есть хоть какая-то отметка.
// 4. Оставляет только действующий состав, фиксируя счётчики до/после.
func (r *Resolver) Resolve(ctx context.Context, event *domain.Event, filters []domain.Response) (*Result, error) {
	filterSet := make(map[domain.Response]bool, len(filters))
	for _, f := range filters {
		filterSet[f] = true
	}

	// 1. Актуальный ответ на identity
	records, err := r.attendance.ListForMessages(ctx, event.MessageIDs())
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	latest := domain.LatestByIdentity(records)
	responded := make(map[string]bool, len(latest))
	for _, rec := range latest {
		responded[rec.Identity] = true
	}

	// Состав нужен и для синтеза молчащих, и для финального фильтра
	members, err := r.roster.ListMembers(ctx, event.SquadronIDs)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	squadronsByIdentity := make(map[string][]uuid.UUID, len(members))
	activeByIdentity := make(map[string]bool, len(members))
	for _, m := range members {
		squadronsByIdentity[m.Identity] = append(squadronsByIdentity[m.Identity], m.SquadronID)
		if m.Active {
			activeByIdentity[m.Identity] = true
		}
	}

	// 2. Ответившие, проходящие фильтр
	var combined []Recipient
	for _, rec := range latest {
		if !filterSet[rec.Response] {
			continue
		}
		combined = append(combined, Recipient{
			Identity:    rec.Identity,
			DisplayName: rec.DisplayName,
			Response:    rec.Response,
			SquadronIDs: squadronsByIdentity[rec.Identity],
		})
	}

	// 3. Синтез молчащих: действующий состав минус ответившие чем угодно
	if filterSet[domain.ResponseNone] {
		seen := make(map[string]bool)
		for _, m := range members {
			if !m.Active || responded[m.Identity] || seen[m.Identity] {
				continue
			}
			seen[m.Identity] = true
			combined = append(combined, Recipient{
				Identity:    m.Identity,
				DisplayName: m.DisplayName,
				Response:    domain.ResponseNone,
				SquadronIDs: squadronsByIdentity[m.Identity],
			})
		}
	}

	// 4. Только действующий состав
	result := &Result{BeforeActiveFilter: len(combined)}
	for _, rcp := range combined {
		if !activeByIdentity[rcp.Identity] {
			continue
		}
		result.Recipients = append(result.Recipients, rcp)
	}
	result.AfterActiveFilter = len(result.Recipients)

	if result.BeforeActiveFilter != result.AfterActiveFilter {
		r.logger.Debug("dropped inactive recipients",
			"event_id", event.ID,
			"before", result.BeforeActiveFilter,
			"after", result.AfterActiveFilter,
		)
	}
	return result, nil
}
