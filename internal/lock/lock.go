// Package lock — распределённые блокировки поверх Postgres advisory locks.
//
// Блокировки защищают обработку строк расписания от параллельных
// воркеров: кто первым взял ключ, тот и обрабатывает, остальные молча
// пропускают строку до следующего тика.
//
// Advisory lock в Postgres привязан к сессии, поэтому Lease пиннит
// соединение из пула на всё время удержания: unlock обязан уйти
// в ту же сессию, что и lock.
package lock

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBusy — ключ уже удерживается другим воркером. Не сбой:
// вызывающий пропускает строку, следующий тик попробует снова.
var ErrBusy = errors.New("lock busy")

// KeyFor выводит ключ блокировки из UUID: первые 64 бита
// канонической формы как знаковое 64-битное число. Отрицательные
// значения допустимы, пространство ключей общее для всех типов строк.
func KeyFor(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}

// Locker выдаёт блокировки по ключу.
type Locker interface {
	// TryAcquire пытается взять ключ без ожидания. Возвращает ErrBusy,
	// если ключ удерживается кем-то ещё.
	TryAcquire(ctx context.Context, key int64) (Lease, error)
}

// Lease — удерживаемая блокировка.
type Lease interface {
	// Release отпускает блокировку. Безопасно вызывать один раз.
	Release(ctx context.Context) error
}

// AdvisoryLocker — Locker поверх pg_try_advisory_lock.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

// NewAdvisoryLocker создаёт новый AdvisoryLocker.
func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// TryAcquire берёт соединение из пула и пытается взять на нём ключ.
// При отказе соединение сразу возвращается в пул.
func (l *AdvisoryLocker) TryAcquire(ctx context.Context, key int64) (Lease, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrBusy
	}
	return &advisoryLease{conn: conn, key: key}, nil
}

// advisoryLease удерживает соединение с взятым ключом.
type advisoryLease struct {
	conn *pgxpool.Conn
	key  int64
}

// Release отпускает ключ и возвращает соединение в пул. Если unlock
// не удался, соединение не возвращается, а закрывается целиком:
// Postgres снимает advisory lock при закрытии сессии, тогда как
// вернувшаяся в пул сессия держала бы ключ до конца жизни процесса.
func (l *advisoryLease) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&ok); err != nil {
		conn.Hijack().Close(context.Background())
		return fmt.Errorf("advisory unlock: %w", err)
	}
	conn.Release()
	if !ok {
		return fmt.Errorf("advisory unlock: key %d was not held", l.key)
	}
	return nil
}
