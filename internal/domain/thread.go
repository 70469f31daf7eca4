package domain

// threadDisabledSentinel — значение колонки thread_id, фиксирующее
// отказ от создания треда. Живёт только на границе хранилища,
// наружу отдаётся ThreadState.
const threadDisabledSentinel = "DISABLED"

// ThreadState — состояние треда публикации.
//
// Три состояния:
//
//	нет треда  → тред не создавался (или ещё не создавался)
//	создан     → тред существует, несёт его идентификатор
//	отключён   → попытка создания запрещена платформой; sticky,
//	             повторных попыток для события не делается
type ThreadState struct {
	id       string
	disabled bool
}

// NoThread возвращает состояние "тред не создавался".
func NoThread() ThreadState {
	return ThreadState{}
}

// ThreadCreated возвращает состояние с рабочим тредом.
func ThreadCreated(id string) ThreadState {
	return ThreadState{id: id}
}

// ThreadDisabled возвращает sticky-состояние "треды отключены".
func ThreadDisabled() ThreadState {
	return ThreadState{disabled: true}
}

// Created возвращает идентификатор треда и true, если тред существует.
func (t ThreadState) Created() (string, bool) {
	if t.disabled || t.id == "" {
		return "", false
	}
	return t.id, true
}

// Disabled возвращает true, если создание треда запрещено.
func (t ThreadState) Disabled() bool {
	return t.disabled
}

// None возвращает true, если тред не создавался и не отключён.
func (t ThreadState) None() bool {
	return !t.disabled && t.id == ""
}

// StorageValue возвращает представление для колонки thread_id:
// nil — треда нет, "DISABLED" — отключён, иначе идентификатор.
func (t ThreadState) StorageValue() *string {
	switch {
	case t.disabled:
		s := threadDisabledSentinel
		return &s
	case t.id == "":
		return nil
	default:
		s := t.id
		return &s
	}
}

// ThreadStateFromStorage восстанавливает ThreadState из колонки thread_id.
func ThreadStateFromStorage(v *string) ThreadState {
	switch {
	case v == nil || *v == "":
		return NoThread()
	case *v == threadDisabledSentinel:
		return ThreadDisabled()
	default:
		return ThreadCreated(*v)
	}
}
