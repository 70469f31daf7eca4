package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrUnknownJob — задание с таким именем не зарегистрировано.
	ErrUnknownJob = errors.New("unknown job")
)
