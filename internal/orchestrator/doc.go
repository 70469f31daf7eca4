// Package orchestrator запускает периодические задания движка.
//
// Каждое задание (Job) — один проход по своей части расписания:
//   - publications — публикация анонсов наступивших строк
//   - reminders    — рассылка due-напоминаний
//   - starts       — перевод наступивших событий в IN_PROGRESS
//   - conclusions  — завершение прошедших событий
//
// Задания выполняются с постоянным интервалом и один раз сразу при
// старте, чтобы простой процесса не задерживал расписание ещё на тик.
// Паника или ошибка одного задания не трогает остальные: исход
// логируется, попадает в метрики и в статистику для ops API.
//
// Использование:
//
//	orch := orchestrator.New(orchestrator.Config{
//	    Jobs: []orchestrator.Job{
//	        orchestrator.NewTickJob("publications", publisher),
//	        orchestrator.NewTickJob("reminders", reminder),
//	        orchestrator.NewStartedJob(transitions),
//	        orchestrator.NewConcludedJob(transitions),
//	    },
//	    Interval: time.Minute,
//	    Logger:   logger,
//	})
//
//	orch.Start(ctx)
//	defer orch.Stop()
package orchestrator
