// Package scheduler запускает периодические задачи процесса-планировщика.
//
// Каждый тик:
//   - если наступило время по SCAN_CRON — глобальный пересчёт eligibility
//     (trigger.Service.TriggerScheduledScan, фоновый приоритет)
//   - reaper возвращает в очередь job, зависшие в PROCESSING
//
// Структура:
//   - scheduler.go — Scheduler и Tick
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Scans:        triggers,
//	    Reaper:       sharedQueue,
//	    CronExpr:     "0 3 * * *",
//	    Location:     time.UTC,
//	    ClaimTimeout: 15 * time.Minute,
//	    Logger:       logger,
//	})
//
//	// Вызывается каждый тик
//	if err := sched.Tick(ctx, time.Now()); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через repo.Locker (pg_try_advisory_lock).
// Метод Tick() вызывается только лидером.
package scheduler
