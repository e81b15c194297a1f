// Package worker выполняет job из очереди.
//
// # Обзор
//
// Dispatcher превращает набор обработчиков в queue.Handler. Выбор
// обработчика — type switch по domain.Payload: новый вид payload без
// case в Handle не пройдёт тесты Dispatcher'а.
//
//	d := worker.NewDispatcher(worker.Handlers{
//	    Pairs:         worker.NewRecordingEvaluator(entityRepo, evaluationRepo, logger),
//	    Profiles:      worker.NewRefreshingIngester(entityRepo, triggers, logger),
//	    Notifications: worker.NewLogNotifier(logger),
//	}, logger)
//
//	if err := q.Start(ctx, d.Handle); err != nil {
//	    return err
//	}
//	defer q.Stop()
//
// # Обработчики
//
//   - PairEvaluator — оценка пары (EvaluatePair)
//   - ProfileIngester — обновление профиля сущности (IngestProfile)
//   - Notifier — отправка уведомления (SendNotification)
//
// Реализации по умолчанию:
//   - RecordingEvaluator — фиксирует версии обеих сторон в pair_evaluations,
//     после чего eligibility пропускает пару до изменения данных
//   - RefreshingIngester — увеличивает data_version и ставит переоценку
//     всех пар сущности
//   - LogNotifier — пишет уведомление в лог
//
// # Ошибки
//
// Ошибка обработчика возвращается очереди как есть: очередь сама решает,
// повторить job с backoff или перевести в DEAD.
package worker
