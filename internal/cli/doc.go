// Package cli реализует операторскую утилиту matchcore.
//
// # Обзор
//
// CLI работает напрямую с БД: ставит job через trigger.Service поверх
// queue.Shared (без Start — только Enqueue), читает таблицу jobs и
// применяет миграции.
//
// # Ключевые компоненты
//
// ## Client
//
// Набор зависимостей команд: Triggers, Jobs, Migrate. Собирается в
// cmd/matchcore после разбора флагов; в тестах заменяется фейками.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: matchcore job list --json | jq .
//
// ## Commands
//
//   - trigger: pair, new, entity, scan, ingest
//   - job: show, list, pending, purge
//   - migrate: up, down, status
//
// Каждая группа создаётся фабричной функцией (NewTriggerCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
