// Package eligibility решает, какие пары сущностей оцениваются в цикле.
//
// Вход: рёбра выбора owner → target, флаги «принимает пары без встречного
// выбора» и версии данных сущностей, лимит fan-out на владельца.
//
// Порядок:
//
//  1. ApplyCap: лимит на владельца. Индивидуальные рёбра не отбрасываются
//     никогда; групповые семплируются детерминированно (Sample) с seed
//     ownerID + RotationSeed — набор меняется раз в неделю.
//  2. Множество направленных рёбер после лимита.
//  3. Канонизация пар (low, high), каждая пара один раз.
//  4. Видимость: взаимный выбор — обе стороны visible; односторонний —
//     только если вторая сторона принимает пары без встречного выбора.
//  5. Обе сущности должны иметь заполненный профиль.
//  6. Пары, уже оценённые при тех же версиях обеих сторон, пропускаются.
//
// Engine.Compute либо возвращает полный список, либо ошибку —
// частичных результатов нет.
package eligibility
