// Package cli реализует операторскую утилиту движка.
//
// CLI — клиент ops API, работает через HTTP и не импортирует
// внутренние пакеты движка. Через него оператор смотрит состояние
// очередей, статистику заданий и таймеры отсчёта, а также запускает
// задание вне расписания.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент ops API. Инкапсулирует запросы, парсинг конвертов
// (DataResponse, ListResponse, ErrorResponse) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	status, err := client.Status()
//
// ## Output
//
// Форматирование вывода. Два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные идут в stdout, сообщения (Success/Error) — в stderr,
// поэтому вывод можно отдавать в pipe: sortie jobs list --json | jq .
//
// ## Commands
//
//   - status    — сводка движка
//   - jobs      — list, run NAME
//   - countdown — активные таймеры отсчёта
//
// Каждая группа создаётся фабричной функцией (NewStatusCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
