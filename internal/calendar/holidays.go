package calendar

// Holiday tables per MIC, covering 2022 through 2026. MICs without an entry
// trade every weekday (the WD fallback behaves the same way by construction).
//
// TODO: extend XNYS/XLON coverage past 2026 before the tables age out.
var holidayTables = map[string]map[string]bool{
	"XNYS": setOf(
		// 2022
		"2022-01-17", "2022-02-21", "2022-04-15", "2022-05-30",
		"2022-06-20", "2022-07-04", "2022-09-05", "2022-11-24", "2022-12-26",
		// 2023
		"2023-01-02", "2023-01-16", "2023-02-20", "2023-04-07", "2023-05-29",
		"2023-06-19", "2023-07-04", "2023-09-04", "2023-11-23", "2023-12-25",
		// 2024
		"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
		"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
		// 2025
		"2025-01-01", "2025-01-09", "2025-01-20", "2025-02-17", "2025-04-18",
		"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27",
		"2025-12-25",
		// 2026
		"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
		"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
	),
	"XLON": setOf(
		// 2022
		"2022-01-03", "2022-04-15", "2022-04-18", "2022-05-02", "2022-06-02",
		"2022-06-03", "2022-08-29", "2022-09-19", "2022-12-26", "2022-12-27",
		// 2023
		"2023-01-02", "2023-04-07", "2023-04-10", "2023-05-01", "2023-05-08",
		"2023-05-29", "2023-08-28", "2023-12-25", "2023-12-26",
		// 2024
		"2024-01-01", "2024-03-29", "2024-04-01", "2024-05-06", "2024-05-27",
		"2024-08-26", "2024-12-25", "2024-12-26",
		// 2025
		"2025-01-01", "2025-04-18", "2025-04-21", "2025-05-05", "2025-05-26",
		"2025-08-25", "2025-12-25", "2025-12-26",
		// 2026
		"2026-01-01", "2026-04-03", "2026-04-06", "2026-05-04", "2026-05-25",
		"2026-08-31", "2026-12-25", "2026-12-28",
	),
}

func setOf(dates ...string) map[string]bool {
	m := make(map[string]bool, len(dates))
	for _, d := range dates {
		m[d] = true
	}
	return m
}
