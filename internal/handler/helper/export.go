package helper

import (
	"fmt"
	"time"
)

// SanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func SanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// ExportFilename возвращает имя файла выгрузки без расширения
func ExportFilename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, now.UTC().Format("2006-01-02"))
}

// FormatOptionalInt возвращает пустую строку для nil
func FormatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
