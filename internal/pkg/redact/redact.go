// redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Email оставляет первые два символа локальной части и домен.
// Короткая локальная часть (<= 2 символа) скрывается целиком.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "***"
	}

	r := []rune(local)
	if len(r) <= 2 {
		return "***@" + domain
	}

	return string(r[:2]) + "***@" + domain
}

// Fingerprint возвращает короткий префикс хэша токена для корреляции записей в логах.
// Сам токен в лог не попадает никогда.
func Fingerprint(hash string) string {
	if len(hash) <= 8 {
		return "***"
	}

	return hash[:8]
}
