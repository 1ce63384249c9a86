package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask all but the TLD
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedIdentifier masks emails and passes usernames through.
func SanitizedIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return SanitizedEmail(identifier)
	}
	return identifier
}

// SanitizedPhone keeps the last two digits.
func SanitizedPhone(phone string) string {
	if len(phone) <= 2 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// RedactedAttr returns "[REDACTED]" in production and the value elsewhere.
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString reports whether the query carries a sensitive parameter
// and should be redacted as a whole.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password", "token", "secret", "email", "phone", "search", "auth", "otp",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
