package logger

import "strings"

// RedactEmail masks an email address, keeping at most the first two
// characters of the local part and the full domain: "jo***@example.com".
// Values that do not look like an address collapse to "***@***".
func RedactEmail(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "***@***"
	}
	local, domain := addr[:at], addr[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
