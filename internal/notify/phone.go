package notify

import (
	"regexp"
	"strings"
)

var phoneNoise = regexp.MustCompile(`[\s\-\(\)\+]`)

// NormalizePhone converts a locally typed number to the international digits the channel expects.
// "+966 50-123-4567", "00966501234567" and "0501234567" all become "966501234567" for country code 966.
func NormalizePhone(phone, countryCode string) string {
	p := phoneNoise.ReplaceAllString(phone, "")
	p = strings.TrimPrefix(p, "00")
	if strings.HasPrefix(p, "0") && len(p) == 10 {
		p = countryCode + p[1:]
	}
	return p
}
