package core

import (
	"fmt"
	"strings"
)

// CleanPhone strips everything but digits and a leading plus sign.
func CleanPhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone canonicalizes a US number to E.164. Applied once at
// ingestion so lookups never need to fan out over formatting variants.
func NormalizePhone(phone string) (string, error) {
	cleaned := CleanPhone(phone)
	digits := strings.TrimPrefix(cleaned, "+")
	if digits == "" {
		return "", fmt.Errorf("core: phone number is required")
	}
	switch {
	case strings.HasPrefix(cleaned, "+") && len(digits) >= 11:
		return cleaned, nil
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits, nil
	case len(digits) == 10:
		return "+1" + digits, nil
	default:
		return "", fmt.Errorf("core: phone number %q is not a valid US number", phone)
	}
}

// PhoneVariants lists the canonical form first, then the legacy formats
// rows written before normalization may still carry.
func PhoneVariants(phone string) []string {
	cleaned := CleanPhone(phone)
	if cleaned == "" {
		return nil
	}

	seen := map[string]struct{}{}
	variants := make([]string, 0, 4)
	add := func(candidate string) {
		if candidate == "" {
			return
		}
		if _, exists := seen[candidate]; exists {
			return
		}
		seen[candidate] = struct{}{}
		variants = append(variants, candidate)
	}

	if canonical, err := NormalizePhone(cleaned); err == nil {
		add(canonical)
	}
	add(cleaned)
	if strings.HasPrefix(cleaned, "+") {
		add(strings.TrimPrefix(cleaned, "+"))
	} else {
		add("+" + cleaned)
	}
	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		add(digits[1:])
	}
	if len(digits) == 10 {
		add("1" + digits)
		add("+1" + digits)
	}
	return variants
}
