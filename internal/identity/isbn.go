package identity

import "strings"

// NormalizeISBN strips separators and converts a valid ISBN-10 to ISBN-13.
// It returns the canonical 13-digit form and true, or the cleaned input and
// false when the value fails checksum validation.
func NormalizeISBN(raw string) (string, bool) {
	cleaned := cleanISBN(raw)
	switch len(cleaned) {
	case 10:
		if !validISBN10(cleaned) {
			return cleaned, false
		}
		return isbn10To13(cleaned), true
	case 13:
		if !validISBN13(cleaned) {
			return cleaned, false
		}
		return cleaned, true
	default:
		return cleaned, false
	}
}

// ValidISBN reports whether a raw value is a checksum-valid ISBN-10 or ISBN-13.
func ValidISBN(raw string) bool {
	_, ok := NormalizeISBN(raw)
	return ok
}

func cleanISBN(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validISBN10(isbn string) bool {
	sum := 0
	for i, r := range isbn {
		var digit int
		switch {
		case r >= '0' && r <= '9':
			digit = int(r - '0')
		case r == 'X' && i == 9:
			digit = 10
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(isbn string) bool {
	sum := 0
	for i, r := range isbn {
		if r < '0' || r > '9' {
			return false
		}
		digit := int(r - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return sum%10 == 0
}

func isbn10To13(isbn10 string) string {
	core := "978" + isbn10[:9]
	sum := 0
	for i, r := range core {
		digit := int(r - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	check := (10 - sum%10) % 10
	return core + string(rune('0'+check))
}
