package resolver

import (
	"regexp"
	"strings"
)

// qualifierMarkers are unit/store qualifiers that end the useful part of an
// address. Everything from the first marker on is discarded: "RUA A, LOJA 5"
// names the same street as "RUA A", and the qualifier only hurts match rate
// against the free-text service.
var qualifierMarkers = regexp.MustCompile(`\bLOJA\b|\bLJ\b|\bT[ÉE]RREO\b|\bSALA\b|\bANDAR\b|\bBOX\b|\bAPTO\b|\bREF:?`)

var (
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s,\-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	digitRuns       = regexp.MustCompile(`\d+`)
	nonDigits       = regexp.MustCompile(`\D`)
	floatArtifact   = regexp.MustCompile(`\.0+$`)
)

// CleanAddress normalizes a free-text address for geocoding: uppercases it,
// truncates at the first unit/qualifier marker, strips characters outside
// {letters, digits, whitespace, comma, hyphen} and collapses whitespace runs.
func CleanAddress(text string) string {
	text = strings.ToUpper(strings.TrimSpace(text))

	if loc := qualifierMarkers.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	text = disallowedChars.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")

	return strings.Trim(text, " ,-")
}

// StreetName extracts a broad street-only query from a free-text address:
// the portion before the first comma, with embedded digit runs (house
// numbers) removed. Broader recall, lower precision; used as a late
// fallback stage.
func StreetName(text string) string {
	cleaned := CleanAddress(text)
	if idx := strings.Index(cleaned, ","); idx >= 0 {
		cleaned = cleaned[:idx]
	}

	cleaned = digitRuns.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, " ")

	return strings.Trim(cleaned, " ,-")
}

// digitsOnly is the number of characters an address must keep after digit
// stripping to be worth a remote query.
const minQueryLength = 3

// Queryable reports whether a cleaned address fragment is substantial
// enough to send to the free-text service.
func Queryable(text string) bool {
	return len(digitRuns.ReplaceAllString(text, "")) > minQueryLength
}

// NormalizePostalCode normalizes a raw CEP value to the national
// `#####-###` format. Spreadsheet cells often carry the value as a float
// ("41820021.0") or partially formatted; anything that does not reduce to
// digits is rejected. Short values are zero-padded on the left, long ones
// truncated to 8 digits. Returns "" for unusable input.
func NormalizePostalCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// Excel float artifact: "41820021.0" -> "41820021". Dots elsewhere are
	// ordinary CEP punctuation ("41.820-021") and must survive digit
	// extraction.
	raw = floatArtifact.ReplaceAllString(raw, "")

	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return ""
	}

	const cepLength = 8
	for len(digits) < cepLength {
		digits = "0" + digits
	}
	if len(digits) > cepLength {
		digits = digits[:cepLength]
	}

	return digits[:5] + "-" + digits[5:]
}
