package price

import "strings"

// stableQuotes is the known stable-coin set, longest first so suffix
// matching prefers e.g. "FDUSD" over a shorter accidental match.
var stableQuotes = []string{"FDUSD", "BUSD", "USDT", "USDC", "TUSD", "USDP", "DAI"}

// SplitSymbol parses a venue symbol into (base, quote) per spec §4.3:
// longest-suffix match against the stable-coin set first, falling
// back to a 3/3 split for 6-character symbols or a 4/3 split for
// 7-character symbols. The fallback splits are positional only: the
// resulting quote is not checked against any list of known quotes.
func SplitSymbol(symbol string) (base, quote string) {
	symbol = strings.ToUpper(symbol)

	for _, q := range stableQuotes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q
		}
	}

	switch len(symbol) {
	case 6:
		return symbol[:3], symbol[3:]
	case 7:
		return symbol[:4], symbol[4:]
	default:
		// No confident split available; treat the whole symbol as the
		// base against an empty quote so IsStableQuote(quote) is false
		// and the caller falls through to the REST-fetch path, which
		// will fail cleanly rather than guess.
		return symbol, ""
	}
}

// IsStableQuote reports whether quote is one of the recognised
// stable coins (no network conversion required).
func IsStableQuote(quote string) bool {
	for _, q := range stableQuotes {
		if quote == q {
			return true
		}
	}
	return false
}
