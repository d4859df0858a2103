// Package symbol normalizes trading pair spellings to the exchange form
// (BASEQUOTE, upper case) used as lane and store keys.
package symbol

import "strings"

// quotes are tried longest first so FDUSD wins over USD-like suffixes.
var quotes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

var stripSeparators = strings.NewReplacer("/", "", "-", "", "_", "")

// Pair is a split trading pair.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) Valid() bool { return p.Base != "" && p.Quote != "" }

// String renders BASE/QUOTE, or "" when the pair could not be split.
func (p Pair) String() string {
	if !p.Valid() {
		return ""
	}
	return p.Base + "/" + p.Quote
}

// Exchange renders BASEQUOTE.
func (p Pair) Exchange() string {
	if !p.Valid() {
		return ""
	}
	return p.Base + p.Quote
}

// clean upper-cases s and drops the perpetual ".P" suffix and any
// ":SETTLE" qualifier.
func clean(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, ".P")
}

// Split accepts "BTCUSDT", "btc/usdt", "BTC-USDT", "BTC_USDT", "BTCUSDT.P"
// and "BTC/USDT:USDT". ok is false when no base/quote split is found.
func Split(s string) (Pair, bool) {
	s = clean(s)
	if i := strings.IndexAny(s, "/-_"); i > 0 && i < len(s)-1 {
		p := Pair{Base: s[:i], Quote: stripSeparators.Replace(s[i+1:])}
		return p, p.Valid()
	}
	if strings.ContainsAny(s, "/-_") {
		return Pair{}, false
	}
	for _, q := range quotes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return Pair{Base: s[:len(s)-len(q)], Quote: q}, true
		}
	}
	return Pair{}, false
}

// Normalize returns the exchange spelling of s. Pairs with an unknown quote
// keep their upper-cased letters with separators removed.
func Normalize(s string) string {
	if p, ok := Split(s); ok {
		return p.Exchange()
	}
	return stripSeparators.Replace(clean(s))
}
