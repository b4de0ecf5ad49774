package output

import "unicode/utf8"

// Pair renders a keep/replace pair for humans. With braces enabled, a
// common prefix or suffix longer than two bytes is factored out into
// prefix{a,b}suffix form; otherwise the pair prints as "a <-> b".
func Pair(a, b string, braces bool) string {
	if !braces {
		return a + " <-> " + b
	}

	p := commonPrefix(a, b)
	s := commonSuffix(a, b)

	// prefix and suffix must never overlap on either path
	if p+s > len(a) {
		s = len(a) - p
	}
	if p+s > len(b) {
		s = len(b) - p
	}

	switch {
	case p > 2 && s > 2:
		return a[:p] + "{" + a[p:len(a)-s] + "," + b[p:len(b)-s] + "}" + a[len(a)-s:]
	case p > 2:
		return a[:p] + "{" + a[p:] + "," + b[p:] + "}"
	case s > 2:
		return "{" + a[:len(a)-s] + "," + b[:len(b)-s] + "}" + a[len(a)-s:]
	default:
		return a + " <-> " + b
	}
}

func commonPrefix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	// never split a multi-byte rune
	for i > 0 && ((i < len(a) && !utf8.RuneStart(a[i])) || (i < len(b) && !utf8.RuneStart(b[i]))) {
		i--
	}
	return i
}

func commonSuffix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	for i > 0 && (!utf8.RuneStart(a[len(a)-i]) || !utf8.RuneStart(b[len(b)-i])) {
		i--
	}
	return i
}
