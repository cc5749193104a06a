package cache

// globMatch matches s against a Redis-style glob: '*' matches any run of
// characters (including '/'), '?' one character, '[...]' a class with
// ranges and '^' negation, and '\' escapes the next character.
func globMatch(pattern, s string) bool {
	p := []rune(pattern)
	str := []rune(s)
	return matchRunes(p, str)
}

func matchRunes(p, s []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchRunes(p, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			matched, rest, ok := matchClass(p[1:], s[0])
			if !ok {
				// Unterminated class: treat '[' literally.
				if s[0] != '[' {
					return false
				}
				p, s = p[1:], s[1:]
				continue
			}
			if !matched {
				return false
			}
			p, s = rest, s[1:]
		case '\\':
			if len(p) > 1 {
				p = p[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

// matchClass evaluates a character class body (after '['). It returns
// whether c matched, the pattern after the closing ']', and whether the
// class was terminated.
func matchClass(p []rune, c rune) (bool, []rune, bool) {
	negate := false
	if len(p) > 0 && (p[0] == '^' || p[0] == '!') {
		negate = true
		p = p[1:]
	}
	matched := false
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == ']' && i > 0:
			return matched != negate, p[i+1:], true
		case p[i] == '\\' && i+1 < len(p):
			i++
			if p[i] == c {
				matched = true
			}
		case i+2 < len(p) && p[i+1] == '-' && p[i+2] != ']':
			lo, hi := p[i], p[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			i += 2
		default:
			if p[i] == c {
				matched = true
			}
		}
	}
	return false, nil, false
}
