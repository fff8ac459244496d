package parser

// matchBalanced returns the index of the bracket closing the one at open, or
// -1 if s ends first or brackets are mismatched. Brackets inside single- or
// double-quoted strings are ignored, and backslash escapes inside strings are
// honoured.
func matchBalanced(s string, open int) int {
	if open < 0 || open >= len(s) {
		return -1
	}
	if s[open] != '[' && s[open] != '{' {
		return -1
	}

	var stack []byte
	var quote byte
	escaped := false

	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 {
				return -1
			}
			top := stack[len(stack)-1]
			if (c == ']' && top != '[') || (c == '}' && top != '{') {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
