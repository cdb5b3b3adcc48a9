package preflight

import "strings"

// classHasMethod reports whether the Python source defines the named method
// inside the body of the named class. The scan is parse-time only and
// indentation-aware: a method of the same name on a different class, or a
// module-level function, does not count.
func classHasMethod(source, class, method string) bool {
	lines := strings.Split(source, "\n")

	classIndent := -1
	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		if line == "" {
			continue
		}
		indent := indentWidth(line)
		trimmed := strings.TrimLeft(line, " \t")

		if classIndent >= 0 {
			// Inside the class body until indentation returns to or above
			// the class's own level. Comments stay inside regardless.
			if indent <= classIndent && !strings.HasPrefix(trimmed, "#") {
				classIndent = -1
			} else if isDef(trimmed, method) {
				return true
			}
		}

		if classIndent < 0 && isClassDef(trimmed, class) {
			classIndent = indent
		}
	}
	return false
}

// isClassDef reports whether a trimmed line opens the named class.
func isClassDef(trimmed, class string) bool {
	rest, ok := strings.CutPrefix(trimmed, "class ")
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, class) {
		return false
	}
	after := rest[len(class):]
	return after == "" || strings.HasPrefix(after, "(") || strings.HasPrefix(after, ":") || strings.HasPrefix(after, " ")
}

// isDef reports whether a trimmed line defines the named function, async
// variants included.
func isDef(trimmed, method string) bool {
	trimmed, _ = strings.CutPrefix(trimmed, "async ")
	rest, ok := strings.CutPrefix(trimmed, "def ")
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, method) {
		return false
	}
	after := rest[len(method):]
	return strings.HasPrefix(after, "(")
}

// indentWidth counts leading whitespace, tabs expanded to a width of 8 the
// way CPython's tokenizer does.
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		default:
			return width
		}
	}
	return width
}

// containsFlag reports whether the source text advertises the given
// command-line flag literal.
func containsFlag(source, flag string) bool {
	return strings.Contains(source, flag)
}
