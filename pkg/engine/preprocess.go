package engine

import "strings"

// kwPrefix marks keyword names rewritten by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites scene script source into something zygomys
// accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot clash with user variables.
//  2. kebab-case identifiers become snake_case (zygomys reads a hyphen
//     between letters as subtraction).
//  3. ; comments become // comments.
//
// String literals, in double quotes or backticks, pass through untouched.
func preprocessSource(source string) string {
	s := &scanner{src: source}
	s.out.Grow(len(source) + len(source)/4)
	for s.i < len(s.src) {
		c := s.src[s.i]
		switch {
		case c == '"':
			s.quoted('"', true)
		case c == '`':
			s.quoted('`', false)
		case c == ';':
			s.comment()
		case c == ':' && s.peek() == '=':
			s.copy(2)
		case c == ':' && isLetter(s.peek()):
			s.keyword()
		case c == '-' && s.i > 0 && isIdentChar(s.src[s.i-1]) && isLetter(s.peek()):
			s.out.WriteByte('_')
			s.i++
		default:
			s.copy(1)
		}
	}
	return s.out.String()
}

type scanner struct {
	src string
	i   int
	out strings.Builder
}

func (s *scanner) peek() byte {
	if s.i+1 < len(s.src) {
		return s.src[s.i+1]
	}
	return 0
}

func (s *scanner) copy(n int) {
	end := s.i + n
	if end > len(s.src) {
		end = len(s.src)
	}
	s.out.WriteString(s.src[s.i:end])
	s.i = end
}

// quoted copies a literal delimited by q, honouring backslash escapes when
// escapes is set.
func (s *scanner) quoted(q byte, escapes bool) {
	s.copy(1)
	for s.i < len(s.src) && s.src[s.i] != q {
		if escapes && s.src[s.i] == '\\' {
			s.copy(2)
			continue
		}
		s.copy(1)
	}
	s.copy(1)
}

func (s *scanner) comment() {
	s.out.WriteString("//")
	for s.i < len(s.src) && s.src[s.i] == ';' {
		s.i++
	}
	for s.i < len(s.src) && s.src[s.i] != '\n' {
		s.copy(1)
	}
}

func (s *scanner) keyword() {
	j := s.i + 1
	for j < len(s.src) && isKWChar(s.src[j]) {
		j++
	}
	s.out.WriteByte('"')
	s.out.WriteString(kwPrefix)
	s.out.WriteString(s.src[s.i+1 : j])
	s.out.WriteByte('"')
	s.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isKWChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}
