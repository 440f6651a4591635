package gradle

import "strings"

// block locates a named `name { ... }` section of a Groovy build script.
type block struct {
	start int // first byte of the name
	open  int // index of '{'
	close int // index of the matching '}'
}

// codeMask marks bytes that are neither in a comment nor in a string literal.
func codeMask(src string) []bool {
	const (
		inCode = iota
		inLineComment
		inBlockComment
		inSingle
		inDouble
	)
	mask := make([]bool, len(src))
	state := inCode
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch state {
		case inCode:
			switch {
			case c == '/' && i+1 < len(src) && src[i+1] == '/':
				state = inLineComment
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				state = inBlockComment
				i++
			case c == '\'':
				state = inSingle
			case c == '"':
				state = inDouble
			default:
				mask[i] = true
			}
		case inLineComment:
			if c == '\n' {
				state = inCode
				mask[i] = true
			}
		case inBlockComment:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				state = inCode
				i++
			}
		case inSingle, inDouble:
			if c == '\\' {
				i++
				continue
			}
			if (state == inSingle && c == '\'') || (state == inDouble && c == '"') {
				state = inCode
			}
		}
	}
	return mask
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// findBlocks returns every `name {` section in source order, including
// nested ones.
func findBlocks(src, name string) []block {
	mask := codeMask(src)
	var out []block
	for i := 0; i+len(name) <= len(src); i++ {
		if !mask[i] || !strings.HasPrefix(src[i:], name) {
			continue
		}
		if i > 0 && isIdent(src[i-1]) {
			continue
		}
		j := i + len(name)
		if j < len(src) && isIdent(src[j]) {
			continue
		}
		for j < len(src) && mask[j] && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
			j++
		}
		if j >= len(src) || !mask[j] || src[j] != '{' {
			continue
		}
		if end := matchBrace(src, mask, j); end > 0 {
			out = append(out, block{start: i, open: j, close: end})
		}
	}
	return out
}

func matchBrace(src string, mask []bool, open int) int {
	depth := 0
	for k := open; k < len(src); k++ {
		if !mask[k] {
			continue
		}
		switch src[k] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// lineIndent returns the leading whitespace of the line containing pos.
func lineIndent(src string, pos int) string {
	lineStart := strings.LastIndexByte(src[:pos], '\n') + 1
	end := lineStart
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return src[lineStart:end]
}

// replaceBodies rewrites the body of each block, last first so earlier
// offsets stay valid. Nested blocks must not be passed together.
func replaceBodies(src string, blocks []block, body func(indent string) string) string {
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		indent := lineIndent(src, b.start)
		src = src[:b.open] + "{\n" + body(indent) + indent + src[b.close:]
	}
	return src
}
