package core

// tokenizer.go splits list cells such as `a, "b, c", d` into their elements.
//
// Double quotes make a span atomic: delimiters inside it are kept as content
// and the quotes themselves are dropped. An unterminated quote runs to the
// end of the input. Delimiter and quote are ASCII, so scanning bytes is safe
// for UTF-8 input.

import "strings"

const quote = '"'

// GetBlock scans s from start until end is found or the input runs out.
// It returns the collected content and the number of bytes consumed,
// not counting the terminating end byte.
func GetBlock(s string, end byte, start int) (string, int) {
	var b strings.Builder
	i := 0
	for start+i < len(s) {
		c := s[start+i]
		switch {
		case c == end:
			return b.String(), i
		case c == quote:
			block, n := GetBlock(s, quote, start+i+1)
			b.WriteString(block)
			i += n + 2 // both quotes
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// SplitList splits s on delim, trimming each element. An empty string
// yields no elements.
func SplitList(s string, delim byte) []string {
	var blocks []string
	for index := 0; index < len(s); {
		block, n := GetBlock(s, delim, index)
		index += n + 1
		blocks = append(blocks, strings.TrimSpace(block))
	}
	return blocks
}
