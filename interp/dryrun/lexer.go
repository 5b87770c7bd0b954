package dryrun

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkNumber
	tkString
	tkName
	tkOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// operators ordered longest first so that "**" wins over "*".
var operators = []string{
	"**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", "[", "]", ",",
}

// tokenize splits one logical line into tokens. A '#' outside a string ends
// the line.
func tokenize(src string) ([]token, error) {
	runes := []rune(src)
	var tokens []token
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			i++
		case ch == '#':
			i = len(runes)
		case ch == '"' || ch == '\'':
			s, next, err := readString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tkString, text: s, pos: i})
			i = next
		case isDigit(ch) || (ch == '.' && i+1 < len(runes) && isDigit(runes[i+1])):
			num, next := readNumber(runes, i)
			tokens = append(tokens, token{kind: tkNumber, text: num, pos: i})
			i = next
		case isIdentStart(ch):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tkName, text: string(runes[start:i]), pos: start})
		default:
			op := matchOperator(runes[i:])
			if op == "" {
				return nil, syntaxError("invalid character %q at position %d", ch, i)
			}
			tokens = append(tokens, token{kind: tkOp, text: op, pos: i})
			i += len([]rune(op))
		}
	}
	tokens = append(tokens, token{kind: tkEOF, pos: len(runes)})
	return tokens, nil
}

func matchOperator(rest []rune) string {
	s := string(rest)
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func readString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		ch := runes[i]
		if ch == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			default:
				sb.WriteRune(runes[i+1])
			}
			i += 2
			continue
		}
		if ch == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(ch)
		i++
	}
	return "", 0, syntaxError("unterminated string literal at position %d", start)
}

func readNumber(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && (isDigit(runes[i]) || runes[i] == '_') {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
	}
	if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
		j := i + 1
		if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
			j++
		}
		if j < len(runes) && isDigit(runes[j]) {
			i = j
			for i < len(runes) && isDigit(runes[i]) {
				i++
			}
		}
	}
	return strings.ReplaceAll(string(runes[start:i]), "_", ""), i
}

func isDigit(ch rune) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch rune) bool { return unicode.IsLetter(ch) || ch == '_' }
func isIdentPart(ch rune) bool  { return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' }
