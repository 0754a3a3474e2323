package imapio

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// TimeFormat is the IMAP internal date layout used by APPEND
const TimeFormat = "_2-Jan-2006 15:04:05 -0700"

var (
	existsRE  = regexp.MustCompile(`\*\s+(\d+)\s+EXISTS`)
	literalRE = regexp.MustCompile(`\{(\d+)\}\r\n`)
	uidRE     = regexp.MustCompile(`UID (\d+)`)
)

// Token represents a parsed IMAP token
type Token struct {
	Type   TType
	Str    string
	Num    int
	Tokens []*Token
}

// TType represents the type of an IMAP token
type TType uint8

const (
	TUnset TType = iota
	TAtom
	TNumber
	TLiteral
	TQuoted
	TNil
	TContainer
)

type tokenContainer *[]*Token

// calculateTokenEnd calculates the end position of a literal token based on size and buffer constraints
func calculateTokenEnd(tokenStart, sizeVal, bufferLen int) (int, error) {
	switch {
	case tokenStart >= bufferLen:
		if sizeVal == 0 {
			return tokenStart - 1, nil
		}
		return 0, fmt.Errorf("literal size %d but start %d is at/past end of buffer %d", sizeVal, tokenStart, bufferLen)
	case tokenStart+sizeVal > bufferLen:
		return bufferLen - 1, nil
	default:
		return tokenStart + sizeVal - 1, nil
	}
}

// parseFetchTokens tokenizes the parenthesized part of a FETCH response
func parseFetchTokens(r string) ([]*Token, error) {
	tokens := make([]*Token, 0)

	currentToken := TUnset
	tokenStart := 0
	tokenEnd := 0
	depth := 0
	container := make([]tokenContainer, 4)
	container[0] = &tokens

	pushToken := func() *Token {
		var t *Token
		switch currentToken {
		case TQuoted:
			t = &Token{Type: TQuoted, Str: RemoveSlashes.Replace(r[tokenStart : tokenEnd+1])}
		case TLiteral:
			s := r[tokenStart : tokenEnd+1]
			if num, err := strconv.Atoi(s); err == nil {
				t = &Token{Type: TNumber, Num: num}
			} else if s == "NIL" {
				t = &Token{Type: TNil}
			} else {
				t = &Token{Type: TLiteral, Str: s}
			}
		case TAtom:
			t = &Token{Type: TAtom, Str: r[tokenStart : tokenEnd+1]}
		case TContainer:
			t = &Token{Type: TContainer, Tokens: make([]*Token, 0, 1)}
		}

		if t != nil {
			*container[depth] = append(*container[depth], t)
		}
		currentToken = TUnset

		return t
	}

	l := len(r)
	i := 0
	for i < l {
		b := r[i]

		switch currentToken {
		case TQuoted:
			switch b {
			case '"':
				tokenEnd = i - 1
				pushToken()
				goto Cont
			case '\\':
				i++
				goto Cont
			}
		case TLiteral:
			if !IsLiteral(rune(b)) {
				tokenEnd = i - 1
				pushToken()
			}
		case TAtom:
			if !unicode.IsDigit(rune(b)) {
				// r[tokenStart:i] holds the size between '{' and '}'
				sizeVal, err := strconv.Atoi(r[tokenStart:i])
				if err != nil {
					return nil, fmt.Errorf("literal size %q: %w", r[tokenStart:i], err)
				}

				i++
				if i < l && r[i] == '\r' {
					i++
				}
				if i < l && r[i] == '\n' {
					i++
				}

				tokenStart = i
				tokenEnd, err = calculateTokenEnd(tokenStart, sizeVal, l)
				if err != nil {
					return nil, err
				}

				i = tokenEnd
				pushToken()
				goto Cont
			}
		}

		if currentToken == TUnset {
			switch {
			case b == '"':
				currentToken = TQuoted
				tokenStart = i + 1
			case IsLiteral(rune(b)):
				currentToken = TLiteral
				tokenStart = i
			case b == '{':
				currentToken = TAtom
				tokenStart = i + 1
			case b == '(':
				currentToken = TContainer
				t := pushToken()
				depth++
				if depth >= len(container) {
					grown := make([]tokenContainer, depth*2)
					copy(grown, container)
					container = grown
				}
				container[depth] = &t.Tokens
			case b == ')':
				if depth == 0 {
					return nil, fmt.Errorf("unmatched ')' at char %d in %s", i, r)
				}
				pushToken()
				depth--
			}
		}

	Cont:
		i++
		if i >= l && currentToken != TUnset {
			tokenEnd = l - 1
			pushToken()
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("mismatched parentheses, depth %d at end of parsing %s", depth, r)
	}

	if len(tokens) == 1 && tokens[0].Type == TContainer {
		tokens = tokens[0].Tokens
	}

	return tokens, nil
}

// parseFetchLine parses one "* n FETCH (...)" response line
func parseFetchLine(line string) (seq int, tokens []*Token, err error) {
	rest, ok := strings.CutPrefix(line, "* ")
	if !ok {
		return 0, nil, fmt.Errorf("unable to parse fetch line (expected '* ' prefix): %q", line)
	}
	seqStr, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return 0, nil, fmt.Errorf("unable to parse fetch line (no space after seq number): %q", line)
	}
	if seq, err = strconv.Atoi(seqStr); err != nil {
		return 0, nil, fmt.Errorf("unable to parse fetch line (invalid seq num %s): %w", seqStr, err)
	}
	content, ok := strings.CutPrefix(strings.TrimSpace(rest), "FETCH ")
	if !ok {
		return 0, nil, fmt.Errorf("unable to parse fetch line (expected FETCH after seq num): %q", line)
	}
	if tokens, err = parseFetchTokens(content); err != nil {
		return 0, nil, fmt.Errorf("token parsing failed for %q: %w", content, err)
	}
	return seq, tokens, nil
}

// parseFetchResponse tokenizes every FETCH record among the untagged lines,
// skipping unrelated responses such as EXISTS or FLAGS updates
func parseFetchResponse(lines []string) ([][]*Token, error) {
	records := make([][]*Token, 0, len(lines))
	for _, line := range lines {
		fields := strings.SplitN(line, " ", 4)
		if len(fields) < 3 || fields[0] != "*" || !strings.EqualFold(fields[2], "FETCH") {
			continue
		}
		_, tokens, err := parseFetchLine(line)
		if err != nil {
			return nil, err
		}
		records = append(records, tokens)
	}
	return records, nil
}

// fetchItem returns the token following the named item in a FETCH record
func fetchItem(tokens []*Token, name string) *Token {
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].Type == TLiteral && strings.EqualFold(tokens[i].Str, name) {
			return tokens[i+1]
		}
	}
	return nil
}

// parseSearchResponse collects the numbers of every "* SEARCH" line
func parseSearchResponse(lines []string) ([]int, error) {
	ids := make([]int, 0)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "*" || !strings.EqualFold(fields[1], "SEARCH") {
			continue
		}
		for _, f := range fields[2:] {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("invalid search response %q: %w", line, err)
			}
			ids = append(ids, n)
		}
	}
	return ids, nil
}

// parseExists returns the message count announced by the last EXISTS line
func parseExists(lines []string) int {
	n := 0
	for _, line := range lines {
		if m := existsRE.FindStringSubmatch(line); m != nil {
			n, _ = strconv.Atoi(m[1])
		}
	}
	return n
}

// splitLiteral cuts a response line around its first {n} literal
func splitLiteral(line string) (prefix, literal, trailer string, ok bool) {
	loc := literalRE.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, "", "", false
	}
	n, err := strconv.Atoi(line[loc[2]:loc[3]])
	if err != nil {
		return line, "", "", false
	}
	start := loc[1]
	end := min(start+n, len(line))
	return line[:loc[0]], line[start:end], line[end:], true
}

// findUID extracts the UID item, looking after the literal first
func findUID(trailer, prefix string) (int, bool) {
	for _, s := range []string{trailer, prefix} {
		if m := uidRE.FindStringSubmatch(s); m != nil {
			if uid, err := strconv.Atoi(m[1]); err == nil {
				return uid, true
			}
		}
	}
	return 0, false
}

// IsLiteral reports whether b can appear in an unquoted IMAP atom
func IsLiteral(b rune) bool {
	switch {
	case unicode.IsDigit(b), unicode.IsLetter(b):
		return true
	case b <= ' ' || b >= 0x7f:
		return false
	}
	return !strings.ContainsRune(`(){"`, b)
}

// GetTokenName returns the string name of a token type
func GetTokenName(tokenType TType) string {
	switch tokenType {
	case TUnset:
		return "TUnset"
	case TAtom:
		return "TAtom"
	case TNumber:
		return "TNumber"
	case TLiteral:
		return "TLiteral"
	case TQuoted:
		return "TQuoted"
	case TNil:
		return "TNil"
	case TContainer:
		return "TContainer"
	}
	return ""
}

// String returns a string representation of a Token
func (t Token) String() string {
	tokenType := GetTokenName(t.Type)
	switch t.Type {
	case TUnset, TNil:
		return tokenType
	case TAtom, TQuoted:
		return fmt.Sprintf("(%s, len %d, chars %d %#v)", tokenType, len(t.Str), len([]rune(t.Str)), t.Str)
	case TNumber:
		return fmt.Sprintf("(%s %d)", tokenType, t.Num)
	case TLiteral:
		return fmt.Sprintf("(%s %s)", tokenType, t.Str)
	case TContainer:
		return fmt.Sprintf("(%s children: %s)", tokenType, t.Tokens)
	}
	return ""
}

// checkType validates that a token is one of the acceptable types
func checkType(token *Token, acceptableTypes []TType, tks []*Token, loc string, v ...any) error {
	for _, a := range acceptableTypes {
		if token.Type == a {
			return nil
		}
	}
	names := make([]string, len(acceptableTypes))
	for i, a := range acceptableTypes {
		names[i] = GetTokenName(a)
	}
	return fmt.Errorf("expected %s token %s, got %+v in %v", strings.Join(names, "|"), fmt.Sprintf(loc, v...), token, tks)
}
