package imapio

import (
	"slices"
	"strconv"
	"strings"
)

// Standard IMAP system flags
const (
	FlagSeen     = `\Seen`
	FlagAnswered = `\Answered`
	FlagFlagged  = `\Flagged`
	FlagDeleted  = `\Deleted`
	FlagDraft    = `\Draft`
	FlagRecent   = `\Recent`
)

// parseFlags reads the FLAGS item of a FETCH response. When several records
// come back, the one carrying the given UID wins.
func parseFlags(lines []string, uid int) ([]string, error) {
	records, err := parseFetchResponse(lines)
	if err != nil {
		return nil, err
	}

	var found []string
	for _, tks := range records {
		for len(tks) == 1 && tks[0].Type == TContainer {
			tks = tks[0].Tokens
		}

		t := fetchItem(tks, "FLAGS")
		if t == nil {
			continue
		}
		if err = checkType(t, []TType{TContainer}, tks, "after FLAGS"); err != nil {
			return nil, err
		}

		flags := make([]string, len(t.Tokens))
		for i, f := range t.Tokens {
			if err = checkType(f, []TType{TLiteral, TQuoted, TNumber}, tks, "for FLAGS[%d]", i); err != nil {
				return nil, err
			}
			if f.Type == TNumber {
				flags[i] = strconv.Itoa(f.Num)
			} else {
				flags[i] = f.Str
			}
		}

		if u := fetchItem(tks, "UID"); u != nil && u.Type == TNumber && u.Num == uid {
			return flags, nil
		}
		if found == nil {
			found = flags
		}
	}

	if found == nil {
		found = []string{}
	}
	return found, nil
}

// hasFlag reports whether flag is in flags. Flags compare case-insensitively.
func hasFlag(flags []string, flag string) bool {
	return slices.ContainsFunc(flags, func(f string) bool {
		return strings.EqualFold(f, flag)
	})
}
