package imapio

import (
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var domainRE = regexp.MustCompile(`@[^,]+|/[^,]+`)

// addressParser decodes encoded-word display names in any charset known to
// the header decoder
var addressParser = &mail.AddressParser{WordDecoder: wordDecoder}

// ParseTags splits a folder name on the default delimiter and normalizes
// each segment. The modified UTF-7 escape "&-" stands for a literal "&" and
// never splits.
func ParseTags(name string) []string {
	return ParseTagsDelim(name, DefaultDelimiter)
}

// ParseTagsDelim is ParseTags for a server-specific hierarchy delimiter.
func ParseTagsDelim(name, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	segments := strings.Split(strings.ReplaceAll(name, "&-", "&"), delimiter)
	tags := make([]string, len(segments))
	for i, s := range segments {
		tags[i] = CleanTag(s)
	}
	return tags
}

// FormatTags joins tags for display
func FormatTags(tags []string, separator string) string {
	return strings.Join(tags, separator)
}

// CleanTag lowercases text, strips surrounding quotes and spaces and
// collapses inner whitespace
func CleanTag(text string) string {
	return collapseSpace(strings.Trim(strings.ToLower(text), `" `))
}

// CleanNickname extracts a display name from an address header value,
// deriving one from the mailbox when the address has none. Text that does
// not parse as an address comes back trimmed but otherwise untouched.
func CleanNickname(text string) string {
	addr, err := addressParser.Parse(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	if name := collapseSpace(strings.Trim(addr.Name, `" `)); name != "" {
		return name
	}

	nick := domainRE.ReplaceAllString(addr.Address, "")
	nick = strings.NewReplacer(".", " ", "_", " ").Replace(nick)
	nick = collapseSpace(strings.Trim(nick, `" `))
	return cases.Title(language.Und).String(nick)
}

// TagSet is a set of normalized tags
type TagSet map[string]struct{}

// NewTagSet cleans values into a set, dropping the ones that clean to nothing
func NewTagSet(values ...string) TagSet {
	set := make(TagSet, len(values))
	for _, v := range values {
		if t := CleanTag(v); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Has reports whether tag is in the set
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Intersects reports whether any of tags is in the set
func (s TagSet) Intersects(tags []string) bool {
	for _, t := range tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}
