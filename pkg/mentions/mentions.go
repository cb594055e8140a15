package mentions

import (
	"regexp"
	"strings"
)

// Mention grammar. Users and roles are tagged ULIDs; the mass targets
// are bare literals anywhere in the content.
//
//	<@01ARZ3NDEKTSV4RRFFQ69G5FAV>   user mention
//	<%01ARZ3NDEKTSV4RRFFQ69G5FAV>   role mention
//	@everyone                       every member of the channel
//	@online                         every currently-online member
var (
	userPattern = regexp.MustCompile(`<@([0-9A-HJKMNP-TV-Z]{26})>`)
	rolePattern = regexp.MustCompile(`<%([0-9A-HJKMNP-TV-Z]{26})>`)
)

// Parsed is the mention surface extracted from message content. Users
// and Roles keep first-appearance order with duplicates removed.
type Parsed struct {
	Users    []string
	Roles    []string
	Everyone bool
	Online   bool
}

// Parse scans content for the mention grammar.
func Parse(content string) Parsed {
	return Parsed{
		Users:    capture(userPattern, content),
		Roles:    capture(rolePattern, content),
		Everyone: strings.Contains(content, "@everyone"),
		Online:   strings.Contains(content, "@online"),
	}
}

func capture(re *regexp.Regexp, content string) []string {
	matches := re.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
