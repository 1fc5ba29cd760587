package odk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldview/collect-server/internal/form"
)

// RootCode is the fixed sentinel for a form's root group; the root never gets
// an identifier-based code.
const RootCode = "/data"

// Item codes are a short kind prefix followed by the item's id, with an
// optional _<level> suffix for multilevel sub-answers. Old 5.x group codes had
// a dash after the prefix, still accepted here.
var itemCodeRegexp = regexp.MustCompile(`^(grp|qing|q|os|on)-?([a-f0-9\-]+)`)

// CodeForItem returns the submission-tag code for a form item.
func CodeForItem(f *form.Form, item *form.Item) string {
	if f.Root != nil && item.ID == f.Root.ID {
		return RootCode
	}
	if item.IsGroup() {
		return "grp" + item.ID
	}
	return "qing" + item.ID
}

// CodeForLevel returns the code addressing one cascade level of a multilevel
// question. With previous=true the suffix refers to the level before the
// given one (0-based), the form used for internal cascade linkage; otherwise
// the suffix addresses the level directly (1-based).
func CodeForLevel(f *form.Form, item *form.Item, level int, previous bool) string {
	base := CodeForItem(f, item)
	if !item.Multilevel() {
		return base
	}
	if previous {
		return fmt.Sprintf("%s_%d", base, level-1)
	}
	return fmt.Sprintf("%s_%d", base, level)
}

// CodeForOptionNode returns the code clients submit for a selected option.
func CodeForOptionNode(n *form.OptionNode) string { return "on" + n.ID }

func CodeForOptionSet(os *form.OptionSet) string { return "os" + os.ID }

// IsItemCode reports whether the string looks like any recognized item code.
func IsItemCode(code string) bool { return itemCodeRegexp.MatchString(code) }

// ItemIDForCode decodes a code to the internal identifier it addresses. The
// form is needed for the legacy q-prefix fallback, which resolves by question
// id scoped to this form (current key first, then the pre-migration key).
func ItemIDForCode(code string, f *form.Form) (string, error) {
	md := itemCodeRegexp.FindStringSubmatch(code)
	if md == nil {
		return "", submissionErrorf("Code format unknown: %s.", code)
	}
	prefix, id := md[1], md[2]
	switch prefix {
	case "grp", "qing":
		return id, nil
	case "q":
		// old style code carrying the question id rather than the item id
		if it := f.ItemByQuestionID(id); it != nil {
			return it.ID, nil
		}
		if it := f.ItemByLegacyQuestionID(id); it != nil {
			return it.ID, nil
		}
		return "", nil
	case "on":
		return f.OptionIDForNodeID(id), nil
	case "os":
		return id, nil
	}
	return "", submissionErrorf("Code format unknown: %s.", code)
}

// OptionIDForSubmission resolves a submitted select token to an option id.
// Tokens of the form on<id> are option node codes; anything else is tried as
// a bare option id for very old clients. Returns "" when nothing matches.
func OptionIDForSubmission(token string, f *form.Form) string {
	if strings.HasPrefix(token, "on") {
		if id := f.OptionIDForNodeID(strings.TrimPrefix(token, "on")); id != "" {
			return id
		}
	}
	if f.HasOption(token) {
		return token
	}
	return ""
}
