package audit

import (
	"net/url"
	"strings"
)

// actionGroup pairs an action with the keywords that identify it.
type actionGroup struct {
	action   ActionKind
	keywords []string
}

// actionGroups are tested in declaration order; the first match wins.
// A segment matches a group when it contains or starts with any keyword.
// "unsubscribe" is declared before "subscribe" so the substring match
// cannot swallow it.
var actionGroups = []actionGroup{
	{ActionCreate, []string{"create", "register", "signup", "add", "insert", "post"}},
	{ActionRead, []string{"get", "fetch", "find", "list", "view", "show", "read", "search"}},
	{ActionUpdate, []string{"update", "edit", "patch", "put", "modify"}},
	{ActionDelete, []string{"delete", "remove", "destroy"}},
	{ActionAuth, []string{"login", "logout", "auth", "signin", "signout"}},
	{ActionUnsubscribe, []string{"unsubscribe"}},
	{ActionSubscribe, []string{"subscribe"}},
}

// ClassifyAction maps a request descriptor (typically "METHOD /path") to a
// coarse action category. Matching is case-insensitive.
func ClassifyAction(segment string) ActionKind {
	lower := strings.ToLower(segment)
	for _, group := range actionGroups {
		for _, kw := range group.keywords {
			if strings.HasPrefix(lower, kw) || strings.Contains(lower, kw) {
				return group.action
			}
		}
	}
	return ActionUnknown
}

// prefixTokens are path segments discarded before picking the entity.
var prefixTokens = map[string]struct{}{
	"api": {},
	"v1":  {},
	"v2":  {},
	"v3":  {},
}

// ClassifyEntity extracts the first meaningful path segment of a URL.
// Returns "unknown" when no segment remains and "error" when the URL
// cannot be parsed.
func ClassifyEntity(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "error"
	}

	for _, segment := range strings.Split(u.Path, "/") {
		if segment == "" {
			continue
		}
		if _, skip := prefixTokens[strings.ToLower(segment)]; skip {
			continue
		}
		return segment
	}
	return UnknownValue
}
