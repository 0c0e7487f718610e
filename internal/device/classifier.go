// Package device turns User-Agent strings into coarse device, browser and
// OS labels. The classification is a keyword heuristic, not a UA database:
// it is good enough for dashboard breakdowns and nothing more.
package device

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Device types.
const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
)

// Info is the result of classifying one User-Agent.
type Info struct {
	DeviceType string
	Browser    string
	OS         string
	Bot        bool
}

// Classifier classifies User-Agent strings.
type Classifier interface {
	Classify(userAgent string) Info
}

// Rule maps any of Patterns to Name. Patterns are matched case-insensitively
// as substrings.
type Rule struct {
	Name     string
	Patterns []string
}

// Tables holds the heuristics. Rule order matters: the first rule with any
// matching pattern wins.
type Tables struct {
	Tablet   []string
	Mobile   []string
	Browsers []Rule
	OS       []Rule
	Bots     []string
}

// DefaultTables returns the built-in heuristics. Tablet patterns are
// checked before mobile ones, and browsers are tried as Chrome, Firefox,
// Safari, Edge, so Edge (whose UA also says Chrome) reports as Chrome.
func DefaultTables() Tables {
	return Tables{
		Tablet: []string{"ipad", "tablet", "kindle", "playbook", "silk/"},
		Mobile: []string{
			"mobile", "iphone", "ipod", "android", "blackberry",
			"iemobile", "opera mini", "windows phone",
		},
		Browsers: []Rule{
			{Name: "Chrome", Patterns: []string{"chrome", "crios"}},
			{Name: "Firefox", Patterns: []string{"firefox", "fxios"}},
			{Name: "Safari", Patterns: []string{"safari"}},
			{Name: "Edge", Patterns: []string{"edg/", "edge/"}},
		},
		OS: []Rule{
			{Name: "Windows", Patterns: []string{"windows"}},
			{Name: "Android", Patterns: []string{"android"}},
			{Name: "iOS", Patterns: []string{"iphone", "ipad", "ipod"}},
			{Name: "Mac OS", Patterns: []string{"macintosh", "mac os"}},
			{Name: "Chrome OS", Patterns: []string{"cros"}},
			{Name: "Linux", Patterns: []string{"linux"}},
		},
		Bots: []string{
			"bot", "crawler", "spider", "slurp", "headless",
			"curl/", "wget/", "python-requests", "go-http-client",
		},
	}
}

// TableClassifier classifies with Aho-Corasick matchers compiled from Tables.
type TableClassifier struct {
	// ahocorasick.Matcher mutates internal state on Match.
	mu       sync.Mutex
	tablet   *ahocorasick.Matcher
	mobile   *ahocorasick.Matcher
	bots     *ahocorasick.Matcher
	browsers ruleSet
	os       ruleSet
}

type ruleSet struct {
	matcher *ahocorasick.Matcher
	// owner maps a dictionary index to the index of its rule.
	owner []int
	names []string
}

// NewTableClassifier compiles t.
func NewTableClassifier(t Tables) *TableClassifier {
	return &TableClassifier{
		tablet:   newMatcher(t.Tablet),
		mobile:   newMatcher(t.Mobile),
		bots:     newMatcher(t.Bots),
		browsers: newRuleSet(t.Browsers),
		os:       newRuleSet(t.OS),
	}
}

// NewDefault returns a classifier over DefaultTables.
func NewDefault() *TableClassifier {
	return NewTableClassifier(DefaultTables())
}

func newMatcher(patterns []string) *ahocorasick.Matcher {
	if len(patterns) == 0 {
		return nil
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return ahocorasick.NewStringMatcher(lowered)
}

func newRuleSet(rules []Rule) ruleSet {
	rs := ruleSet{names: make([]string, len(rules))}
	var dictionary []string
	for i, r := range rules {
		rs.names[i] = r.Name
		for _, p := range r.Patterns {
			dictionary = append(dictionary, p)
			rs.owner = append(rs.owner, i)
		}
	}
	rs.matcher = newMatcher(dictionary)
	return rs
}

func matches(m *ahocorasick.Matcher, ua []byte) []int {
	if m == nil {
		return nil
	}
	return m.Match(ua)
}

// first returns the name of the lowest-indexed rule with a hit, or "".
func (rs ruleSet) first(ua []byte) string {
	best := -1
	for _, hit := range matches(rs.matcher, ua) {
		if owner := rs.owner[hit]; best == -1 || owner < best {
			best = owner
		}
	}
	if best == -1 {
		return ""
	}
	return rs.names[best]
}

// Classify labels userAgent. An empty User-Agent yields the zero Info.
func (c *TableClassifier) Classify(userAgent string) Info {
	if strings.TrimSpace(userAgent) == "" {
		return Info{}
	}
	ua := []byte(strings.ToLower(userAgent))

	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		DeviceType: TypeDesktop,
		Browser:    c.browsers.first(ua),
		OS:         c.os.first(ua),
		Bot:        len(matches(c.bots, ua)) > 0,
	}

	switch {
	case len(matches(c.tablet, ua)) > 0:
		info.DeviceType = TypeTablet
	case len(matches(c.mobile, ua)) > 0:
		info.DeviceType = TypeMobile
	}

	return info
}
