package social

import (
	"strings"
	"unicode/utf8"
)

type HashtagCategory struct {
	Name string
	Tags []string
}

// HashtagCategories is the built-in hashtag library, in display order.
var HashtagCategories = []HashtagCategory{
	{"core", []string{"#GovCon", "#GovernmentContracting", "#FederalContracts", "#SmallBusiness", "#ContractingMadeSimple"}},
	{"set asides", []string{"#8a", "#WOSB", "#HUBZone", "#SDVOSB", "#VOSB", "#MinorityOwned", "#WomenOwned"}},
	{"process", []string{"#SAMRegistration", "#SAMgov", "#NAICS", "#NAICSCode", "#NAICSCodeHelp", "#RFP", "#ContractOpportunity"}},
	{"business", []string{"#B2G", "#B2GGrowth", "#GovSales", "#GovernmentSales", "#ContractorLife", "#SmallBiz"}},
	{"tips", []string{"#ContractingTips", "#GovConTips", "#SmallBusinessTips", "#WinGovernmentContracts", "#Contracting101"}},
	{"community", []string{"#GovConCommunity", "#SmallBusinessCommunity", "#Entrepreneur", "#BusinessGrowth"}},
}

type topicTags struct {
	topic string
	tags  []string
}

var topicHashtags = []topicTags{
	{"sam registration", []string{"#SAMRegistration", "#SAMgov", "#GovCon", "#SmallBusiness", "#Contracting101"}},
	{"naics codes", []string{"#NAICS", "#NAICSCode", "#NAICSCodeHelp", "#GovCon", "#FederalContracts"}},
	{"government contracts", []string{"#GovCon", "#GovernmentContracting", "#FederalContracts", "#B2G", "#SmallBusiness"}},
	{"8a program", []string{"#8a", "#MinorityOwned", "#GovCon", "#SmallBusiness", "#FederalContracts"}},
	{"wosb", []string{"#WOSB", "#WomenOwned", "#GovCon", "#SmallBusiness", "#FederalContracts"}},
	{"hubzone", []string{"#HUBZone", "#GovCon", "#SmallBusiness", "#FederalContracts", "#RuralBusiness"}},
	{"winning contracts", []string{"#WinGovernmentContracts", "#GovCon", "#B2GGrowth", "#ContractingTips"}},
	{"proposal writing", []string{"#ProposalWriting", "#RFP", "#GovCon", "#FederalContracts", "#ContractingTips"}},
	{"marketing", []string{"#GovMarketing", "#B2G", "#GovernmentSales", "#SmallBusiness", "#MarketingTips"}},
	{"set asides", []string{"#SetAsides", "#8a", "#WOSB", "#HUBZone", "#SmallBusiness"}},
	{"contract opportunities", []string{"#ContractOpportunity", "#FedBizOpps", "#GovCon", "#RFP", "#FederalContracts"}},
}

func appendUnique(dst []string, seen map[string]bool, tags ...string) []string {
	for _, t := range tags {
		if k := strings.ToLower(t); !seen[k] {
			seen[k] = true
			dst = append(dst, t)
		}
	}
	return dst
}

// SuggestHashtags returns up to count tags for a topic. An exact topic wins;
// otherwise every topic sharing a whole word with it contributes, in table
// order. With no match the core tags are returned.
func SuggestHashtags(topic string, count int) []string {
	if count <= 0 {
		count = 5
	}
	topic = strings.ToLower(strings.Join(strings.Fields(topic), " "))
	words := make(map[string]bool)
	for _, w := range strings.Fields(topic) {
		words[w] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, tt := range topicHashtags {
		if tt.topic == topic {
			out = appendUnique(nil, make(map[string]bool), tt.tags...)
			break
		}
	}
	if out == nil {
		for _, tt := range topicHashtags {
			for _, w := range strings.Fields(tt.topic) {
				if words[w] {
					out = appendUnique(out, seen, tt.tags...)
					break
				}
			}
		}
	}
	if len(out) == 0 {
		out = append([]string(nil), HashtagCategories[0].Tags...)
	}
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// ParseHashtags splits a comma or space separated list and adds a missing
// leading "#".
func ParseHashtags(s string) []string {
	var tags []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' }) {
		if !strings.HasPrefix(f, "#") {
			f = "#" + f
		}
		if f != "#" {
			tags = append(tags, f)
		}
	}
	return tags
}

type TagInfo struct {
	Tag      string
	Category string // "other" when not in the library
}

type HashtagAnalysis struct {
	Tags       []TagInfo
	TotalChars int
	Remaining  int // characters left in a tweet after the tags and separating spaces
	Warnings   []string
	Related    []string
}

func categoryOf(tag string) string {
	for _, c := range HashtagCategories {
		for _, t := range c.Tags {
			if strings.EqualFold(t, tag) {
				return c.Name
			}
		}
	}
	return "other"
}

// AnalyzeHashtags classifies tags against the library, measures the room
// they leave in a tweet and proposes up to five related tags from topics
// that use any of them.
func AnalyzeHashtags(tags []string) HashtagAnalysis {
	var a HashtagAnalysis
	given := make(map[string]bool, len(tags))
	for _, t := range tags {
		a.Tags = append(a.Tags, TagInfo{Tag: t, Category: categoryOf(t)})
		a.TotalChars += utf8.RuneCountInString(t)
		given[strings.ToLower(t)] = true
	}
	a.Remaining = MaxTweetLength - a.TotalChars - len(tags)
	if len(tags) > 5 {
		a.Warnings = append(a.Warnings, "Consider using 3-5 hashtags for best engagement")
	}
	if a.Remaining < 100 {
		a.Warnings = append(a.Warnings, "Hashtags take up significant space; keep the content concise")
	}

	seen := make(map[string]bool, len(given))
	for k := range given {
		seen[k] = true
	}
	for _, tt := range topicHashtags {
		for _, t := range tt.tags {
			if given[strings.ToLower(t)] {
				a.Related = appendUnique(a.Related, seen, tt.tags...)
				break
			}
		}
	}
	if len(a.Related) > 5 {
		a.Related = a.Related[:5]
	}
	return a
}
