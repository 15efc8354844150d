package provider

import "strings"

type queryRule struct {
	label    string
	keywords []string
}

// Order matters: the first matching rule wins.
var queryRules = []queryRule{
	{"Net Worth", []string{"net worth"}},
	{"Age", []string{"age", "born"}},
	{"Biography", []string{"career", "biography"}},
	{"Family Information", []string{"parents", "family"}},
	{"Career", []string{"job"}},
	{"Education", []string{"education", "school"}},
	{"Personal Life", []string{"married", "spouse"}},
	{"Awards & Achievements", []string{"award", "achievement"}},
	{"Company Info", []string{"history", "background"}},
	{"Product Info", []string{"product", "service"}},
	{"News", []string{"news", "latest"}},
	{"Social Media", []string{"social media", "twitter", "instagram"}},
	{"Philanthropy", []string{"charity", "philanthropy"}},
	{"Real Estate", []string{"property", "real estate"}},
	{"Health", []string{"health", "condition"}},
	{"Events", []string{"event", "conference"}},
	{"Contact Info", []string{"email", "phone", "address", "contact"}},
}

// ClassifyQuery labels a query template by keyword; unknown queries are "Miscellaneous".
func ClassifyQuery(query string) string {
	q := strings.ToLower(query)
	for _, rule := range queryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.label
			}
		}
	}
	return "Miscellaneous"
}
