package models

import "strings"

// Teammate is a profile as listed on the discovery page.
type Teammate struct {
	Profile
	ConnectionStatus Status `json:"connection_status,omitempty"`
}

// TeammateQuery holds the discovery filters. Department and Domain of "" or "all" match everything.
type TeammateQuery struct {
	Search     string
	Department string
	Domain     string
}

// Facets are the distinct non-empty departments and domains of a profile set, in first-seen order.
type Facets struct {
	Departments []string `json:"departments"`
	Domains     []string `json:"domains"`
}

// Matches reports whether t passes q.
func (q TeammateQuery) Matches(t Teammate) bool {
	if !exactFilter(q.Department, t.Department) || !exactFilter(q.Domain, t.Domain) {
		return false
	}

	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	if contains(t.Name, term) || contains(t.Department, term) || contains(t.Domain, term) {
		return true
	}
	for _, s := range t.Skills {
		if contains(s, term) {
			return true
		}
	}
	return false
}

func exactFilter(want, got string) bool {
	return want == "" || want == "all" || want == got
}

func contains(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

// FilterTeammates returns the entries of all passing q, keeping order.
func FilterTeammates(all []Teammate, q TeammateQuery) []Teammate {
	out := make([]Teammate, 0, len(all))
	for _, t := range all {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// BuildFacets collects the facet values of all.
func BuildFacets(all []Teammate) Facets {
	f := Facets{Departments: []string{}, Domains: []string{}}
	seenDept, seenDomain := map[string]bool{}, map[string]bool{}
	for _, t := range all {
		if t.Department != "" && !seenDept[t.Department] {
			seenDept[t.Department] = true
			f.Departments = append(f.Departments, t.Department)
		}
		if t.Domain != "" && !seenDomain[t.Domain] {
			seenDomain[t.Domain] = true
			f.Domains = append(f.Domains, t.Domain)
		}
	}
	return f
}
