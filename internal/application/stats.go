package application

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var bibtexAuthorSeparator = regexp.MustCompile(`\s+and\s+`)

func computeStats(papers []Paper) Stats {
	years := map[string]int{}
	booktitles := map[string]int{}
	authors := map[string]int{}
	tags := map[string]int{}

	for _, paper := range papers {
		if year := yearOf(paper); year != "" {
			years[year]++
		}
		if title := booktitleOf(paper); title != "" {
			booktitles[title]++
		}
		for _, author := range authorsOf(paper) {
			authors[author]++
		}
		for _, tag := range tagsOf(paper) {
			tags[tag]++
		}
	}

	return Stats{
		Years:      statsByName(years),
		Booktitles: statsByName(booktitles),
		Authors:    statsByName(authors),
		Tags:       statsByCount(tags),
	}
}

func statsByName(counts map[string]int) []Stat {
	out := toStats(counts)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func statsByCount(counts map[string]int) []Stat {
	out := toStats(counts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func toStats(counts map[string]int) []Stat {
	out := make([]Stat, 0, len(counts))
	for name, count := range counts {
		out = append(out, Stat{Name: name, Count: count})
	}
	return out
}

func matchesFilter(paper Paper, field, value string) bool {
	switch field {
	case FilterYear:
		return yearOf(paper) == value
	case FilterBooktitle:
		return booktitleOf(paper) == value
	case FilterAuthor:
		return containsString(authorsOf(paper), value)
	case FilterTag:
		return containsString(tagsOf(paper), value)
	}
	return false
}

func yearOf(paper Paper) string {
	return scalarString(paper.Attributes["year"])
}

func booktitleOf(paper Paper) string {
	return scalarString(paper.Attributes["booktitle"])
}

// authorsOf reads "author" or "authors" as a list or a BibTeX "A and B" string.
func authorsOf(paper Paper) []string {
	raw, ok := paper.Attributes["author"]
	if !ok {
		raw = paper.Attributes["authors"]
	}
	if s, ok := raw.(string); ok {
		return splitNonEmpty(bibtexAuthorSeparator.Split(strings.TrimSpace(s), -1))
	}
	return listStrings(raw)
}

// tagsOf reads "tags" as a list or a comma separated string.
func tagsOf(paper Paper) []string {
	raw := paper.Attributes["tags"]
	if s, ok := raw.(string); ok {
		return splitNonEmpty(strings.Split(s, ","))
	}
	return listStrings(raw)
}

func listStrings(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		values = append(values, scalarString(item))
	}
	return splitNonEmpty(values)
}

func splitNonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// scalarString renders JSON scalars; objects and arrays yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
