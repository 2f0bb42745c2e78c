package portfolio

import (
	"regexp"
	"sort"
	"strings"
)

// Extracted holds the fields recovered from a CV document. Nil or empty
// fields mean the CV did not contain that information.
type Extracted struct {
	Name       string
	Email      string
	Phone      string
	Social     map[string]SocialLink
	Education  *Education
	Experience []Experience
	Skills     map[string][]string
	CVURL      string
}

var (
	namePattern  = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+$`)
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	phonePattern = regexp.MustCompile(`\+?[\d][\d\s\-()]{8,}\d`)
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	rangePattern = regexp.MustCompile(`(?i)\b(19|20)\d{2}\s*[-–]\s*(present|(19|20)\d{2})`)
)

var socialHosts = map[string]*regexp.Regexp{
	"linkedin":  regexp.MustCompile(`linkedin\.com/in/([^/?\s]+)`),
	"github":    regexp.MustCompile(`github\.com/([^/?\s]+)`),
	"instagram": regexp.MustCompile(`instagram\.com/([^/?\s]+)`),
}

// sectionHeaders maps canonical section names to the header keywords that
// introduce them in a typical CV.
var sectionHeaders = map[string][]string{
	"summary":    {"summary", "about", "profile", "objective"},
	"education":  {"education", "academic", "qualification"},
	"experience": {"experience", "work experience", "employment", "professional experience"},
	"skills":     {"skills", "technical skills", "competencies", "technologies"},
	"projects":   {"projects", "portfolio", "work samples"},
}

var skillCategories = map[string][]string{
	"programming_languages": {"javascript", "typescript", "python", "java", "go", "c++", "c#", "php", "ruby"},
	"frameworks":            {"react", "vue", "angular", "next.js", "express", "django", "flask", "spring"},
	"tools":                 {"git", "docker", "kubernetes", "aws", "azure", "jenkins", "npm", "webpack"},
	"soft_skills":           {"leadership", "communication", "teamwork", "problem-solving", "management"},
}

// ParseCV extracts portfolio fields from plain CV text. source is recorded
// as the CV's canonical URL or path.
func ParseCV(text, source string) *Extracted {
	lines := make([]string, 0, 64)
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	sections := identifySections(lines)
	ex := &Extracted{CVURL: source}
	ex.Name = extractName(lines)
	extractContact(ex, lines, sections)
	ex.Education = extractEducation(lines, sections)
	ex.Experience = extractExperience(lines, sections)
	ex.Skills = extractSkills(lines, sections)
	return ex
}

// identifySections returns the line index where each known section starts.
func identifySections(lines []string) map[string]int {
	sections := map[string]int{}
	for i, line := range lines {
		lower := strings.ToLower(line)
		if len(line) >= 50 {
			continue
		}
		for section, keywords := range sectionHeaders {
			if _, seen := sections[section]; seen {
				continue
			}
			for _, keyword := range keywords {
				if strings.Contains(lower, keyword) {
					sections[section] = i
					break
				}
			}
		}
	}
	return sections
}

// extractName looks for a proper-name line near the top of the document.
func extractName(lines []string) string {
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		if len(line) > 50 {
			continue
		}
		if namePattern.MatchString(line) {
			return line
		}
	}
	return ""
}

func extractContact(ex *Extracted, lines []string, sections map[string]int) {
	// Contact details usually sit above the first structured section.
	end := len(lines)
	if idx, ok := sections["education"]; ok && idx < end {
		end = idx
	} else if idx, ok := sections["summary"]; ok && idx < end {
		end = idx
	}
	if end > 20 {
		end = 20
	}
	head := strings.Join(lines[:end], " ")

	ex.Email = emailPattern.FindString(head)
	ex.Phone = strings.TrimSpace(phonePattern.FindString(head))

	for _, line := range lines {
		for _, raw := range urlPattern.FindAllString(line, -1) {
			for platform, pattern := range socialHosts {
				m := pattern.FindStringSubmatch(raw)
				if m == nil {
					continue
				}
				if ex.Social == nil {
					ex.Social = map[string]SocialLink{}
				}
				if _, seen := ex.Social[platform]; !seen {
					ex.Social[platform] = SocialLink{
						Username: m[1],
						URL:      strings.TrimRight(raw, ".,;"),
					}
				}
			}
		}
	}
}

func sectionRange(lines []string, sections map[string]int, name string) []string {
	start, ok := sections[name]
	if !ok {
		return nil
	}
	end := len(lines)
	for _, idx := range sections {
		if idx > start && idx < end {
			end = idx
		}
	}
	return lines[start+1 : end]
}

func extractEducation(lines []string, sections map[string]int) *Education {
	body := sectionRange(lines, sections, "education")
	if len(body) == 0 {
		return nil
	}
	edu := &Education{}
	for _, line := range body {
		if edu.Year == "" {
			edu.Year = yearPattern.FindString(line)
		}
		lower := strings.ToLower(line)
		switch {
		case edu.Degree == "" && containsAny(lower, "bachelor", "master", "phd", "bsc", "msc", "diploma", "degree"):
			edu.Degree = line
		case edu.Institution == "" && containsAny(lower, "university", "college", "institute", "school"):
			edu.Institution = line
		}
	}
	if edu.Degree == "" && edu.Institution == "" {
		return nil
	}
	return edu
}

func extractExperience(lines []string, sections map[string]int) []Experience {
	body := sectionRange(lines, sections, "experience")
	if len(body) == 0 {
		return nil
	}
	var entries []Experience
	var current *Experience
	for _, line := range body {
		// A date range starts a new position entry.
		if rangePattern.MatchString(line) {
			if current != nil {
				entries = append(entries, *current)
			}
			current = &Experience{Position: strings.TrimSpace(rangePattern.ReplaceAllString(line, ""))}
			continue
		}
		if current == nil {
			continue
		}
		if current.Company == "" {
			current.Company = line
			continue
		}
		if current.Description != "" {
			current.Description += " "
		}
		current.Description += line
	}
	if current != nil {
		entries = append(entries, *current)
	}
	return entries
}

func extractSkills(lines []string, sections map[string]int) map[string][]string {
	body := sectionRange(lines, sections, "skills")
	if len(body) == 0 {
		return nil
	}
	skills := map[string][]string{}
	for _, line := range body {
		for _, item := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == '|' || r == '•' || r == ';'
		}) {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			category := categorizeSkill(strings.ToLower(item))
			skills[category] = append(skills[category], item)
		}
	}
	for cat := range skills {
		skills[cat] = dedupe(skills[cat])
	}
	return skills
}

func categorizeSkill(lower string) string {
	// Stable iteration so the same skill always lands in the same bucket.
	cats := make([]string, 0, len(skillCategories))
	for cat := range skillCategories {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		for _, keyword := range skillCategories[cat] {
			if strings.Contains(lower, keyword) {
				return cat
			}
		}
	}
	return "other"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	seen := map[string]struct{}{}
	out := items[:0]
	for _, item := range items {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// MergeCV applies extracted CV fields onto the config, leaving fields the CV
// did not mention untouched. It returns the names of updated fields.
func (c *Config) MergeCV(ex *Extracted) []string {
	var updated []string
	if ex.Name != "" && ex.Name != c.Personal.Name {
		c.Personal.Name = ex.Name
		updated = append(updated, "personal.name")
	}
	if ex.Email != "" && ex.Email != c.Contact.Email {
		c.Contact.Email = ex.Email
		updated = append(updated, "contact.email")
	}
	if ex.Phone != "" && ex.Phone != c.Contact.Phone {
		c.Contact.Phone = ex.Phone
		updated = append(updated, "contact.phone")
	}
	for _, platform := range sortedKeys(ex.Social) {
		link := ex.Social[platform]
		if existing, ok := c.Contact.Social[platform]; ok && existing.URL == link.URL {
			continue
		}
		if c.Contact.Social == nil {
			c.Contact.Social = map[string]SocialLink{}
		}
		c.Contact.Social[platform] = link
		updated = append(updated, "contact.social."+platform)
	}
	if ex.Education != nil && *ex.Education != c.Professional.Education {
		c.Professional.Education = *ex.Education
		updated = append(updated, "professional.education")
	}
	if len(ex.Experience) > 0 {
		c.Professional.Experience = ex.Experience
		updated = append(updated, "professional.experience")
	}
	for _, cat := range sortedSkillKeys(ex.Skills) {
		items := ex.Skills[cat]
		if len(items) == 0 {
			continue
		}
		if c.Skills == nil {
			c.Skills = map[string][]string{}
		}
		c.Skills[cat] = items
		updated = append(updated, "skills."+cat)
	}
	if ex.CVURL != "" && ex.CVURL != c.Resume.DownloadURL {
		c.Resume.DownloadURL = ex.CVURL
		updated = append(updated, "resume.download_url")
	}
	return updated
}

func sortedKeys(m map[string]SocialLink) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSkillKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
