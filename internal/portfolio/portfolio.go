// Package portfolio loads the static portfolio configuration that feeds the
// assistant's tools and system prompt.
package portfolio

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PersonalInfo describes the portfolio owner.
type PersonalInfo struct {
	Name        string `yaml:"name"`
	Nickname    string `yaml:"nickname"`
	Age         string `yaml:"age"`
	Location    string `yaml:"location"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// SocialLink is one social profile entry.
type SocialLink struct {
	Username string `yaml:"username"`
	URL      string `yaml:"url"`
}

// ContactInfo carries contact channels and social profiles.
type ContactInfo struct {
	Email    string                `yaml:"email"`
	Phone    string                `yaml:"phone"`
	Location string                `yaml:"location"`
	Social   map[string]SocialLink `yaml:"social"`
}

// Education is a single degree entry.
type Education struct {
	Institution string `yaml:"institution"`
	Degree      string `yaml:"degree"`
	Year        string `yaml:"year"`
}

// Experience is a single position entry.
type Experience struct {
	Company     string `yaml:"company"`
	Position    string `yaml:"position"`
	Description string `yaml:"description"`
}

// Professional groups education, experience and search criteria.
type Professional struct {
	Education  Education    `yaml:"education"`
	Experience []Experience `yaml:"experience"`
	LookingFor []string     `yaml:"looking_for"`
}

// AIPersonality steers how the assistant impersonates the owner.
type AIPersonality struct {
	CharacterName     string   `yaml:"character_name"`
	PersonalityTraits []string `yaml:"personality_traits"`
	BackgroundStory   string   `yaml:"background_story"`
	PersonalQuirks    []string `yaml:"personal_quirks"`
	CrazyStory        string   `yaml:"crazy_story"`
}

// Project is one showcased project.
type Project struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	TechStack   []string `yaml:"tech_stack"`
	DemoURL     string   `yaml:"demo_url"`
	RepoURL     string   `yaml:"repo_url"`
}

// Resume describes the downloadable CV document.
type Resume struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	FileType    string `yaml:"file_type"`
	LastUpdated string `yaml:"last_updated"`
	FileSize    string `yaml:"file_size"`
	DownloadURL string `yaml:"download_url"`
}

// Opportunities describes what the owner is currently looking for.
type Opportunities struct {
	Availability      string   `yaml:"availability"`
	PreferredLocation string   `yaml:"preferred_location"`
	RemoteWork        bool     `yaml:"remote_work"`
	FocusAreas        []string `yaml:"focus_areas"`
	TechStack         []string `yaml:"tech_stack"`
	WhatIBring        string   `yaml:"what_i_bring"`
	Motivation        string   `yaml:"motivation"`
	CallToAction      string   `yaml:"call_to_action"`
}

// Sports lists athletic interests for the small-talk tool.
type Sports struct {
	Favorites []string `yaml:"favorites"`
	Story     string   `yaml:"story"`
}

// Site holds public site metadata.
type Site struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	Author      string `yaml:"author"`
}

// Config is the full portfolio document.
type Config struct {
	Personal      PersonalInfo        `yaml:"personal"`
	Contact       ContactInfo         `yaml:"contact"`
	Professional  Professional        `yaml:"professional"`
	AIPersonality AIPersonality       `yaml:"ai_personality"`
	Skills        map[string][]string `yaml:"skills"`
	Projects      []Project           `yaml:"projects"`
	Resume        Resume              `yaml:"resume"`
	Opportunities Opportunities       `yaml:"opportunities"`
	Sports        Sports              `yaml:"sports"`
	Site          Site                `yaml:"site"`
}

// Load reads and parses the portfolio YAML at path. The result is read-only
// for the life of the process.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("portfolio: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("portfolio: parse config: %w", err)
	}
	if strings.TrimSpace(cfg.Personal.Name) == "" {
		return nil, fmt.Errorf("portfolio: config at %s is missing personal.name", path)
	}
	return &cfg, nil
}

// Save writes the configuration back to path as YAML.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("portfolio: marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("portfolio: write config: %w", err)
	}
	return nil
}

// SkillCategories returns skill category names in stable order.
func (c *Config) SkillCategories() []string {
	cats := make([]string, 0, len(c.Skills))
	for cat := range c.Skills {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// SocialPlatforms returns the configured social platform keys in stable order.
func (c *Config) SocialPlatforms() []string {
	return socialPlatforms(c.Contact.Social)
}

// SystemPrompt renders the character prompt the assistant runs under. It is
// prepended server-side to every conversation and never supplied by clients.
func (c *Config) SystemPrompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Character: %s\n\n", c.Personal.Name)
	fmt.Fprintf(&b, "Act as me, %s (also known as %s) - a %s %s from %s. ",
		c.Personal.Name, c.Personal.Nickname, c.Personal.Age, c.Personal.Title, c.Personal.Location)
	b.WriteString("You're embodying my avatar to create an interactive portfolio experience. ")
	b.WriteString("You're not an AI assistant - you're ME having a casual, fun conversation with visitors.\n\n")

	b.WriteString("## Tone & Style\n")
	b.WriteString("- Be casual, warm, and conversational - like chatting with a friend\n")
	b.WriteString("- Use short, punchy sentences and simple language\n")
	b.WriteString("- Be enthusiastic about tech and development\n")
	b.WriteString("- End most responses with a question to keep conversation flowing\n")
	b.WriteString("- Match the language of the user\n\n")

	b.WriteString("## Background Information\n\n")
	fmt.Fprintf(&b, "### About Me\n- %s from %s\n- %s\n- %s\n\n",
		c.Personal.Age, c.Personal.Location, c.Personal.Title, c.AIPersonality.BackgroundStory)
	fmt.Fprintf(&b, "### Education\n- %s from %s (%s)\n\n",
		c.Professional.Education.Degree, c.Professional.Education.Institution, c.Professional.Education.Year)

	b.WriteString("### Professional Experience\n")
	for _, exp := range c.Professional.Experience {
		fmt.Fprintf(&b, "- %s at %s: %s\n", exp.Position, exp.Company, exp.Description)
	}
	b.WriteString("\n### Contact Information\n")
	if c.Contact.Email != "" {
		fmt.Fprintf(&b, "- **Email:** %s\n", c.Contact.Email)
	}
	if c.Contact.Phone != "" {
		fmt.Fprintf(&b, "- **Phone:** %s\n", c.Contact.Phone)
	}
	if c.Contact.Location != "" {
		fmt.Fprintf(&b, "- **Location:** %s\n", c.Contact.Location)
	}
	for _, platform := range socialPlatforms(c.Contact.Social) {
		fmt.Fprintf(&b, "- **%s:** %s\n", capitalize(platform), c.Contact.Social[platform].URL)
	}

	b.WriteString("\n### What I'm Looking For\n")
	for _, item := range c.Professional.LookingFor {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n### Personal Traits\n")
	for _, trait := range c.AIPersonality.PersonalityTraits {
		fmt.Fprintf(&b, "- %s\n", trait)
	}
	b.WriteString("\n### Personal Quirks\n")
	for _, quirk := range c.AIPersonality.PersonalQuirks {
		fmt.Fprintf(&b, "- %s\n", quirk)
	}
	fmt.Fprintf(&b, "\n### Portfolio Information\n- Portfolio URL: %s\n- Portfolio Description: %s\n\n",
		c.Site.URL, c.Site.Description)

	b.WriteString("## Tool Usage Guidelines\n")
	b.WriteString("- Use AT MOST ONE TOOL per response\n")
	b.WriteString("- Always refer to the tool by its exact name when invoking\n")
	b.WriteString("- The tool already provides a response, so don't repeat the information it returns\n")
	b.WriteString("- Don't mention the tool usage in your response to the user\n")

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func socialPlatforms(social map[string]SocialLink) []string {
	platforms := make([]string, 0, len(social))
	for p := range social {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}
