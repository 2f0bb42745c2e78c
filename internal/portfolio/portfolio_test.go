package portfolio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
personal:
  name: Michael Mak
  nickname: Mike
  age: 28-year-old
  location: Hong Kong
  title: Software Engineer
contact:
  email: mike@example.com
  social:
    github:
      username: michaeltmk
      url: https://github.com/michaeltmk
    linkedin:
      username: michaeltmk
      url: https://linkedin.com/in/michaeltmk
professional:
  education:
    institution: HKU
    degree: BSc Computer Science
    year: "2019"
  experience:
    - company: Acme
      position: Backend Engineer
      description: Built data pipelines
  looking_for:
    - Backend roles
ai_personality:
  background_story: Grew up tinkering with computers.
  personality_traits: [curious, direct]
  personal_quirks: [drinks too much coffee]
skills:
  backend: [Go, Python]
  frontend: [React]
projects:
  - title: Portfolio
    description: This site
    tech_stack: [Go, Next.js]
    repo_url: https://github.com/michaeltmk/portfolio
resume:
  title: Resume
  download_url: /resume.pdf
opportunities:
  availability: Immediately
  preferred_location: Hong Kong
  remote_work: true
  focus_areas: [backend]
  tech_stack: [Go]
  what_i_bring: Pragmatism
  motivation: Shipping useful things
  call_to_action: Say hi!
sports:
  favorites: [bouldering]
  story: Fell off a wall once.
site:
  name: michaeltmk.dev
  url: https://michaeltmk.dev
  description: Personal portfolio with an AI twist
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)

	assert.Equal(t, "Michael Mak", cfg.Personal.Name)
	assert.Equal(t, "mike@example.com", cfg.Contact.Email)
	assert.Len(t, cfg.Projects, 1)
	assert.Equal(t, []string{"Go", "Python"}, cfg.Skills["backend"])
	assert.True(t, cfg.Opportunities.RemoteWork)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  name: x\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "personal.name")
}

func TestSkillCategoriesSorted(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"backend", "frontend"}, cfg.SkillCategories())
}

func TestSystemPrompt(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)

	prompt := cfg.SystemPrompt()
	assert.Contains(t, prompt, "# Character: Michael Mak")
	assert.Contains(t, prompt, "Backend Engineer at Acme")
	assert.Contains(t, prompt, "**Email:** mike@example.com")
	assert.Contains(t, prompt, "**Github:** https://github.com/michaeltmk")
	assert.Contains(t, prompt, "AT MOST ONE TOOL")
}
