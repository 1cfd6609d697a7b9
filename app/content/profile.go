package content

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed default_profile.toml
var defaultProfile []byte

// Profile is the homepage content and site-wide metadata.
type Profile struct {
	Site       Site            `toml:"site"`
	Hero       Hero            `toml:"hero"`
	Skills     []SkillCategory `toml:"skills"`
	Experience []Experience    `toml:"experience"`
	Education  []Education     `toml:"education"`
	Services   []Service       `toml:"services"`
	Contact    Contact         `toml:"contact"`
	Nav        []Link          `toml:"nav"`
	Socials    []Link          `toml:"socials"`
}

// Site holds site-wide metadata.
type Site struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	OGImage     string `toml:"og_image"`
	AuthorShort string `toml:"author_short"`
	AuthorFull  string `toml:"author_full"`
	Role        string `toml:"role"`
	Location    string `toml:"location"`
	Email       string `toml:"email"`
	BlogTitle   string `toml:"blog_title"`
	BlogTagline string `toml:"blog_tagline"`
}

// Hero is the introduction block at the top of the homepage.
type Hero struct {
	Greeting string `toml:"greeting"`
	Name     string `toml:"name"`
	Headline string `toml:"headline"`
	Summary  string `toml:"summary"`
}

// SkillCategory groups skills under a title.
type SkillCategory struct {
	Title  string   `toml:"title"`
	Skills []string `toml:"skills"`
}

// Experience is a single work experience entry.
type Experience struct {
	Title        string   `toml:"title"`
	Company      string   `toml:"company"`
	Location     string   `toml:"location"`
	Period       string   `toml:"period"`
	Description  string   `toml:"description"`
	Technologies []string `toml:"technologies"`
}

// Education is a single education entry.
type Education struct {
	Degree      string `toml:"degree"`
	Institution string `toml:"institution"`
	Period      string `toml:"period"`
	Description string `toml:"description"`
}

// Service is something offered to clients.
type Service struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// Contact is the call-to-action block at the bottom of the homepage.
type Contact struct {
	Title   string `toml:"title"`
	Heading string `toml:"heading"`
	Text    string `toml:"text"`
	Links   []Link `toml:"links"`
}

// Link is a labeled URL.
type Link struct {
	Label    string `toml:"label"`
	URL      string `toml:"url"`
	External bool   `toml:"external"`
}

// LoadProfile reads the profile from a TOML file, or the embedded default if path is empty.
func LoadProfile(path string) (Profile, error) {
	data := defaultProfile
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil { //nolint:gosec // path from configuration
			return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
	}
	return ParseProfile(data)
}

// ParseProfile parses TOML profile data. Fields missing in data keep the embedded defaults.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := toml.Unmarshal(defaultProfile, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse default profile: %w", err)
	}
	var custom Profile
	if err := toml.Unmarshal(data, &custom); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	p.merge(custom)
	return p, nil
}

// merge overrides sections present in other.
func (p *Profile) merge(other Profile) {
	if other.Site != (Site{}) {
		p.Site = other.Site
	}
	if other.Hero != (Hero{}) {
		p.Hero = other.Hero
	}
	if other.Skills != nil {
		p.Skills = other.Skills
	}
	if other.Experience != nil {
		p.Experience = other.Experience
	}
	if other.Education != nil {
		p.Education = other.Education
	}
	if other.Services != nil {
		p.Services = other.Services
	}
	if other.Contact.Title != "" || other.Contact.Heading != "" || other.Contact.Links != nil {
		p.Contact = other.Contact
	}
	if other.Nav != nil {
		p.Nav = other.Nav
	}
	if other.Socials != nil {
		p.Socials = other.Socials
	}
}
