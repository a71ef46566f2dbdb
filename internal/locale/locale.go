// Package locale holds the localized page copy and the scripted intro utterances.
package locale

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed copy.yaml
var embedded []byte

var ErrNoDefault = errors.New("default language missing from catalog")

type Section struct {
	Title string   `yaml:"title"`
	List  []string `yaml:"list"`
}

// Copy is the full set of visible strings for one language.
type Copy struct {
	Title           string   `yaml:"title"`
	Subtitle        string   `yaml:"subtitle"`
	ChooseLanguage  string   `yaml:"choose_language"`
	ChatNow         string   `yaml:"chat_now"`
	Loading         string   `yaml:"loading"`
	Connection      string   `yaml:"connection"`
	YourRole        string   `yaml:"your_role"`
	YourRoleList    []string `yaml:"your_role_list"`
	HowToUse        string   `yaml:"how_to_use"`
	HowToUseList    []string `yaml:"how_to_use_list"`
	BeforeYouStart  Section  `yaml:"before_you_start"`
	WantToGetBetter Section  `yaml:"want_to_get_better"`
	Intro           string   `yaml:"intro"`
}

type Option struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

type Page struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	PreviewImage string `yaml:"preview_image"`
}

type Catalog struct {
	Default string          `yaml:"default"`
	Page    Page            `yaml:"page"`
	Options []Option        `yaml:"options"`
	Copy    map[string]Copy `yaml:"copy"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(embedded)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse locale catalog: %w", err)
	}
	if c.Default == "" {
		c.Default = "en"
	}
	if _, ok := c.Copy[c.Default]; !ok {
		return nil, ErrNoDefault
	}
	return &c, nil
}

// Supported reports whether lang has its own copy.
func (c *Catalog) Supported(lang string) bool {
	_, ok := c.Copy[lang]
	return ok
}

// Resolve maps lang onto a supported code, falling back to the default.
func (c *Catalog) Resolve(lang string) string {
	if c.Supported(lang) {
		return lang
	}
	return c.Default
}

// Lookup returns the copy for lang, or the default language's copy.
func (c *Catalog) Lookup(lang string) Copy {
	return c.Copy[c.Resolve(lang)]
}

// Intro returns the scripted introductory utterance for lang.
func (c *Catalog) Intro(lang string) string {
	if cp, ok := c.Copy[lang]; ok && cp.Intro != "" {
		return cp.Intro
	}
	return c.Copy[c.Default].Intro
}
