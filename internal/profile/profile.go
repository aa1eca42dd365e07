package profile

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

//go:embed profile.toml
var defaultProfileToml string

type Entry struct {
	Period string `toml:"period" json:"period"`
	Title  string `toml:"title" json:"title" validate:"required"`
	Detail string `toml:"detail" json:"detail"`
}

type Certification struct {
	Title      string `toml:"title" json:"title" validate:"required"`
	Issuer     string `toml:"issuer" json:"issuer"`
	Badge      string `toml:"badge" json:"badge"`
	Issued     string `toml:"issued" json:"issued"`
	Credential string `toml:"credential" json:"credential"`
	Link       string `toml:"link" json:"link" validate:"omitempty,url"`
}

type SkillGroup struct {
	Label string   `toml:"label" json:"label" validate:"required"`
	Items []string `toml:"items" json:"items"`
}

type Link struct {
	Label  string `toml:"label" json:"label" validate:"required"`
	Href   string `toml:"href" json:"href" validate:"required"`
	Handle string `toml:"handle" json:"handle"`
}

// Profile is the static home page content. It never comes from the content source.
type Profile struct {
	Name     string `toml:"name" json:"name" validate:"required"`
	Initials string `toml:"initials" json:"initials"`
	Role     string `toml:"role" json:"role"`
	Location string `toml:"location" json:"location"`
	Email    string `toml:"email" json:"email" validate:"omitempty,email"`
	Greeting string `toml:"greeting" json:"greeting"`
	Quote    string `toml:"quote" json:"quote"`
	Tagline  string `toml:"tagline" json:"tagline"`
	Portrait string `toml:"portrait" json:"portrait"`
	About    string `toml:"about" json:"about"`

	Timeline       []Entry         `toml:"timeline" json:"timeline" validate:"dive"`
	Education      []Entry         `toml:"education" json:"education" validate:"dive"`
	Certifications []Certification `toml:"certifications" json:"certifications" validate:"dive"`
	Skills         []SkillGroup    `toml:"skills" json:"skills" validate:"dive"`
	Links          []Link          `toml:"links" json:"links" validate:"dive"`
}

// Default returns the embedded profile.
func Default() (*Profile, error) {
	return Parse(defaultProfileToml)
}

// Load reads the profile from path, or returns the embedded one when path is empty.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default()
	}

	profileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	log.Debugf("loading profile from %s", path)
	return Parse(string(profileBytes))
}

func Parse(profileToml string) (*Profile, error) {
	p := &Profile{}
	if _, err := toml.Decode(profileToml, p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	if err := validator.New().Struct(p); err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}

	return p, nil
}
