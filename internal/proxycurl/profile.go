package proxycurl

import (
	"encoding/json"
	"strings"
)

type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

type Experience struct {
	Company     *string `json:"company"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	StartsAt    *Date   `json:"starts_at"`
	EndsAt      *Date   `json:"ends_at"`
}

type Education struct {
	School       *string `json:"school"`
	DegreeName   *string `json:"degree_name"`
	FieldOfStudy *string `json:"field_of_study"`
	StartsAt     *Date   `json:"starts_at"`
	EndsAt       *Date   `json:"ends_at"`
}

type Certification struct {
	Name      *string `json:"name"`
	Authority *string `json:"authority"`
}

// Profile is the subset of a Proxycurl person profile used for generation.
// Raw keeps the full response so nothing is lost when it is stored.
type Profile struct {
	PublicIdentifier *string         `json:"public_identifier"`
	FullName         *string         `json:"full_name"`
	FirstName        *string         `json:"first_name"`
	LastName         *string         `json:"last_name"`
	Headline         *string         `json:"headline"`
	Occupation       *string         `json:"occupation"`
	Summary          *string         `json:"summary"`
	City             *string         `json:"city"`
	State            *string         `json:"state"`
	Country          *string         `json:"country"`
	CountryFullName  *string         `json:"country_full_name"`
	Industry         *string         `json:"industry"`
	Experiences      []Experience    `json:"experiences"`
	Education        []Education     `json:"education"`
	Certifications   []Certification `json:"certifications"`
	Skills           []string        `json:"skills"`
	Interests        []string        `json:"interests"`

	Raw json.RawMessage `json:"-"`
}

// ParseProfile decodes a stored or fetched profile. A document that names
// nobody is rejected with ErrInvalidProfile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidProfile
	}
	if str(p.FullName) == "" && str(p.PublicIdentifier) == "" && str(p.FirstName) == "" {
		return nil, ErrInvalidProfile
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return &p, nil
}

// Name returns the best available display name.
func (p *Profile) Name() string {
	if n := str(p.FullName); n != "" {
		return n
	}
	return strings.TrimSpace(str(p.FirstName) + " " + str(p.LastName))
}

// Location joins the populated location parts.
func (p *Profile) Location() string {
	country := str(p.CountryFullName)
	if country == "" {
		country = str(p.Country)
	}
	var parts []string
	for _, v := range []string{str(p.City), str(p.State), country} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// CurrentRole returns the title and company of the first experience without
// an end date.
func (p *Profile) CurrentRole() (title, company string) {
	for _, e := range p.Experiences {
		if e.EndsAt == nil {
			return str(e.Title), str(e.Company)
		}
	}
	return "", ""
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
