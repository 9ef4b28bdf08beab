package datacite

import (
	"maps"
	"strconv"
	"strings"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
)

// Attributes is the DataCite "attributes" object of a DOI document.
type Attributes map[string]any

func (a Attributes) Clone() Attributes {
	return maps.Clone(a)
}

// ValidationError means the resource lacks fields DataCite requires.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "datacite metadata is missing " + strings.Join(e.Missing, ", ")
}

var resourceTypes = map[string]string{
	"dataset":                      "Dataset",
	"software_or_program_code":     "Software",
	"image":                        "Image",
	"map_or_cartographic_material": "Image",
	"audio":                        "Sound",
	"video":                        "Audiovisual",
	"poster":                       "Text",
	"presentation":                 "Text",
}

// Mapper builds DataCite metadata for works, versions and collections.
type Mapper struct {
	PublicURL string
	Publisher string
}

func NewMapper(publicURL, publisher string) *Mapper {
	return &Mapper{PublicURL: strings.TrimRight(publicURL, "/"), Publisher: publisher}
}

// WorkVersion maps a version. publicIdentifier is the uuid the landing page is
// addressed by: the version's own, or its work's when minting for the work.
func (m *Mapper) WorkVersion(v *works.WorkVersion, workType, publicIdentifier string) (Attributes, error) {
	general := resourceTypes[workType]
	if general == "" {
		general = "Text"
	}
	year := publicationYear(v.PublishedDate, 0)

	attrs := Attributes{
		"titles":          titles(v.Title, v.Subtitle),
		"creators":        creators(v.Creators),
		"publisher":       m.Publisher,
		"publicationYear": year,
		"types":           map[string]string{"resourceTypeGeneral": general, "resourceType": workType},
		"url":             m.url(publicIdentifier),
		"descriptions":    descriptions(v.Description),
		"subjects":        subjects(v.Keyword),
	}
	if v.Rights != "" {
		attrs["rightsList"] = []map[string]string{{"rightsUri": v.Rights}}
	}
	return attrs, m.validate(v.Title, v.Creators, year, publicIdentifier)
}

func (m *Mapper) Collection(c *collections.Collection, publicIdentifier string) (Attributes, error) {
	fallback := 0
	if !c.CreatedAt.IsZero() {
		fallback = c.CreatedAt.Year()
	}
	year := publicationYear(c.PublishedDate, fallback)

	attrs := Attributes{
		"titles":          titles(c.Title, c.Subtitle),
		"creators":        creators(c.Creators),
		"publisher":       m.Publisher,
		"publicationYear": year,
		"types":           map[string]string{"resourceTypeGeneral": "Collection"},
		"url":             m.url(publicIdentifier),
		"descriptions":    descriptions(c.Description),
		"subjects":        subjects(c.Keyword),
	}
	return attrs, m.validate(c.Title, c.Creators, year, publicIdentifier)
}

func (m *Mapper) url(publicIdentifier string) string {
	return m.PublicURL + "/resources/" + publicIdentifier
}

func (m *Mapper) validate(title string, authors []works.Authorship, year int, publicIdentifier string) error {
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if len(authors) == 0 {
		missing = append(missing, "creators")
	}
	if year == 0 {
		missing = append(missing, "publicationYear")
	}
	if publicIdentifier == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// publicationYear takes the leading four digit year of an EDTF date.
func publicationYear(date string, fallback int) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return fallback
}

func titles(title, subtitle string) []map[string]string {
	out := []map[string]string{{"title": title}}
	if subtitle != "" {
		out = append(out, map[string]string{"title": subtitle, "titleType": "Subtitle"})
	}
	return out
}

func creators(authors []works.Authorship) []map[string]string {
	out := make([]map[string]string, 0, len(authors))
	for _, a := range authors {
		c := map[string]string{"name": a.DisplayName}
		if a.GivenName != "" || a.Surname != "" {
			c["nameType"] = "Personal"
			c["givenName"] = a.GivenName
			c["familyName"] = a.Surname
		}
		out = append(out, c)
	}
	return out
}

func descriptions(description string) []map[string]string {
	if description == "" {
		return []map[string]string{}
	}
	return []map[string]string{{"description": description, "descriptionType": "Abstract"}}
}

func subjects(keywords []string) []map[string]string {
	out := make([]map[string]string, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, map[string]string{"subject": k})
	}
	return out
}
