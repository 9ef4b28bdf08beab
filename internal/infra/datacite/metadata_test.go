package datacite

import (
	"testing"
	"time"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperWorkVersion(t *testing.T) {
	m := NewMapper("https://scholarsphere.example.edu/", "ScholarSphere")
	v := &works.WorkVersion{
		Title:         "Soil samples",
		Subtitle:      "Spring",
		Description:   "Core samples",
		PublishedDate: "2019-05",
		Rights:        "https://creativecommons.org/licenses/by/4.0/",
		Keyword:       []string{"soil"},
		Creators: []works.Authorship{
			{DisplayName: "Pat Researcher", GivenName: "Pat", Surname: "Researcher"},
			{DisplayName: "Soil Lab"},
		},
	}

	attrs, err := m.WorkVersion(v, "dataset", "abc")
	require.NoError(t, err)
	assert.Equal(t, 2019, attrs["publicationYear"])
	assert.Equal(t, "https://scholarsphere.example.edu/resources/abc", attrs["url"])
	assert.Equal(t, "ScholarSphere", attrs["publisher"])
	assert.Equal(t, map[string]string{"resourceTypeGeneral": "Dataset", "resourceType": "dataset"}, attrs["types"])

	creators := attrs["creators"].([]map[string]string)
	require.Len(t, creators, 2)
	assert.Equal(t, "Personal", creators[0]["nameType"])
	assert.NotContains(t, creators[1], "nameType")

	titles := attrs["titles"].([]map[string]string)
	assert.Len(t, titles, 2)
}

func TestMapperValidation(t *testing.T) {
	m := NewMapper("https://scholarsphere.example.edu", "ScholarSphere")

	_, err := m.WorkVersion(&works.WorkVersion{PublishedDate: "uncertain"}, "article", "abc")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title", "creators", "publicationYear"}, verr.Missing)
}

func TestMapperCollectionFallsBackToCreatedYear(t *testing.T) {
	m := NewMapper("https://scholarsphere.example.edu", "ScholarSphere")
	c := &collections.Collection{
		Title:     "Field season",
		Creators:  []works.Authorship{{DisplayName: "Pat Researcher"}},
		CreatedAt: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	attrs, err := m.Collection(c, "col-1")
	require.NoError(t, err)
	assert.Equal(t, 2021, attrs["publicationYear"])
	assert.Equal(t, map[string]string{"resourceTypeGeneral": "Collection"}, attrs["types"])
}
