package works

import (
	"time"

	"scholarsphere/internal/domain/works"
)

type FileDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type CreatorDTO struct {
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Position    int    `json:"position"`
}

type VersionDTO struct {
	ID            string       `json:"id"`
	VersionNumber int          `json:"version_number"`
	State         string       `json:"state"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	PublishedDate string       `json:"published_date,omitempty"`
	Keyword       []string     `json:"keyword"`
	DOI           *string      `json:"doi"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
	Creators      []CreatorDTO `json:"creators"`
	Files         []FileDTO    `json:"files"`
}

type WorkDTO struct {
	ID           string       `json:"id"`
	WorkType     string       `json:"work_type"`
	Visibility   string       `json:"visibility"`
	DOI          *string      `json:"doi"`
	Versions     []VersionDTO `json:"versions"`
	Capabilities []string     `json:"capabilities"`
}

func toFileDTO(m works.FileVersionMembership) FileDTO {
	dto := FileDTO{ID: m.FileResourceID, Title: m.Title}
	if m.FileResource != nil {
		dto.Filename = m.FileResource.Filename
		dto.ContentType = m.FileResource.ContentType
		dto.Size = m.FileResource.Size
	}
	return dto
}

func toVersionDTO(v works.WorkVersion) VersionDTO {
	dto := VersionDTO{
		ID:            v.UUID,
		VersionNumber: v.VersionNumber,
		State:         string(v.State),
		Title:         v.Title,
		Description:   v.Description,
		PublishedDate: v.PublishedDate,
		Keyword:       append([]string{}, v.Keyword...),
		DOI:           v.DOI,
		PublishedAt:   v.PublishedAt,
		Creators:      make([]CreatorDTO, 0, len(v.Creators)),
		Files:         make([]FileDTO, 0, len(v.FileVersionMemberships)),
	}
	for _, a := range v.Creators {
		dto.Creators = append(dto.Creators, CreatorDTO{
			DisplayName: a.DisplayName,
			GivenName:   a.GivenName,
			Surname:     a.Surname,
			Position:    a.Position,
		})
	}
	for _, m := range v.FileVersionMemberships {
		dto.Files = append(dto.Files, toFileDTO(m))
	}
	return dto
}

func toWorkDTO(w *works.Work, capabilities []string) WorkDTO {
	dto := WorkDTO{
		ID:           w.UUID,
		WorkType:     w.WorkType,
		Visibility:   w.Visibility,
		DOI:          w.DOI,
		Versions:     make([]VersionDTO, 0, len(w.Versions)),
		Capabilities: capabilities,
	}
	for _, v := range w.Versions {
		dto.Versions = append(dto.Versions, toVersionDTO(v))
	}
	return dto
}
