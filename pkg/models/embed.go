package models

import (
	"fmt"
	"net/url"

	"parley/pkg/apperr"
)

// EmbedType tags the embed union on the wire.
type EmbedType string

const (
	EmbedWebsite EmbedType = "Website"
	EmbedImage   EmbedType = "Image"
	EmbedVideo   EmbedType = "Video"
	EmbedText    EmbedType = "Text"
	EmbedNone    EmbedType = "None"
)

// Embed is one embedded object on a message. Which fields are meaningful
// depends on Type; unrelated fields stay empty.
type Embed struct {
	Type EmbedType `json:"type"`

	// Website / Text
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
	Colour      string `json:"colour,omitempty"`

	// Website
	OriginalURL string      `json:"original_url,omitempty"`
	SiteName    string      `json:"site_name,omitempty"`
	Image       *EmbedMedia `json:"image,omitempty"`
	Video       *EmbedMedia `json:"video,omitempty"`

	// Text
	Media *File `json:"media,omitempty"`
}

// EmbedMedia describes a remote image or video inside a website embed.
type EmbedMedia struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Size   string `json:"size,omitempty"`
}

// SendableEmbed is the client-supplied embed spec. It becomes a Text
// embed once its media reference is resolved.
type SendableEmbed struct {
	IconURL     string `json:"icon_url,omitempty"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Media       string `json:"media,omitempty"`
	Colour      string `json:"colour,omitempty"`
}

const (
	maxEmbedIconURL     = 128
	maxEmbedURL         = 256
	maxEmbedTitle       = 100
	maxEmbedDescription = 2000
	maxEmbedMediaID     = 128
	maxEmbedColour      = 32
)

// Validate performs the structural checks on a client-supplied embed.
func (e *SendableEmbed) Validate() error {
	if err := checkLen("icon_url", e.IconURL, maxEmbedIconURL); err != nil {
		return err
	}
	if err := checkLen("url", e.URL, maxEmbedURL); err != nil {
		return err
	}
	if err := checkLen("title", e.Title, maxEmbedTitle); err != nil {
		return err
	}
	if err := checkLen("description", e.Description, maxEmbedDescription); err != nil {
		return err
	}
	if err := checkLen("media", e.Media, maxEmbedMediaID); err != nil {
		return err
	}
	if err := checkLen("colour", e.Colour, maxEmbedColour); err != nil {
		return err
	}
	if err := checkURL("url", e.URL); err != nil {
		return err
	}
	if err := checkURL("icon_url", e.IconURL); err != nil {
		return err
	}
	return nil
}

func checkLen(field, value string, max int) error {
	if len(value) > max {
		return apperr.FailedValidation(fmt.Sprintf("%s exceeds %d characters", field, max))
	}
	return nil
}

func checkURL(field, value string) error {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperr.FailedValidation(fmt.Sprintf("%s is not a valid absolute URL", field))
	}
	return nil
}
