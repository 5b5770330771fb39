package acp

import (
	"encoding/json"
	"fmt"
)

// Annotations is the optional metadata record any content block may carry
// (spec.md §3).
type Annotations struct {
	Audience     []string `json:"audience,omitempty"`
	Priority     *float64 `json:"priority,omitempty"`
	LastModified string   `json:"lastModified,omitempty"`
}

// ContentBlock is the tagged union of prompt/response content (spec.md §3),
// discriminated on "type". Exactly one of the typed fields is populated
// according to Type; construct via the ContentBlock{Type: ..., Text: ...}
// literal form or the NewTextBlock helper.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image, audio
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`

	// resource_link
	Name        string `json:"name,omitempty"`
	Size        *int64 `json:"size,omitempty"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`

	// resource
	Resource *ResourceContents `json:"resource,omitempty"`

	Annotations *Annotations `json:"annotations,omitempty"`
}

// Content block type discriminator values.
const (
	ContentTypeText         = "text"
	ContentTypeImage        = "image"
	ContentTypeAudio        = "audio"
	ContentTypeResourceLink = "resource_link"
	ContentTypeResource     = "resource"
)

// NewTextBlock constructs a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// ResourceContents is the embedded-resource payload of a `resource` content
// block: exactly one of Text or Blob is set, mirroring the text-contents /
// blob-contents union in spec.md §3.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// contentBlockJSON mirrors ContentBlock's wire shape without its methods, so
// MarshalJSON/UnmarshalJSON can encode and decode the struct without
// recursing and without duplicating struct tags in two places.
type contentBlockJSON ContentBlock

// MarshalJSON rejects a block whose Type is not one of the known content
// types before encoding. It does not check that the populated fields match
// Type: every non-empty field is encoded.
func (c ContentBlock) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentTypeText, ContentTypeImage, ContentTypeAudio, ContentTypeResourceLink, ContentTypeResource:
	default:
		return nil, fmt.Errorf("acp: content block has unknown type %q", c.Type)
	}
	return json.Marshal(contentBlockJSON(c))
}

// UnmarshalJSON ignores unknown fields (spec.md §9). Every known field
// present in the input is decoded, whether or not it belongs to Type, and
// Type itself is not validated.
func (c *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw contentBlockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ContentBlock(raw)
	return nil
}
