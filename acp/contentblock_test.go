package acp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentBlockRoundTrip(t *testing.T) {
	size := int64(1024)
	cases := []ContentBlock{
		NewTextBlock("hello"),
		{Type: ContentTypeImage, Data: "base64data", MimeType: "image/png"},
		{Type: ContentTypeAudio, Data: "base64data", MimeType: "audio/wav"},
		{Type: ContentTypeResourceLink, Name: "readme", URI: "file:///README.md", MimeType: "text/markdown", Size: &size},
		{Type: ContentTypeResource, Resource: &ResourceContents{URI: "file:///a.txt", Text: "contents"}},
	}

	for _, c := range cases {
		b, err := json.Marshal(c)
		require.NoError(t, err)

		var got ContentBlock
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, c, got)
	}
}

func TestContentBlockUnmarshalIgnoresUnknownFields(t *testing.T) {
	raw := []byte(`{"type":"text","text":"hi","futureField":{"nested":true}}`)
	var c ContentBlock
	require.NoError(t, json.Unmarshal(raw, &c))
	require.Equal(t, "hi", c.Text)
}

func TestContentBlockMarshalRejectsUnknownType(t *testing.T) {
	c := ContentBlock{Type: "not_a_real_type"}
	_, err := json.Marshal(c)
	require.Error(t, err)
}
