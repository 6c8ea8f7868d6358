package helpers

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var tinyPNG, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestDecodeInlineImageAcceptsDataURL(t *testing.T) {
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)

	img, err := DecodeInlineImage(encoded, "dot.png", 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, tinyPNG, img.Data)
	assert.Equal(t, "dot.png", img.Filename)
}

func TestDecodeInlineImageIgnoresDeclaredType(t *testing.T) {
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("#!/bin/sh\necho not an image\n"))

	_, err := DecodeInlineImage(encoded, "evil.png", 1024)
	assert.ErrorContains(t, err, "not allowed")
}

func TestDecodeInlineImageEnforcesSize(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(tinyPNG)

	_, err := DecodeInlineImage(encoded, "dot.png", 10)
	assert.ErrorContains(t, err, "exceeds")
}

func TestDecodeInlineImageRejectsGarbage(t *testing.T) {
	_, err := DecodeInlineImage("%%%not-base64%%%", "x.png", 1024)
	assert.Error(t, err)

	_, err = DecodeInlineImage("   ", "x.png", 1024)
	assert.Error(t, err)
}

func TestDataURIRoundTrip(t *testing.T) {
	img := &InlineImage{Data: tinyPNG, MIME: "image/png"}
	again, err := DecodeInlineImage(img.DataURI(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, tinyPNG, again.Data)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  <b>hello</b> "))
	assert.Equal(t, "", SanitizeText(`<script>alert(1)</script>`))
	assert.Equal(t, "Can't wait & see", SanitizeText("Can't wait & see"))
	assert.Equal(t, "Tom & Jerry", SanitizeText("Tom &amp; Jerry"))
	assert.Equal(t, `She said "yay"`, SanitizeText(`She said "yay"`))
	assert.Equal(t, "1 < 2", SanitizeText("1 < 2"))
}

func TestCheckText(t *testing.T) {
	clean, err := CheckText("Café & co", 9)
	require.NoError(t, err)
	assert.Equal(t, "Café & co", clean)

	_, err = CheckText("Café & co!", 9)
	assert.ErrorIs(t, err, ErrTextTooLong)

	_, err = CheckText("  <i></i> ", 9)
	assert.ErrorIs(t, err, ErrTextEmpty)

	_, err = CheckText(strings.Repeat("x", 5000), 0)
	assert.NoError(t, err)
}
