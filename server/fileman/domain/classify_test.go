package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		ext      string
	}{
		{"Report.PDF", CategoryDocument, "pdf"},
		{"noext", CategoryOther, ""},
		{"archive.zip", CategoryOther, "zip"},
		{"notes.txt", CategoryDocument, "txt"},
		{"holiday.photo.JPEG", CategoryImage, "jpeg"},
		{"clip.webm", CategoryVideo, "webm"},
		{"song.flac", CategoryAudio, "flac"},
		{"trailing.", CategoryOther, ""},
		{".bashrc", CategoryOther, "bashrc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			category, ext := Classify(tc.name)
			assert.Equal(t, tc.category, category)
			assert.Equal(t, tc.ext, ext)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c1, e1 := Classify("Slides.PPTX")
	c2, e2 := Classify("Slides.PPTX")
	assert.Equal(t, c1, c2)
	assert.Equal(t, e1, e2)
}

func TestBaseAndJoinName(t *testing.T) {
	assert.Equal(t, "Report", BaseName("Report.PDF", "pdf"))
	assert.Equal(t, "noext", BaseName("noext", ""))
	assert.Equal(t, "pdf", BaseName("pdf", "pdf"))
	assert.Equal(t, "newname.pdf", JoinName("newname", "pdf"))
	assert.Equal(t, "plain", JoinName("plain", ""))
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Image ")
	assert.True(t, ok)
	assert.Equal(t, CategoryImage, c)

	_, ok = ParseCategory("spreadsheet")
	assert.False(t, ok)
}
