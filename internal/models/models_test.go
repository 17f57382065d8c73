package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackClassification(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string
	}{
		{name: "hyphens", filename: "sunset-over-bay.jpg", expected: "sunset over bay"},
		{name: "underscores", filename: "yoga_class_02.PNG", expected: "yoga class 02"},
		{name: "mixed separators", filename: "surf-lesson__day.one.webp", expected: "surf lesson day one"},
		{name: "no separators", filename: "beach.jpeg", expected: "beach"},
		{name: "only extension", filename: ".jpg", expected: ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FallbackClassification(tt.filename)
			assert.Equal(t, CategoryOther, result.Category)
			assert.Equal(t, []string{"untagged"}, result.Tags)
			assert.Equal(t, ConfidenceLow, result.Confidence)
			assert.Equal(t, tt.expected, result.AltText)
		})
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("landscape").Valid())
	assert.False(t, Category("").Valid())
}

func TestConfidenceValid(t *testing.T) {
	assert.True(t, ConfidenceHigh.Valid())
	assert.True(t, ConfidenceMedium.Valid())
	assert.True(t, ConfidenceLow.Valid())
	assert.False(t, Confidence("certain").Valid())
}

func TestRelativePath(t *testing.T) {
	assert.Equal(t, "beach.jpg", ImageAsset{Filename: "beach.jpg"}.RelativePath())
	assert.Equal(t, "panama/bocas/beach.jpg", ImageAsset{RelativeFolderPath: "panama/bocas", Filename: "beach.jpg"}.RelativePath())
}
