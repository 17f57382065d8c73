package models

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Category is the vision model's coarse bucket for a photo
type Category string

const (
	CategoryHero          Category = "hero"
	CategoryAccommodation Category = "accommodation"
	CategoryActivity      Category = "activity"
	CategoryCoach         Category = "coach"
	CategoryDestination   Category = "destination"
	CategoryFood          Category = "food"
	CategorySocial        Category = "social"
	CategoryOther         Category = "other"
)

// Categories lists every valid category in prompt order
var Categories = []Category{
	CategoryHero,
	CategoryAccommodation,
	CategoryActivity,
	CategoryCoach,
	CategoryDestination,
	CategoryFood,
	CategorySocial,
	CategoryOther,
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Confidence is the model's self-reported certainty
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the known confidence levels
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// ClassificationResult is the verdict for one fingerprint
type ClassificationResult struct {
	Category   Category   `json:"category"`
	Tags       []string   `json:"tags"`
	AltText    string     `json:"altText"`
	Confidence Confidence `json:"confidence"`
}

var separatorRun = regexp.MustCompile(`[\s\-_.]+`)

// FallbackClassification synthesizes the low-confidence verdict used when
// the classifier exhausts its retries. Alt text comes from the filename.
func FallbackClassification(filename string) ClassificationResult {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	alt := strings.TrimSpace(separatorRun.ReplaceAllString(base, " "))
	if alt == "" {
		alt = filename
	}

	return ClassificationResult{
		Category:   CategoryOther,
		Tags:       []string{"untagged"},
		AltText:    alt,
		Confidence: ConfidenceLow,
	}
}

// CountryInfo is the canonical destination derived from a folder name
type CountryInfo struct {
	Name    string `json:"name"`
	ISOCode string `json:"isoCode"`
}

// ImageAsset is one supported file discovered under the run root
type ImageAsset struct {
	Path               string `json:"path"`
	RelativeFolderPath string `json:"relativeFolderPath"`
	Filename           string `json:"filename"`
	Extension          string `json:"extension"`
}

// RelativePath joins the folder and filename with forward slashes
func (a ImageAsset) RelativePath() string {
	if a.RelativeFolderPath == "" {
		return a.Filename
	}
	return path.Join(a.RelativeFolderPath, a.Filename)
}

// UploadRecord is one entry of the results ledger. Remote fields stay nil
// for dry runs.
type UploadRecord struct {
	Filename      string     `json:"filename"`
	FolderPath    string     `json:"folderPath"`
	Country       *string    `json:"country"`
	CountryCode   *string    `json:"countryCode"`
	Category      Category   `json:"category"`
	Tags          []string   `json:"tags"`
	AltText       string     `json:"altText"`
	Confidence    Confidence `json:"confidence"`
	RemoteAssetID *string    `json:"remoteAssetId"`
	RemoteURL     *string    `json:"remoteUrl"`
	RemoteDocID   *string    `json:"remoteDocId"`
}

// FailureRecord is one entry of the failure ledger
type FailureRecord struct {
	Filename     string `json:"filename"`
	FolderPath   string `json:"folderPath"`
	ErrorMessage string `json:"errorMessage"`
}
