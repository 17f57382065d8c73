package vision

import (
	"fmt"
	"strings"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

var categoryHints = map[models.Category]string{
	models.CategoryHero:          "striking wide shot suitable as a page banner",
	models.CategoryAccommodation: "rooms, villas, pools, lodging interiors or exteriors",
	models.CategoryActivity:      "surfing, yoga, hiking, diving or other guest activities",
	models.CategoryCoach:         "portrait or action shot of an instructor or coach",
	models.CategoryDestination:   "landscape, beach, town or scenery of the location",
	models.CategoryFood:          "meals, drinks, cooking or dining settings",
	models.CategorySocial:        "groups of guests socializing, celebrating or relaxing together",
	models.CategoryOther:         "anything that fits none of the above",
}

// buildPrompt returns the fixed classification instruction
func buildPrompt() string {
	var categories strings.Builder
	for _, c := range models.Categories {
		fmt.Fprintf(&categories, "   - %s: %s\n", c, categoryHints[c])
	}

	return fmt.Sprintf(`You are a photo editor for a travel and retreat company, tagging images for the website media library.

Look at the image and classify it.

INSTRUCTIONS:
1. Choose exactly one category:
%s
2. Provide between 3 and 8 tags. Tags are short, lowercase, and describe visible subjects, setting, mood or activity.
3. Write alt text: one short sentence (under 125 characters) describing the image for screen reader users.
4. Rate your confidence in the category as "high", "medium" or "low".

OUTPUT FORMAT:
Respond with ONLY a JSON object in the following format, with no commentary:

{
  "category": "destination",
  "tags": ["beach", "sunset", "palm trees"],
  "altText": "Palm trees silhouetted against an orange sunset over a quiet beach",
  "confidence": "high"
}`, categories.String())
}
