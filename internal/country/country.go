// Package country maps destination folder names to canonical countries.
package country

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// table is keyed by normalized folder tokens. Several aliases may point at
// the same country.
var table = map[string]models.CountryInfo{
	"costa-rica":         {Name: "Costa Rica", ISOCode: "CR"},
	"costarica":          {Name: "Costa Rica", ISOCode: "CR"},
	"cr":                 {Name: "Costa Rica", ISOCode: "CR"},
	"panama":             {Name: "Panama", ISOCode: "PA"},
	"nicaragua":          {Name: "Nicaragua", ISOCode: "NI"},
	"el-salvador":        {Name: "El Salvador", ISOCode: "SV"},
	"elsalvador":         {Name: "El Salvador", ISOCode: "SV"},
	"mexico":             {Name: "Mexico", ISOCode: "MX"},
	"méxico":             {Name: "Mexico", ISOCode: "MX"},
	"guatemala":          {Name: "Guatemala", ISOCode: "GT"},
	"belize":             {Name: "Belize", ISOCode: "BZ"},
	"colombia":           {Name: "Colombia", ISOCode: "CO"},
	"peru":               {Name: "Peru", ISOCode: "PE"},
	"ecuador":            {Name: "Ecuador", ISOCode: "EC"},
	"brazil":             {Name: "Brazil", ISOCode: "BR"},
	"brasil":             {Name: "Brazil", ISOCode: "BR"},
	"portugal":           {Name: "Portugal", ISOCode: "PT"},
	"spain":              {Name: "Spain", ISOCode: "ES"},
	"espana":             {Name: "Spain", ISOCode: "ES"},
	"canary-islands":     {Name: "Spain", ISOCode: "ES"},
	"canaries":           {Name: "Spain", ISOCode: "ES"},
	"france":             {Name: "France", ISOCode: "FR"},
	"morocco":            {Name: "Morocco", ISOCode: "MA"},
	"maroc":              {Name: "Morocco", ISOCode: "MA"},
	"indonesia":          {Name: "Indonesia", ISOCode: "ID"},
	"bali":               {Name: "Indonesia", ISOCode: "ID"},
	"lombok":             {Name: "Indonesia", ISOCode: "ID"},
	"sri-lanka":          {Name: "Sri Lanka", ISOCode: "LK"},
	"srilanka":           {Name: "Sri Lanka", ISOCode: "LK"},
	"philippines":        {Name: "Philippines", ISOCode: "PH"},
	"maldives":           {Name: "Maldives", ISOCode: "MV"},
	"thailand":           {Name: "Thailand", ISOCode: "TH"},
	"south-africa":       {Name: "South Africa", ISOCode: "ZA"},
	"southafrica":        {Name: "South Africa", ISOCode: "ZA"},
	"dominican-republic": {Name: "Dominican Republic", ISOCode: "DO"},
	"dominicanrepublic":  {Name: "Dominican Republic", ISOCode: "DO"},
	"puerto-rico":        {Name: "Puerto Rico", ISOCode: "PR"},
	"puertorico":         {Name: "Puerto Rico", ISOCode: "PR"},
	"barbados":           {Name: "Barbados", ISOCode: "BB"},
	"australia":          {Name: "Australia", ISOCode: "AU"},
	"new-zealand":        {Name: "New Zealand", ISOCode: "NZ"},
	"newzealand":         {Name: "New Zealand", ISOCode: "NZ"},
	"iceland":            {Name: "Iceland", ISOCode: "IS"},
	"ireland":            {Name: "Ireland", ISOCode: "IE"},
}

// Normalize lowercases a folder token and collapses internal whitespace
// runs to a single hyphen.
func Normalize(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	return whitespaceRun.ReplaceAllString(token, "-")
}

// Lookup resolves a single folder token
func Lookup(token string) (models.CountryInfo, bool) {
	info, ok := table[Normalize(token)]
	return info, ok
}

// Resolve returns the country of the first folder segment between root and
// the file that matches the table. Files directly under root, and folders
// such as "coaches" or "general", yield no match.
func Resolve(path, root string) (models.CountryInfo, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return models.CountryInfo{}, false
	}
	return ResolveFolder(filepath.Dir(rel))
}

// ResolveFolder is Resolve for an already relative folder path
func ResolveFolder(folder string) (models.CountryInfo, bool) {
	for _, segment := range Segments(folder) {
		if info, ok := Lookup(segment); ok {
			return info, true
		}
	}
	return models.CountryInfo{}, false
}

// Segments splits a relative folder path into its non-empty segments
func Segments(folder string) []string {
	folder = filepath.ToSlash(folder)
	var segments []string
	for _, s := range strings.Split(folder, "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		segments = append(segments, s)
	}
	return segments
}
