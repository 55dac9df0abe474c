package checkout

import "golang.org/x/text/language"

var supportedLocales = []language.Tag{
	language.English, // default
	language.Chinese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// NormalizeLocale maps an arbitrary client locale string onto one of the
// storefront's supported languages, defaulting to English.
func NormalizeLocale(raw string) string {
	tag, _ := language.MatchStrings(localeMatcher, raw)
	base, _ := tag.Base()
	switch base.String() {
	case "zh":
		return "zh"
	default:
		return "en"
	}
}
