package geocode

import "strings"

const (
	defaultLanguage  = "en"
	defaultWorldview = "us"
)

// Display language of the localized Mapbox lookup, by ISO 3166-1 alpha-2.
var languages = map[string]string{
	"CN": "zh",
	"JP": "ja",
	"KR": "ko",
	"TW": "zh_TW",
	"MO": "zh_TW",
	"SG": "zh",
	"ES": "es",
	"MX": "es",
	"CL": "es",
	"FR": "fr",
	"DE": "de",
	"IT": "it",
	"NL": "nl",
	"PT": "pt",
	"BR": "pt",
	"TH": "th",
	"ID": "id",
	"SE": "sv",
	"IN": "hi",
	"IL": "he",
	"RU": "ru",
	"EG": "ar",
	"SA": "ar",
	"AE": "ar",
	"QA": "ar",
	"OM": "ar",
	"KW": "ar",
	"BH": "ar",
	"JO": "ar",
	"LB": "ar",
	"SY": "ar",
	"IQ": "ar",
}

// Mapbox worldviews with their own rendering of disputed borders.
var worldviews = map[string]string{
	"CN": "cn",
	"AR": "ar",
	"IN": "in",
	"JP": "jp",
	"MA": "ma",
	"RU": "ru",
	"TR": "tr",
	"US": "us",
}

// Countries where AMap has better address coverage than Mapbox.
var amapCountries = map[string]bool{
	"CN": true,
	"HK": true,
	"MO": true,
}

// LanguageFor returns the display language for a country code, "en" when
// unmapped.
func LanguageFor(countryCode string) string {
	if lang, ok := languages[strings.ToUpper(countryCode)]; ok {
		return lang
	}
	return defaultLanguage
}

// WorldviewFor returns the Mapbox worldview for a country code, "us" when
// unmapped.
func WorldviewFor(countryCode string) string {
	if wv, ok := worldviews[strings.ToUpper(countryCode)]; ok {
		return wv
	}
	return defaultWorldview
}

// PrefersAmap reports whether AMap should be tried before Mapbox.
func PrefersAmap(countryCode string) bool {
	return amapCountries[strings.ToUpper(countryCode)]
}
