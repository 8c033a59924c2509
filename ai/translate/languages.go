package translate

import (
	"sort"
	"strings"
)

// English is the language the answering engine works in.
const English = "eng_Latn"

// Language is a supported NLLB language tag with its display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languageNames = map[string]string{
	"eng_Latn": "English",
	"spa_Latn": "Spanish",
	"fra_Latn": "French",
	"deu_Latn": "German",
	"ita_Latn": "Italian",
	"por_Latn": "Portuguese",
	"nld_Latn": "Dutch",
	"pol_Latn": "Polish",
	"rus_Cyrl": "Russian",
	"ukr_Cyrl": "Ukrainian",
	"tur_Latn": "Turkish",
	"arb_Arab": "Arabic",
	"heb_Hebr": "Hebrew",
	"hin_Deva": "Hindi",
	"ben_Beng": "Bengali",
	"urd_Arab": "Urdu",
	"zho_Hans": "Chinese (Simplified)",
	"zho_Hant": "Chinese (Traditional)",
	"jpn_Jpan": "Japanese",
	"kor_Hang": "Korean",
	"vie_Latn": "Vietnamese",
	"tha_Thai": "Thai",
	"ind_Latn": "Indonesian",
	"swh_Latn": "Swahili",
}

// Languages lists the supported languages ordered by name.
func Languages() []Language {
	out := make([]Language, 0, len(languageNames))
	for code, name := range languageNames {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsSupported reports whether code is a known language tag.
func IsSupported(code string) bool {
	_, ok := languageNames[code]
	return ok
}

// Name returns the display name of code, or code itself when unknown.
func Name(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

var ietfTags = map[string]string{
	"en": "eng_Latn", "es": "spa_Latn", "fr": "fra_Latn", "de": "deu_Latn",
	"it": "ita_Latn", "pt": "por_Latn", "nl": "nld_Latn", "pl": "pol_Latn",
	"ru": "rus_Cyrl", "uk": "ukr_Cyrl", "tr": "tur_Latn", "ar": "arb_Arab",
	"he": "heb_Hebr", "hi": "hin_Deva", "bn": "ben_Beng", "ur": "urd_Arab",
	"zh": "zho_Hans", "ja": "jpn_Jpan", "ko": "kor_Hang", "vi": "vie_Latn",
	"th": "tha_Thai", "id": "ind_Latn", "sw": "swh_Latn",
}

// FromIETF maps a client language tag such as "es" or "pt-BR" to a supported
// language tag. Unknown or empty tags map to English.
func FromIETF(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch tag {
	case "zh-hant", "zh-tw", "zh-hk", "zh-mo":
		return "zho_Hant"
	}
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	if code, ok := ietfTags[tag]; ok {
		return code
	}
	return English
}
