package i18n

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/porast/jigman/internal/jig/entity"
)

// Language is a supported UI language.
type Language string

const (
	LangEN Language = "en"
	LangSK Language = "sk"
	LangDE Language = "de"
)

// ParseLanguage maps a raw language tag onto a supported language,
// defaulting to English.
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LangSK:
		return LangSK
	case LangDE:
		return LangDE
	default:
		return LangEN
	}
}

var translations = map[string]map[Language]string{
	"status.inStock": {
		LangEN: "In Stock", LangSK: "Na sklade", LangDE: "Auf Lager",
	},
	"status.inUse": {
		LangEN: "In Use", LangSK: "V používaní", LangDE: "In Benutzung",
	},
	"status.underMaintenance": {
		LangEN: "Under Maintenance", LangSK: "V údržbe", LangDE: "In Wartung",
	},
	"status.scrapped": {
		LangEN: "Scrapped", LangSK: "Vyradený", LangDE: "Verschrottet",
	},
	"inventory.table.jigNo": {
		LangEN: "JIG No.", LangSK: "Číslo JIGu", LangDE: "JIG-Nr.",
	},
	"inventory.table.customer": {
		LangEN: "Customer", LangSK: "Zákazník", LangDE: "Kunde",
	},
	"inventory.table.modelType": {
		LangEN: "Model / Type", LangSK: "Model / Typ", LangDE: "Modell / Typ",
	},
	"inventory.table.location": {
		LangEN: "Location", LangSK: "Umiestnenie", LangDE: "Standort",
	},
	"inventory.table.status": {
		LangEN: "Status", LangSK: "Stav", LangDE: "Status",
	},
	"transfer.acceptance": {
		LangEN: "Acceptance", LangSK: "Príjem", LangDE: "Annahme",
	},
	"transfer.submission": {
		LangEN: "Submission", LangSK: "Odovzdanie", LangDE: "Übergabe",
	},
	"user.role.Administrator": {
		LangEN: "Administrator", LangSK: "Administrátor", LangDE: "Administrator",
	},
	"user.role.User": {
		LangEN: "User", LangSK: "Používateľ", LangDE: "Benutzer",
	},
}

// Translator resolves UI strings for a language. Unknown keys fall back
// to the key itself so missing entries surface visibly instead of blank.
type Translator struct{}

// NewTranslator creates a translator over the built-in dictionary.
func NewTranslator() *Translator {
	return &Translator{}
}

// Translate returns the dictionary entry for key in lang.
func (t *Translator) Translate(lang Language, key string) string {
	entry, ok := translations[key]
	if !ok {
		return key
	}
	if v, ok := entry[lang]; ok && v != "" {
		return v
	}
	return entry[LangEN]
}

// StatusKey returns the dictionary key for a lifecycle status label.
func StatusKey(s entity.Status) string {
	switch s {
	case entity.StatusInStock:
		return "status.inStock"
	case entity.StatusInUse:
		return "status.inUse"
	case entity.StatusUnderMaintenance:
		return "status.underMaintenance"
	case entity.StatusScrapped:
		return "status.scrapped"
	default:
		return ""
	}
}

// StatusLabel is a shorthand for the translated status label.
func (t *Translator) StatusLabel(lang Language, s entity.Status) string {
	return t.Translate(lang, StatusKey(s))
}

var stripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks, e.g. "Vyradený" -> "Vyradeny".
// The PDF renderer's core fonts cannot encode them.
func StripDiacritics(s string) string {
	out, _, err := transform.String(stripper, s)
	if err != nil {
		return s
	}
	return out
}
