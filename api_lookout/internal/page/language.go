package page

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Script buckets used by the character-count heuristic.
const (
	scriptHebrew   = "he"
	scriptArabic   = "ar"
	scriptLatin    = "en"
	scriptCyrillic = "ru"
	scriptCJK      = "zh"
)

var scriptTables = []struct {
	lang  string
	table []*unicode.RangeTable
}{
	{scriptHebrew, []*unicode.RangeTable{unicode.Hebrew}},
	{scriptArabic, []*unicode.RangeTable{unicode.Arabic}},
	{scriptLatin, []*unicode.RangeTable{unicode.Latin}},
	{scriptCyrillic, []*unicode.RangeTable{unicode.Cyrillic}},
	{scriptCJK, []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul}},
}

// DetectLanguage prefers the base of a parseable lang attribute and falls
// back to script counting over text.
func DetectLanguage(langAttr, text string) string {
	if langAttr = strings.TrimSpace(langAttr); langAttr != "" {
		if tag, err := language.Parse(langAttr); err == nil {
			if base, conf := tag.Base(); conf != language.No {
				return base.String()
			}
		}
	}
	return DetectScriptLanguage(text)
}

// DetectScriptLanguage returns the language code of the plurality script in
// text, or "en" when no letters from a known script are present. Ties go to
// the script listed first.
func DetectScriptLanguage(text string) string {
	counts := make([]int, len(scriptTables))
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		for i, s := range scriptTables {
			if unicode.IsOneOf(s.table, r) {
				counts[i]++
				break
			}
		}
	}
	best, bestCount := scriptLatin, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = scriptTables[i].lang, c
		}
	}
	return best
}

// LanguageName is a display name for prompts ("Hebrew", "English").
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return "English"
	}
	base, _ := tag.Base()
	switch base.String() {
	case "he", "iw":
		return "Hebrew"
	case "ar":
		return "Arabic"
	case "ru":
		return "Russian"
	case "zh":
		return "Chinese"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "es":
		return "Spanish"
	case "it":
		return "Italian"
	case "pt":
		return "Portuguese"
	case "nl":
		return "Dutch"
	case "en":
		return "English"
	}
	return base.String()
}
