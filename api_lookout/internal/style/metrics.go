package style

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TextMetrics are deterministic measurements of a text sample.
type TextMetrics struct {
	Words             int     `json:"words"`
	Sentences         int     `json:"sentences"`
	AvgSentenceLength float64 `json:"avgSentenceLength"`
	AvgWordLength     float64 `json:"avgWordLength"`
	ReadingEase       float64 `json:"readingEase,omitempty"`
	Exclamations      int     `json:"exclamations"`
	Questions         int     `json:"questions"`
	SecondPersonRatio float64 `json:"secondPersonRatio"`
	FirstPluralRatio  float64 `json:"firstPluralRatio"`
	LatinScript       bool    `json:"latinScript"`
}

var (
	sentenceEndPattern = regexp.MustCompile(`[.!?؟。]+(?:\s|$)`)
	vowelGroupPattern  = regexp.MustCompile(`[aeiouy]+`)
)

var (
	secondPersonWords = map[string]bool{"you": true, "your": true, "yours": true, "you're": true, "yourself": true}
	firstPluralWords  = map[string]bool{"we": true, "our": true, "ours": true, "us": true, "we're": true, "ourselves": true}
)

// Measure computes TextMetrics. ReadingEase is the Flesch reading-ease score
// and is only computed for Latin-script text.
func Measure(text string) TextMetrics {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '’'
	})
	m := TextMetrics{
		Words:        len(words),
		Exclamations: strings.Count(text, "!"),
		Questions:    strings.Count(text, "?") + strings.Count(text, "؟"),
	}
	if m.Words == 0 {
		return m
	}
	m.Sentences = len(sentenceEndPattern.FindAllStringIndex(strings.TrimSpace(text)+" ", -1))
	if m.Sentences == 0 {
		m.Sentences = 1
	}

	var letters, latin, syllables, second, plural int
	for _, w := range words {
		lw := strings.ToLower(strings.ReplaceAll(w, "’", "'"))
		letters += utf8.RuneCountInString(w)
		if secondPersonWords[lw] {
			second++
		}
		if firstPluralWords[lw] {
			plural++
		}
		if isLatinWord(w) {
			latin++
			syllables += countSyllables(lw)
		}
	}
	m.AvgSentenceLength = round2(float64(m.Words) / float64(m.Sentences))
	m.AvgWordLength = round2(float64(letters) / float64(m.Words))
	m.SecondPersonRatio = round2(float64(second) / float64(m.Words))
	m.FirstPluralRatio = round2(float64(plural) / float64(m.Words))
	m.LatinScript = latin*2 > m.Words
	if m.LatinScript {
		ease := 206.835 - 1.015*(float64(m.Words)/float64(m.Sentences)) - 84.6*(float64(syllables)/float64(latin))
		m.ReadingEase = round2(math.Max(0, math.Min(100, ease)))
	}
	return m
}

func isLatinWord(w string) bool {
	for _, r := range w {
		if unicode.IsLetter(r) {
			return unicode.Is(unicode.Latin, r)
		}
	}
	return false
}

// countSyllables approximates English syllables by vowel groups.
func countSyllables(word string) int {
	word = strings.TrimSuffix(word, "'s")
	n := len(vowelGroupPattern.FindAllString(word, -1))
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && n > 1 {
		n--
	}
	if n == 0 {
		n = 1
	}
	return n
}

// ReadabilityLabel buckets a reading-ease score. Non-Latin text is labelled
// from average sentence length alone.
func ReadabilityLabel(m TextMetrics) string {
	if m.Words == 0 {
		return "unknown"
	}
	if m.LatinScript {
		switch {
		case m.ReadingEase >= 70:
			return "easy"
		case m.ReadingEase >= 50:
			return "standard"
		default:
			return "difficult"
		}
	}
	switch {
	case m.AvgSentenceLength <= 12:
		return "easy"
	case m.AvgSentenceLength <= 22:
		return "standard"
	default:
		return "difficult"
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
