package advisory

import (
	"fmt"
	"strings"

	"github.com/dvloznov/agritool/internal/domain"
)

// Language is a response language offered to the farmer.
type Language string

const (
	English Language = "English"
	Telugu  Language = "Telugu"
	Hindi   Language = "Hindi"
)

// DefaultLanguage is used when none was chosen.
const DefaultLanguage = English

type languageInfo struct {
	directive string
	code      string
}

var languages = map[Language]languageInfo{
	English: {directive: "Respond in English.", code: "en-IN"},
	Telugu:  {directive: "స్పష్టంగా తెలుగులో స్పందించండి.", code: "te-IN"},
	Hindi:   {directive: "कृपया स्पष्ट हिंदी में उत्तर दीजिए।", code: "hi-IN"},
}

// Languages returns the selectable languages, default first.
func Languages() []Language {
	return []Language{English, Telugu, Hindi}
}

// ParseLanguage accepts a language name or its two-letter code, ignoring case.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, l := range Languages() {
		if strings.EqualFold(s, string(l)) || strings.EqualFold(s, l.Code()[:2]) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported language %q", domain.ErrValidation, s)
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

// Directive is the instruction appended to prompts so the model answers in l.
func (l Language) Directive() string {
	return l.info().directive
}

// Code is the BCP-47 tag used for speech recognition and synthesis.
func (l Language) Code() string {
	return l.info().code
}

func (l Language) info() languageInfo {
	if info, ok := languages[l]; ok {
		return info
	}
	return languages[DefaultLanguage]
}
