package speech

import (
	"fmt"
	"strings"
)

// Language is the source language of a translation.
type Language string

const (
	LanguageEnglish  Language = "english"
	LanguageHinglish Language = "hinglish"
)

// Languages lists the supported source languages.
var Languages = []Language{LanguageEnglish, LanguageHinglish}

// ParseLanguage accepts "english" or "hinglish", case-insensitively.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageHinglish:
		return LanguageHinglish, nil
	}
	return "", fmt.Errorf("unsupported language %q (want english or hinglish)", s)
}

// Label is the human-readable language name.
func (l Language) Label() string {
	switch l {
	case LanguageEnglish:
		return "English"
	case LanguageHinglish:
		return "Hinglish"
	}
	return string(l)
}

const (
	englishTemplate  = `Translate the following English text into Hindi using the Devanagari script. If the provided text is already in Hindi, return it unchanged. Provide only the final translated text. Text to translate: "%s"`
	hinglishTemplate = `Translate the following Hinglish (Romanized Hindi) text into Hindi using the Devanagari script. If the provided text is already in correct Devanagari Hindi, return it unchanged. Provide only the final translated text. Text to translate: "%s"`
)

// BuildTranslationPrompt interpolates text verbatim into the template for lang.
func BuildTranslationPrompt(text string, lang Language) (string, error) {
	var tmpl string
	switch lang {
	case LanguageEnglish:
		tmpl = englishTemplate
	case LanguageHinglish:
		tmpl = hinglishTemplate
	default:
		return "", fmt.Errorf("unsupported language %q", lang)
	}
	return strings.Replace(tmpl, "%s", text, 1), nil
}
