// Package i18n localizes the strings the CLI shows to people. The agent
// service answers in whatever language the user writes; this package only
// covers Parley's own prompts, help and notices.
package i18n

import (
	"fmt"
	"os"
	"strings"
)

// Supported languages
const (
	LangEN   = "en"
	LangZhCN = "zh-CN"
)

// currentLang holds the current language setting
var currentLang = LangZhCN

// messages stores all translations
var messages = make(map[string]map[string]string)

// Init initializes the i18n system with the specified language
func Init(lang string) {
	// Normalize language code
	lang = strings.ToLower(strings.TrimSpace(lang))

	// Map common variations
	switch lang {
	case "en", "en-us", "english":
		currentLang = LangEN
	case "zh", "zh-cn", "zh_cn", "zh-hans", "chinese", "simplified chinese":
		currentLang = LangZhCN
	default:
		// Check environment variable
		if envLang := os.Getenv("PARLEY_LANG"); envLang != "" && !strings.EqualFold(envLang, lang) {
			Init(envLang)
			return
		}
		// Default to Simplified Chinese, the language of the service's tools
		currentLang = LangZhCN
	}

	// Load messages
	loadMessages()
}

// SetLanguage changes the current language
func SetLanguage(lang string) {
	Init(lang)
}

// GetLanguage returns the current language
func GetLanguage() string {
	return currentLang
}

// T returns the translated message for the given key
// Falls back to English if translation is not found
func T(key string) string {
	if msg, ok := messages[currentLang][key]; ok {
		return msg
	}

	// Fallback to English
	if msg, ok := messages[LangEN][key]; ok {
		return msg
	}

	// Return key if no translation found
	return key
}

// Sprintf returns the translated and formatted message
func Sprintf(key string, args ...interface{}) string {
	return fmt.Sprintf(T(key), args...)
}

// loadMessages initializes the message maps
func loadMessages() {
	messages[LangEN] = make(map[string]string)
	messages[LangZhCN] = make(map[string]string)

	loadEnglishMessages()
	loadChineseMessages()
}

// GetSupportedLanguages returns a list of supported language codes
func GetSupportedLanguages() []string {
	return []string{LangEN, LangZhCN}
}

// IsLanguageSupported checks if a language is supported
func IsLanguageSupported(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, supported := range GetSupportedLanguages() {
		if strings.EqualFold(lang, supported) {
			return true
		}
	}
	return false
}

// init is called automatically when the package is imported
func init() {
	if envLang := os.Getenv("PARLEY_LANG"); envLang != "" {
		Init(envLang)
	} else {
		Init(LangZhCN)
	}
}
