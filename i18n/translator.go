package i18n

import (
	"strings"
	"sync"
)

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "min" or "max"); placeholders are written as {min}.
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var dictionaries = map[string]map[string]string{
	"en": {
		"invalid_type":           "invalid type",
		"required":               "required",
		"unknown_key":            "unknown key",
		"too_small":              "must be greater than or equal to {min}",
		"too_big":                "must be less than or equal to {max}",
		"too_short":              "must contain at least {min} item(s)",
		"too_long":               "must contain at most {max} item(s)",
		"string_too_short":       "must be at least {min} character(s)",
		"string_too_long":        "must be at most {max} character(s)",
		"pattern":                "invalid format",
		"invalid_format":         "invalid {format}",
		"invalid_enum":           "invalid option",
		"not_integer":            "must be an integer",
		"parse_error":            "parse error",
		"custom":                 "invalid value",
		"validation_failed":      "validation failed",
		"dependency_unavailable": "dependency unavailable",
		"uniqueness":             "duplicate value",
		"mismatch":               "must match {other}",
	},
	"ja": {
		"invalid_type":           "型が不正です",
		"required":               "必須項目です",
		"unknown_key":            "未知のキーです",
		"too_small":              "{min} 以上である必要があります",
		"too_big":                "{max} 以下である必要があります",
		"too_short":              "{min} 件以上必要です",
		"too_long":               "{max} 件以下である必要があります",
		"string_too_short":       "{min} 文字以上である必要があります",
		"string_too_long":        "{max} 文字以下である必要があります",
		"pattern":                "形式が不正です",
		"invalid_format":         "{format} の形式が不正です",
		"invalid_enum":           "不正な選択肢です",
		"not_integer":            "整数である必要があります",
		"parse_error":            "解析エラー",
		"custom":                 "不正な値です",
		"validation_failed":      "検証に失敗しました",
		"dependency_unavailable": "依存先サービスが利用できません",
		"uniqueness":             "値が重複しています",
		"mismatch":               "{other} と一致する必要があります",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := dictionaries[t.lang][code]
	if !ok {
		return code
	}
	for k, v := range data {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

var (
	mu                           = sync.RWMutex{}
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	SetTranslator(dictTranslator{lang: lang})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
