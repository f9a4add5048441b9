package auth

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy decides whether a candidate password is acceptable.
//
// MaxBytes caps the encoded length; bcrypt ignores input past 72 bytes.
type PasswordPolicy struct {
	MinLength     int
	MaxBytes      int
	RejectCommon  bool
	RejectNumeric bool
	RejectSimilar bool
}

// DefaultPasswordPolicy mirrors the usual web-framework validator set.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		MaxBytes:      72,
		RejectCommon:  true,
		RejectNumeric: true,
		RejectSimilar: true,
	}
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"12345678": {}, "123456789": {}, "1234567890": {}, "11111111": {},
	"qwerty": {}, "qwerty123": {}, "qwertyuiop": {}, "abc12345": {},
	"iloveyou": {}, "sunshine": {}, "letmein1": {}, "football": {},
	"baseball": {}, "welcome1": {}, "admin123": {}, "trustno1": {},
}

// Validate returns a *PolicyError listing every violated rule. attrs are user
// attributes (email, full name) the password must not resemble.
func (p PasswordPolicy) Validate(password string, attrs ...string) error {
	var reasons []string

	if n := utf8.RuneCountInString(password); n < p.MinLength {
		reasons = append(reasons, "This password is too short. It must contain at least "+strconv.Itoa(p.MinLength)+" characters.")
	}
	if p.MaxBytes > 0 && len(password) > p.MaxBytes {
		reasons = append(reasons, "This password is too long.")
	}
	if p.RejectSimilar && tooSimilar(password, attrs) {
		reasons = append(reasons, "The password is too similar to your personal information.")
	}
	if p.RejectCommon && p.isCommon(password) {
		reasons = append(reasons, "This password is too common.")
	}
	if p.RejectNumeric && password != "" && isNumeric(password) {
		reasons = append(reasons, "This password is entirely numeric.")
	}

	if len(reasons) == 0 {
		return nil
	}
	return &PolicyError{Reasons: reasons}
}

func (p PasswordPolicy) isCommon(pw string) bool {
	lower := strings.ToLower(strings.TrimSpace(pw))
	if lower == "" {
		return true
	}
	if _, ok := commonPasswords[lower]; ok {
		return true
	}
	first, _ := utf8.DecodeRuneInString(lower)
	return strings.Trim(lower, string(first)) == ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func tooSimilar(password string, attrs []string) bool {
	pw := strings.ToLower(password)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		candidates := []string{attr}
		if local, _, ok := strings.Cut(attr, "@"); ok {
			candidates = append(candidates, local)
		}
		candidates = append(candidates, strings.FieldsFunc(attr, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
		for _, c := range candidates {
			if utf8.RuneCountInString(c) < 4 {
				continue
			}
			if pw == c || strings.Contains(pw, c) && utf8.RuneCountInString(c)*2 >= utf8.RuneCountInString(pw) {
				return true
			}
		}
	}
	return false
}
