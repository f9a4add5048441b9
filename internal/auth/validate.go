package auth

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLen    = 255
	maxFullNameLen = 150
	minPasswordLen = 8
)

const (
	msgRequired     = "This field is required."
	msgBlank        = "This field may not be blank."
	msgInvalidEmail = "Enter a valid email address."
)

func msgTooLong(n int) string {
	return "Ensure this field has no more than " + strconv.Itoa(n) + " characters."
}

func msgTooShort(n int) string {
	return "Ensure this field has at least " + strconv.Itoa(n) + " characters."
}

// validEmail accepts a bare addr-spec whose domain has at least one dot.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	return strings.Contains(strings.Trim(domain, "."), ".")
}

func checkEmail(v *ValidationError, field, email string, required bool) {
	switch {
	case email == "" && required:
		v.Add(field, msgRequired)
	case email == "":
		v.Add(field, msgBlank)
	case utf8.RuneCountInString(email) > maxEmailLen:
		v.Add(field, msgTooLong(maxEmailLen))
	case !validEmail(email):
		v.Add(field, msgInvalidEmail)
	}
}

func checkFullName(v *ValidationError, field, name string, required bool) {
	switch {
	case name == "" && required:
		v.Add(field, msgRequired)
	case name == "":
		v.Add(field, msgBlank)
	case utf8.RuneCountInString(name) > maxFullNameLen:
		v.Add(field, msgTooLong(maxFullNameLen))
	}
}
