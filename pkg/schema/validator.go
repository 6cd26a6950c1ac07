// Package schema declares per-entity validation rules. Validation is pure: it
// never touches a store and reports failures as machine-readable kinds so that
// callers can localize messages themselves.
package schema

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"

	"pictocore/pkg/domain"
)

// Kind is a machine-readable validation failure token.
type Kind string

// Validation failure kinds.
const (
	KindRequired           Kind = "required"
	KindInvalidEmail       Kind = "invalid_email"
	KindNegative           Kind = "negative"
	KindInvalidEnum        Kind = "invalid_enum"
	KindInvalidID          Kind = "invalid_id"
	KindInvalidLocale      Kind = "invalid_locale"
	KindUnknownProperty    Kind = "unknown_property"
	KindEmptyValue         Kind = "empty_value"
	KindInvalidType        Kind = "invalid_type"
	KindInvalidContentType Kind = "invalid_content_type"
)

// MaxIDLength bounds identifier and setting key length in runes.
const MaxIDLength = 128

// Issue is one failed rule.
type Issue struct {
	Field string `json:"field"`
	Kind  Kind   `json:"kind"`
}

// ValidationError aggregates the issues found for one input.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+string(issue.Kind))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the path of the first issue.
func (e *ValidationError) Field() string {
	if len(e.Issues) == 0 {
		return ""
	}
	return e.Issues[0].Field
}

// Kind returns the kind of the first issue.
func (e *ValidationError) Kind() Kind {
	if len(e.Issues) == 0 {
		return ""
	}
	return e.Issues[0].Kind
}

// Has reports whether an issue with field and kind is present.
func (e *ValidationError) Has(field string, kind Kind) bool {
	for _, issue := range e.Issues {
		if issue.Field == field && issue.Kind == kind {
			return true
		}
	}
	return false
}

// AsValidation unwraps err into a *ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// Validator collects field-level issues via a chainable API. It is not safe
// for concurrent use.
type Validator struct {
	issues []Issue
}

// New returns an empty validator.
func New() *Validator { return &Validator{} }

func (v *Validator) add(field string, kind Kind) {
	v.issues = append(v.issues, Issue{Field: field, Kind: kind})
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, KindRequired)
	}
	return v
}

// Email fails unless value is a bare RFC 5322 address.
func (v *Validator) Email(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, KindRequired)
		return v
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@"):], ".") {
		v.add(field, KindInvalidEmail)
	}
	return v
}

// NonNegative fails if value < 0.
func (v *Validator) NonNegative(field string, value int) *Validator {
	if value < 0 {
		v.add(field, KindNegative)
	}
	return v
}

// ID fails unless value is a well-formed identifier.
func (v *Validator) ID(field, value string) *Validator {
	if value == "" {
		v.add(field, KindRequired)
		return v
	}
	if !validID(value) {
		v.add(field, KindInvalidID)
	}
	return v
}

// OptionalID accepts the empty string, otherwise behaves like ID.
func (v *Validator) OptionalID(field, value string) *Validator {
	if value != "" && !validID(value) {
		v.add(field, KindInvalidID)
	}
	return v
}

// IDs validates every element of an identifier list.
func (v *Validator) IDs(field string, values []string) *Validator {
	for i, id := range values {
		v.ID(fmt.Sprintf("%s[%d]", field, i), id)
	}
	return v
}

// Locale fails unless value parses as a BCP 47 language tag.
func (v *Validator) Locale(field, value string) *Validator {
	if value == "" {
		v.add(field, KindRequired)
		return v
	}
	if _, err := CanonicalLocale(value); err != nil {
		v.add(field, KindInvalidLocale)
	}
	return v
}

// Props validates per-locale property bags against the allowed keys.
func (v *Validator) Props(field string, props domain.LocalizedProps, allowed []string) *Validator {
	for locale, bag := range props {
		path := field + "." + locale
		if _, err := CanonicalLocale(locale); err != nil {
			v.add(path, KindInvalidLocale)
			continue
		}
		for key := range bag {
			if !contains(allowed, key) {
				v.add(path+"."+key, KindUnknownProperty)
			}
		}
	}
	return v
}

// Custom adds an issue if failed is true.
func (v *Validator) Custom(field string, failed bool, kind Kind) *Validator {
	if failed {
		v.add(field, kind)
	}
	return v
}

// Err returns a *ValidationError if any rule failed, or nil.
func (v *Validator) Err() error {
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: append([]Issue(nil), v.issues...)}
}

// HasErrors reports whether any rule failed so far.
func (v *Validator) HasErrors() bool { return len(v.issues) > 0 }

func oneOf[T ~string](v *Validator, field string, value T, allowed []T) {
	if value == "" {
		v.add(field, KindRequired)
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(field, KindInvalidEnum)
}

func validID(value string) bool {
	if utf8.RuneCountInString(value) > MaxIDLength || strings.Contains(value, domain.KeySeparator) {
		return false
	}
	for _, r := range value {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// CanonicalLocale parses a BCP 47 tag and returns its canonical form.
func CanonicalLocale(locale string) (string, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}
