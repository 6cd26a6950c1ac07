package schema

import (
	"strings"

	"pictocore/pkg/domain"
)

// ValidateUser checks a full user record and returns its normalized form.
func ValidateUser(u domain.User) (domain.User, error) {
	out := u.Clone()
	out.Name = strings.TrimSpace(out.Name)
	out.Email = strings.ToLower(strings.TrimSpace(out.Email))
	out.Binders = dedupe(out.Binders)
	v := New().
		ID("id", out.ID).
		Required("name", out.Name).
		Email("email", out.Email).
		IDs("binders", out.Binders)
	oneOf(v, "role", out.Role, domain.Roles)
	validateSettingsMap(v, "settings", out.Settings)
	if err := v.Err(); err != nil {
		return domain.User{}, err
	}
	return out, nil
}

// ValidateUserPatch checks the fields set on a partial user update.
func ValidateUserPatch(p domain.UserPatch) error {
	v := New()
	if p.Name != nil {
		v.Required("name", *p.Name)
	}
	if p.Email != nil {
		v.Email("email", strings.ToLower(strings.TrimSpace(*p.Email)))
	}
	if p.Role != nil {
		oneOf(v, "role", *p.Role, domain.Roles)
	}
	if p.Binders != nil {
		v.IDs("binders", *p.Binders)
	}
	validateSettingsMap(v, "settings", p.Settings)
	return v.Err()
}

// ValidateBinder checks a full binder record and returns its normalized form.
func ValidateBinder(b domain.Binder) (domain.Binder, error) {
	out := b.Clone()
	out.Pictograms = dedupe(out.Pictograms)
	out.Users = dedupe(out.Users)
	v := New().
		ID("id", out.ID).
		ID("author", out.AuthorID).
		Props("properties", out.Properties, domain.TranslatableKeys[domain.EntityBinder]).
		IDs("pictograms", out.Pictograms).
		IDs("users", out.Users)
	if err := v.Err(); err != nil {
		return domain.Binder{}, err
	}
	out.Properties = canonicalProps(out.Properties)
	return out, nil
}

// ValidateBinderPatch checks the fields set on a partial binder update.
func ValidateBinderPatch(p domain.BinderPatch) error {
	v := New()
	if p.AuthorID != nil {
		v.ID("author", *p.AuthorID)
	}
	v.Props("properties", p.Properties, domain.TranslatableKeys[domain.EntityBinder])
	if p.Pictograms != nil {
		v.IDs("pictograms", *p.Pictograms)
	}
	if p.Users != nil {
		v.IDs("users", *p.Users)
	}
	return v.Err()
}

// ValidateCategory checks a full category record and returns its normalized form.
func ValidateCategory(c domain.Category) (domain.Category, error) {
	out := c.Clone()
	out.Pictograms = dedupe(out.Pictograms)
	v := New().
		ID("id", out.ID).
		Props("properties", out.Properties, domain.TranslatableKeys[domain.EntityCategory]).
		IDs("pictograms", out.Pictograms)
	if err := v.Err(); err != nil {
		return domain.Category{}, err
	}
	out.Properties = canonicalProps(out.Properties)
	return out, nil
}

// ValidateCategoryPatch checks the fields set on a partial category update.
func ValidateCategoryPatch(p domain.CategoryPatch) error {
	v := New().Props("properties", p.Properties, domain.TranslatableKeys[domain.EntityCategory])
	if p.Pictograms != nil {
		v.IDs("pictograms", *p.Pictograms)
	}
	return v.Err()
}

// ValidatePictogram checks a full pictogram record and returns its normalized form.
func ValidatePictogram(p domain.Pictogram) (domain.Pictogram, error) {
	out := p.Clone()
	out.Categories = dedupe(out.Categories)
	v := New().
		ID("id", out.ID).
		ID("binder", out.BinderID).
		NonNegative("display_order", out.Order).
		Props("properties", out.Properties, domain.TranslatableKeys[domain.EntityPictogram]).
		IDs("categories", out.Categories)
	if err := v.Err(); err != nil {
		return domain.Pictogram{}, err
	}
	out.Properties = canonicalProps(out.Properties)
	return out, nil
}

// ValidatePictogramPatch checks the fields set on a partial pictogram update.
func ValidatePictogramPatch(p domain.PictogramPatch) error {
	v := New()
	if p.Order != nil {
		v.NonNegative("display_order", *p.Order)
	}
	if p.BinderID != nil {
		v.ID("binder", *p.BinderID)
	}
	v.Props("properties", p.Properties, domain.TranslatableKeys[domain.EntityPictogram])
	if p.Categories != nil {
		v.IDs("categories", *p.Categories)
	}
	return v.Err()
}

// ValidateSetting checks a setting key and value.
func ValidateSetting(s domain.Setting) (domain.Setting, error) {
	v := New().ID("key", s.Key)
	validateSettingValue(v, "value", s.Value)
	if err := v.Err(); err != nil {
		return domain.Setting{}, err
	}
	return s.Clone(), nil
}

// ValidateHistory checks an audit row.
func ValidateHistory(h domain.History) (domain.History, error) {
	v := New().
		ID("id", h.ID).
		ID("target", h.TargetID).
		ID("performed_by", h.PerformedBy).
		Custom("timestamp", h.Timestamp.IsZero(), KindRequired)
	oneOf(v, "entity_type", h.EntityType, domain.EntityTypes)
	oneOf(v, "action", h.Action, domain.Actions)
	if err := v.Err(); err != nil {
		return domain.History{}, err
	}
	out := h.Clone()
	out.Timestamp = out.Timestamp.UTC()
	return out, nil
}

// ValidateTranslation checks a translation row and canonicalizes its locale.
// Empty values are rejected: absence is expressed by deleting the row.
func ValidateTranslation(t domain.Translation) (domain.Translation, error) {
	v := New().
		ID("object_id", t.ObjectID).
		Locale("locale", t.Locale).
		ID("key", t.Key).
		Custom("value", t.Value == "", KindEmptyValue)
	if err := v.Err(); err != nil {
		return domain.Translation{}, err
	}
	t.Locale, _ = CanonicalLocale(t.Locale)
	return t, nil
}

// ValidateContentType checks that an asset MIME type belongs to family
// ("image" or "audio").
func ValidateContentType(field, contentType, family string) error {
	main, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), "/")
	return New().Custom(field, main != family, KindInvalidContentType).Err()
}

func validateSettingsMap(v *Validator, field string, m map[string]any) {
	for k, val := range m {
		path := field + "." + k
		v.Custom(path, strings.TrimSpace(k) == "", KindRequired)
		validateSettingValue(v, path, val)
	}
}

func validateSettingValue(v *Validator, field string, value any) {
	switch val := value.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
	case map[string]any:
		validateSettingsMap(v, field, val)
	default:
		v.add(field, KindInvalidType)
	}
}

func canonicalProps(props domain.LocalizedProps) domain.LocalizedProps {
	if props == nil {
		return nil
	}
	out := make(domain.LocalizedProps, len(props))
	for locale, bag := range props {
		canon, err := CanonicalLocale(locale)
		if err != nil {
			canon = locale
		}
		merged := out[canon]
		if merged == nil {
			merged = make(map[string]string, len(bag))
		}
		for k, val := range bag {
			merged[k] = val
		}
		out[canon] = merged
	}
	return out
}

func dedupe(values []string) []string {
	if len(values) <= 1 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
