// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by pictocore.
package domain

import (
	"strings"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// EntityType identifies the kind of record an audit entry refers to.
type EntityType string

// Supported entity type identifiers used in History rows and Change records.
const (
	// EntityUser identifies a user record.
	EntityUser EntityType = "user"
	// EntityBinder identifies a binder record.
	EntityBinder EntityType = "binder"
	// EntityPictogram identifies a pictogram record.
	EntityPictogram EntityType = "pictogram"
	// EntityCategory identifies a category record.
	EntityCategory EntityType = "category"
)

// EntityTypes lists every entity type accepted by History rows.
var EntityTypes = []EntityType{EntityUser, EntityBinder, EntityPictogram, EntityCategory}

// Action indicates the kind of activity captured in the audit trail.
type Action string

// Audit actions recorded in History rows.
const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionAccess       Action = "access"
	ActionShare        Action = "share"
	ActionImport       Action = "import"
	ActionExport       Action = "export"
	ActionSetupStarted Action = "setup-started"
)

// Actions lists every accepted audit action.
var Actions = []Action{
	ActionCreate, ActionUpdate, ActionDelete, ActionAccess,
	ActionShare, ActionImport, ActionExport, ActionSetupStarted,
}

// Role enumerates user roles.
type Role string

// Canonical user roles.
const (
	RoleAdmin Role = "admin"
	RoleTutor Role = "tutor"
	RoleUser  Role = "user"
)

// Roles lists every accepted role.
var Roles = []Role{RoleAdmin, RoleTutor, RoleUser}

// Translatable property keys.
const (
	PropTitle       = "title"
	PropDescription = "description"
)

// TranslatableKeys maps each entity type to the property keys resolved from
// translation rows.
var TranslatableKeys = map[EntityType][]string{
	EntityBinder:    {PropTitle, PropDescription},
	EntityPictogram: {PropTitle},
	EntityCategory:  {PropTitle},
}

// LocalizedProps holds per-locale property bags keyed by locale then property.
type LocalizedProps map[string]map[string]string

// Text returns the property value for locale, or "" when absent.
func (p LocalizedProps) Text(locale, key string) string {
	if p == nil {
		return ""
	}
	return p[locale][key]
}

// Clone returns a deep copy of the property bags.
func (p LocalizedProps) Clone() LocalizedProps {
	if p == nil {
		return nil
	}
	out := make(LocalizedProps, len(p))
	for locale, bag := range p {
		cp := make(map[string]string, len(bag))
		for k, v := range bag {
			cp[k] = v
		}
		out[locale] = cp
	}
	return out
}

// Base contains common fields for identified records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account owning or accessing binders.
type User struct {
	Base
	Name                string         `json:"name"`
	Email               string         `json:"email"`
	PasswordHash        string         `json:"password_hash,omitempty"`
	Role                Role           `json:"role"`
	Settings            map[string]any `json:"settings"`
	Binders             []string       `json:"binders"`
	OnboardingCompleted bool           `json:"onboarding_completed"`
}

// Binder is a named collection of pictograms assembled for a communication context.
type Binder struct {
	Base
	AuthorID   string         `json:"author"`
	Image      string         `json:"image,omitempty"`
	Properties LocalizedProps `json:"properties"`
	Pictograms []string       `json:"pictograms"`
	Users      []string       `json:"users"`
	Favorite   bool           `json:"favorite"`
}

// Category is a cross-cutting grouping label applied to pictograms.
type Category struct {
	Base
	Image      string         `json:"image,omitempty"`
	Properties LocalizedProps `json:"properties"`
	Pictograms []string       `json:"pictograms"`
}

// Pictogram is an image/sound-backed communication unit owned by one binder.
type Pictogram struct {
	Base
	Image      string         `json:"image,omitempty"`
	Sound      string         `json:"sound,omitempty"`
	Favorite   bool           `json:"favorite"`
	Order      int            `json:"display_order"`
	Properties LocalizedProps `json:"properties"`
	BinderID   string         `json:"binder"`
	Categories []string       `json:"categories"`
}

// Setting is a process-wide preference keyed by a unique string.
type Setting struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldChange captures the before/after value of one field.
type FieldChange struct {
	Before any `json:"before,omitempty"`
	After  any `json:"after,omitempty"`
}

// History is an append-only audit record.
type History struct {
	ID          string                 `json:"id"`
	EntityType  EntityType             `json:"entity_type"`
	TargetID    string                 `json:"target"`
	Action      Action                 `json:"action"`
	PerformedBy string                 `json:"performed_by"`
	Timestamp   time.Time              `json:"timestamp"`
	Changes     map[string]FieldChange `json:"changes,omitempty"`
}

// Translation is a sparse (object, locale, attribute) -> text row.
type Translation struct {
	ObjectID string `json:"object_id"`
	Locale   string `json:"locale"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// KeySeparator joins the parts of composite keys. Identifiers never contain it.
const KeySeparator = "|"

// TranslationKey builds the primary key of a translation row.
func TranslationKey(objectID, locale, key string) string {
	return strings.Join([]string{objectID, locale, key}, KeySeparator)
}

// ObjectLocaleKey builds the value of the translations object_locale index.
func ObjectLocaleKey(objectID, locale string) string {
	return objectID + KeySeparator + locale
}

// TimestampKey formats t as a fixed-width UTC string whose lexical order is chronological.
func TimestampKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	var out map[string]any
	if err := deepcopy.Copy(&out, in); err != nil {
		out = make(map[string]any, len(in))
		for k, v := range in {
			out[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	cp := u
	cp.Settings = cloneAnyMap(u.Settings)
	cp.Binders = cloneStrings(u.Binders)
	return cp
}

// Clone returns a deep copy of the binder.
func (b Binder) Clone() Binder {
	cp := b
	cp.Properties = b.Properties.Clone()
	cp.Pictograms = cloneStrings(b.Pictograms)
	cp.Users = cloneStrings(b.Users)
	return cp
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	cp := c
	cp.Properties = c.Properties.Clone()
	cp.Pictograms = cloneStrings(c.Pictograms)
	return cp
}

// Clone returns a deep copy of the pictogram.
func (p Pictogram) Clone() Pictogram {
	cp := p
	cp.Properties = p.Properties.Clone()
	cp.Categories = cloneStrings(p.Categories)
	return cp
}

// Clone returns a deep copy of the setting.
func (s Setting) Clone() Setting {
	cp := s
	if m, ok := s.Value.(map[string]any); ok {
		cp.Value = cloneAnyMap(m)
	}
	return cp
}

// Clone returns a deep copy of the history row.
func (h History) Clone() History {
	cp := h
	if h.Changes != nil {
		cp.Changes = make(map[string]FieldChange, len(h.Changes))
		for k, v := range h.Changes {
			var fc FieldChange
			if err := deepcopy.Copy(&fc, v); err != nil {
				fc = v
			}
			cp.Changes[k] = fc
		}
	}
	return cp
}
