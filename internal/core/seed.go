package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"pictocore/pkg/domain"
)

// SeedData is the YAML document accepted by LoadSeed. Records are created in
// field order so that pictograms can reference binders of the same file.
type SeedData struct {
	Users        []SeedUser        `yaml:"users"`
	Binders      []SeedBinder      `yaml:"binders"`
	Categories   []SeedCategory    `yaml:"categories"`
	Pictograms   []SeedPictogram   `yaml:"pictograms"`
	Settings     map[string]any    `yaml:"settings"`
	Translations []SeedTranslation `yaml:"translations"`
}

// SeedUser describes a user. Password, when set, is hashed with bcrypt.
type SeedUser struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Email    string      `yaml:"email"`
	Role     domain.Role `yaml:"role"`
	Password string      `yaml:"password"`
}

// SeedBinder describes a binder.
type SeedBinder struct {
	ID         string                       `yaml:"id"`
	Author     string                       `yaml:"author"`
	Image      string                       `yaml:"image"`
	Favorite   bool                         `yaml:"favorite"`
	Properties map[string]map[string]string `yaml:"properties"`
}

// SeedCategory describes a category.
type SeedCategory struct {
	ID         string                       `yaml:"id"`
	Image      string                       `yaml:"image"`
	Properties map[string]map[string]string `yaml:"properties"`
	Pictograms []string                     `yaml:"pictograms"`
}

// SeedPictogram describes a pictogram.
type SeedPictogram struct {
	ID         string                       `yaml:"id"`
	Binder     string                       `yaml:"binder"`
	Image      string                       `yaml:"image"`
	Sound      string                       `yaml:"sound"`
	Favorite   bool                         `yaml:"favorite"`
	Order      int                          `yaml:"order"`
	Properties map[string]map[string]string `yaml:"properties"`
	Categories []string                     `yaml:"categories"`
}

// SeedTranslation is a standalone translation row.
type SeedTranslation struct {
	Object string `yaml:"object"`
	Locale string `yaml:"locale"`
	Key    string `yaml:"key"`
	Value  string `yaml:"value"`
}

// LoadSeed decodes a seed document.
func LoadSeed(r io.Reader) (*SeedData, error) {
	var data SeedData
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &data, nil
}

// LoadSeedFile decodes the seed document at path.
func LoadSeedFile(path string) (*SeedData, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadSeed(f)
}

// Func returns a SeedFunc creating every record of d.
func (d *SeedData) Func() SeedFunc {
	return func(_ context.Context, tx *Tx) error { return d.Apply(tx) }
}

// Apply creates every record of d within tx.
func (d *SeedData) Apply(tx *Tx) error {
	for _, u := range d.Users {
		user := domain.User{Base: domain.Base{ID: u.ID}, Name: u.Name, Email: u.Email, Role: u.Role}
		if user.Role == "" {
			user.Role = domain.RoleUser
		}
		if u.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user.PasswordHash = string(hash)
		}
		if _, err := tx.CreateUser(user); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	binderPictograms := make(map[string][]string)
	for _, p := range d.Pictograms {
		binderPictograms[p.Binder] = append(binderPictograms[p.Binder], p.ID)
	}
	for _, b := range d.Binders {
		binder := domain.Binder{
			Base:       domain.Base{ID: b.ID},
			AuthorID:   b.Author,
			Image:      b.Image,
			Favorite:   b.Favorite,
			Properties: domain.LocalizedProps(b.Properties),
			Pictograms: binderPictograms[b.ID],
		}
		if _, err := tx.CreateBinder(binder); err != nil {
			return fmt.Errorf("seed binder %s: %w", b.ID, err)
		}
	}
	for _, c := range d.Categories {
		category := domain.Category{
			Base:       domain.Base{ID: c.ID},
			Image:      c.Image,
			Properties: domain.LocalizedProps(c.Properties),
			Pictograms: c.Pictograms,
		}
		if _, err := tx.CreateCategory(category); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}
	for _, p := range d.Pictograms {
		pictogram := domain.Pictogram{
			Base:       domain.Base{ID: p.ID},
			BinderID:   p.Binder,
			Image:      p.Image,
			Sound:      p.Sound,
			Favorite:   p.Favorite,
			Order:      p.Order,
			Properties: domain.LocalizedProps(p.Properties),
			Categories: p.Categories,
		}
		if _, err := tx.CreatePictogram(pictogram); err != nil {
			return fmt.Errorf("seed pictogram %s: %w", p.ID, err)
		}
	}
	for key, value := range d.Settings {
		if _, err := tx.PutSetting(key, normalizeYAML(value)); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	for _, t := range d.Translations {
		if err := tx.SetTranslation(t.Object, t.Locale, t.Key, t.Value); err != nil {
			return fmt.Errorf("seed translation %s/%s/%s: %w", t.Object, t.Locale, t.Key, err)
		}
	}
	return nil
}

// normalizeYAML turns yaml.v3's map[interface{}]interface{} leftovers into
// map[string]any so setting validation accepts nested maps.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalizeYAML(inner)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeYAML(inner)
		}
		return out
	default:
		return v
	}
}
