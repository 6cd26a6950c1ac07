package domain

// UserPatch carries a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	Name                *string
	Email               *string
	Role                *Role
	Settings            map[string]any
	Binders             *[]string
	OnboardingCompleted *bool
}

// Apply writes the set fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Settings != nil {
		u.Settings = cloneAnyMap(p.Settings)
	}
	if p.Binders != nil {
		u.Binders = cloneStrings(*p.Binders)
	}
	if p.OnboardingCompleted != nil {
		u.OnboardingCompleted = *p.OnboardingCompleted
	}
}

// BinderPatch carries a partial binder update. Nil fields are left unchanged.
type BinderPatch struct {
	AuthorID   *string
	Image      *string
	Properties LocalizedProps
	Pictograms *[]string
	Users      *[]string
	Favorite   *bool
}

// Apply writes the set fields of p onto b.
func (p BinderPatch) Apply(b *Binder) {
	if p.AuthorID != nil {
		b.AuthorID = *p.AuthorID
	}
	if p.Image != nil {
		b.Image = *p.Image
	}
	if p.Properties != nil {
		b.Properties = p.Properties.Clone()
	}
	if p.Pictograms != nil {
		b.Pictograms = cloneStrings(*p.Pictograms)
	}
	if p.Users != nil {
		b.Users = cloneStrings(*p.Users)
	}
	if p.Favorite != nil {
		b.Favorite = *p.Favorite
	}
}

// CategoryPatch carries a partial category update. Nil fields are left unchanged.
type CategoryPatch struct {
	Image      *string
	Properties LocalizedProps
	Pictograms *[]string
}

// Apply writes the set fields of p onto c.
func (p CategoryPatch) Apply(c *Category) {
	if p.Image != nil {
		c.Image = *p.Image
	}
	if p.Properties != nil {
		c.Properties = p.Properties.Clone()
	}
	if p.Pictograms != nil {
		c.Pictograms = cloneStrings(*p.Pictograms)
	}
}

// PictogramPatch carries a partial pictogram update. Nil fields are left unchanged.
type PictogramPatch struct {
	Image      *string
	Sound      *string
	Favorite   *bool
	Order      *int
	Properties LocalizedProps
	BinderID   *string
	Categories *[]string
}

// Apply writes the set fields of p onto pic.
func (p PictogramPatch) Apply(pic *Pictogram) {
	if p.Image != nil {
		pic.Image = *p.Image
	}
	if p.Sound != nil {
		pic.Sound = *p.Sound
	}
	if p.Favorite != nil {
		pic.Favorite = *p.Favorite
	}
	if p.Order != nil {
		pic.Order = *p.Order
	}
	if p.Properties != nil {
		pic.Properties = p.Properties.Clone()
	}
	if p.BinderID != nil {
		pic.BinderID = *p.BinderID
	}
	if p.Categories != nil {
		pic.Categories = cloneStrings(*p.Categories)
	}
}
