package core

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"pictocore/pkg/domain"
)

// GetUser returns the user with id; absence is (zero, false, nil).
func (s *Service) GetUser(ctx context.Context, id string) (u domain.User, ok bool, err error) {
	err = s.view(ctx, "get_user", scopeUsers, func(v domain.TransactionView) error {
		u, ok, err = get[domain.User](v, domain.CollectionUsers, id)
		return err
	})
	return u, ok, err
}

// GetBinder returns the binder with id.
func (s *Service) GetBinder(ctx context.Context, id string) (b domain.Binder, ok bool, err error) {
	err = s.view(ctx, "get_binder", []domain.Collection{domain.CollectionBinders}, func(v domain.TransactionView) error {
		b, ok, err = get[domain.Binder](v, domain.CollectionBinders, id)
		return err
	})
	return b, ok, err
}

// GetPictogram returns the pictogram with id.
func (s *Service) GetPictogram(ctx context.Context, id string) (p domain.Pictogram, ok bool, err error) {
	err = s.view(ctx, "get_pictogram", []domain.Collection{domain.CollectionPictograms}, func(v domain.TransactionView) error {
		p, ok, err = get[domain.Pictogram](v, domain.CollectionPictograms, id)
		return err
	})
	return p, ok, err
}

// GetCategory returns the category with id.
func (s *Service) GetCategory(ctx context.Context, id string) (c domain.Category, ok bool, err error) {
	err = s.view(ctx, "get_category", []domain.Collection{domain.CollectionCategories}, func(v domain.TransactionView) error {
		c, ok, err = get[domain.Category](v, domain.CollectionCategories, id)
		return err
	})
	return c, ok, err
}

// GetSetting returns the setting stored under key.
func (s *Service) GetSetting(ctx context.Context, key string) (domain.Setting, bool, error) {
	return s.settings.Get(ctx, key)
}

// ListByIndex returns the raw records of coll whose index matches value, unordered.
func (s *Service) ListByIndex(ctx context.Context, coll domain.Collection, index, value string) (rows [][]byte, err error) {
	err = s.view(ctx, "list_by_index", []domain.Collection{coll}, func(v domain.TransactionView) error {
		rows, err = v.Scan(coll, index, value)
		return err
	})
	return rows, err
}

// ListBinders returns every binder ordered by ID.
func (s *Service) ListBinders(ctx context.Context) (out []domain.Binder, err error) {
	err = s.view(ctx, "list_binders", []domain.Collection{domain.CollectionBinders}, func(v domain.TransactionView) error {
		out, err = all[domain.Binder](v, domain.CollectionBinders)
		return err
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// ListCategories returns every category ordered by ID.
func (s *Service) ListCategories(ctx context.Context) (out []domain.Category, err error) {
	err = s.view(ctx, "list_categories", []domain.Collection{domain.CollectionCategories}, func(v domain.TransactionView) error {
		out, err = all[domain.Category](v, domain.CollectionCategories)
		return err
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// PictogramsOfBinder returns the pictograms owned by binderID, unordered.
func (s *Service) PictogramsOfBinder(ctx context.Context, binderID string) (out []domain.Pictogram, err error) {
	err = s.view(ctx, "pictograms_of_binder", []domain.Collection{domain.CollectionPictograms}, func(v domain.TransactionView) error {
		out, err = scan[domain.Pictogram](v, domain.CollectionPictograms, domain.IndexBinder, binderID)
		return err
	})
	return out, err
}

// CategoriesOfPictograms resolves the union of the pictograms' category IDs,
// first occurrence order, skipping IDs with no stored category.
func (s *Service) CategoriesOfPictograms(ctx context.Context, pictograms []domain.Pictogram) (out []domain.Category, err error) {
	err = s.view(ctx, "categories_of_pictograms", []domain.Collection{domain.CollectionCategories}, func(v domain.TransactionView) error {
		out, err = categoriesOf(v, pictograms)
		return err
	})
	return out, err
}

func categoriesOf(v domain.TransactionView, pictograms []domain.Pictogram) ([]domain.Category, error) {
	seen := make(map[string]struct{})
	var out []domain.Category
	for _, p := range pictograms {
		for _, id := range p.Categories {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			c, ok, err := get[domain.Category](v, domain.CollectionCategories, id)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// BindersOfUser returns the binders authored by userID together with those
// listed in the user's binder list, deduplicated and ordered by ID.
func (s *Service) BindersOfUser(ctx context.Context, userID string) (out []domain.Binder, err error) {
	scope := []domain.Collection{domain.CollectionUsers, domain.CollectionBinders}
	err = s.view(ctx, "binders_of_user", scope, func(v domain.TransactionView) error {
		out, err = bindersOf(v, userID)
		return err
	})
	return out, err
}

func bindersOf(v domain.TransactionView, userID string) ([]domain.Binder, error) {
	authored, err := scan[domain.Binder](v, domain.CollectionBinders, domain.IndexAuthor, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Binder, len(authored))
	for _, b := range authored {
		byID[b.ID] = b
	}
	user, ok, err := get[domain.User](v, domain.CollectionUsers, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, id := range user.Binders {
			if _, dup := byID[id]; dup {
				continue
			}
			b, found, err := get[domain.Binder](v, domain.CollectionBinders, id)
			if err != nil {
				return nil, err
			}
			if found {
				byID[id] = b
			}
		}
	}
	out := make([]domain.Binder, 0, len(byID))
	for _, b := range byID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UserByEmail looks a user up through the unique email index.
func (s *Service) UserByEmail(ctx context.Context, email string) (u domain.User, ok bool, err error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	err = s.view(ctx, "user_by_email", scopeUsers, func(v domain.TransactionView) error {
		users, err := scan[domain.User](v, domain.CollectionUsers, domain.IndexEmail, normalized)
		if err != nil || len(users) == 0 {
			return err
		}
		u, ok = users[0], true
		return nil
	})
	return u, ok, err
}

// FavoritePictograms returns every pictogram flagged favorite, unordered.
func (s *Service) FavoritePictograms(ctx context.Context) (out []domain.Pictogram, err error) {
	err = s.view(ctx, "favorite_pictograms", []domain.Collection{domain.CollectionPictograms}, func(v domain.TransactionView) error {
		out, err = scan[domain.Pictogram](v, domain.CollectionPictograms, domain.IndexFavorite, strconv.FormatBool(true))
		return err
	})
	return out, err
}

// FavoriteBinders returns every binder flagged favorite, unordered.
func (s *Service) FavoriteBinders(ctx context.Context) (out []domain.Binder, err error) {
	err = s.view(ctx, "favorite_binders", []domain.Collection{domain.CollectionBinders}, func(v domain.TransactionView) error {
		out, err = scan[domain.Binder](v, domain.CollectionBinders, domain.IndexFavorite, strconv.FormatBool(true))
		return err
	})
	return out, err
}

// HistoryForTarget returns the history of one entity, oldest first.
func (s *Service) HistoryForTarget(ctx context.Context, targetID string) ([]domain.History, error) {
	return s.historyBy(ctx, "history_for_target", domain.IndexTarget, targetID)
}

// HistoryForPerformer returns the rows performed by userID, oldest first.
func (s *Service) HistoryForPerformer(ctx context.Context, userID string) ([]domain.History, error) {
	return s.historyBy(ctx, "history_for_performer", domain.IndexPerformer, userID)
}

// HistoryForEntityType returns the rows about one entity type, oldest first.
func (s *Service) HistoryForEntityType(ctx context.Context, entity domain.EntityType) ([]domain.History, error) {
	return s.historyBy(ctx, "history_for_entity_type", domain.IndexEntityType, string(entity))
}

func (s *Service) historyBy(ctx context.Context, op, index, value string) (out []domain.History, err error) {
	err = s.view(ctx, op, scopeHistory, func(v domain.TransactionView) error {
		out, err = scan[domain.History](v, domain.CollectionHistory, index, value)
		return err
	})
	sortHistory(out)
	return out, err
}

// HistoryBetween returns rows with from <= timestamp <= to, oldest first.
// A zero bound is open.
func (s *Service) HistoryBetween(ctx context.Context, from, to time.Time) (out []domain.History, err error) {
	var lo, hi string
	if !from.IsZero() {
		lo = domain.TimestampKey(from)
	}
	if !to.IsZero() {
		hi = domain.TimestampKey(to)
	}
	err = s.view(ctx, "history_between", scopeHistory, func(v domain.TransactionView) error {
		rows, err := v.Range(domain.CollectionHistory, domain.IndexTimestamp, lo, hi)
		if err != nil {
			return err
		}
		out, err = decodeRows[domain.History](domain.CollectionHistory, rows)
		return err
	})
	sortHistory(out)
	return out, err
}

func sortHistory(rows []domain.History) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].ID < rows[j].ID
	})
}

// SortByDisplayOrder orders pictograms by display order, then ID.
func SortByDisplayOrder(pictograms []domain.Pictogram) {
	sort.SliceStable(pictograms, func(i, j int) bool {
		if pictograms[i].Order != pictograms[j].Order {
			return pictograms[i].Order < pictograms[j].Order
		}
		return pictograms[i].ID < pictograms[j].ID
	})
}
