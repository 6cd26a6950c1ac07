package core

import (
	"context"
	"fmt"

	"pictocore/pkg/domain"
)

// DefaultRulesEngine returns the engine installed by NewService: a pictogram
// must reference an existing binder, and a binder whose author is not a
// stored user is logged as a warning.
func DefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewPictogramBinderRule())
	engine.Register(NewBinderAuthorRule())
	return engine
}

// NewPictogramBinderRule blocks creating a pictogram, or moving one, when its
// binder does not exist in the same transaction.
func NewPictogramBinderRule() domain.Rule {
	return pictogramBinderRule{}
}

type pictogramBinderRule struct{}

func (pictogramBinderRule) Name() string { return "pictogram_binder_reference" }

func (pictogramBinderRule) Collections() []domain.Collection {
	return []domain.Collection{domain.CollectionBinders}
}

func (r pictogramBinderRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		if c.Entity != domain.EntityPictogram {
			continue
		}
		after, ok := c.After.(domain.Pictogram)
		if !ok {
			continue
		}
		if before, ok := c.Before.(domain.Pictogram); ok && before.BinderID == after.BinderID {
			continue
		}
		_, exists, err := view.Get(domain.CollectionBinders, after.BinderID)
		if err != nil {
			return domain.Result{}, err
		}
		if !exists {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("pictogram %s references missing binder %s", after.ID, after.BinderID),
				Entity:   domain.EntityPictogram,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// NewBinderAuthorRule warns when a binder is written with an author that is
// not a stored user. It never blocks.
func NewBinderAuthorRule() domain.Rule {
	return binderAuthorRule{}
}

type binderAuthorRule struct{}

func (binderAuthorRule) Name() string { return "binder_author_reference" }

func (binderAuthorRule) Collections() []domain.Collection {
	return []domain.Collection{domain.CollectionUsers}
}

func (r binderAuthorRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		after, ok := c.After.(domain.Binder)
		if !ok {
			continue
		}
		_, exists, err := view.Get(domain.CollectionUsers, after.AuthorID)
		if err != nil {
			return domain.Result{}, err
		}
		if !exists {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("binder %s author %s is not a known user", after.ID, after.AuthorID),
				Entity:   domain.EntityBinder,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
