package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type EntityKind string

const (
	EntityBudget      EntityKind = "budget"
	EntityGoal        EntityKind = "goal"
	EntityFamily      EntityKind = "family"
	EntityTransaction EntityKind = "transaction"
)

// RelatedEntity points a notification at the domain row it is about. The zero
// value means the notification has no related entity.
type RelatedEntity struct {
	Kind EntityKind
	ID   uuid.UUID
}

func BudgetEntity(id uuid.UUID) RelatedEntity {
	return RelatedEntity{Kind: EntityBudget, ID: id}
}

func GoalEntity(id uuid.UUID) RelatedEntity {
	return RelatedEntity{Kind: EntityGoal, ID: id}
}

func FamilyEntity(id uuid.UUID) RelatedEntity {
	return RelatedEntity{Kind: EntityFamily, ID: id}
}

func TransactionEntity(id uuid.UUID) RelatedEntity {
	return RelatedEntity{Kind: EntityTransaction, ID: id}
}

func (r RelatedEntity) IsZero() bool {
	return r.Kind == "" || r.ID == uuid.Nil
}

func (r RelatedEntity) String() string {
	if r.IsZero() {
		return "none"
	}
	return string(r.Kind) + ":" + r.ID.String()
}

// Columns splits the entity into the four nullable foreign keys used by storage,
// in budget, goal, family, transaction order.
func (r RelatedEntity) Columns() (budget, goal, family, transaction *uuid.UUID) {
	if r.IsZero() {
		return
	}
	id := r.ID
	switch r.Kind {
	case EntityBudget:
		budget = &id
	case EntityGoal:
		goal = &id
	case EntityFamily:
		family = &id
	case EntityTransaction:
		transaction = &id
	}
	return
}

// RelatedFromColumns is the inverse of Columns. When more than one key is set the
// first non-nil one wins.
func RelatedFromColumns(budget, goal, family, transaction *uuid.UUID) RelatedEntity {
	switch {
	case budget != nil:
		return BudgetEntity(*budget)
	case goal != nil:
		return GoalEntity(*goal)
	case family != nil:
		return FamilyEntity(*family)
	case transaction != nil:
		return TransactionEntity(*transaction)
	}
	return RelatedEntity{}
}

type relatedJSON struct {
	Kind EntityKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func (r RelatedEntity) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(relatedJSON{Kind: r.Kind, ID: r.ID})
}

func (r *RelatedEntity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = RelatedEntity{}
		return nil
	}
	var raw relatedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case EntityBudget, EntityGoal, EntityFamily, EntityTransaction:
	default:
		return fmt.Errorf("unknown related entity kind %q", raw.Kind)
	}
	*r = RelatedEntity{Kind: raw.Kind, ID: raw.ID}
	return nil
}
