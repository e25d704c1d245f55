package alerting

import (
	"time"

	"investtracker/internal/models"

	"github.com/shopspring/decimal"
)

// Outcome is what the engine must persist for a rule after one evaluation.
type Outcome int

const (
	// Skip: no price, nothing to record.
	Skip Outcome = iota
	// NoChange: price observed on the same side as before.
	NoChange
	// StateChange: record Decision.Side, no event. Covers arming from unknown.
	StateChange
	// Fire: record Decision.Side, write one event and notification, deactivate.
	Fire
	// Quarantine: the rule's stored state is inconsistent; reset and deactivate without an event.
	Quarantine
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Skip:
		return "skip"
	case NoChange:
		return "no_change"
	case StateChange:
		return "state_change"
	case Fire:
		return "fire"
	case Quarantine:
		return "quarantine"
	}
	return "unknown"
}

// Decision is the result of evaluating one rule against one price.
type Decision struct {
	Outcome   Outcome
	Side      models.SideState
	Price     decimal.Decimal
	Threshold decimal.Decimal
	// Message is set only when Outcome is Fire.
	Message string
	// Reason is set only when Outcome is Quarantine.
	Reason string
}

// Inconsistent reports whether rule is active although it already fired since
// its last activation. Such a rule must never fire again without a reactivation.
func Inconsistent(rule *models.AlertRule) bool {
	return rule.IsActive &&
		rule.LastTriggeredAt != nil &&
		!rule.LastTriggeredAt.Before(rule.ActivatedAt)
}

// Evaluate runs the crossing state machine for rule at price. price is
// invalid when no fresh quote exists. Evaluate does not modify rule.
func Evaluate(rule *models.AlertRule, asset *models.Asset, price decimal.NullDecimal, now time.Time) Decision {
	if Inconsistent(rule) {
		return Decision{
			Outcome: Quarantine,
			Side:    models.SideUnknown,
			Reason:  "active rule already triggered since activation",
		}
	}
	if !rule.IsActive || !price.Valid {
		return Decision{Outcome: Skip, Side: rule.SideState}
	}

	threshold := Threshold(rule, asset)
	observed := sideOf(rule.AlertType, price.Decimal, threshold)
	d := Decision{Side: observed, Price: price.Decimal, Threshold: threshold}

	switch {
	case rule.SideState == ArmedSide(rule.AlertType) && observed != rule.SideState:
		d.Outcome = Fire
		d.Message = Message(rule.AlertType, asset, price.Decimal, threshold)
	case observed != rule.SideState:
		d.Outcome = StateChange
	default:
		d.Outcome = NoChange
	}
	return d
}
