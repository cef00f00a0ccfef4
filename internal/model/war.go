package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WarStatus is the lifecycle state of a war. It only moves forward:
// DECLARED → ACTIVE → ENDED.
type WarStatus int32

const (
	WarDeclared WarStatus = iota
	WarActive
	WarEnded
)

// String returns the storage name of the status.
func (s WarStatus) String() string {
	switch s {
	case WarDeclared:
		return "DECLARED"
	case WarActive:
		return "ACTIVE"
	case WarEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("WarStatus(%d)", int32(s))
	}
}

// ParseWarStatus converts a storage name back into a WarStatus.
func ParseWarStatus(s string) (WarStatus, error) {
	switch s {
	case "DECLARED":
		return WarDeclared, nil
	case "ACTIVE":
		return WarActive, nil
	case "ENDED":
		return WarEnded, nil
	default:
		return 0, fmt.Errorf("unknown war status %q", s)
	}
}

// Outcome is how a war ended, from the attacker's perspective.
type Outcome int32

const (
	OutcomeWin Outcome = iota
	OutcomeLoss
	OutcomeTruce
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "WIN"
	case OutcomeLoss:
		return "LOSS"
	case OutcomeTruce:
		return "TRUCE"
	default:
		return fmt.Sprintf("Outcome(%d)", int32(o))
	}
}

// WarStats are the running counters of a war.
type WarStats struct {
	AttackerTerritoryGained int32
	DefenderTerritoryGained int32
	AttackerBattlesWon      int32
	DefenderBattlesWon      int32
}

// War is a war record between two clans, optionally with one ally on
// each side (joint wars).
type War struct {
	ID         uuid.UUID
	AttackerID int32
	DefenderID int32
	Status     WarStatus
	DeclaredAt time.Time
	EndedAt    *time.Time
	WinnerID   *int32 // nil while running, and for a truce

	// DeclarationCost is what the attacking side paid to declare.
	DeclarationCost Resources

	Stats WarStats

	// Allies are empty for a regular two-clan war.
	AttackerAllies []int32
	DefenderAllies []int32
}

// Live reports whether the war still accepts state transitions.
func (w *War) Live() bool {
	return w.Status != WarEnded
}

// Involves reports whether the clan fights in this war on either side,
// allies included.
func (w *War) Involves(clanID int32) bool {
	return w.OnAttackerSide(clanID) || w.OnDefenderSide(clanID)
}

// OnAttackerSide reports whether the clan attacks in this war.
func (w *War) OnAttackerSide(clanID int32) bool {
	if w.AttackerID == clanID {
		return true
	}
	for _, id := range w.AttackerAllies {
		if id == clanID {
			return true
		}
	}
	return false
}

// OnDefenderSide reports whether the clan defends in this war.
func (w *War) OnDefenderSide(clanID int32) bool {
	if w.DefenderID == clanID {
		return true
	}
	for _, id := range w.DefenderAllies {
		if id == clanID {
			return true
		}
	}
	return false
}

// Joint reports whether the war has allied participants.
func (w *War) Joint() bool {
	return len(w.AttackerAllies) > 0 || len(w.DefenderAllies) > 0
}

// Participants returns every clan ID involved, principals first.
func (w *War) Participants() []int32 {
	ids := make([]int32, 0, 2+len(w.AttackerAllies)+len(w.DefenderAllies))
	ids = append(ids, w.AttackerID, w.DefenderID)
	ids = append(ids, w.AttackerAllies...)
	ids = append(ids, w.DefenderAllies...)
	return ids
}
