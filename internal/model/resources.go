package model

// Resources is an amount of the three clan resources.
// Used both for treasury balances and for deltas (deltas may be negative).
type Resources struct {
	Metal          int64
	Energy         int64
	ResearchPoints int64
}

// Add returns r + o.
func (r Resources) Add(o Resources) Resources {
	return Resources{
		Metal:          r.Metal + o.Metal,
		Energy:         r.Energy + o.Energy,
		ResearchPoints: r.ResearchPoints + o.ResearchPoints,
	}
}

// Neg returns the negated amount.
func (r Resources) Neg() Resources {
	return Resources{
		Metal:          -r.Metal,
		Energy:         -r.Energy,
		ResearchPoints: -r.ResearchPoints,
	}
}

// Covers reports whether a balance of r can pay cost o.
func (r Resources) Covers(o Resources) bool {
	return r.Metal >= o.Metal && r.Energy >= o.Energy && r.ResearchPoints >= o.ResearchPoints
}

// IsZero reports whether all three amounts are zero.
func (r Resources) IsZero() bool {
	return r.Metal == 0 && r.Energy == 0 && r.ResearchPoints == 0
}
