package domain

import "time"

// Activity is a reusable question with an id that survives reorder and move.
type Activity struct {
	ID       string   `json:"id"`
	Question Question `json:"question"`
}

// Unit owns an ordered list of activities.
type Unit struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Activities []Activity `json:"activities"`
}

// Package is the root of the courseware tree.
type Package struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Units     []Unit    `json:"units"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UnitIndex returns the position of a unit or -1.
func (p *Package) UnitIndex(unitID string) int {
	for i := range p.Units {
		if p.Units[i].ID == unitID {
			return i
		}
	}
	return -1
}

// ActivityIndex returns the position of an activity or -1.
func (u *Unit) ActivityIndex(activityID string) int {
	for i := range u.Activities {
		if u.Activities[i].ID == activityID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the package tree.
func (p Package) Clone() Package {
	out := p
	if p.Units == nil {
		return out
	}
	out.Units = make([]Unit, len(p.Units))
	for i, u := range p.Units {
		cu := u
		if u.Activities != nil {
			cu.Activities = make([]Activity, len(u.Activities))
			for j, a := range u.Activities {
				cu.Activities[j] = Activity{ID: a.ID, Question: a.Question.Clone()}
			}
		}
		out.Units[i] = cu
	}
	return out
}
