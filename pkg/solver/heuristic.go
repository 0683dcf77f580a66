package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// Heuristic is a greedy randomized generator. Each pass walks the open slot
// units and gives each one to the eligible employee with the fewest assigned
// minutes; passes are repeated with shuffled order until every unit is filled
// or the budget runs out, keeping the best pass.
type Heuristic struct {
	Budget time.Duration
	Seed   int64
}

// NewHeuristic returns a heuristic bounded by budget.
func NewHeuristic(budget time.Duration) *Heuristic {
	return &Heuristic{Budget: budget}
}

func (h *Heuristic) Name() string { return "heuristic" }

// interval is a shift in minutes from the week start.
type interval struct {
	from, to int
	location string
}

type staff struct {
	Employee
	minutes   int
	intervals []interval
	incompat  map[string]bool
}

type unit struct {
	slot     Slot
	from, to int
}

func (h *Heuristic) Generate(ctx context.Context, req Request) (Result, error) {
	units := openUnits(req)
	if len(units) == 0 {
		return Result{Status: StatusFeasible, Strategy: h.Name(), Fairness: 100}, nil
	}

	seed := h.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))

	budget := h.Budget
	if budget <= 0 {
		budget = time.Second
	}
	start := time.Now()

	var best *pass
	for attempt := 0; ; attempt++ {
		order := make([]unit, len(units))
		copy(order, units)
		if attempt > 0 {
			r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		p := runPass(req, order)
		if best == nil || len(p.assignments) > len(best.assignments) {
			best = p
		}
		if len(best.unfilled) == 0 || time.Since(start) >= budget || ctx.Err() != nil {
			break
		}
	}

	return Result{
		Status:      StatusFeasible,
		Assignments: best.assignments,
		Strategy:    h.Name(),
		Unfilled:    best.unfilled,
		Fairness:    best.fairness,
	}, nil
}

// openUnits expands slots into one unit per missing person, net of fixed
// assignments.
func openUnits(req Request) []unit {
	fixed := make(map[models.SlotKey]int, len(req.FixedAssignments))
	for _, a := range req.FixedAssignments {
		fixed[a.Slot()]++
	}
	var units []unit
	for _, s := range req.Slots {
		from, to := slotMinutes(s)
		for i := fixed[s.Key()]; i < s.Required; i++ {
			units = append(units, unit{slot: s, from: from, to: to})
		}
	}
	return units
}

func slotMinutes(s Slot) (int, int) {
	from := s.DayOfWeek*timeutil.MinutesPerDay + timeutil.MinutesOf(s.Start)
	return from, from + timeutil.Duration(s.Start, s.End)
}

type pass struct {
	assignments []models.Assignment
	unfilled    []SlotConflict
	fairness    float64
}

func newStaff(req Request) []*staff {
	team := make([]*staff, 0, len(req.Employees))
	byID := make(map[string]*staff, len(req.Employees))
	for _, e := range req.Employees {
		st := &staff{Employee: e, minutes: e.PriorMinutes, incompat: make(map[string]bool, len(e.IncompatibleWith))}
		for _, id := range e.IncompatibleWith {
			st.incompat[id] = true
		}
		team = append(team, st)
		byID[e.ID] = st
	}
	for _, a := range req.FixedAssignments {
		st, ok := byID[a.EmployeeID]
		if !ok {
			continue
		}
		slot, ok := req.SlotByKey(a.Slot())
		if !ok {
			w := req.PeriodTimes[string(a.Period)]
			slot = Slot{DayOfWeek: a.DayOfWeek, Start: w.Start, End: w.End}
		}
		from, to := slotMinutes(slot)
		st.minutes += to - from
		st.intervals = append(st.intervals, interval{from: from, to: to, location: a.LocationID})
	}
	return team
}

func runPass(req Request, order []unit) *pass {
	team := newStaff(req)
	minRest := req.MinRestHours * 60
	p := &pass{}

	for _, u := range order {
		var best *staff
		var maxHoursCount, overlapCount, restCount, unavailableCount, incompatCount, roleCount int

		for _, st := range team {
			if !st.HasRole(u.slot.RoleID) {
				roleCount++
				continue
			}
			if st.StatusOn(u.slot.DayOfWeek, u.slot.Period) == models.AvailabilityUnavailable {
				unavailableCount++
				continue
			}
			if st.minutes+(u.to-u.from) > st.MaxHours*60 {
				maxHoursCount++
				continue
			}
			if clash, shortRest := st.wouldClash(u, minRest); clash {
				overlapCount++
				continue
			} else if shortRest {
				restCount++
				continue
			}
			if incompatibleOnSite(team, st, u) {
				incompatCount++
				continue
			}
			if best == nil || better(st, best, u) {
				best = st
			}
		}

		if best != nil {
			best.minutes += u.to - u.from
			best.intervals = append(best.intervals, interval{from: u.from, to: u.to, location: u.slot.LocationID})
			p.assignments = append(p.assignments, models.Assignment{
				EmployeeID: best.ID,
				LocationID: u.slot.LocationID,
				RoleID:     u.slot.RoleID,
				DayOfWeek:  u.slot.DayOfWeek,
				Period:     u.slot.Period,
			})
			continue
		}

		var reasons []string
		if maxHoursCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees were at max hours", maxHoursCount))
		}
		if overlapCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees had overlapping shifts", overlapCount))
		}
		if restCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees lacked minimum rest", restCount))
		}
		if unavailableCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees were unavailable", unavailableCount))
		}
		if incompatCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees were incompatible with colleagues on site", incompatCount))
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "no employees hold this role")
		}
		p.unfilled = append(p.unfilled, SlotConflict{Slot: u.slot.Key(), Reasons: reasons})
	}

	sort.SliceStable(p.assignments, func(i, j int) bool {
		a, b := p.assignments[i], p.assignments[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		return a.Period == models.PeriodMorning && b.Period != models.PeriodMorning
	})
	p.fairness = fairnessScore(team)
	return p
}

// better prefers fewer assigned minutes, then a stated preference for the
// slot, then the preferred location.
func better(a, b *staff, u unit) bool {
	if a.minutes != b.minutes {
		return a.minutes < b.minutes
	}
	ap := a.StatusOn(u.slot.DayOfWeek, u.slot.Period) == models.AvailabilityPreferred
	bp := b.StatusOn(u.slot.DayOfWeek, u.slot.Period) == models.AvailabilityPreferred
	if ap != bp {
		return ap
	}
	al := a.PreferredLocationID == u.slot.LocationID
	bl := b.PreferredLocationID == u.slot.LocationID
	return al && !bl
}

func (st *staff) wouldClash(u unit, minRest int) (overlap, shortRest bool) {
	for _, iv := range st.intervals {
		if u.from < iv.to && iv.from < u.to {
			return true, false
		}
		gap := u.from - iv.to
		if iv.from >= u.to {
			gap = iv.from - u.to
		}
		if gap < minRest {
			shortRest = true
		}
	}
	return false, shortRest
}

func incompatibleOnSite(team []*staff, st *staff, u unit) bool {
	if len(st.incompat) == 0 {
		return false
	}
	for _, other := range team {
		if !st.incompat[other.ID] {
			continue
		}
		for _, iv := range other.intervals {
			if iv.location == u.slot.LocationID && u.from < iv.to && iv.from < u.to {
				return true
			}
		}
	}
	return false
}

// fairnessScore is 100 when every employee works the same minutes and drops
// towards 0 as the standard deviation approaches the mean.
func fairnessScore(team []*staff) float64 {
	if len(team) == 0 {
		return 100
	}
	var sum float64
	for _, st := range team {
		sum += float64(st.minutes)
	}
	if sum == 0 {
		return 100
	}
	mean := sum / float64(len(team))

	var variance float64
	for _, st := range team {
		d := float64(st.minutes) - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(len(team)))

	score := (1 - stdDev/mean) * 100
	if score < 0 {
		return 0
	}
	return score
}
