package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"classroom-maestro/internal/domain"
)

// OnlineWindow is how recently a student must have been seen to count as online for a draw.
const OnlineWindow = 45 * time.Second

// PoolMode selects which students are eligible for a draw.
type PoolMode string

const (
	PoolAll    PoolMode = "all"
	PoolOnline PoolMode = "online"
)

// Source is the random draw used by the lottery; *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// Lottery draws students uniformly from a filtered pool.
type Lottery struct {
	mu  sync.Mutex
	rnd Source
	now func() time.Time
}

// NewLottery builds a lottery on rnd. A nil rnd seeds one from the clock.
func NewLottery(rnd Source, now func() time.Time) *Lottery {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Lottery{rnd: rnd, now: clock(now)}
}

// Eligible filters pool by mode and, when unique is set, drops already picked ids.
// The order of pool is preserved.
func (l *Lottery) Eligible(pool []domain.Student, mode PoolMode, picked map[string]bool, unique bool) []domain.Student {
	now := l.now()
	out := make([]domain.Student, 0, len(pool))
	for _, st := range pool {
		if mode == PoolOnline && (!st.IsOnline || now.Sub(st.LastSeen) > OnlineWindow) {
			continue
		}
		if unique && picked[st.ID] {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Pick draws one student. The boolean is false when no one is eligible.
func (l *Lottery) Pick(pool []domain.Student, mode PoolMode, picked map[string]bool, unique bool) (domain.Student, bool) {
	candidates := l.Eligible(pool, mode, picked, unique)
	if len(candidates) == 0 {
		return domain.Student{}, false
	}
	l.mu.Lock()
	idx := l.rnd.Intn(len(candidates))
	l.mu.Unlock()
	return candidates[idx], true
}

// Draw is one lottery session: the current pick and who has been picked so far.
type Draw struct {
	lottery *Lottery
	Mode    PoolMode
	Unique  bool

	mu      sync.Mutex
	picked  map[string]bool
	order   []string
	current *domain.Student
}

func (l *Lottery) NewDraw(mode PoolMode, unique bool) *Draw {
	if mode == "" {
		mode = PoolAll
	}
	return &Draw{lottery: l, Mode: mode, Unique: unique, picked: make(map[string]bool)}
}

// Next picks from pool and records the pick. On false the current pick is cleared.
func (d *Draw) Next(pool []domain.Student) (domain.Student, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.lottery.Pick(pool, d.Mode, d.picked, d.Unique)
	if !ok {
		d.current = nil
		return domain.Student{}, false
	}
	if !d.picked[st.ID] {
		d.order = append(d.order, st.ID)
	}
	d.picked[st.ID] = true
	d.current = &st
	return st, true
}

// Current returns the latest pick, if any.
func (d *Draw) Current() (domain.Student, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return domain.Student{}, false
	}
	return *d.current, true
}

// Picked lists picked ids in draw order.
func (d *Draw) Picked() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Reset clears the picked ids and the current pick.
func (d *Draw) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.picked = make(map[string]bool)
	d.order = nil
	d.current = nil
}

// Settle runs the local shuffle animation: onFrame gets a random candidate every interval
// for frames ticks and finally the winner. It returns ctx.Err() if cancelled first, in which
// case onFrame is not called again.
func (l *Lottery) Settle(ctx context.Context, candidates []domain.Student, winner domain.Student, frames int, interval time.Duration, onFrame func(domain.Student)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < frames && len(candidates) > 0; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		l.mu.Lock()
		idx := l.rnd.Intn(len(candidates))
		l.mu.Unlock()
		onFrame(candidates[idx])
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	onFrame(winner)
	return nil
}

// Settle animates the draw's latest pick over the pool it was drawn from.
func (d *Draw) Settle(ctx context.Context, pool []domain.Student, frames int, interval time.Duration, onFrame func(domain.Student)) error {
	winner, ok := d.Current()
	if !ok {
		return nil
	}
	candidates := d.lottery.Eligible(pool, d.Mode, nil, false)
	return d.lottery.Settle(ctx, candidates, winner, frames, interval, onFrame)
}

// DrawRegistry keeps one draw per classroom for the teacher's lottery panel.
type DrawRegistry struct {
	lottery *Lottery
	mu      sync.Mutex
	draws   map[string]*Draw
}

func NewDrawRegistry(lottery *Lottery) *DrawRegistry {
	return &DrawRegistry{lottery: lottery, draws: make(map[string]*Draw)}
}

// Draw returns the classroom's draw, starting a fresh one when the mode or uniqueness changed.
func (r *DrawRegistry) Draw(classroomID string, mode PoolMode, unique bool) *Draw {
	if mode == "" {
		mode = PoolAll
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.draws[classroomID]; ok && d.Mode == mode && d.Unique == unique {
		return d
	}
	d := r.lottery.NewDraw(mode, unique)
	r.draws[classroomID] = d
	return d
}

// Lookup returns the classroom's draw without starting one.
func (r *DrawRegistry) Lookup(classroomID string) (*Draw, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.draws[classroomID]
	return d, ok
}

// Release forgets the classroom's draw.
func (r *DrawRegistry) Release(classroomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.draws, classroomID)
}
