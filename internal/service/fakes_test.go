package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
)

var ict = time.FixedZone("ICT", 7*3600)

func officeWeek() []domain.BusinessHour {
	hours := make([]domain.BusinessHour, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		bh := domain.BusinessHour{DayOfWeek: day}
		if day != time.Saturday && day != time.Sunday {
			bh.IsWorkingDay = true
			bh.StartTime = domain.NewTimeOfDay(8, 0, 0)
			bh.EndTime = domain.NewTimeOfDay(17, 0, 0)
		}
		hours = append(hours, bh)
	}
	return hours
}

type fakeBusinessHourRepo struct {
	mu    sync.Mutex
	rows  map[time.Weekday]domain.BusinessHour
	lists int
}

func newFakeBusinessHourRepo(hours []domain.BusinessHour) *fakeBusinessHourRepo {
	r := &fakeBusinessHourRepo{rows: make(map[time.Weekday]domain.BusinessHour)}
	for _, bh := range hours {
		r.rows[bh.DayOfWeek] = bh
	}
	return r
}

func (r *fakeBusinessHourRepo) List(context.Context) ([]domain.BusinessHour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]domain.BusinessHour, 0, len(r.rows))
	for _, bh := range r.rows {
		out = append(out, bh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (r *fakeBusinessHourRepo) ReplaceAll(_ context.Context, hours []domain.BusinessHour) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bh := range hours {
		r.rows[bh.DayOfWeek] = bh
	}
	return nil
}

type fakeHolidayRepo struct {
	mu     sync.Mutex
	items  []domain.Holiday
	nextID int
	lists  int
}

func (r *fakeHolidayRepo) List(context.Context) ([]domain.Holiday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	return append([]domain.Holiday(nil), r.items...), nil
}

func (r *fakeHolidayRepo) Create(_ context.Context, h *domain.Holiday) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h.ID = "hol-" + strconv.Itoa(r.nextID)
	h.CreatedAt = time.Now()
	r.items = append(r.items, *h)
	return nil
}

func (r *fakeHolidayRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.items {
		if h.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeSLARuleRepo struct {
	mu    sync.Mutex
	rules map[domain.TicketPriority]float64
}

func newFakeSLARuleRepo() *fakeSLARuleRepo {
	return &fakeSLARuleRepo{rules: map[domain.TicketPriority]float64{
		domain.TicketPriorityUrgent: 2,
		domain.TicketPriorityHigh:   4,
		domain.TicketPriorityMedium: 8,
		domain.TicketPriorityLow:    24,
	}}
}

func (r *fakeSLARuleRepo) List(context.Context) ([]domain.SLARule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SLARule, 0, len(r.rules))
	for p, h := range r.rules {
		out = append(out, domain.SLARule{Priority: p, ResolutionTimeHours: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolutionTimeHours < out[j].ResolutionTimeHours })
	return out, nil
}

func (r *fakeSLARuleRepo) GetByPriority(_ context.Context, p domain.TicketPriority) (*domain.SLARule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.rules[p]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.SLARule{Priority: p, ResolutionTimeHours: h}, nil
}

func (r *fakeSLARuleRepo) Upsert(_ context.Context, rule *domain.SLARule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Priority] = rule.ResolutionTimeHours
	rule.UpdatedAt = time.Now()
	return nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	nextID  int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = "ticket-" + strconv.Itoa(r.nextID)
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.tickets[t.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	r.tickets[t.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTicketRepo) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.ExternalKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		if f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeTicketRepo) MarkBreached(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if len(out) >= limit {
			break
		}
		if t.SLABreached || t.DueDate == nil || !t.DueDate.Before(now) || t.Status.IsTerminal() {
			continue
		}
		t.SLABreached = true
		out = append(out, *t)
	}
	return out, nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeStaffRepo struct {
	mu    sync.Mutex
	staff map[string]*domain.StaffMember
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{staff: make(map[string]*domain.StaffMember)}
}

func (r *fakeStaffRepo) Create(_ context.Context, s *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = "staff-" + strconv.Itoa(len(r.staff)+1)
	cp := *s
	r.staff[s.ID] = &cp
	return nil
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStaffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.staff {
		if s.Email == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeCache struct {
	mu          sync.Mutex
	snap        *domain.CalendarSnapshot
	invalidated int
}

func (c *fakeCache) Get(context.Context) (*domain.CalendarSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return nil, false, nil
	}
	return c.snap, true, nil
}

func (c *fakeCache) Set(_ context.Context, snap *domain.CalendarSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.invalidated++
	return nil
}

type slaFixture struct {
	hours    *fakeBusinessHourRepo
	holidays *fakeHolidayRepo
	rules    *fakeSLARuleRepo
	cache    *fakeCache
	svc      *SLAService
}

func newSLAFixture(holidays ...domain.Holiday) *slaFixture {
	f := &slaFixture{
		hours:    newFakeBusinessHourRepo(officeWeek()),
		holidays: &fakeHolidayRepo{items: holidays},
		rules:    newFakeSLARuleRepo(),
		cache:    &fakeCache{},
	}
	f.svc = NewSLAService(
		calendarConfig(),
		SLADependencies{
			BusinessHourRepo: f.hours,
			HolidayRepo:      f.holidays,
			SLARuleRepo:      f.rules,
			Cache:            f.cache,
		},
	)
	return f
}
