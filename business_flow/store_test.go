package businessflow

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
)

// memStore backs the in-memory repositories used by flow tests.
// It mirrors the foreign key actions of the schema: removing an organizer
// profile cascades to its leads, removing an agent profile or category nulls the lead reference.
type memStore struct {
	mu         sync.Mutex
	nextID     uint
	accounts   map[uint]*models.Account
	organizers map[uint]*models.OrganizerProfile
	agents     map[uint]*models.AgentProfile
	categories map[uint]*models.Category
	leads      map[uint]*models.Lead
	audits     []*models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[uint]*models.Account{},
		organizers: map[uint]*models.OrganizerProfile{},
		agents:     map[uint]*models.AgentProfile{},
		categories: map[uint]*models.Category{},
		leads:      map[uint]*models.Lead{},
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func sortedKeys[T any](m map[uint]T) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func window[T any](rows []*T, limit, offset int) []*T {
	if offset >= len(rows) {
		return []*T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (s *memStore) deleteOrganizerLocked(id uint) {
	delete(s.organizers, id)
	for lid, l := range s.leads {
		if l.OrganizerID == id {
			delete(s.leads, lid)
		}
	}
	for _, a := range s.agents {
		if a.OrganizerID != nil && *a.OrganizerID == id {
			a.OrganizerID = nil
		}
	}
}

func (s *memStore) deleteAgentLocked(id uint) {
	delete(s.agents, id)
	for _, l := range s.leads {
		if l.AgentID != nil && *l.AgentID == id {
			l.AgentID = nil
		}
	}
}

// accounts

type memAccountRepo struct{ s *memStore }

func (r *memAccountRepo) match(a *models.Account, f models.AccountFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID:
		return false
	case f.Username != nil && a.Username != *f.Username:
		return false
	case f.Email != nil && !strings.EqualFold(a.Email, *f.Email):
		return false
	case f.IsStaff != nil && a.IsStaff != *f.IsStaff:
		return false
	case f.IsOrganizer != nil && a.IsOrganizer != *f.IsOrganizer:
		return false
	case f.IsAgent != nil && a.IsAgent != *f.IsAgent:
		return false
	case f.IsActive != nil && utils.IsTrue(a.IsActive) != *f.IsActive:
		return false
	}
	return true
}

func (r *memAccountRepo) ByID(_ context.Context, id uint) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (r *memAccountRepo) ByFilter(_ context.Context, f models.AccountFilter, _ string, limit, offset int) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Account
	for _, id := range sortedKeys(r.s.accounts) {
		if a := r.s.accounts[id]; r.match(a, f) {
			c := *a
			out = append(out, &c)
		}
	}
	return window(out, limit, offset), nil
}

func (r *memAccountRepo) Save(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.IsOrganizer && a.IsAgent {
		return &repository.ConstraintError{Kind: repository.ErrCheckViolation, Constraint: repository.ConstraintAccountSingleRole}
	}
	for _, other := range r.s.accounts {
		if other.Username == a.Username {
			return &repository.ConstraintError{Kind: repository.ErrDuplicate, Constraint: repository.ConstraintAccountUsername}
		}
		if strings.EqualFold(other.Email, a.Email) {
			return &repository.ConstraintError{Kind: repository.ErrDuplicate, Constraint: repository.ConstraintAccountEmail}
		}
	}
	a.ID = r.s.id()
	a.CreatedAt = time.Now().UTC()
	c := *a
	r.s.accounts[a.ID] = &c
	return nil
}

func (r *memAccountRepo) Count(ctx context.Context, f models.AccountFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memAccountRepo) Exists(ctx context.Context, f models.AccountFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *memAccountRepo) ByUsername(ctx context.Context, username string) (*models.Account, error) {
	rows, _ := r.ByFilter(ctx, models.AccountFilter{Username: &username}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *memAccountRepo) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	rows, _ := r.ByFilter(ctx, models.AccountFilter{Email: &email}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *memAccountRepo) Update(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.IsOrganizer && a.IsAgent {
		return &repository.ConstraintError{Kind: repository.ErrCheckViolation, Constraint: repository.ConstraintAccountSingleRole}
	}
	c := *a
	r.s.accounts[a.ID] = &c
	return nil
}

func (r *memAccountRepo) UpdateLastLogin(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		a.LastLoginAt = &at
	}
	return nil
}

func (r *memAccountRepo) Delete(_ context.Context, id uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return 0, nil
	}
	delete(r.s.accounts, id)
	for pid, p := range r.s.organizers {
		if p.AccountID == id {
			r.s.deleteOrganizerLocked(pid)
		}
	}
	for pid, p := range r.s.agents {
		if p.AccountID == id {
			r.s.deleteAgentLocked(pid)
		}
	}
	return 1, nil
}

// organizer profiles

type memOrganizerRepo struct{ s *memStore }

func (r *memOrganizerRepo) ByID(_ context.Context, id uint) (*models.OrganizerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.organizers[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *memOrganizerRepo) ByFilter(_ context.Context, f models.OrganizerProfileFilter, _ string, limit, offset int) ([]*models.OrganizerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.OrganizerProfile
	for _, id := range sortedKeys(r.s.organizers) {
		p := r.s.organizers[id]
		if (f.ID != nil && p.ID != *f.ID) || (f.AccountID != nil && p.AccountID != *f.AccountID) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return window(out, limit, offset), nil
}

func (r *memOrganizerRepo) Save(_ context.Context, p *models.OrganizerProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	c := *p
	r.s.organizers[p.ID] = &c
	return nil
}

func (r *memOrganizerRepo) Count(ctx context.Context, f models.OrganizerProfileFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memOrganizerRepo) Exists(ctx context.Context, f models.OrganizerProfileFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *memOrganizerRepo) ByAccountID(ctx context.Context, accountID uint) (*models.OrganizerProfile, error) {
	rows, _ := r.ByFilter(ctx, models.OrganizerProfileFilter{AccountID: &accountID}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *memOrganizerRepo) EnsureForAccount(ctx context.Context, accountID uint) (*models.OrganizerProfile, bool, error) {
	if p, _ := r.ByAccountID(ctx, accountID); p != nil {
		return p, false, nil
	}
	p := &models.OrganizerProfile{AccountID: accountID}
	_ = r.Save(ctx, p)
	return p, true, nil
}

func (r *memOrganizerRepo) DeleteByAccountID(_ context.Context, accountID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.organizers {
		if p.AccountID == accountID {
			r.s.deleteOrganizerLocked(id)
			n++
		}
	}
	return n, nil
}

// agent profiles

type memAgentRepo struct{ s *memStore }

func (r *memAgentRepo) ByID(_ context.Context, id uint) (*models.AgentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.agents[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *memAgentRepo) ByFilter(_ context.Context, f models.AgentProfileFilter, _ string, limit, offset int) ([]*models.AgentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AgentProfile
	for _, id := range sortedKeys(r.s.agents) {
		p := r.s.agents[id]
		if (f.ID != nil && p.ID != *f.ID) || (f.AccountID != nil && p.AccountID != *f.AccountID) {
			continue
		}
		if f.OrganizerID != nil && (p.OrganizerID == nil || *p.OrganizerID != *f.OrganizerID) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return window(out, limit, offset), nil
}

func (r *memAgentRepo) Save(_ context.Context, p *models.AgentProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	c := *p
	r.s.agents[p.ID] = &c
	return nil
}

func (r *memAgentRepo) Count(ctx context.Context, f models.AgentProfileFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memAgentRepo) Exists(ctx context.Context, f models.AgentProfileFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *memAgentRepo) ByAccountID(ctx context.Context, accountID uint) (*models.AgentProfile, error) {
	rows, _ := r.ByFilter(ctx, models.AgentProfileFilter{AccountID: &accountID}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *memAgentRepo) EnsureForAccount(ctx context.Context, accountID uint) (*models.AgentProfile, bool, error) {
	if p, _ := r.ByAccountID(ctx, accountID); p != nil {
		return p, false, nil
	}
	p := &models.AgentProfile{AccountID: accountID}
	_ = r.Save(ctx, p)
	return p, true, nil
}

func (r *memAgentRepo) DeleteByAccountID(_ context.Context, accountID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.agents {
		if p.AccountID == accountID {
			r.s.deleteAgentLocked(id)
			n++
		}
	}
	return n, nil
}

func (r *memAgentRepo) ByIDWithAccount(ctx context.Context, id uint) (*models.AgentProfile, error) {
	p, _ := r.ByID(ctx, id)
	if p == nil {
		return nil, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[p.AccountID]; ok {
		c := *a
		p.Account = &c
	}
	return p, nil
}

func (r *memAgentRepo) Update(_ context.Context, p *models.AgentProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *p
	r.s.agents[p.ID] = &c
	return nil
}

// categories

type memCategoryRepo struct{ s *memStore }

func (r *memCategoryRepo) ByID(_ context.Context, id uint) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memCategoryRepo) ByFilter(_ context.Context, f models.CategoryFilter, _ string, limit, offset int) ([]*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Category
	for _, id := range sortedKeys(r.s.categories) {
		c := r.s.categories[id]
		if (f.ID != nil && c.ID != *f.ID) || (f.Title != nil && c.Title != *f.Title) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return window(out, limit, offset), nil
}

func (r *memCategoryRepo) Save(_ context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

func (r *memCategoryRepo) Count(ctx context.Context, f models.CategoryFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memCategoryRepo) Exists(ctx context.Context, f models.CategoryFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *memCategoryRepo) Update(_ context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

func (r *memCategoryRepo) Delete(_ context.Context, id uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return 0, nil
	}
	delete(r.s.categories, id)
	for _, l := range r.s.leads {
		if l.CategoryID != nil && *l.CategoryID == id {
			l.CategoryID = nil
		}
	}
	return 1, nil
}

// leads

type memLeadRepo struct{ s *memStore }

func (r *memLeadRepo) match(l *models.Lead, f models.LeadFilter) bool {
	switch {
	case f.ID != nil && l.ID != *f.ID:
		return false
	case f.OrganizerID != nil && l.OrganizerID != *f.OrganizerID:
		return false
	case f.AgentID != nil && (l.AgentID == nil || *l.AgentID != *f.AgentID):
		return false
	case f.CategoryID != nil && (l.CategoryID == nil || *l.CategoryID != *f.CategoryID):
		return false
	case f.Search != nil && !strings.Contains(strings.ToLower(l.Description), strings.ToLower(*f.Search)):
		return false
	case f.IsConverted != nil && l.IsConverted() != *f.IsConverted:
		return false
	case f.DateAddedAfter != nil && l.DateAdded.Before(*f.DateAddedAfter):
		return false
	case f.DateAddedBefore != nil && !l.DateAdded.Before(*f.DateAddedBefore):
		return false
	}
	return true
}

func (r *memLeadRepo) ByID(_ context.Context, id uint) (*models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.leads[id]; ok {
		c := *l
		return &c, nil
	}
	return nil, nil
}

func (r *memLeadRepo) ByFilter(_ context.Context, f models.LeadFilter, _ string, limit, offset int) ([]*models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Lead
	for _, id := range sortedKeys(r.s.leads) {
		if l := r.s.leads[id]; r.match(l, f) {
			c := *l
			out = append(out, &c)
		}
	}
	return window(out, limit, offset), nil
}

func (r *memLeadRepo) ByFilterWithRelations(ctx context.Context, f models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	rows, _ := r.ByFilter(ctx, f, orderBy, limit, offset)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range rows {
		if l.CategoryID != nil {
			l.Category = r.s.categories[*l.CategoryID]
		}
		if l.AgentID != nil {
			if p, ok := r.s.agents[*l.AgentID]; ok {
				c := *p
				c.Account = r.s.accounts[p.AccountID]
				l.Agent = &c
			}
		}
		if p, ok := r.s.organizers[l.OrganizerID]; ok {
			c := *p
			c.Account = r.s.accounts[p.AccountID]
			l.Organizer = &c
		}
	}
	return rows, nil
}

func (r *memLeadRepo) Save(_ context.Context, l *models.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = r.s.id()
	c := *l
	r.s.leads[l.ID] = &c
	return nil
}

func (r *memLeadRepo) Count(ctx context.Context, f models.LeadFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memLeadRepo) Exists(ctx context.Context, f models.LeadFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *memLeadRepo) Update(_ context.Context, l *models.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *l
	r.s.leads[l.ID] = &c
	return nil
}

func (r *memLeadRepo) Delete(_ context.Context, id uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[id]; !ok {
		return 0, nil
	}
	delete(r.s.leads, id)
	return 1, nil
}

// audit log

type memAuditRepo struct{ s *memStore }

func (r *memAuditRepo) ByID(_ context.Context, id uint) (*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.audits {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAuditRepo) ByFilter(_ context.Context, f models.AuditLogFilter, _ string, limit, offset int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLog
	for _, a := range r.s.audits {
		if f.Action != nil && a.Action != *f.Action {
			continue
		}
		if f.Success != nil && utils.IsTrue(a.Success) != *f.Success {
			continue
		}
		out = append(out, a)
	}
	return window(out, limit, offset), nil
}

func (r *memAuditRepo) Save(_ context.Context, a *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.id()
	r.s.audits = append(r.s.audits, a)
	return nil
}

func (r *memAuditRepo) Count(ctx context.Context, f models.AuditLogFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memAuditRepo) Exists(ctx context.Context, f models.AuditLogFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *memAuditRepo) ListByAccount(ctx context.Context, _ uint, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{}, "", limit, offset)
}

func (r *memAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{Action: &action}, "", limit, offset)
}

func (r *memAuditRepo) ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{Success: utils.ToPtr(false)}, "", limit, offset)
}

func (r *memAuditRepo) ListSecurityEvents(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{}, "", limit, offset)
}
