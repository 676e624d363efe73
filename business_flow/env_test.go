package businessflow

import (
	"context"
	"sync"
	"testing"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/services"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "TestPass123!"

// recordingPublisher captures published event types in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type mockNotificationService struct {
	mock.Mock
}

func (m *mockNotificationService) SendEmail(email, subject, message string) error {
	args := m.Called(email, subject, message)
	return args.Error(0)
}

func (m *mockNotificationService) SendLeadAssigned(email, agentName, leadName string, leadID uint) error {
	args := m.Called(email, agentName, leadName, leadID)
	return args.Error(0)
}

type testEnv struct {
	store     *memStore
	accounts  *memAccountRepo
	orgs      *memOrganizerRepo
	agents    *memAgentRepo
	cats      *memCategoryRepo
	leads     *memLeadRepo
	audits    *memAuditRepo
	publisher *recordingPublisher
	notifier  *mockNotificationService

	resolver CallerResolver
	sync     ProfileSynchronizer
	account  AccountFlow
	lead     LeadFlow
	category CategoryFlow
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := newMemStore()
	env := &testEnv{
		store:     s,
		accounts:  &memAccountRepo{s},
		orgs:      &memOrganizerRepo{s},
		agents:    &memAgentRepo{s},
		cats:      &memCategoryRepo{s},
		leads:     &memLeadRepo{s},
		audits:    &memAuditRepo{s},
		publisher: &recordingPublisher{},
		notifier:  &mockNotificationService{},
	}
	env.notifier.On("SendLeadAssigned", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	env.resolver = NewCallerResolver(env.accounts, env.orgs, env.agents)
	env.sync = NewProfileSynchronizer(env.orgs, env.agents)
	env.account = NewAccountFlow(env.accounts, env.orgs, env.agents, env.audits, env.resolver, env.sync, env.publisher, nil, "", nil)
	env.lead = NewLeadFlow(env.leads, env.cats, env.orgs, env.agents, env.audits, env.resolver, env.notifier, env.publisher, nil)
	env.category = NewCategoryFlow(env.cats, env.audits, env.resolver, nil)
	return env
}

// newAccount stores an account with the given flags and synchronizes its profile
func (e *testEnv) newAccount(t *testing.T, username string, staff, organizer, agent bool) *models.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	a := &models.Account{
		UUID:         uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		IsStaff:      staff,
		IsOrganizer:  organizer,
		IsAgent:      agent,
		IsActive:     utils.ToPtr(true),
	}
	require.NoError(t, e.accounts.Save(context.Background(), a))
	require.NoError(t, e.sync.SynchronizeProfiles(context.Background(), nil, a))
	return a
}

func (e *testEnv) organizerProfile(t *testing.T, accountID uint) *models.OrganizerProfile {
	t.Helper()
	p, err := e.orgs.ByAccountID(context.Background(), accountID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (e *testEnv) agentProfile(t *testing.T, accountID uint) *models.AgentProfile {
	t.Helper()
	p, err := e.agents.ByAccountID(context.Background(), accountID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (e *testEnv) newLead(t *testing.T, organizerID uint, agentID, categoryID *uint, description string) *models.Lead {
	t.Helper()
	l := &models.Lead{
		FirstName:   "Lead",
		LastName:    description,
		Age:         30,
		OrganizerID: organizerID,
		AgentID:     agentID,
		CategoryID:  categoryID,
		Description: description,
		DateAdded:   utils.UTCNow(),
		PhoneNumber: "+15550000000",
		Email:       "lead@example.com",
	}
	require.NoError(t, e.leads.Save(context.Background(), l))
	return l
}

func leadRequest(first string) *dto.LeadRequest {
	return &dto.LeadRequest{
		FirstName:   first,
		LastName:    "Smith",
		Age:         34,
		Description: "met at the expo",
		PhoneNumber: "+15551234567",
		Email:       "John@Example.com",
	}
}

var _ services.EventPublisher = (*recordingPublisher)(nil)
var _ services.NotificationService = (*mockNotificationService)(nil)
