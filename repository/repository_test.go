package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	testingutil "github.com/amirphl/simple-crm/testing"
	"github.com/amirphl/simple-crm/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(username string) *models.Account {
	return &models.Account{
		UUID:         uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		IsActive:     utils.ToPtr(true),
	}
}

func TestAccountRepository(t *testing.T) {
	tdb := testingutil.RequireDB(t)
	repo := repository.NewAccountRepository(tdb.DB)
	ctx := testingutil.CreateTestContext()

	account := newAccount("jane")
	account.IsOrganizer = true
	require.NoError(t, repo.Save(ctx, account))
	require.NotZero(t, account.ID)

	t.Run("ByUsername", func(t *testing.T) {
		found, err := repo.ByUsername(ctx, "jane")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, account.ID, found.ID)
		assert.True(t, found.IsOrganizer)

		missing, err := repo.ByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		dup := newAccount("jane")
		dup.Email = "other@example.com"
		err := repo.Save(ctx, dup)
		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrDuplicate)
		assert.Equal(t, repository.ConstraintAccountUsername, repository.ConstraintName(err))
	})

	t.Run("SingleRoleCheck", func(t *testing.T) {
		both := newAccount("both")
		both.IsOrganizer = true
		both.IsAgent = true
		err := repo.Save(ctx, both)
		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrCheckViolation)
		assert.Equal(t, repository.ConstraintAccountSingleRole, repository.ConstraintName(err))
	})

	t.Run("FilterByRole", func(t *testing.T) {
		agent := newAccount("agent1")
		agent.IsAgent = true
		require.NoError(t, repo.Save(ctx, agent))

		organizers, err := repo.ByFilter(ctx, models.AccountFilter{IsOrganizer: utils.ToPtr(true)}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, organizers, 1)
		assert.Equal(t, "jane", organizers[0].Username)

		count, err := repo.Count(ctx, models.AccountFilter{IsAgent: utils.ToPtr(true)})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func TestProfileRepositories(t *testing.T) {
	tdb := testingutil.RequireDB(t)
	fixtures := testingutil.NewTestFixtures(tdb)
	organizers := repository.NewOrganizerProfileRepository(tdb.DB)
	agents := repository.NewAgentProfileRepository(tdb.DB)
	ctx := context.Background()

	account, err := fixtures.CreateAccount(models.RoleNone)
	require.NoError(t, err)

	profile, created, err := organizers.EnsureForAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := organizers.EnsureForAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, profile.ID, again.ID)

	agentAccount, err := fixtures.CreateAccount(models.RoleAgent)
	require.NoError(t, err)
	agent, err := agents.ByAccountID(ctx, agentAccount.ID)
	require.NoError(t, err)
	require.NotNil(t, agent)

	agent.OrganizerID = &profile.ID
	require.NoError(t, agents.Update(ctx, agent))

	managed, err := agents.ByFilter(ctx, models.AgentProfileFilter{OrganizerID: &profile.ID}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, managed, 1)

	// removing the organizer detaches its agents
	deleted, err := organizers.DeleteByAccountID(ctx, account.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	reloaded, err := agents.ByID(ctx, agent.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Nil(t, reloaded.OrganizerID)

	none, err := organizers.ByAccountID(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLeadRepository(t *testing.T) {
	tdb := testingutil.RequireDB(t)
	fixtures := testingutil.NewTestFixtures(tdb)
	repo := repository.NewLeadRepository(tdb.DB)
	ctx := context.Background()

	orgAccount, err := fixtures.CreateAccount(models.RoleOrganizer)
	require.NoError(t, err)
	organizer, err := fixtures.OrganizerProfile(orgAccount.ID)
	require.NoError(t, err)
	agentAccount, err := fixtures.CreateAccount(models.RoleAgent)
	require.NoError(t, err)
	agent, err := fixtures.AgentProfile(agentAccount.ID)
	require.NoError(t, err)
	hot, err := fixtures.CreateCategory("Hot")
	require.NoError(t, err)

	first, err := fixtures.CreateLead(organizer.ID, &agent.ID, &hot.ID, "Wants a demo next week")
	require.NoError(t, err)
	second, err := fixtures.CreateLead(organizer.ID, nil, nil, "Asked for 100% discount")
	require.NoError(t, err)

	t.Run("DateAddedIsServerSet", func(t *testing.T) {
		lead, err := repo.ByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.False(t, lead.DateAdded.IsZero())
	})

	t.Run("SearchIsCaseInsensitiveAndLiteral", func(t *testing.T) {
		rows, err := repo.ByFilter(ctx, models.LeadFilter{Search: utils.ToPtr("DEMO")}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)

		rows, err = repo.ByFilter(ctx, models.LeadFilter{Search: utils.ToPtr("100%")}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, second.ID, rows[0].ID)

		rows, err = repo.ByFilter(ctx, models.LeadFilter{Search: utils.ToPtr("%")}, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("OrderingByCategoryPutsUncategorizedLast", func(t *testing.T) {
		rows, err := repo.ByFilter(ctx, models.LeadFilter{}, models.LeadOrderings["category"], 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, first.ID, rows[0].ID)
		assert.Equal(t, second.ID, rows[1].ID)
	})

	t.Run("FilterByAgent", func(t *testing.T) {
		count, err := repo.Count(ctx, models.LeadFilter{AgentID: &agent.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("UnknownOrganizerIsForeignKeyViolation", func(t *testing.T) {
		lead := &models.Lead{FirstName: "A", LastName: "B", OrganizerID: 999999, Description: "x", PhoneNumber: "1", Email: "a@b.c"}
		err := repo.Save(ctx, lead)
		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrForeignKeyViolation)
	})

	t.Run("DeletingCategoryKeepsLead", func(t *testing.T) {
		_, err := repository.NewCategoryRepository(tdb.DB).Delete(ctx, hot.ID)
		require.NoError(t, err)

		lead, err := repo.ByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.Nil(t, lead.CategoryID)
	})

	t.Run("ConvertedAndDateAddedFilters", func(t *testing.T) {
		require.NoError(t, tdb.DB.Model(&models.Lead{}).Where("id = ?", second.ID).
			Update("converted_date", time.Now().UTC()).Error)

		rows, err := repo.ByFilter(ctx, models.LeadFilter{IsConverted: utils.ToPtr(true)}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, second.ID, rows[0].ID)

		count, err := repo.Count(ctx, models.LeadFilter{IsConverted: utils.ToPtr(false)})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		hourAgo := time.Now().Add(-time.Hour)
		count, err = repo.Count(ctx, models.LeadFilter{DateAddedAfter: &hourAgo})
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		count, err = repo.Count(ctx, models.LeadFilter{DateAddedBefore: &hourAgo})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("DeletingAgentKeepsLead", func(t *testing.T) {
		_, err := repository.NewAccountRepository(tdb.DB).Delete(ctx, agentAccount.ID)
		require.NoError(t, err)

		lead, err := repo.ByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.Nil(t, lead.AgentID)
		assert.Equal(t, organizer.ID, lead.OrganizerID)
	})

	t.Run("DeletingOrganizerDeletesLeads", func(t *testing.T) {
		_, err := repository.NewAccountRepository(tdb.DB).Delete(ctx, orgAccount.ID)
		require.NoError(t, err)

		count, err := repo.Count(ctx, models.LeadFilter{})
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestWithTransactionRollsBack(t *testing.T) {
	tdb := testingutil.RequireDB(t)
	repo := repository.NewCategoryRepository(tdb.DB)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repository.WithTransaction(ctx, tdb.DB, func(txCtx context.Context) error {
		if err := repo.Save(txCtx, &models.Category{Title: "Transient"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := repo.Count(ctx, models.CategoryFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repository.WithTransaction(ctx, tdb.DB, func(txCtx context.Context) error {
		return repo.Save(txCtx, &models.Category{Title: "Kept"})
	}))
	count, err = repo.Count(ctx, models.CategoryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
