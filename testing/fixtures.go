package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// FixturePassword is the plain password of every account created by TestFixtures
const FixturePassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateAccount inserts an active account holding role (one of the models.Role* constants)
// together with the matching profile row.
func (tf *TestFixtures) CreateAccount(role string) (*models.Account, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	account := &models.Account{
		UUID:         uuid.New(),
		Username:     fmt.Sprintf("%s_%s", role, suffix),
		Email:        fmt.Sprintf("%s.%s@example.com", role, suffix),
		PasswordHash: string(hashedPassword),
		FirstName:    "Test",
		LastName:     role,
		IsStaff:      role == models.RoleStaff,
		IsOrganizer:  role == models.RoleOrganizer,
		IsAgent:      role == models.RoleAgent,
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s account: %w", role, err)
	}

	switch role {
	case models.RoleOrganizer:
		if err := tf.DB.DB.Create(&models.OrganizerProfile{AccountID: account.ID}).Error; err != nil {
			return nil, fmt.Errorf("failed to create organizer profile: %w", err)
		}
	case models.RoleAgent:
		if err := tf.DB.DB.Create(&models.AgentProfile{AccountID: account.ID}).Error; err != nil {
			return nil, fmt.Errorf("failed to create agent profile: %w", err)
		}
	}

	return account, nil
}

// OrganizerProfile loads the organizer profile of an account
func (tf *TestFixtures) OrganizerProfile(accountID uint) (*models.OrganizerProfile, error) {
	var profile models.OrganizerProfile
	if err := tf.DB.DB.Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to load organizer profile of account %d: %w", accountID, err)
	}
	return &profile, nil
}

// AgentProfile loads the agent profile of an account
func (tf *TestFixtures) AgentProfile(accountID uint) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	if err := tf.DB.DB.Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to load agent profile of account %d: %w", accountID, err)
	}
	return &profile, nil
}

// CreateCategory inserts a category with the given title
func (tf *TestFixtures) CreateCategory(title string) (*models.Category, error) {
	category := &models.Category{Title: title}
	if err := tf.DB.DB.Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", title, err)
	}
	return category, nil
}

// CreateLead inserts a lead owned by organizerID. agentID and categoryID may be nil.
func (tf *TestFixtures) CreateLead(organizerID uint, agentID, categoryID *uint, description string) (*models.Lead, error) {
	suffix := rand.Intn(1000000)
	lead := &models.Lead{
		FirstName:   "Lead",
		LastName:    fmt.Sprintf("N%d", suffix),
		Age:         30,
		OrganizerID: organizerID,
		AgentID:     agentID,
		CategoryID:  categoryID,
		Description: description,
		PhoneNumber: fmt.Sprintf("+1555%07d", suffix),
		Email:       fmt.Sprintf("lead.%d@example.com", suffix),
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}
