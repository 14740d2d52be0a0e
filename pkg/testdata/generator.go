// Package testdata generates realistic fixtures for tests and local
// seeding. Generators are seeded so runs are reproducible.
package testdata

import (
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

var leadSources = []string{"web", "referral", "facebook_ads", "google_ads", "cold_call", "event", "csv_import"}

var industries = []string{"fintech", "retail", "saas", "healthcare", "logistics", "manufacturing", "education"}

// Generator produces fake CRM entities.
type Generator struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
}

// New creates a generator with the given seed.
func New(seed int64) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Lead generates a lead for the organization with a realistic source,
// score and custom field document.
func (g *Generator) Lead(orgID int) *models.Lead {
	return &models.Lead{
		OrganizationID: orgID,
		Name:           g.faker.Company(),
		Source:         leadSources[g.rng.Intn(len(leadSources))],
		Score:          g.rng.Intn(101),
		Fields: map[string]any{
			"industry": industries[g.rng.Intn(len(industries))],
			"country":  g.faker.CountryAbr(),
			"email":    g.faker.Email(),
			"budget":   float64(g.rng.Intn(100)) * 1000,
		},
	}
}

// SalesRep generates an active sales rep reporting to managerID.
func (g *Generator) SalesRep(id, orgID int, managerID *int) *models.User {
	quota := 5 + g.rng.Intn(20)
	return &models.User{
		ID:             id,
		OrganizationID: orgID,
		Name:           g.faker.Name(),
		Email:          g.faker.Email(),
		Role:           models.RoleSalesRep,
		ReportsToID:    managerID,
		DailyLeadQuota: &quota,
		IsActive:       true,
	}
}

// Manager generates an active manager.
func (g *Generator) Manager(id, orgID int) *models.User {
	return &models.User{
		ID:             id,
		OrganizationID: orgID,
		Name:           g.faker.Name(),
		Email:          g.faker.Email(),
		Role:           models.RoleManager,
		IsActive:       true,
	}
}

// Team generates a manager with n reps reporting to them. IDs are
// assigned sequentially starting at firstID.
func (g *Generator) Team(firstID, orgID, n int) (*models.User, []*models.User) {
	manager := g.Manager(firstID, orgID)
	reps := make([]*models.User, n)
	for i := 0; i < n; i++ {
		reps[i] = g.SalesRep(firstID+1+i, orgID, &manager.ID)
	}
	return manager, reps
}
