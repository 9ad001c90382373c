package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kindfund/kindfund/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731001

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema applies every down migration in reverse order, then every up
// migration in order.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, "migrations")

	downs, err := filepath.Glob(filepath.Join(dir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("list down migrations: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	ups, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("list up migrations: %w", err)
	}
	sort.Strings(ups)

	// golang-migrate bookkeeping would otherwise disagree with the reset tables.
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	for _, path := range append(downs, ups...) {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestCampaign creates an active campaign with sensible defaults.
// It is not persisted.
func NewTestCampaign(t testing.TB, orgID, userID int64) *model.Campaign {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	start := now.AddDate(0, 0, -10)
	end := now.AddDate(0, 0, 20)
	return &model.Campaign{
		Title:          UniqueName("campaign"),
		Description:    "Clean water for every village",
		Status:         model.CampaignStatusActive,
		OrganizationID: orgID,
		UserID:         userID,
		GoalAmount:     1000,
		CurrentAmount:  250,
		StartDate:      &start,
		EndDate:        &end,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewTestDonation creates a completed donation for a campaign. It is not persisted.
func NewTestDonation(t testing.TB, campaignID int64, amount float64) *model.Donation {
	t.Helper()
	return &model.Donation{
		CampaignID:     campaignID,
		DonorEmail:     UniqueName("donor") + "@example.com",
		Amount:         amount,
		Status:         model.DonationStatusCompleted,
		PaymentGateway: "stripe",
		PaymentMethod:  "card",
		CreatedAt:      time.Now().UTC(),
	}
}

// InsertOrganization persists an organization and returns its id.
func InsertOrganization(ctx context.Context, t testing.TB, pool *pgxpool.Pool, name string) int64 {
	t.Helper()
	var id int64
	if err := pool.QueryRow(ctx,
		"INSERT INTO organizations (name) VALUES ($1) RETURNING id", name).Scan(&id); err != nil {
		t.Fatalf("insert organization: %v", err)
	}
	return id
}

// InsertCampaign persists a campaign and sets its ID.
func InsertCampaign(ctx context.Context, t testing.TB, pool *pgxpool.Pool, c *model.Campaign) {
	t.Helper()
	err := pool.QueryRow(ctx, `
		INSERT INTO campaigns (
			title, description, status, organization_id, user_id, category_id,
			goal_amount, current_amount, goal_percentage, donation_count, is_featured,
			start_date, end_date, created_at, updated_at, deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		c.Title, c.Description, string(c.Status), c.OrganizationID, c.UserID, c.CategoryID,
		c.GoalAmount, c.CurrentAmount, c.GoalPercentage, c.DonationCount, c.IsFeatured,
		c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt, c.DeletedAt,
	).Scan(&c.ID)
	if err != nil {
		t.Fatalf("insert campaign: %v", err)
	}
}

// InsertDonation persists a donation and sets its ID.
func InsertDonation(ctx context.Context, t testing.TB, pool *pgxpool.Pool, d *model.Donation) {
	t.Helper()
	err := pool.QueryRow(ctx, `
		INSERT INTO donations (
			campaign_id, user_id, donor_email, amount, status, payment_gateway, payment_method,
			is_anonymous, is_recurring, corporate_match_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		d.CampaignID, d.UserID, d.DonorEmail, d.Amount, string(d.Status), d.PaymentGateway, d.PaymentMethod,
		d.IsAnonymous, d.IsRecurring, d.CorporateMatchAmount, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		t.Fatalf("insert donation: %v", err)
	}
}

// InsertBookmark records that a user bookmarked a campaign.
func InsertBookmark(ctx context.Context, t testing.TB, pool *pgxpool.Pool, userID, campaignID int64) {
	t.Helper()
	if _, err := pool.Exec(ctx,
		"INSERT INTO bookmarks (user_id, campaign_id) VALUES ($1, $2)", userID, campaignID); err != nil {
		t.Fatalf("insert bookmark: %v", err)
	}
}

// UniqueName generates a unique name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(prefix), time.Now().UnixNano())
}
