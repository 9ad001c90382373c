package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kindfund/kindfund/internal/bootstrap"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/repository"
)

var (
	organizations = []string{"Clean Water Trust", "Open Classrooms", "Harbor Animal Rescue", "Northside Food Bank"}
	categories    = [][2]string{{"Water", "water"}, {"Education", "education"}, {"Animals", "animals"}, {"Hunger", "hunger"}}
	statuses      = []model.CampaignStatus{
		model.CampaignStatusActive, model.CampaignStatusActive, model.CampaignStatusActive,
		model.CampaignStatusCompleted, model.CampaignStatusPaused, model.CampaignStatusDraft,
	}
	gateways = []string{"stripe", "paypal", "bank_transfer"}
	methods  = []string{"card", "wallet", "ach"}
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		campaigns   = flag.Int("campaigns", 40, "Number of campaigns to create")
		donations   = flag.Int("donations", 25, "Maximum donations per campaign")
		owners      = flag.Int("owners", 5, "Number of distinct campaign owners (user ids 1..n)")
		seed        = flag.Int64("seed", 1, "Random seed")
		migrate     = flag.Bool("migrate", true, "Apply migrations first")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *campaigns <= 0 || *owners <= 0 || *donations < 0 {
		fmt.Fprintln(os.Stderr, "campaigns and owners must be positive, donations must not be negative")
		os.Exit(1)
	}

	if *migrate {
		if err := repository.Migrate(*databaseURL); err != nil {
			fail(err, *databaseURL)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, 2)
	if err != nil {
		fail(err, *databaseURL)
	}
	defer repo.Close()

	rng := rand.New(rand.NewSource(*seed))
	s := seeder{rng: rng, now: time.Now().UTC()}

	var orgIDs, catIDs []int64
	total := 0
	err = repo.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		if orgIDs, err = s.insertOrganizations(ctx, tx); err != nil {
			return err
		}
		if catIDs, err = s.insertCategories(ctx, tx); err != nil {
			return err
		}
		for i := 0; i < *campaigns; i++ {
			id, err := s.insertCampaign(ctx, tx, i, orgIDs, catIDs, int64(*owners))
			if err != nil {
				return err
			}
			n, err := s.insertDonations(ctx, tx, id, rng.Intn(*donations+1))
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		fail(err, *databaseURL)
	}

	fmt.Printf("seeded %d organizations, %d categories, %d campaigns, %d donations\n",
		len(orgIDs), len(catIDs), *campaigns, total)
}

type seeder struct {
	rng *rand.Rand
	now time.Time
}

func (s seeder) insertOrganizations(ctx context.Context, tx pgx.Tx) ([]int64, error) {
	ids := make([]int64, 0, len(organizations))
	for _, name := range organizations {
		var id int64
		if err := tx.QueryRow(ctx, `INSERT INTO organizations (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert organization: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s seeder) insertCategories(ctx context.Context, tx pgx.Tx) ([]int64, error) {
	ids := make([]int64, 0, len(categories))
	for _, c := range categories {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, c[0], c[1]).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert category: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s seeder) insertCampaign(ctx context.Context, tx pgx.Tx, i int, orgIDs, catIDs []int64, owners int64) (int64, error) {
	status := statuses[s.rng.Intn(len(statuses))]
	goal := float64(1000 * (1 + s.rng.Intn(50)))
	start := s.now.AddDate(0, 0, -s.rng.Intn(90))
	end := start.AddDate(0, 0, 14+s.rng.Intn(90))
	created := start.Add(-time.Duration(s.rng.Intn(72)) * time.Hour)

	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO campaigns (title, description, status, organization_id, user_id, category_id,
			goal_amount, is_featured, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id`,
		fmt.Sprintf("Campaign %d", i+1),
		fmt.Sprintf("Seeded campaign number %d.", i+1),
		string(status),
		orgIDs[s.rng.Intn(len(orgIDs))],
		1+s.rng.Int63n(owners),
		catIDs[s.rng.Intn(len(catIDs))],
		goal,
		s.rng.Intn(5) == 0,
		start, end, created,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert campaign: %w", err)
	}
	return id, nil
}

// insertDonations adds n donations and rolls the completed ones up into the
// campaign's denormalized totals.
func (s seeder) insertDonations(ctx context.Context, tx pgx.Tx, campaignID int64, n int) (int, error) {
	batch := &pgx.Batch{}
	for i := 0; i < n; i++ {
		status := "completed"
		switch s.rng.Intn(10) {
		case 0:
			status = "pending"
		case 1:
			status = "failed"
		case 2:
			status = "refunded"
		}
		created := s.now.Add(-time.Duration(s.rng.Intn(60*24)) * time.Hour / 24)
		batch.Queue(`
			INSERT INTO donations (campaign_id, user_id, donor_email, amount, status, payment_gateway,
				payment_method, is_anonymous, is_recurring, corporate_match_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
			campaignID,
			100+s.rng.Int63n(400),
			fmt.Sprintf("donor%d@example.org", s.rng.Intn(1000)),
			float64(5+s.rng.Intn(500)),
			status,
			gateways[s.rng.Intn(len(gateways))],
			methods[s.rng.Intn(len(methods))],
			s.rng.Intn(6) == 0,
			s.rng.Intn(8) == 0,
			float64(s.rng.Intn(3)*25),
			created,
		)
	}
	batch.Queue(`
		UPDATE campaigns c SET
			current_amount = COALESCE(d.total, 0),
			donation_count = COALESCE(d.cnt, 0),
			goal_percentage = CASE WHEN c.goal_amount > 0
				THEN LEAST(ROUND(COALESCE(d.total, 0) / c.goal_amount * 100, 2), 9999) END
		FROM (
			SELECT SUM(amount) AS total, COUNT(*) AS cnt
			FROM donations WHERE campaign_id = $1 AND status = 'completed'
		) d
		WHERE c.id = $1`, campaignID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert donations: %w", err)
	}
	return n, nil
}

func fail(err error, databaseURL string) {
	fmt.Fprintln(os.Stderr, "seed failed:", bootstrap.SanitizeError(err, databaseURL))
	os.Exit(1)
}
