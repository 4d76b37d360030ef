package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const leadColumns = `id, name, email, company, campaign_id, campaign_name, status, last_contact, phone, position, notes, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var lead Lead
	var phone, position, notes sql.NullString
	if err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Company,
		&lead.CampaignID, &lead.CampaignName, &lead.Status, &lead.LastContact,
		&phone, &position, &notes, &lead.CreatedAt,
	); err != nil {
		return Lead{}, err
	}
	lead.Phone = nullableString(phone)
	lead.Position = nullableString(position)
	lead.Notes = nullableString(notes)
	return lead, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func (s *PostgresStore) FetchLeads(ctx context.Context) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	leads := []Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+leadColumns,
		lead.ID, lead.Name, lead.Email, lead.Company,
		lead.CampaignID, lead.CampaignName, string(lead.Status), lead.LastContact,
		nullString(lead.Phone), nullString(lead.Position), nullString(lead.Notes), lead.CreatedAt,
	)
	created, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus, lastContact time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE leads SET status=$2, last_contact=$3 WHERE id=$1`, id, string(status), lastContact)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead status rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update lead status %s: %w", id, ErrNotFound)
	}
	return nil
}

const campaignColumns = `id, name, status, total_leads, successful_leads, response_rate, created_at, updated_at`

func scanCampaign(row rowScanner) (Campaign, error) {
	var campaign Campaign
	err := row.Scan(
		&campaign.ID, &campaign.Name, &campaign.Status, &campaign.TotalLeads,
		&campaign.SuccessfulLeads, &campaign.ResponseRate, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	return campaign, err
}

func (s *PostgresStore) FetchCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, campaign Campaign) (Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+campaignColumns,
		campaign.ID, campaign.Name, string(campaign.Status), campaign.TotalLeads,
		campaign.SuccessfulLeads, campaign.ResponseRate, campaign.CreatedAt, campaign.UpdatedAt,
	)
	created, err := scanCampaign(row)
	if err != nil {
		return Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	return created, nil
}

// SeedIfEmpty loads the seed set into empty tables.
func (s *PostgresStore) SeedIfEmpty(ctx context.Context) error {
	var leads, campaigns int
	if err := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM leads), (SELECT COUNT(*) FROM campaigns)`).Scan(&leads, &campaigns); err != nil {
		return fmt.Errorf("count seed tables: %w", err)
	}
	if campaigns == 0 {
		for _, campaign := range SeedCampaigns() {
			if _, err := s.CreateCampaign(ctx, campaign); err != nil {
				return fmt.Errorf("seed campaign %s: %w", campaign.ID, err)
			}
		}
	}
	if leads == 0 {
		for _, lead := range SeedLeads() {
			if _, err := s.CreateLead(ctx, lead); err != nil {
				return fmt.Errorf("seed lead %s: %w", lead.ID, err)
			}
		}
	}
	return nil
}
