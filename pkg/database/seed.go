package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

// SeedTestData inserts a small multi-tenant demo data set: two approved
// templates and three campaigns (two tenants) with pending recipients.
// No-op when campaigns already exist.
func SeedTestData(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM campaigns"); err != nil {
		return err
	}
	if count > 0 {
		logger.Infof("Database already has %d campaigns, skipping seed", count)
		return nil
	}

	res, err := db.Exec(`
		INSERT INTO templates (tenant_id, name, language, header_text, body_text,
			header_vars_count, body_vars_count, body_var_names)
		VALUES (1, 'order_shipped', 'en', '',
			'Hello {{1}}, your order {{2}} shipped', 0, 2, '["1","2"]')`)
	if err != nil {
		return fmt.Errorf("failed to seed templates: %w", err)
	}
	positionalTplID, _ := res.LastInsertId()

	res, err = db.Exec(`
		INSERT INTO templates (tenant_id, name, language, header_text, body_text,
			header_vars_count, body_vars_count, body_var_names)
		VALUES (2, 'welcome_named', 'en', '',
			'Hi {{name}}, welcome to {{store}}', 0, 2, '["name","store"]')`)
	if err != nil {
		return fmt.Errorf("failed to seed templates: %w", err)
	}
	namedTplID, _ := res.LastInsertId()

	now := time.Now().UTC().Format("2006-01-02 15:04:05")

	campaigns := []struct {
		tenantID   int64
		templateID int64
		rule       string
	}{
		{1, positionalTplID, "on_sent"},
		{1, positionalTplID, "none"},
		{2, namedTplID, "on_reply"},
	}

	campaignIDs := make([]int64, 0, len(campaigns))
	for _, c := range campaigns {
		res, err := db.Exec(`
			INSERT INTO campaigns (tenant_id, channel_id, template_id, status,
				scheduled_at, crm_trigger_rule, crm_pipeline_id, crm_stage_id)
			VALUES (?, 'channel-1', ?, 'scheduled', ?, ?, 10, 100)`,
			c.tenantID, c.templateID, now, c.rule)
		if err != nil {
			return fmt.Errorf("failed to seed campaigns: %w", err)
		}
		id, _ := res.LastInsertId()
		campaignIDs = append(campaignIDs, id)
	}

	recipients := []struct {
		campaignIdx int
		tenantID    int64
		phone       string
		vars        string
	}{
		{0, 1, "+905551234567", `["Ayberk","A-1001"]`},
		{0, 1, "+905559876543", `["Deniz","A-1002"]`},
		{0, 1, "+905551112233", `["Ilkay","A-1003"]`},
		{1, 1, "+905554445566", `["Meral","B-2001"]`},
		{2, 2, "+14155550100", `["Sam","North Store"]`},
		{2, 2, "+14155550101", `["Robin","North Store"]`},
	}

	for _, r := range recipients {
		_, err := db.Exec(`
			INSERT INTO recipients (campaign_id, tenant_id, phone, variables, status)
			VALUES (?, ?, ?, ?, 'pending')`,
			campaignIDs[r.campaignIdx], r.tenantID, r.phone, r.vars)
		if err != nil {
			return fmt.Errorf("failed to seed recipients: %w", err)
		}
	}

	logger.Infof("Seeded %d campaigns with %d recipients", len(campaignIDs), len(recipients))
	return nil
}
