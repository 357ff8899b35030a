package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

func NewMySQLDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to MySQL database")
	return db, nil
}

func RunMigrations(db *sqlx.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			name VARCHAR(128) NOT NULL,
			language VARCHAR(16) NOT NULL DEFAULT 'en',
			header_text TEXT,
			body_text TEXT NOT NULL,
			header_vars_count INT NOT NULL DEFAULT 0,
			body_vars_count INT NOT NULL DEFAULT 0,
			header_var_names JSON,
			body_var_names JSON,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_templates_tenant (tenant_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS campaigns (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			channel_id VARCHAR(64) NOT NULL,
			template_id BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
			scheduled_at DATETIME NOT NULL,
			recurrence VARCHAR(64) NOT NULL DEFAULT '',
			crm_trigger_rule VARCHAR(20) NOT NULL DEFAULT 'none',
			crm_pipeline_id BIGINT,
			crm_stage_id BIGINT,
			media_path VARCHAR(512) NOT NULL DEFAULT '',
			media_type VARCHAR(10) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_campaigns_status_scheduled (status, scheduled_at),
			INDEX idx_campaigns_tenant (tenant_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS recipients (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			campaign_id BIGINT NOT NULL,
			tenant_id BIGINT NOT NULL,
			phone VARCHAR(20) NOT NULL,
			variables JSON,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			message_id VARCHAR(128),
			error_log TEXT,
			claimed_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_recipients_selection (status, tenant_id, id),
			INDEX idx_recipients_campaign_status (campaign_id, status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id CHAR(36) PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			campaign_id BIGINT NOT NULL,
			recipient_phone VARCHAR(20) NOT NULL,
			body TEXT NOT NULL,
			provider_message_id VARCHAR(128) NOT NULL,
			media_id VARCHAR(128),
			media_hash CHAR(64),
			direction VARCHAR(10) NOT NULL DEFAULT 'outbound',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_chat_media_lookup (tenant_id, media_hash),
			INDEX idx_chat_phone (tenant_id, recipient_phone, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS deals (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			contact_phone VARCHAR(20) NOT NULL,
			pipeline_id BIGINT NOT NULL,
			stage_id BIGINT NOT NULL,
			title VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_deals_dedup (tenant_id, contact_phone, pipeline_id, stage_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Infof("Database migrations completed")
	return nil
}
