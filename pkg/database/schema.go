package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the records portal
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createUsersTable,
		createPatientsTable,
		createChildRecordsTable,
		createRequestionsTable,
		createAuditLogsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createUsersIndexes,
		createPatientsIndexes,
		createChildRecordsIndexes,
		createRequestionsIndexes,
		createAuditLogsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			username VARCHAR(100) UNIQUE NOT NULL,
			full_name VARCHAR(200) NOT NULL,
			role VARCHAR(20) NOT NULL,
			password_hash VARCHAR(200) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPatientsTable = `
		CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			fields JSONB NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			created_by UUID NOT NULL,
			updated_by UUID NOT NULL
		);`

	createChildRecordsTable = `
		CREATE TABLE IF NOT EXISTS child_records (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			fields JSONB NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			created_by UUID NOT NULL,
			updated_by UUID NOT NULL
		);`

	createRequestionsTable = `
		CREATE TABLE IF NOT EXISTS requestions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			worker_id UUID NOT NULL REFERENCES users(id),
			request_type VARCHAR(20) NOT NULL,
			target_table VARCHAR(50) NOT NULL,
			target_record_id UUID NOT NULL,
			request_data JSONB NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			decided_by UUID REFERENCES users(id),
			decided_at TIMESTAMP WITH TIME ZONE,
			denial_reason TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAuditLogsTable = `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID REFERENCES users(id),
			action VARCHAR(100) NOT NULL,
			details TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createUsersIndexes = `
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);`

	createPatientsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_patients_is_deleted ON patients(is_deleted);
		CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients(created_at);
		CREATE INDEX IF NOT EXISTS idx_patients_created_by ON patients(created_by);`

	createChildRecordsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_child_records_is_deleted ON child_records(is_deleted);
		CREATE INDEX IF NOT EXISTS idx_child_records_created_at ON child_records(created_at);
		CREATE INDEX IF NOT EXISTS idx_child_records_created_by ON child_records(created_by);`

	createRequestionsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_requestions_status ON requestions(status);
		CREATE INDEX IF NOT EXISTS idx_requestions_worker_id ON requestions(worker_id);
		CREATE INDEX IF NOT EXISTS idx_requestions_target ON requestions(target_table, target_record_id);
		CREATE INDEX IF NOT EXISTS idx_requestions_created_at ON requestions(created_at);`

	createAuditLogsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);`
)
