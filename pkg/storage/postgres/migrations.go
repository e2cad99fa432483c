package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					settings JSONB NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_slug ON organizations(slug);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					current_organization_id BIGINT REFERENCES organizations(id) ON DELETE SET NULL,
					is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMP
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_current_organization_id ON users(current_organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(32) NOT NULL,
					name VARCHAR(255) NOT NULL,
					expires_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					last_used_at TIMESTAMP,
					revoked_at TIMESTAMP,
					revoked_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					revoke_reason TEXT
				);

				CREATE INDEX idx_api_tokens_user_id ON api_tokens(user_id);
				CREATE INDEX idx_api_tokens_token_hash ON api_tokens(token_hash);
				CREATE INDEX idx_api_tokens_expires_at ON api_tokens(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create permissions and roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(255) NOT NULL UNIQUE,
					permission_group VARCHAR(100) NOT NULL
				);

				CREATE INDEX idx_permissions_group ON permissions(permission_group);

				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(slug, organization_id)
				);

				CREATE INDEX idx_roles_organization_id ON roles(organization_id);
				CREATE INDEX idx_roles_slug ON roles(slug);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX idx_role_permissions_permission_id ON role_permissions(permission_id);
			`,
		},
		{
			Version:     5,
			Description: "Create organization_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_members (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT REFERENCES roles(id) ON DELETE SET NULL,
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX idx_organization_members_user_id ON organization_members(user_id);
				CREATE INDEX idx_organization_members_role_id ON organization_members(role_id);
			`,
		},
		{
			Version:     6,
			Description: "Create org_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_invitations (
					id BIGSERIAL PRIMARY KEY,
					org_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role_id BIGINT REFERENCES roles(id) ON DELETE SET NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					invited_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					accepted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(org_id, email)
				);

				CREATE INDEX idx_org_invitations_token ON org_invitations(token);
				CREATE INDEX idx_org_invitations_expires_at ON org_invitations(expires_at);
			`,
		},
		{
			Version:     7,
			Description: "Create projects and project_members tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					due_date TIMESTAMP,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_projects_organization_id ON projects(organization_id);
				CREATE INDEX idx_projects_status ON projects(status);

				CREATE TABLE IF NOT EXISTS project_members (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL DEFAULT 'member',
					added_at TIMESTAMP NOT NULL DEFAULT NOW(),
					added_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(project_id, user_id)
				);

				CREATE INDEX idx_project_members_user_id ON project_members(user_id);
			`,
		},
		{
			Version:     8,
			Description: "Create tasks and task_assignees tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					description TEXT,
					status VARCHAR(50) NOT NULL DEFAULT 'todo',
					priority INT NOT NULL DEFAULT 0,
					due_date TIMESTAMP,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_tasks_organization_id ON tasks(organization_id);
				CREATE INDEX idx_tasks_project_id ON tasks(project_id);
				CREATE INDEX idx_tasks_status ON tasks(status);

				CREATE TABLE IF NOT EXISTS task_assignees (
					id BIGSERIAL PRIMARY KEY,
					task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					assigned_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(task_id, user_id)
				);

				CREATE INDEX idx_task_assignees_user_id ON task_assignees(user_id);
			`,
		},
		{
			Version:     9,
			Description: "Create resource_allocations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource_allocations (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					percent INT NOT NULL CHECK (percent > 0 AND percent <= 100),
					start_date DATE NOT NULL,
					end_date DATE NOT NULL,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (end_date >= start_date)
				);

				CREATE INDEX idx_resource_allocations_organization_id ON resource_allocations(organization_id);
				CREATE INDEX idx_resource_allocations_user_id ON resource_allocations(user_id);
				CREATE INDEX idx_resource_allocations_dates ON resource_allocations(user_id, start_date, end_date);
			`,
		},
		{
			Version:     10,
			Description: "Create audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					actor_id BIGINT NOT NULL,
					action VARCHAR(100) NOT NULL,
					target_type VARCHAR(50) NOT NULL DEFAULT '',
					target_id BIGINT NOT NULL DEFAULT 0,
					request_id VARCHAR(64) NOT NULL DEFAULT '',
					detail JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_log_organization_id ON audit_log(organization_id, created_at);
				CREATE INDEX idx_audit_log_created_at ON audit_log(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
