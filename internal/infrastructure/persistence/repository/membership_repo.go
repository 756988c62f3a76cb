package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/domain/entity"
	"github.com/ipecgroup/budget-portal/internal/infrastructure/persistence/sqlite"
)

// MembershipRepository implements port.MembershipStore. The workflow engine
// only reads these tables; maintenance happens in the admin screens.
type MembershipRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sql.DB, logger *zap.Logger) port.MembershipStore {
	return &MembershipRepository{
		db:     db,
		logger: logger,
	}
}

// UnitsOf returns the units a user is a member of.
func (r *MembershipRepository) UnitsOf(ctx context.Context, userID int64) ([]*entity.Unit, error) {
	query := `
		SELECT u.id, u.name, COALESCE(u.code, '')
		FROM units u
		INNER JOIN user_units uu ON uu.unit_id = u.id
		WHERE uu.user_id = ?
		ORDER BY u.id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to load user units", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to load user units: %w", err)
	}
	defer rows.Close()

	var units []*entity.Unit
	for rows.Next() {
		var u entity.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Code); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, &u)
	}
	return units, rows.Err()
}

// RoleNamesOf returns the free-text role names assigned to a user.
func (r *MembershipRepository) RoleNamesOf(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT ro.name
		FROM roles ro
		INNER JOIN user_roles ur ON ur.role_id = ro.id
		WHERE ur.user_id = ?
		ORDER BY ro.id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to load user roles", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
