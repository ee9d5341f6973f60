package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/models"
)

func GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	rows, err := DB.Query(ctx, `SELECT role::text FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, models.Role(r))
	}
	return roles, rows.Err()
}

func HasRole(ctx context.Context, userID uuid.UUID, role models.Role) (bool, error) {
	var ok bool
	err := DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2::app_role)`,
		userID, string(role),
	).Scan(&ok)
	return ok, err
}

// GrantRole is idempotent.
func GrantRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	_, err := DB.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2::app_role)
		 ON CONFLICT (user_id, role) DO NOTHING`,
		userID, string(role),
	)
	return mapErr(err)
}

func RevokeRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	ct, err := DB.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role = $2::app_role`,
		userID, string(role),
	)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
