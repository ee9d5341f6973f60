package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

const memberColumns = `id, project_id, user_id, status::text, created_at, updated_at`

func scanMember(row pgx.Row) (*models.ProjectMember, error) {
	var (
		m      models.ProjectMember
		status string
	)
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Status = models.Status(status)
	return &m, nil
}

// RequestToJoin creates a pending membership. The creator cannot join their own project,
// and a private project answers ErrNotFound so its existence is not revealed.
func RequestToJoin(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMember, *models.Project, error) {
	var (
		member  *models.ProjectMember
		project *models.Project
	)
	err := withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, projectID))
		if err != nil {
			return err
		}
		if p.CreatorID == userID {
			return ErrForbidden
		}
		if !p.IsPublic {
			return ErrNotFound
		}
		project = p

		m, err := scanMember(tx.QueryRow(ctx, `
			INSERT INTO project_members (project_id, user_id, status)
			VALUES ($1, $2, 'pending')
			RETURNING `+memberColumns, projectID, userID))
		member = m
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return member, project, nil
}

// ListMembers returns the project's memberships with profiles. Only accepted rows unless all is set.
func ListMembers(ctx context.Context, projectID uuid.UUID, all bool) ([]models.ProjectMember, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+memberColumns+` FROM project_members
		WHERE project_id = $1 AND ($2 OR status = 'accepted')
		ORDER BY created_at`, projectID, all)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ProjectMember{}
	ids := []uuid.UUID{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
		ids = append(ids, m.UserID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles, err := GetProfileSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if s, ok := profiles[out[i].UserID]; ok {
			out[i].Profile = s
		} else {
			out[i].Profile = models.ProfileSummary{UserID: out[i].UserID, Name: models.UnknownUserName}
		}
	}
	return out, nil
}

// RespondMember moves a pending membership into status. Only the creator may respond; accepting
// fails with ErrConflict once the accepted members reach max_team_size.
func RespondMember(ctx context.Context, projectID, memberUserID, creator uuid.UUID, status models.Status) (*models.ProjectMember, *models.Project, error) {
	var (
		member  *models.ProjectMember
		project *models.Project
	)
	err := withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx,
			`SELECT `+projectColumns+` FROM projects p WHERE p.id = $1 FOR UPDATE`, projectID))
		if err != nil {
			return err
		}
		if p.CreatorID != creator {
			return ErrForbidden
		}
		project = p

		m, err := scanMember(tx.QueryRow(ctx,
			`SELECT `+memberColumns+` FROM project_members WHERE project_id = $1 AND user_id = $2 FOR UPDATE`,
			projectID, memberUserID))
		if err != nil {
			return err
		}
		if m.Status != models.StatusPending {
			return ErrConflict
		}

		if status == models.StatusAccepted && p.MaxTeamSize != nil {
			var accepted int
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND status = 'accepted'`,
				projectID).Scan(&accepted); err != nil {
				return err
			}
			if TeamFull(accepted, p.MaxTeamSize) {
				return ErrConflict
			}
		}

		member, err = scanMember(tx.QueryRow(ctx, `
			UPDATE project_members SET status = $2::project_request_status, updated_at = NOW()
			WHERE id = $1
			RETURNING `+memberColumns, m.ID, string(status)))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return member, project, nil
}

// TeamFull reports whether accepted members already reach maxSize. A nil size is unbounded.
func TeamFull(accepted int, maxSize *int) bool {
	return maxSize != nil && accepted >= *maxSize
}

// LeaveProject removes userID's membership, whatever its status.
func LeaveProject(ctx context.Context, projectID, userID uuid.UUID) error {
	ct, err := DB.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func CountProjectsJoined(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM project_members WHERE user_id = $1 AND status = 'accepted'`, userID).Scan(&n)
	return n, err
}
