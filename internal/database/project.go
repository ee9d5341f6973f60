package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

const projectColumns = `
	p.id, p.creator_id, p.title, p.description, p.domain, p.required_skills,
	p.max_team_size, p.is_public, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(
		&p.ID, &p.CreatorID, &p.Title, &p.Description, &p.Domain, &p.RequiredSkills,
		&p.MaxTeamSize, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func CreateProject(ctx context.Context, creator uuid.UUID, in models.ProjectInput) (*models.Project, error) {
	var out *models.Project
	err := withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx, `
			INSERT INTO projects AS p (creator_id, title, description, domain, required_skills, max_team_size, is_public)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+projectColumns,
			creator, in.Title, in.Description, in.Domain, in.RequiredSkills, in.MaxTeamSize, in.Public()))
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := scanProject(DB.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// CanViewProject reports whether viewer may see p: public, creator or an accepted member.
// Pending and rejected requests do not open a private project.
func CanViewProject(ctx context.Context, p *models.Project, viewer uuid.UUID) (bool, error) {
	if p.IsPublic || p.CreatorID == viewer {
		return true, nil
	}
	var member bool
	err := DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_members
			WHERE project_id = $1 AND user_id = $2 AND status = 'accepted'
		)`,
		p.ID, viewer).Scan(&member)
	return member, err
}

// ListProjects returns public projects plus viewer's own, newest first.
func ListProjects(ctx context.Context, viewer uuid.UUID) ([]models.Project, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+projectColumns+` FROM projects p
		WHERE p.is_public OR p.creator_id = $1
		ORDER BY p.created_at DESC`, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProject rewrites the project if creator owns it.
func UpdateProject(ctx context.Context, id, creator uuid.UUID, in models.ProjectInput) (*models.Project, error) {
	var out *models.Project
	err := withTx(ctx, func(tx pgx.Tx) error {
		if err := requireCreator(ctx, tx, id, creator); err != nil {
			return err
		}
		p, err := scanProject(tx.QueryRow(ctx, `
			UPDATE projects p SET
				title = $2, description = $3, domain = $4, required_skills = $5,
				max_team_size = $6, is_public = $7, updated_at = NOW()
			WHERE p.id = $1
			RETURNING `+projectColumns,
			id, in.Title, in.Description, in.Domain, in.RequiredSkills, in.MaxTeamSize, in.Public()))
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func DeleteProject(ctx context.Context, id, creator uuid.UUID) error {
	return withTx(ctx, func(tx pgx.Tx) error {
		if err := requireCreator(ctx, tx, id, creator); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		return err
	})
}

func requireCreator(ctx context.Context, tx pgx.Tx, projectID, user uuid.UUID) error {
	var creator uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT creator_id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&creator); err != nil {
		return err
	}
	if creator != user {
		return ErrForbidden
	}
	return nil
}

func CountProjectsCreated(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := DB.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE creator_id = $1`, userID).Scan(&n)
	return n, err
}
