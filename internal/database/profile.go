package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

const profileColumns = `
	p.id, p.user_id, p.name, p.email, p.department, p.year, p.bio, p.domain,
	p.github_url, p.linkedin_url, p.leetcode_url, p.codeforces_url, p.portfolio_url, p.resume_url,
	p.skills, p.interests, p.achievements, p.availability,
	p.profile_photo, p.profile_photo_visible, p.created_at, p.updated_at`

func scanProfile(row pgx.Row, extra ...any) (*models.Profile, error) {
	var p models.Profile
	dest := []any{
		&p.ID, &p.UserID, &p.Name, &p.Email, &p.Department, &p.Year, &p.Bio, &p.Domain,
		&p.GithubURL, &p.LinkedinURL, &p.LeetcodeURL, &p.CodeforcesURL, &p.PortfolioURL, &p.ResumeURL,
		&p.Skills, &p.Interests, &p.Achievements, &p.Availability,
		&p.ProfilePhoto, &p.ProfilePhotoVisible, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p, err := scanProfile(DB.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = $1`, userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// UpdateProfile writes the editable fields of in (already normalized) and returns the stored row.
func UpdateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileUpdate) (*models.Profile, error) {
	var out *models.Profile
	err := withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProfile(tx.QueryRow(ctx, `
			UPDATE profiles p SET
				name = $2, department = $3, year = $4, bio = $5, domain = $6,
				github_url = $7, linkedin_url = $8, leetcode_url = $9,
				codeforces_url = $10, portfolio_url = $11, resume_url = $12,
				skills = $13, interests = $14, achievements = $15,
				availability = COALESCE($16, p.availability),
				updated_at = NOW()
			WHERE p.user_id = $1
			RETURNING `+profileColumns,
			userID, in.Name, in.Department, in.Year, in.Bio, in.Domain,
			in.GithubURL, in.LinkedinURL, in.LeetcodeURL,
			in.CodeforcesURL, in.PortfolioURL, in.ResumeURL,
			in.Skills, in.Interests, in.Achievements, in.Availability,
		))
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetProfilePhoto stores url ("" clears it).
func SetProfilePhoto(ctx context.Context, userID uuid.UUID, url string) error {
	ct, err := DB.Exec(ctx,
		`UPDATE profiles SET profile_photo = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, url)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func SetProfilePhotoVisibility(ctx context.Context, userID uuid.UUID, visible bool) error {
	ct, err := DB.Exec(ctx,
		`UPDATE profiles SET profile_photo_visible = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, visible)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTeammates returns every profile except viewer's, each with viewer's connection status toward it.
func ListTeammates(ctx context.Context, viewer uuid.UUID) ([]models.Teammate, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+profileColumns+`, COALESCE(c.status::text, '')
		FROM profiles p
		LEFT JOIN connections c
		  ON (c.sender_id = $1 AND c.receiver_id = p.user_id)
		  OR (c.receiver_id = $1 AND c.sender_id = p.user_id)
		WHERE p.user_id <> $1
		ORDER BY p.name`, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Teammate{}
	for rows.Next() {
		var status string
		p, err := scanProfile(rows, &status)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Teammate{Profile: p.PublicView(), ConnectionStatus: models.Status(status)})
	}
	return out, rows.Err()
}

// ListProfilesByRole returns the profiles holding role.
func ListProfilesByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p
		JOIN user_roles r ON r.user_id = p.user_id
		WHERE r.role = $1::app_role
		ORDER BY p.name`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p.PublicView())
	}
	return out, rows.Err()
}

// GetProfileSummaries loads summaries for ids; ids without a profile are absent from the map.
func GetProfileSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProfileSummary, error) {
	out := make(map[uuid.UUID]models.ProfileSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := DB.Query(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p.Summary()
	}
	return out, rows.Err()
}
