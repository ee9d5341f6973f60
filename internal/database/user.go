package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/auth"
	"github.com/jason-s-yu/campus/internal/models"
)

// CreateUser inserts the account, its profile and the default student role in one transaction.
// user.Password is replaced by its hash.
func CreateUser(ctx context.Context, user *models.User, name string) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	err = withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (id, email, password) VALUES ($1, $2, $3) RETURNING created_at`,
			user.ID, user.Email, user.Password,
		).Scan(&user.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, name, email) VALUES ($1, $2, $3)`,
			user.ID, name, user.Email,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES ($1, 'student')`,
			user.ID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := DB.QueryRow(ctx,
		`SELECT id, email, password, created_at FROM users WHERE lower(email) = lower($1)`,
		email,
	).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := DB.QueryRow(ctx,
		`SELECT id, email, password, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// AuthenticateUser checks the credentials and returns a fresh session token.
func AuthenticateUser(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check password for %v: %w", user.ID, err)
	}
	if !match {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.CreateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create jwt: %w", err)
	}
	return user, token, nil
}
