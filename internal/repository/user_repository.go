package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush-jadaun/livekitagent/internal/ids"
	"github.com/ayush-jadaun/livekitagent/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// EnsureUser is a conflict-safe get-or-create for a user and its room.
// Two concurrent first contacts for the same identity both succeed and
// observe the same single row pair: the inserts are ON CONFLICT DO
// NOTHING, the selects read whatever won.
func (r *UserRepository) EnsureUser(ctx context.Context, userID string, name string, age *int) (models.User, models.Room, error) {
	if name == "" {
		name = "Anonymous"
	}

	const insertUser = `
		INSERT INTO users (id, name, age, onboarding, trial_seconds_used, created_at, updated_at)
		VALUES ($1, $2, $3, 'Pending', 0, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insertUser, userID, name, age); err != nil {
		return models.User{}, models.Room{}, fmt.Errorf("insert user: %w", err)
	}

	const insertRoom = `
		INSERT INTO room (id, user_id, room_name, room_condition, created_at, updated_at)
		VALUES ($1, $2, $3, 'off', NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	roomName := fmt.Sprintf("room_%s", userID)
	if _, err := r.pool.Exec(ctx, insertRoom, ids.New(), userID, roomName); err != nil {
		return models.User{}, models.Room{}, fmt.Errorf("insert room: %w", err)
	}

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, models.Room{}, err
	}
	room, err := r.GetRoom(ctx, userID)
	if err != nil {
		return models.User{}, models.Room{}, err
	}
	return user, room, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, name, age, onboarding, trial_seconds_used, created_at, updated_at
		FROM users WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Age,
		&user.Onboarding,
		&user.TrialSecondsUsed,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetRoom(ctx context.Context, userID string) (models.Room, error) {
	const query = `
		SELECT id, user_id, room_name, room_condition, created_at, updated_at
		FROM room WHERE user_id = $1
	`

	row := r.pool.QueryRow(ctx, query, userID)
	var room models.Room
	if err := row.Scan(
		&room.ID,
		&room.UserID,
		&room.RoomName,
		&room.Condition,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Room{}, ErrUserNotFound
		}
		return models.Room{}, err
	}
	return room, nil
}

// CompleteSetup records the submitted profile and marks onboarding done.
func (r *UserRepository) CompleteSetup(ctx context.Context, userID string, name string, age *int) error {
	const query = `
		UPDATE users
		SET name = $2, age = $3, onboarding = 'Done', updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, userID, name, age)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SyncProfile refreshes profile fields from the credential's embedded
// metadata without touching onboarding state.
func (r *UserRepository) SyncProfile(ctx context.Context, userID string, name string, age *int) error {
	const query = `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    age = COALESCE($3, age),
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, userID, name, age)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
