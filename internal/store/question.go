package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/qnahub/apiserver/types"
)

// QuestionRepository handles persistence for questions.
//
// Update and Delete repeat the ownership predicate inside the statement, so a
// caller that already checked IsOwner cannot mutate a row it no longer owns.
type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) List(ctx context.Context, offset, limit int) ([]types.Question, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM questions`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	const listQuery = `
		SELECT id, title, content, tags, account_id, created_at
		FROM questions
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	questions := make([]types.Question, 0, limit)
	for rows.Next() {
		var question types.Question
		if err := rows.Scan(
			&question.ID,
			&question.Title,
			&question.Content,
			pq.Array(&question.Tags),
			&question.AccountID,
			&question.CreatedAt,
		); err != nil {
			return nil, 0, mapError(err)
		}
		questions = append(questions, question)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}

	return questions, total, nil
}

func (r *QuestionRepository) Get(ctx context.Context, id int) (types.Question, error) {
	const query = `
		SELECT id, title, content, tags, account_id, created_at
		FROM questions
		WHERE id = $1`
	var question types.Question
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&question.ID,
		&question.Title,
		&question.Content,
		pq.Array(&question.Tags),
		&question.AccountID,
		&question.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Question{}, ErrNotFound
		}
		return types.Question{}, mapError(err)
	}
	return question, nil
}

func (r *QuestionRepository) Create(ctx context.Context, question types.Question, accountID int) (types.Question, error) {
	const query = `
		INSERT INTO questions (title, content, tags, account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		question.Title,
		question.Content,
		pq.Array(question.Tags),
		accountID,
	).Scan(&question.ID, &question.CreatedAt); err != nil {
		return types.Question{}, mapError(err)
	}
	question.AccountID = accountID
	return question, nil
}

// Update rewrites the question if accountID owns it; otherwise ErrNotFound.
func (r *QuestionRepository) Update(ctx context.Context, question types.Question, accountID int) (types.Question, error) {
	const query = `
		UPDATE questions
		SET title = $1,
			content = $2,
			tags = $3
		WHERE id = $4 AND account_id = $5
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		question.Title,
		question.Content,
		pq.Array(question.Tags),
		question.ID,
		accountID,
	).Scan(&question.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Question{}, ErrNotFound
		}
		return types.Question{}, mapError(err)
	}
	question.AccountID = accountID
	return question, nil
}

// Delete removes the question if accountID owns it; otherwise ErrNotFound.
func (r *QuestionRepository) Delete(ctx context.Context, id, accountID int) error {
	const query = `DELETE FROM questions WHERE id = $1 AND account_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsOwner reports whether accountID created question id. A missing question
// is reported as not owned.
func (r *QuestionRepository) IsOwner(ctx context.Context, id, accountID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1 AND account_id = $2)`
	var owned bool
	if err := r.db.QueryRowContext(ctx, query, id, accountID).Scan(&owned); err != nil {
		return false, mapError(err)
	}
	return owned, nil
}
