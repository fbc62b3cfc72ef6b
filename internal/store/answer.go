package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/qnahub/apiserver/types"
)

// AnswerRepository handles persistence for answers.
type AnswerRepository struct {
	db *sql.DB
}

func NewAnswerRepository(db *sql.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) ListByQuestion(ctx context.Context, questionID int) ([]types.Answer, error) {
	const query = `
		SELECT id, content, corresponding_question, account_id, created_at
		FROM answers
		WHERE corresponding_question = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	answers := make([]types.Answer, 0)
	for rows.Next() {
		var answer types.Answer
		if err := rows.Scan(
			&answer.ID,
			&answer.Content,
			&answer.QuestionID,
			&answer.AccountID,
			&answer.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return answers, nil
}

func (r *AnswerRepository) Get(ctx context.Context, id int) (types.Answer, error) {
	const query = `
		SELECT id, content, corresponding_question, account_id, created_at
		FROM answers
		WHERE id = $1`
	var answer types.Answer
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&answer.ID,
		&answer.Content,
		&answer.QuestionID,
		&answer.AccountID,
		&answer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Answer{}, ErrNotFound
		}
		return types.Answer{}, mapError(err)
	}
	return answer, nil
}

// Create inserts an answer. An unknown question yields ErrNotFound through
// the foreign key.
func (r *AnswerRepository) Create(ctx context.Context, answer types.Answer, accountID int) (types.Answer, error) {
	const query = `
		INSERT INTO answers (content, corresponding_question, account_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		answer.Content,
		answer.QuestionID,
		accountID,
	).Scan(&answer.ID, &answer.CreatedAt); err != nil {
		return types.Answer{}, mapError(err)
	}
	answer.AccountID = accountID
	return answer, nil
}

// Update rewrites the answer content if accountID owns it; otherwise ErrNotFound.
func (r *AnswerRepository) Update(ctx context.Context, answer types.Answer, accountID int) (types.Answer, error) {
	const query = `
		UPDATE answers
		SET content = $1
		WHERE id = $2 AND account_id = $3
		RETURNING corresponding_question, created_at`
	err := r.db.QueryRowContext(ctx, query, answer.Content, answer.ID, accountID).
		Scan(&answer.QuestionID, &answer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Answer{}, ErrNotFound
		}
		return types.Answer{}, mapError(err)
	}
	answer.AccountID = accountID
	return answer, nil
}

// Delete removes the answer if accountID owns it; otherwise ErrNotFound.
func (r *AnswerRepository) Delete(ctx context.Context, id, accountID int) error {
	const query = `DELETE FROM answers WHERE id = $1 AND account_id = $2`
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

// IsOwner reports whether accountID created answer id.
func (r *AnswerRepository) IsOwner(ctx context.Context, id, accountID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM answers WHERE id = $1 AND account_id = $2)`
	var owned bool
	if err := r.db.QueryRowContext(ctx, query, id, accountID).Scan(&owned); err != nil {
		return false, mapError(err)
	}
	return owned, nil
}
