package services

import (
	"context"
	"strings"

	"github.com/qnahub/apiserver/types"
	"github.com/samber/oops"
)

// AnswerRepository defines persistence operations for answers.
type AnswerRepository interface {
	ListByQuestion(ctx context.Context, questionID int) ([]types.Answer, error)
	Create(ctx context.Context, answer types.Answer, accountID int) (types.Answer, error)
	Update(ctx context.Context, answer types.Answer, accountID int) (types.Answer, error)
	Delete(ctx context.Context, id, accountID int) error
	IsOwner(ctx context.Context, id, accountID int) (bool, error)
}

// QuestionLookup resolves a question by id.
type QuestionLookup interface {
	Get(ctx context.Context, id int) (types.Question, error)
}

// AnswerService encapsulates answer use-cases.
type AnswerService struct {
	repo      AnswerRepository
	questions QuestionLookup
	contentPipeline
}

func NewAnswerService(repo AnswerRepository, questions QuestionLookup, moderator Moderator, opts ...ContentOption) *AnswerService {
	return &AnswerService{
		repo:            repo,
		questions:       questions,
		contentPipeline: newContentPipeline(moderator, opts),
	}
}

// ListByQuestion returns the answers of a question, or store.ErrNotFound if
// the question does not exist.
func (s *AnswerService) ListByQuestion(ctx context.Context, questionID int) ([]types.Answer, error) {
	if _, err := s.questions.Get(ctx, questionID); err != nil {
		return nil, err
	}
	return s.repo.ListByQuestion(ctx, questionID)
}

// Create moderates the content and stores the answer for accountID.
func (s *AnswerService) Create(ctx context.Context, accountID int, input types.AnswerInput) (types.Answer, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" || input.QuestionID < 1 {
		return types.Answer{}, oops.Code("INVALID_ANSWER").
			With("question_id", input.QuestionID).
			Wrap(ErrInvalidInput)
	}

	answer := types.Answer{
		Content:    content,
		QuestionID: input.QuestionID,
	}
	if err := s.moderate(ctx, accountID, field{name: "content", text: &answer.Content}); err != nil {
		return types.Answer{}, err
	}

	created, err := s.repo.Create(ctx, answer, accountID)
	if err != nil {
		return types.Answer{}, err
	}

	s.publish(ctx, types.ContentEvent{
		Type:       types.AnswerCreated,
		QuestionID: created.QuestionID,
		AnswerID:   created.ID,
		AccountID:  accountID,
	})
	return created, nil
}

// Update replaces the content of an answer owned by accountID.
func (s *AnswerService) Update(ctx context.Context, accountID, id int, input types.AnswerInput) (types.Answer, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return types.Answer{}, oops.Code("INVALID_ANSWER").Wrap(ErrInvalidInput)
	}

	if err := s.requireOwner(ctx, id, accountID); err != nil {
		return types.Answer{}, err
	}

	answer := types.Answer{ID: id, Content: content}
	if err := s.moderate(ctx, accountID, field{name: "content", text: &answer.Content}); err != nil {
		return types.Answer{}, err
	}

	updated, err := s.repo.Update(ctx, answer, accountID)
	if err != nil {
		return types.Answer{}, err
	}

	s.publish(ctx, types.ContentEvent{
		Type:       types.AnswerUpdated,
		QuestionID: updated.QuestionID,
		AnswerID:   updated.ID,
		AccountID:  accountID,
	})
	return updated, nil
}

// Delete removes an answer owned by accountID.
func (s *AnswerService) Delete(ctx context.Context, accountID, id int) error {
	if err := s.requireOwner(ctx, id, accountID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, accountID); err != nil {
		return err
	}

	s.publish(ctx, types.ContentEvent{
		Type:      types.AnswerDeleted,
		AnswerID:  id,
		AccountID: accountID,
	})
	return nil
}

func (s *AnswerService) requireOwner(ctx context.Context, id, accountID int) error {
	owned, err := s.repo.IsOwner(ctx, id, accountID)
	if err != nil {
		return err
	}
	if !owned {
		return oops.Code("NOT_ANSWER_OWNER").
			With("answer_id", id).
			With("account_id", accountID).
			Wrap(ErrUnauthorized)
	}
	return nil
}
