package services

import (
	"context"
	"strings"

	"github.com/qnahub/apiserver/types"
	"github.com/samber/oops"
)

// QuestionRepository defines persistence operations for questions.
type QuestionRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Question, int, error)
	Get(ctx context.Context, id int) (types.Question, error)
	Create(ctx context.Context, question types.Question, accountID int) (types.Question, error)
	Update(ctx context.Context, question types.Question, accountID int) (types.Question, error)
	Delete(ctx context.Context, id, accountID int) error
	IsOwner(ctx context.Context, id, accountID int) (bool, error)
}

// QuestionService encapsulates question use-cases.
type QuestionService struct {
	repo QuestionRepository
	contentPipeline
}

func NewQuestionService(repo QuestionRepository, moderator Moderator, opts ...ContentOption) *QuestionService {
	return &QuestionService{
		repo:            repo,
		contentPipeline: newContentPipeline(moderator, opts),
	}
}

func (s *QuestionService) List(ctx context.Context, offset, limit int) ([]types.Question, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *QuestionService) Get(ctx context.Context, id int) (types.Question, error) {
	return s.repo.Get(ctx, id)
}

// Create moderates title and content and stores the question for accountID.
func (s *QuestionService) Create(ctx context.Context, accountID int, input types.QuestionInput) (types.Question, error) {
	question, err := questionFromInput(input)
	if err != nil {
		return types.Question{}, err
	}

	if err := s.moderate(ctx, accountID,
		field{name: "title", text: &question.Title},
		field{name: "content", text: &question.Content},
	); err != nil {
		return types.Question{}, err
	}

	created, err := s.repo.Create(ctx, question, accountID)
	if err != nil {
		return types.Question{}, err
	}

	s.publish(ctx, types.ContentEvent{
		Type:       types.QuestionCreated,
		QuestionID: created.ID,
		AccountID:  accountID,
	})
	return created, nil
}

// Update replaces a question owned by accountID.
func (s *QuestionService) Update(ctx context.Context, accountID, id int, input types.QuestionInput) (types.Question, error) {
	question, err := questionFromInput(input)
	if err != nil {
		return types.Question{}, err
	}
	question.ID = id

	if err := s.requireOwner(ctx, id, accountID); err != nil {
		return types.Question{}, err
	}

	if err := s.moderate(ctx, accountID,
		field{name: "title", text: &question.Title},
		field{name: "content", text: &question.Content},
	); err != nil {
		return types.Question{}, err
	}

	updated, err := s.repo.Update(ctx, question, accountID)
	if err != nil {
		return types.Question{}, err
	}

	s.publish(ctx, types.ContentEvent{
		Type:       types.QuestionUpdated,
		QuestionID: updated.ID,
		AccountID:  accountID,
	})
	return updated, nil
}

// Delete removes a question owned by accountID.
func (s *QuestionService) Delete(ctx context.Context, accountID, id int) error {
	if err := s.requireOwner(ctx, id, accountID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, accountID); err != nil {
		return err
	}

	s.publish(ctx, types.ContentEvent{
		Type:       types.QuestionDeleted,
		QuestionID: id,
		AccountID:  accountID,
	})
	return nil
}

func (s *QuestionService) requireOwner(ctx context.Context, id, accountID int) error {
	owned, err := s.repo.IsOwner(ctx, id, accountID)
	if err != nil {
		return err
	}
	if !owned {
		return oops.Code("NOT_QUESTION_OWNER").
			With("question_id", id).
			With("account_id", accountID).
			Wrap(ErrUnauthorized)
	}
	return nil
}

func questionFromInput(input types.QuestionInput) (types.Question, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return types.Question{}, oops.Code("INVALID_QUESTION").
			With("missing_title", title == "").
			With("missing_content", content == "").
			Wrap(ErrInvalidInput)
	}
	return types.Question{
		Title:   title,
		Content: content,
		Tags:    input.Tags,
	}, nil
}
