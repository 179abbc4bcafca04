package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"picrm/internal/promptrepo"
)

type PromptInput struct {
	WorkspaceID string   `json:"workspaceId"`
	ListID      *string  `json:"listId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
}

type PromptPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	Content     *string  `json:"content"`
}

func mapPromptError(err error) error {
	switch {
	case errors.Is(err, promptrepo.ErrNotFound):
		return notFound("Prompt")
	case errors.Is(err, promptrepo.ErrExists):
		return duplicate(err.Error())
	case errors.Is(err, promptrepo.ErrInvalidFilename):
		return invalid(err.Error())
	}
	return err
}

// promptAccess checks the library is enabled and the caller owns the
// workspace (and list, when one is named).
func (s *Service) promptAccess(ctx context.Context, userID, workspaceID string, listID *string) error {
	if s.prompts == nil {
		return domainError(http.StatusInternalServerError, codeConfiguration, "Prompt library is not configured", nil)
	}
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return err
	}
	if listID == nil {
		return nil
	}
	l, err := s.store.GetList(ctx, *listID)
	if isNoRows(err) {
		return notFound("List")
	}
	if err != nil {
		return err
	}
	if l.WorkspaceID != workspaceID {
		return forbidden("List does not belong to this workspace")
	}
	return nil
}

func (s *Service) ListPrompts(ctx context.Context, userID, workspaceID string, listID *string) ([]promptrepo.Prompt, error) {
	listID = trimmedPtr(listID)
	if err := s.promptAccess(ctx, userID, workspaceID, listID); err != nil {
		return nil, err
	}
	items, err := s.prompts.List(workspaceID, listID)
	return items, mapPromptError(err)
}

func (s *Service) GetPrompt(ctx context.Context, userID, workspaceID, filename string) (promptrepo.Prompt, error) {
	if err := s.promptAccess(ctx, userID, workspaceID, nil); err != nil {
		return promptrepo.Prompt{}, err
	}
	p, err := s.prompts.Get(workspaceID, filename)
	return p, mapPromptError(err)
}

func (s *Service) CreatePrompt(ctx context.Context, sess Session, in PromptInput) (promptrepo.Prompt, error) {
	listID := trimmedPtr(in.ListID)
	if err := s.promptAccess(ctx, sess.UserID, in.WorkspaceID, listID); err != nil {
		return promptrepo.Prompt{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return promptrepo.Prompt{}, invalid("name is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return promptrepo.Prompt{}, invalid("content is required")
	}
	p, err := s.prompts.Create(in.WorkspaceID, promptrepo.Input{
		ListID:      listID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Tags:        in.Tags,
		Content:     in.Content,
	}, promptAuthor(sess))
	if err != nil {
		return promptrepo.Prompt{}, mapPromptError(err)
	}
	s.logAction(ctx, sess.UserID, "create", "prompt", p.Filename, map[string]any{"workspaceId": in.WorkspaceID})
	return p, nil
}

func (s *Service) UpdatePrompt(ctx context.Context, sess Session, workspaceID, filename string, patch PromptPatch) (promptrepo.Prompt, error) {
	if err := s.promptAccess(ctx, sess.UserID, workspaceID, nil); err != nil {
		return promptrepo.Prompt{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return promptrepo.Prompt{}, invalid("name must not be empty")
	}
	p, err := s.prompts.Update(workspaceID, filename, promptrepo.Patch{
		Name:        patch.Name,
		Description: patch.Description,
		Tags:        patch.Tags,
		Content:     patch.Content,
	}, promptAuthor(sess))
	if err != nil {
		return promptrepo.Prompt{}, mapPromptError(err)
	}
	s.logAction(ctx, sess.UserID, "update", "prompt", filename, nil)
	return p, nil
}

func (s *Service) DeletePrompt(ctx context.Context, sess Session, workspaceID, filename string) error {
	if err := s.promptAccess(ctx, sess.UserID, workspaceID, nil); err != nil {
		return err
	}
	if err := s.prompts.Delete(workspaceID, filename, promptAuthor(sess)); err != nil {
		return mapPromptError(err)
	}
	s.logAction(ctx, sess.UserID, "delete", "prompt", filename, nil)
	return nil
}

func (s *Service) PromptHistory(ctx context.Context, userID, workspaceID, filename string, limit int) ([]promptrepo.Commit, error) {
	if err := s.promptAccess(ctx, userID, workspaceID, nil); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := s.prompts.History(workspaceID, filename, limit)
	return items, mapPromptError(err)
}

func promptAuthor(sess Session) string {
	if sess.Name != "" {
		return sess.Name
	}
	if sess.Email != "" {
		return sess.Email
	}
	return sess.UserID
}
