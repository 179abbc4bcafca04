// Package promptrepo keeps the prompt library as markdown files with YAML
// frontmatter, one git repository per workspace. Every save is a commit.
package promptrepo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound        = errors.New("prompt not found")
	ErrExists          = errors.New("a prompt with this name already exists in this workspace/list")
	ErrInvalidFilename = errors.New("invalid prompt filename")
)

const globalDir = "global"

type Prompt struct {
	Filename    string    `json:"filename"`
	WorkspaceID string    `json:"workspaceId"`
	ListID      *string   `json:"listId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Input struct {
	ListID      *string
	Name        string
	Description string
	Tags        []string
	Content     string
}

// Patch fields left nil are kept.
type Patch struct {
	Name        *string
	Description *string
	Tags        []string
	Content     *string
}

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type frontmatter struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	WorkspaceID string    `yaml:"workspace_id"`
	ListID      *string   `yaml:"list_id"`
	Tags        []string  `yaml:"tags,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

type Service struct {
	baseDir string
	now     func() time.Time
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Filename derives the stable file name {workspace}-{list|global}-{slug}.md.
func Filename(workspaceID string, listID *string, name string) string {
	listPart := globalDir
	if listID != nil && *listID != "" {
		listPart = *listID
	}
	return fmt.Sprintf("%s-%s-%s.md", workspaceID, listPart, Slugify(name))
}

var (
	slugStrip  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

func (s *Service) List(workspaceID string, listID *string) ([]Prompt, error) {
	lock := s.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	root := s.repoPath(workspaceID)
	pattern := filepath.Join(root, "*", "*.md")
	if listID != nil {
		pattern = filepath.Join(root, listDir(listID), "*.md")
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob prompts: %w", err)
	}

	prompts := make([]Prompt, 0, len(paths))
	for _, path := range paths {
		p, err := readPrompt(path)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Name < prompts[j].Name })
	return prompts, nil
}

func (s *Service) Get(workspaceID, filename string) (Prompt, error) {
	lock := s.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.locate(workspaceID, filename)
	if err != nil {
		return Prompt{}, err
	}
	return readPrompt(path)
}

func (s *Service) Create(workspaceID string, in Input, author string) (Prompt, error) {
	if strings.TrimSpace(in.Name) == "" || Slugify(in.Name) == "" {
		return Prompt{}, fmt.Errorf("%w: name is required", ErrInvalidFilename)
	}
	lock := s.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(workspaceID)
	if err != nil {
		return Prompt{}, err
	}

	filename := Filename(workspaceID, in.ListID, in.Name)
	rel := filepath.ToSlash(filepath.Join(listDir(in.ListID), filename))
	abs := filepath.Join(s.repoPath(workspaceID), filepath.FromSlash(rel))
	if _, err := os.Stat(abs); err == nil {
		return Prompt{}, ErrExists
	}

	now := s.now().UTC().Truncate(time.Second)
	meta := frontmatter{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		WorkspaceID: workspaceID,
		ListID:      in.ListID,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := writeAndCommit(repo, abs, rel, meta, in.Content, author, "Create prompt "+filename); err != nil {
		return Prompt{}, err
	}
	return toPrompt(filename, meta, in.Content), nil
}

// Update rewrites the prompt in place. Renaming keeps the original filename.
func (s *Service) Update(workspaceID, filename string, patch Patch, author string) (Prompt, error) {
	lock := s.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	abs, err := s.locate(workspaceID, filename)
	if err != nil {
		return Prompt{}, err
	}
	current, err := readPrompt(abs)
	if err != nil {
		return Prompt{}, err
	}
	repo, err := git.PlainOpen(s.repoPath(workspaceID))
	if err != nil {
		return Prompt{}, fmt.Errorf("open repo: %w", err)
	}

	meta := frontmatter{
		Name:        current.Name,
		Description: current.Description,
		WorkspaceID: current.WorkspaceID,
		ListID:      current.ListID,
		Tags:        current.Tags,
		CreatedAt:   current.CreatedAt,
		UpdatedAt:   s.now().UTC().Truncate(time.Second),
	}
	content := current.Content
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
		meta.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		meta.Description = *patch.Description
	}
	if patch.Tags != nil {
		meta.Tags = patch.Tags
	}
	if patch.Content != nil {
		content = *patch.Content
	}

	rel, err := filepath.Rel(s.repoPath(workspaceID), abs)
	if err != nil {
		return Prompt{}, fmt.Errorf("relative prompt path: %w", err)
	}
	if err := writeAndCommit(repo, abs, filepath.ToSlash(rel), meta, content, author, "Update prompt "+filename); err != nil {
		return Prompt{}, err
	}
	return toPrompt(filename, meta, content), nil
}

func (s *Service) Delete(workspaceID, filename, author string) error {
	lock := s.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	abs, err := s.locate(workspaceID, filename)
	if err != nil {
		return err
	}
	repo, err := git.PlainOpen(s.repoPath(workspaceID))
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	rel, err := filepath.Rel(s.repoPath(workspaceID), abs)
	if err != nil {
		return fmt.Errorf("relative prompt path: %w", err)
	}
	if _, err := worktree.Remove(filepath.ToSlash(rel)); err != nil {
		return fmt.Errorf("git rm prompt: %w", err)
	}
	if _, err := worktree.Commit("Delete prompt "+filename, &git.CommitOptions{Author: signature(author)}); err != nil {
		return fmt.Errorf("commit prompt delete: %w", err)
	}
	return nil
}

// History lists commits touching the prompt, newest first.
func (s *Service) History(workspaceID, filename string, limit int) ([]Commit, error) {
	lock := s.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	abs, err := s.locate(workspaceID, filename)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpen(s.repoPath(workspaceID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	rel, err := filepath.Rel(s.repoPath(workspaceID), abs)
	if err != nil {
		return nil, fmt.Errorf("relative prompt path: %w", err)
	}
	rel = filepath.ToSlash(rel)

	iter, err := repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, Commit{
			Hash:      c.Hash.String()[:7],
			Message:   c.Message,
			Author:    c.Author.Name,
			CreatedAt: c.Author.When,
		})
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) locate(workspaceID, filename string) (string, error) {
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".md") || !strings.HasPrefix(filename, workspaceID+"-") {
		return "", ErrInvalidFilename
	}
	matches, err := filepath.Glob(filepath.Join(s.repoPath(workspaceID), "*", filename))
	if err != nil {
		return "", fmt.Errorf("glob prompt: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	return matches[0], nil
}

func (s *Service) openOrInit(workspaceID string) (*git.Repository, error) {
	path := s.repoPath(workspaceID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(workspaceID string) string {
	return filepath.Join(s.baseDir, workspaceID)
}

func (s *Service) workspaceLock(workspaceID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[workspaceID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[workspaceID] = lock
	return lock
}

func listDir(listID *string) string {
	if listID == nil || *listID == "" {
		return globalDir
	}
	return *listID
}

func writeAndCommit(repo *git.Repository, abs, rel string, meta frontmatter, content, author, message string) error {
	payload, err := encode(meta, content)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create prompt dir: %w", err)
	}
	if err := os.WriteFile(abs, payload, 0o644); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return fmt.Errorf("git add prompt: %w", err)
	}
	if _, err := worktree.Commit(message, &git.CommitOptions{Author: signature(author), AllowEmptyCommits: true}); err != nil {
		return fmt.Errorf("commit prompt: %w", err)
	}
	return nil
}

func signature(author string) *object.Signature {
	if strings.TrimSpace(author) == "" {
		author = "picrm"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@prompts.picrm.local", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func encode(meta frontmatter, content string) ([]byte, error) {
	head, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	buf.WriteString(content)
	return buf.Bytes(), nil
}

func decode(raw []byte) (frontmatter, string, error) {
	var meta frontmatter
	text := string(raw)
	if !strings.HasPrefix(text, "---\n") {
		return meta, text, nil
	}
	head, body, ok := strings.Cut(text[len("---\n"):], "\n---\n")
	if !ok {
		return meta, "", fmt.Errorf("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(head), &meta); err != nil {
		return meta, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, strings.TrimPrefix(body, "\n"), nil
}

func readPrompt(path string) (Prompt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Prompt{}, ErrNotFound
		}
		return Prompt{}, fmt.Errorf("read prompt: %w", err)
	}
	meta, content, err := decode(raw)
	if err != nil {
		return Prompt{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return toPrompt(filepath.Base(path), meta, content), nil
}

func toPrompt(filename string, meta frontmatter, content string) Prompt {
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}
	return Prompt{
		Filename:    filename,
		WorkspaceID: meta.WorkspaceID,
		ListID:      meta.ListID,
		Name:        meta.Name,
		Description: meta.Description,
		Tags:        tags,
		Content:     content,
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
	}
}
