// Package exercise prepares typing exercises from raw source code: syntax
// highlighting for display, a comment-stripped plain rendering for typing,
// and the count of characters the player must actually type.
package exercise

import (
	"context"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/go-enry/go-enry/v2"

	apperrors "github.com/coderace/coderace/internal/platform/errors"
	"github.com/coderace/coderace/internal/platform/id"
)

const highlightStyle = "github"

// Exercise is one prepared typing exercise.
type Exercise struct {
	ID            string
	Language      string
	Source        string // raw source as submitted
	Highlighted   string // HTML markup for display
	Plain         string // comment-stripped text the player types
	TypeableCount int    // characters in Plain, excluding line breaks
	CreatedAt     time.Time
}

// Store persists prepared exercises.
type Store interface {
	PutExercise(ctx context.Context, e Exercise) error
	GetExercise(ctx context.Context, exerciseID string) (Exercise, error)
}

// Service prepares and persists exercises. Preparation runs exactly once,
// when the exercise is first stored.
type Service struct {
	store       Store
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService creates an exercise service with default dependencies.
func NewService(store Store) *Service {
	return &Service{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Create prepares source code and persists the resulting exercise. When the
// language tag is empty it is detected from the content.
func (s *Service) Create(ctx context.Context, source, language string) (Exercise, error) {
	prepared, err := Prepare(source, language)
	if err != nil {
		return Exercise{}, err
	}

	exerciseID, err := s.idGenerator()
	if err != nil {
		return Exercise{}, apperrors.Wrap(apperrors.CodeInternal, "generate exercise id", err)
	}

	exercise := Exercise{
		ID:            exerciseID,
		Language:      prepared.Language,
		Source:        source,
		Highlighted:   prepared.Highlighted,
		Plain:         prepared.Plain,
		TypeableCount: prepared.TypeableCount,
		CreatedAt:     s.clock().UTC(),
	}
	if err := s.store.PutExercise(ctx, exercise); err != nil {
		return Exercise{}, apperrors.Wrap(apperrors.CodeInternal, "persist exercise", err)
	}
	return exercise, nil
}

// Get retrieves a previously prepared exercise.
func (s *Service) Get(ctx context.Context, exerciseID string) (Exercise, error) {
	return s.store.GetExercise(ctx, exerciseID)
}

// Prepared is the output of one preparation pass.
type Prepared struct {
	Language      string
	Highlighted   string
	Plain         string
	TypeableCount int
}

// Prepare normalizes raw source for typing. Comments are stripped because
// players do not type them; the remaining lines are trimmed of trailing
// whitespace and runs of blank lines collapse to one.
func Prepare(source, language string) (Prepared, error) {
	if strings.TrimSpace(source) == "" {
		return Prepared{}, apperrors.New(apperrors.CodeExerciseEmptySource, "exercise source is empty")
	}

	if language == "" {
		language = detectLanguage(source)
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return Prepared{}, apperrors.Wrap(apperrors.CodeInternal, "tokenize source", err)
	}
	tokens := iterator.Tokens()

	highlighted, err := renderHighlighted(lexer, source)
	if err != nil {
		return Prepared{}, err
	}

	plain := stripComments(tokens)
	plain = normalizePlain(plain)

	if language == "" {
		language = lexer.Config().Name
	}

	return Prepared{
		Language:      language,
		Highlighted:   highlighted,
		Plain:         plain,
		TypeableCount: typeableCount(plain),
	}, nil
}

// detectLanguage classifies raw content with no filename to lean on. The
// Bayesian classifier works from content alone, unlike the extension-driven
// strategies, so it is queried directly.
func detectLanguage(source string) string {
	language, _ := enry.GetLanguageByClassifier([]byte(source), nil)
	return language
}

func renderHighlighted(lexer chroma.Lexer, source string) (string, error) {
	style := styles.Get(highlightStyle)
	if style == nil {
		style = styles.Fallback
	}
	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "tokenize source", err)
	}
	var out strings.Builder
	formatter := html.New(html.WithClasses(false))
	if err := formatter.Format(&out, style, iterator); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "format highlighted source", err)
	}
	return out.String(), nil
}

// stripComments rebuilds the source without comment tokens.
func stripComments(tokens []chroma.Token) string {
	var out strings.Builder
	for _, tok := range tokens {
		if tok.Type.InCategory(chroma.Comment) {
			continue
		}
		out.WriteString(tok.Value)
	}
	return out.String()
}

// normalizePlain trims trailing whitespace per line, collapses runs of blank
// lines, and drops leading and trailing blank lines.
func normalizePlain(text string) string {
	lines := strings.Split(text, "\n")
	normalized := make([]string, 0, len(lines))
	blankPending := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			blankPending = len(normalized) > 0
			continue
		}
		if blankPending {
			normalized = append(normalized, "")
			blankPending = false
		}
		normalized = append(normalized, line)
	}
	return strings.Join(normalized, "\n")
}

// typeableCount counts the characters the player types. Line breaks are
// keystrokes too, so every line after the first adds one.
func typeableCount(plain string) int {
	if plain == "" {
		return 0
	}
	count := 0
	for _, line := range strings.Split(plain, "\n") {
		count += len([]rune(strings.TrimSpace(line))) + 1
	}
	return count - 1
}
