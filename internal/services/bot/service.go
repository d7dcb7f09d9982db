package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// Errors
var (
	ErrNotConfigured = errors.New("bot is not configured")
	ErrEmptyReply    = errors.New("empty reply from model")
)

// defaultGreeting substitutes for a mention with no surrounding text
const defaultGreeting = "Say hello and introduce yourself in one sentence."

// Config holds configuration for the AI collaborator
type Config struct {
	APIKey  string
	Model   string
	BotName string
	Mention string
	Persona string
}

// DefaultConfig returns default bot configuration
func DefaultConfig() Config {
	return Config{
		Model:   "gemini-2.0-flash",
		BotName: "Gemini",
		Mention: "@gemini",
		Persona: "You are Gemini, the resident assistant of a small library chatroom. " +
			"Answer briefly and helpfully, keep it friendly, and refuse harmful requests.",
	}
}

// Service wraps the external generation collaborator behind the
// mention-relay contract: detect a mention, strip it, reply.
type Service struct {
	cfg     Config
	client  *genai.Client
	mention *regexp.Regexp
	logger  *slog.Logger
}

// New creates a bot service. An empty APIKey is an error; callers that
// want the relay disabled simply do not construct the service.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BotName == "" {
		cfg.BotName = def.BotName
	}
	if cfg.Mention == "" {
		cfg.Mention = def.Mention
	}
	if cfg.Persona == "" {
		cfg.Persona = def.Persona
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		client:  client,
		mention: mentionPattern(cfg.Mention),
		logger:  logger.With(slog.String("component", "bot")),
	}, nil
}

// Name returns the bot's display name
func (s *Service) Name() string {
	return s.cfg.BotName
}

// Extract reports whether the text mentions the bot and returns the
// prompt with the mention token removed. An empty remainder becomes
// the default greeting prompt.
func (s *Service) Extract(text string) (string, bool) {
	pattern := s.mention
	if pattern == nil {
		pattern = mentionPattern(s.cfg.Mention)
	}
	if !pattern.MatchString(text) {
		return "", false
	}
	prompt := strings.TrimSpace(pattern.ReplaceAllString(text, ""))
	if prompt == "" {
		prompt = defaultGreeting
	}
	return prompt, true
}

// Reply sends the prompt plus the persona instruction to the model
func (s *Service) Reply(ctx context.Context, prompt string) (string, error) {
	result, err := s.client.Models.GenerateContent(ctx, s.cfg.Model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(s.cfg.Persona, genai.RoleUser),
		},
	)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyReply
	}

	s.logger.Debug("bot reply generated", slog.Int("prompt_len", len(prompt)))
	return text, nil
}

// mentionPattern matches the mention token case-insensitively
func mentionPattern(token string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(token))
}
