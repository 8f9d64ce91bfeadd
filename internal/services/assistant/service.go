package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"aivision/internal/config"
	"aivision/internal/logger"
	"aivision/internal/models"
	"aivision/internal/repository"
	"aivision/internal/services/websocket"
)

var ErrEmptyQuestion = errors.New("question is required")

// DefaultPrompt is used when the configuration does not override it.
const DefaultPrompt = `You are an assistant that answers questions about YOLO object detections.

Detections:
{{.Detections}}

User question:
{{.Question}}

Answer concisely based on both the detection data and the image provided.
`

// EventSender pushes events to a user's open dashboards.
type EventSender interface {
	SendEvent(userID, eventType string, data any) error
}

type promptData struct {
	Detections string
	Question   string
}

type Service struct {
	llm      LLMClient
	messages repository.MessageRepository
	events   EventSender
	prompt   *template.Template
	maxSide  int
	logger   *logger.Logger
}

func NewService(llm LLMClient, messages repository.MessageRepository, events EventSender, cfg config.AssistantConfig, logger *logger.Logger) (*Service, error) {
	text := cfg.Prompt
	if strings.TrimSpace(text) == "" {
		text = DefaultPrompt
	}
	prompt, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse assistant prompt: %w", err)
	}

	return &Service{
		llm:      llm,
		messages: messages,
		events:   events,
		prompt:   prompt,
		maxSide:  cfg.MaxImageSide,
		logger:   logger,
	}, nil
}

// Ask answers a question about an image and its detections. Both the
// question and the answer are appended to the user's history. image may be
// nil.
func (s *Service) Ask(ctx context.Context, userID, question string, image []byte, detections []models.Detection) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	var attachment *Image
	if len(image) > 0 {
		prepared, err := PrepareImage(image, s.maxSide)
		if err != nil {
			return "", err
		}
		attachment = prepared
	}

	prompt, err := s.buildPrompt(question, detections)
	if err != nil {
		return "", err
	}

	if err := s.store(userID, question, models.RoleUser); err != nil {
		return "", err
	}

	answer, err := s.llm.Generate(ctx, prompt, attachment)
	if err != nil {
		s.logger.Error("Assistant failed for user %s: %v", userID, err)
		return "", fmt.Errorf("generate answer: %w", err)
	}

	if err := s.store(userID, answer, models.RoleAssistant); err != nil {
		return "", err
	}

	return answer, nil
}

func (s *Service) buildPrompt(question string, detections []models.Detection) (string, error) {
	if detections == nil {
		detections = []models.Detection{}
	}
	encoded, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode detections: %w", err)
	}

	var buf bytes.Buffer
	if err := s.prompt.Execute(&buf, promptData{Detections: string(encoded), Question: question}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func (s *Service) store(userID, content, role string) error {
	message := &models.Message{UserID: userID, Content: content, Role: role}
	if err := s.messages.Insert(message); err != nil {
		return fmt.Errorf("store %s message: %w", role, err)
	}

	if s.events != nil {
		if err := s.events.SendEvent(userID, websocket.EventMessage, message); err != nil {
			s.logger.Warning("Failed to send message event: %v", err)
		}
	}
	return nil
}
