package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

var (
	ErrUnknownTemplate = errors.New("email: unknown template")
	ErrTemplateRender  = errors.New("email: template render failed")
	ErrSendFailed      = errors.New("email: send failed")
)

// Notifier entrega un mensaje con template a un destinatario.
type Notifier interface {
	SendTemplatedMessage(ctx context.Context, project *repository.Project, recipient string, tmpl Template, vars map[string]any) error
}

// TemplateNotifier renderiza los templates por defecto y envía con un Sender.
type TemplateNotifier struct {
	sender    Sender
	templates map[Template]templateSet
}

func NewTemplateNotifier(sender Sender) (*TemplateNotifier, error) {
	ts, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &TemplateNotifier{sender: sender, templates: ts}, nil
}

// SendTemplatedMessage completa project_display_name si el caller no lo pasó.
func (n *TemplateNotifier) SendTemplatedMessage(ctx context.Context, project *repository.Project, recipient string, tmpl Template, vars map[string]any) error {
	log := logger.From(ctx).With(logger.Layer("email"), logger.Op("SendTemplatedMessage"),
		logger.TenantID(project.ID), logger.String("template", string(tmpl)))

	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("email: empty recipient")
	}
	ts, ok := n.templates[tmpl]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, tmpl)
	}
	merged := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		merged[k] = v
	}
	if _, ok := merged["project_display_name"]; !ok {
		name := project.DisplayName
		if name == "" {
			name = project.ID
		}
		merged["project_display_name"] = name
	}

	subject, html, text, err := ts.render(merged)
	if err != nil {
		log.Error("failed to render template", logger.Err(err))
		return fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	if err := n.sender.Send(recipient, subject, html, text); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	log.Info("email sent")
	return nil
}
