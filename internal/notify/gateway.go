package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/logger"
)

// Gateway delivers a rendered notice to a recipient. Implementations plug
// in the actual channel: push, SMS, email.
type Gateway interface {
	Send(ctx context.Context, recipientID uuid.UUID, subject, body string) error
}

// LogGateway writes notices to the structured log instead of a real
// channel. It is the default until a delivery provider is wired in.
type LogGateway struct {
	logg *logger.Logger
}

// NewLogGateway returns a gateway that logs every notice.
func NewLogGateway(logg *logger.Logger) (*LogGateway, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogGateway{logg: logg}, nil
}

func (g *LogGateway) Send(ctx context.Context, recipientID uuid.UUID, subject, body string) error {
	ctx = g.logg.WithFields(ctx, map[string]any{
		"recipient_id": recipientID.String(),
		"subject":      subject,
		"body":         body,
	})
	g.logg.Info(ctx, "notice delivered")
	return nil
}
