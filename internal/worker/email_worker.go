package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"frontdesk/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailWorker delivers guest notices for issued documents.
type EmailWorker struct {
	mailer *infra.Mailer
}

func NewEmailWorker(mailer *infra.Mailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

func (w *EmailWorker) Handle(ctx context.Context, raw []byte) error {
	var job EmailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("email job: bad payload: %w", err)
	}
	if err := w.mailer.SendDocumentNotice(job.To, job.Subject, job.Body); err != nil {
		return fmt.Errorf("email job: send to %s: %w", job.To, err)
	}
	log.Info().Str("to", job.To).Str("subject", job.Subject).Msg("document notice sent")
	return nil
}
