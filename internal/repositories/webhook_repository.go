package repositories

import (
	"database/sql"
	"fmt"

	intconfig "marketplace/internal/config"
	"marketplace/internal/domain/models"
)

// WebhookLogRepository is the append-only store of raw inbound notifications.
// Rows are never mutated except for the processed/processing_error flags.
type WebhookLogRepository struct {
	DB *sql.DB
}

func (r WebhookLogRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// Append writes the raw notification before any ledger mutation happens.
func (r WebhookLogRepository) Append(e models.WebhookLogEntry) error {
	_, err := r.db().Exec(`
		INSERT INTO webhook_log
			(id, transaction_id, payload, signature, signature_valid, source_ip,
			 processed, processing_error, received_at)
		VALUES (?,?,?,?,?,?,0,'',NOW())`,
		e.ID,
		e.TransactionID,
		e.Payload,
		e.Signature,
		e.SignatureValid,
		e.SourceIP,
	)
	if err != nil {
		return fmt.Errorf("append webhook log: %w", err)
	}
	return nil
}

// MarkProcessed flags a log entry after domain effects completed.
func (r WebhookLogRepository) MarkProcessed(id string) error {
	_, err := r.db().Exec(`UPDATE webhook_log SET processed=1, processing_error='' WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

// MarkFailed records why processing failed so the reprocess sweep can retry.
func (r WebhookLogRepository) MarkFailed(id, processingError string) error {
	_, err := r.db().Exec(`UPDATE webhook_log SET processed=0, processing_error=? WHERE id=?`, processingError, id)
	if err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return nil
}

// ListUnprocessed returns entries that recorded a processing error, oldest
// first, for the reconciliation sweep.
func (r WebhookLogRepository) ListUnprocessed(limit int) ([]models.WebhookLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db().Query(`
		SELECT id,
		       COALESCE(transaction_id,''),
		       COALESCE(payload,''),
		       COALESCE(signature,''),
		       COALESCE(signature_valid,0),
		       COALESCE(source_ip,''),
		       COALESCE(processed,0),
		       COALESCE(processing_error,''),
		       received_at
		FROM webhook_log
		WHERE processed=0 AND processing_error<>''
		ORDER BY received_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed webhooks: %w", err)
	}
	defer rows.Close()

	out := []models.WebhookLogEntry{}
	for rows.Next() {
		var e models.WebhookLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.TransactionID,
			&e.Payload,
			&e.Signature,
			&e.SignatureValid,
			&e.SourceIP,
			&e.Processed,
			&e.ProcessingError,
			&e.ReceivedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
