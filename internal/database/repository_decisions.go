package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smc-signal-engine/internal/signal"
)

// DecisionRecord is one persisted evaluation outcome
type DecisionRecord struct {
	ID          int64           `json:"id"`
	SignalID    *string         `json:"signal_id,omitempty"`
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"timeframe"`
	Direction   *string         `json:"direction,omitempty"`
	Confidence  *float64        `json:"confidence,omitempty"`
	EntryStatus *string         `json:"entry_status,omitempty"`
	ReasonCode  *string         `json:"reason_code,omitempty"`
	Details     *string         `json:"details,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	DecidedAt   time.Time       `json:"decided_at"`
}

// DecisionRepository is the append-only decision history log. It is written
// once per evaluation and only ever read afterwards.
type DecisionRepository struct {
	db *DB
}

// NewDecisionRepository creates a repository over the shared pool
func NewDecisionRepository(db *DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Insert appends one decision to the history log
func (r *DecisionRepository) Insert(ctx context.Context, dec signal.Decision) error {
	payload, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("error encoding decision payload: %w", err)
	}

	var (
		signalID, direction, entryStatus, reasonCode, details *string
		confidence                                            *float64
		symbol, timeframe                                     string
		decidedAt                                             time.Time
	)

	if s := dec.Signal; s != nil {
		symbol, timeframe, decidedAt = s.Symbol, string(s.Timeframe), s.GeneratedAt
		signalID = &s.ID
		d := string(s.Direction)
		direction = &d
		confidence = &s.Confidence
		es := string(s.EntryStatus)
		entryStatus = &es
	} else if nt := dec.NoTrade; nt != nil {
		symbol, timeframe, decidedAt = nt.Symbol, string(nt.Timeframe), nt.DecidedAt
		reasonCode = &nt.ReasonCode
		details = &nt.Details
	} else {
		return fmt.Errorf("decision carries neither signal nor no-trade")
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO decision_history
			(signal_id, symbol, timeframe, direction, confidence, entry_status, reason_code, details, payload, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		signalID, symbol, timeframe, direction, confidence, entryStatus, reasonCode, details, payload, decidedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting decision record: %w", err)
	}
	return nil
}

// Recent returns the latest decisions for a symbol, newest first. An empty
// symbol returns decisions across all symbols.
func (r *DecisionRepository) Recent(ctx context.Context, symbol string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, signal_id, symbol, timeframe, direction, confidence, entry_status, reason_code, details, payload, decided_at
		FROM decision_history`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = $1 ORDER BY decided_at DESC LIMIT $2`
		args = append(args, symbol, limit)
	} else {
		query += ` ORDER BY decided_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying decision history: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(&rec.ID, &rec.SignalID, &rec.Symbol, &rec.Timeframe, &rec.Direction,
			&rec.Confidence, &rec.EntryStatus, &rec.ReasonCode, &rec.Details, &rec.Payload, &rec.DecidedAt); err != nil {
			return nil, fmt.Errorf("error scanning decision record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
