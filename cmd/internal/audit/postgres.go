package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRecorder inserts events into beetrack.audit_log.
type PostgresRecorder struct {
	pool  *pgxpool.Pool
	log   *zap.Logger
	table string
}

// NewPostgresRecorder returns a Recorder over pool. The pool is owned by the caller.
func NewPostgresRecorder(pool *pgxpool.Pool, log *zap.Logger) (*PostgresRecorder, error) {
	if pool == nil {
		return nil, fmt.Errorf("audit: nil pool")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresRecorder{
		pool:  pool,
		log:   log,
		table: pgx.Identifier{"beetrack", "audit_log"}.Sanitize(),
	}, nil
}

// Record implements Recorder. Insert failures are logged.
func (p *PostgresRecorder) Record(ctx context.Context, ev Event) {
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO `+p.table+` (
			id, user_id, session_id, action, outcome, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
	`, uuid.NewString(), trimOrNil(ev.UserID), trimOrNil(ev.SessionID), action, ev.Outcome, at,
		trimOrNil(ev.IP), trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		p.log.Error("audit.insert.fail", zap.Error(err), zap.String("action", action))
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
