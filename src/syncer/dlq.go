package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketwallet/src/monitoring"
)

const dlqKey = "ticket-sync:dlq"

// DLQMessage records a mint job whose retries were exhausted, parked for
// operator inspection.
type DLQMessage struct {
	JobID    string    `json:"job_id"`
	TicketID string    `json:"ticket_id"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// DLQ is a redis-backed dead letter queue for failed mint jobs.
type DLQ struct {
	rdb *redis.Client
}

func NewDLQ(rdb *redis.Client) *DLQ {
	return &DLQ{rdb: rdb}
}

func (d *DLQ) Push(ctx context.Context, msg *DLQMessage) error {
	if d == nil || d.rdb == nil {
		return nil
	}
	msg.FailedAt = time.Now()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling DLQ message: %w", err)
	}
	if err := d.rdb.RPush(ctx, dlqKey, body).Err(); err != nil {
		return fmt.Errorf("pushing to DLQ: %w", err)
	}
	monitoring.ObserveDLQMessage()
	return nil
}

func (d *DLQ) Len(ctx context.Context) (int64, error) {
	if d == nil || d.rdb == nil {
		return 0, nil
	}
	return d.rdb.LLen(ctx, dlqKey).Result()
}

// List returns up to limit parked messages, oldest first.
func (d *DLQ) List(ctx context.Context, limit int64) ([]DLQMessage, error) {
	if d == nil || d.rdb == nil {
		return nil, nil
	}
	raw, err := d.rdb.LRange(ctx, dlqKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading DLQ: %w", err)
	}
	out := make([]DLQMessage, 0, len(raw))
	for _, item := range raw {
		var msg DLQMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
