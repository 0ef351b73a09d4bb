package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/skrafl/server/internal/store"
)

type chatRepo struct {
	b *Backend
}

func (r *chatRepo) Add(ctx context.Context, m *store.ChatMessage) (string, error) {
	if m.ID == "" {
		m.ID = r.b.GenerateID()
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO chat_messages (id, channel, user_id, recipient, msg, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Channel, m.UserID, m.Recipient, m.Text, m.Timestamp)
	if err != nil {
		return "", store.BackendErr("insert chat message", err)
	}
	return m.ID, nil
}

func (r *chatRepo) ListNewestFirst(ctx context.Context, channel string, limit int) ([]*store.ChatMessage, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT id, channel, user_id, recipient, msg, timestamp
		 FROM chat_messages WHERE channel = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2`, channel, limit)
	if err != nil {
		return nil, store.BackendErr("query chat channel", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *chatRepo) ListForUser(ctx context.Context, userID string, limit int) ([]*store.ChatMessage, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT id, channel, user_id, recipient, msg, timestamp
		 FROM chat_messages
		 WHERE (user_id = $1 OR recipient = $1) AND channel LIKE 'user:%'
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, store.BackendErr("query user chat", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *chatRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM chat_messages WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete chat messages", err)
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]*store.ChatMessage, error) {
	var result []*store.ChatMessage
	for rows.Next() {
		m := &store.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.Channel, &m.UserID, &m.Recipient,
			&m.Text, &m.Timestamp); err != nil {
			return nil, store.BackendErr("scan chat message", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		result = append(result, m)
	}
	return result, rows.Err()
}
