package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/tripsync/internal/livesync"
	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/pkg/api"
)

// maxMessageLength ограничение длины сообщения в символах
const maxMessageLength = 4000

// Chat сообщения поездки в порядке отправки
type Chat struct {
	*view[models.Message]
	tripID string
}

// MessagesQuery сообщения поездки в порядке времени отправки
func MessagesQuery(tripID string) api.Query {
	return api.Query{Path: models.TripPath(tripID, models.CollectionMessages)}.
		Order(models.FieldSendTime, false)
}

func messageLess(a, b models.Message) bool {
	if !a.SendTime.Equal(b.SendTime) {
		return a.SendTime.Before(b.SendTime)
	}
	return a.ID < b.ID
}

// mergeSendTime Modified для сообщения означает только то, что сервер
// проставил свое время отправки
func mergeSendTime(existing, incoming models.Message) models.Message {
	existing.SendTime = incoming.SendTime
	return existing
}

// Chat открывает чат поездки
func (p *Planner) Chat(ctx context.Context, tripID string) (*Chat, error) {
	if tripID == "" {
		return nil, fmt.Errorf("%w: trip id is required", ErrInvalidArgument)
	}

	v, err := acquire(ctx, p, livesync.Options[models.Message]{
		Decode: models.DecodeMessage,
		ID:     func(m models.Message) string { return m.ID },
		Merge:  mergeSendTime,
		Less:   messageLess,
		Query:  MessagesQuery(tripID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open chat of trip %s: %w", tripID, err)
	}
	return &Chat{view: v, tripID: tripID}, nil
}

// CachedMessages последний сохраненный снимок чата
func (p *Planner) CachedMessages(ctx context.Context, tripID string) ([]models.Message, time.Time, error) {
	messages, savedAt, err := cached(ctx, p, MessagesQuery(tripID), models.DecodeMessage)
	if err != nil {
		return nil, time.Time{}, err
	}
	sortBy(messages, messageLess)
	return messages, savedAt, nil
}

// Messages сообщения в порядке времени отправки
func (c *Chat) Messages() []models.Message {
	return c.sync.View()
}

// Listen вызывает fn для каждого нового сообщения
func (c *Chat) Listen(fn func(models.Message)) func() {
	return c.listen(func(upd livesync.Update[models.Message]) {
		for _, diff := range upd.Diffs {
			if diff.Kind == api.ChangeAdded {
				fn(diff.Entity)
			}
		}
	})
}

// Send отправляет сообщение. До ответа сервера сообщение видно с локальным
// временем отправки.
func (c *Chat) Send(ctx context.Context, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, fmt.Errorf("%w: message is empty", ErrInvalidArgument)
	}
	if len([]rune(content)) > maxMessageLength {
		return models.Message{}, fmt.Errorf("%w: message is longer than %d characters", ErrInvalidArgument, maxMessageLength)
	}

	me := c.planner.identity
	msg := models.Message{
		ID:         c.planner.newID(),
		TripID:     c.tripID,
		SenderID:   me.UserID,
		SenderName: me.Name,
		Content:    content,
		SendTime:   c.planner.now().UTC(),
	}

	data, err := encode(msg)
	if err != nil {
		return models.Message{}, err
	}

	err = c.sync.Mutate(ctx, livesync.Mutation[models.Message]{Upserts: []models.Message{msg}}, func(ctx context.Context) error {
		_, err := c.planner.writer.UpsertDocument(ctx,
			api.DocumentPath(MessagesQuery(c.tripID).Path, msg.ID),
			api.UpsertRequest{
				Data:             data,
				ServerTimestamps: []string{models.FieldSendTime},
			})
		return err
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}
