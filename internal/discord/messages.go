package discord

import (
	"context"
	"iter"
	"net/url"
	"time"

	"discord-chat-exporter/internal/domain"
)

// messagePageSize — максимальный размер страницы сообщений.
const messagePageSize = 100

// ProgressFunc получает долю выгруженного диапазона в интервале [0, 1].
type ProgressFunc = func(fraction float64)

// tryGetLastMessage возвращает самое новое сообщение строго раньше before
// (или последнее сообщение канала, если before нулевой).
func (c *Client) tryGetLastMessage(ctx context.Context, channelID, before domain.Snowflake) (*domain.Message, error) {
	query := url.Values{}
	query.Set("limit", "1")
	if !before.IsZero() {
		query.Set("before", before.String())
	}

	var page []messageJSON
	if err := c.getJSON(ctx, "channels/"+channelID.String()+"/messages", query, &page); err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, nil
	}

	m := page[len(page)-1].toDomain()
	return &m, nil
}

// GetMessages возвращает сообщения канала в хронологическом порядке в диапазоне (after, before].
// Нулевые after и before означают отсутствие границы.
//
// Перед началом обхода фиксируется последнее сообщение диапазона; оно задает неизменную
// верхнюю границу на весь поток, поэтому сообщения, опубликованные во время выгрузки,
// в результат не попадают. progress, если задан, получает долю выгруженного диапазона,
// вычисленную по времени сообщений.
func (c *Client) GetMessages(ctx context.Context, channelID, after, before domain.Snowflake, progress ProgressFunc) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		// Граница before включительная.
		var upper domain.Snowflake
		if !before.IsZero() {
			upper = before + 1
		}

		last, err := c.tryGetLastMessage(ctx, channelID, upper)
		if err != nil {
			yield(domain.Message{}, err)
			return
		}
		if last == nil || (!after.IsZero() && last.Timestamp.Before(after.Time())) {
			c.log.DebugContext(ctx, "No messages in range", "channel_id", channelID, "after", after, "before", before)
			return
		}

		c.log.DebugContext(ctx, "Message range boundary captured",
			"channel_id", channelID,
			"boundary_id", last.ID,
			"boundary_ts", last.Timestamp,
		)

		messages := paginate(ctx, c, pager[messageJSON, domain.Message]{
			path:        "channels/" + channelID.String() + "/messages",
			limit:       messagePageSize,
			after:       after,
			termination: stopOnEmptyPage,
			newestFirst: true,
			id:          func(m messageJSON) domain.Snowflake { return m.ID },
			convert:     messageJSON.toDomain,
		})

		var first time.Time
		for msg, err := range messages {
			if err != nil {
				yield(domain.Message{}, err)
				return
			}

			if first.IsZero() {
				first = msg.Timestamp
			}

			// Сообщения, появившиеся после фиксации границы.
			if msg.Timestamp.After(last.Timestamp) || msg.ID > last.ID {
				return
			}

			if progress != nil {
				progress(rangeProgress(first, msg.Timestamp, last.Timestamp))
			}

			if !yield(msg, nil) {
				return
			}
		}
	}
}
