package discord

import (
	"context"
	"iter"
	"net/url"
	"slices"
	"strconv"

	"discord-chat-exporter/internal/domain"
)

// pageTermination — правило, по которому пагинатор понимает, что данные закончились.
type pageTermination int

const (
	// stopOnEmptyPage — сервис отдает ровно limit элементов, пока коллекция не исчерпана.
	stopOnEmptyPage pageTermination = iota
	// stopOnShortPage — страница короче limit надежно означает конец коллекции.
	stopOnShortPage
)

// pager описывает обход коллекции по возрастанию идентификаторов:
// запросить страницу "после курсора", отдать элементы, сдвинуть курсор на последний.
// W — форма JSON-элемента, T — доменное значение.
type pager[W, T any] struct {
	path        string
	query       url.Values
	limit       int
	after       domain.Snowflake
	termination pageTermination
	// newestFirst — сервис отдает страницу от новых к старым; она разворачивается локально.
	newestFirst bool
	id          func(W) domain.Snowflake
	convert     func(W) T
}

// paginate возвращает ленивую, конечную и неперезапускаемую последовательность элементов.
// В памяти одновременно находится не больше одной страницы. Отмена контекста проверяется
// перед каждым запросом: уже полученная страница всегда отдается до конца.
func paginate[W, T any](ctx context.Context, c *Client, p pager[W, T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		cursor := p.after

		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			query := url.Values{}
			for k, v := range p.query {
				query[k] = slices.Clone(v)
			}
			query.Set("limit", strconv.Itoa(p.limit))
			query.Set("after", cursor.String())

			var page []W
			if err := c.getJSON(ctx, p.path, query, &page); err != nil {
				yield(zero, err)
				return
			}
			if p.newestFirst {
				slices.Reverse(page)
			}

			yielded := 0
			for _, item := range page {
				id := p.id(item)
				// Элемент не новее курсора означает повтор или нарушение порядка со стороны сервиса.
				if id <= cursor {
					continue
				}
				if !yield(p.convert(item), nil) {
					return
				}
				cursor = id
				yielded++
			}

			if yielded == 0 {
				return
			}
			if p.termination == stopOnShortPage && len(page) < p.limit {
				return
			}
		}
	}
}
