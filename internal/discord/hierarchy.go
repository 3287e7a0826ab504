package discord

import (
	"cmp"
	"slices"

	"discord-chat-exporter/internal/domain"
)

// normalizeChannels восстанавливает связи "категория — канал" и пересчитывает позиции.
//
// Позиции сервиса относительны и содержат разрывы. После нормализации:
// категории получают позиции 1..k в порядке сортировки, а все остальные каналы —
// общую сквозную нумерацию 0..n-1 независимо от родителя. Порядок сортировки —
// (сырая позиция, id), чтобы равные позиции упорядочивались детерминированно.
// Индекс категорий живет только на время одного вызова.
func normalizeChannels(raw []channelJSON) []domain.Channel {
	sorted := slices.Clone(raw)
	slices.SortStableFunc(sorted, func(a, b channelJSON) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	categories := make(map[domain.Snowflake]*domain.Channel)
	categoryPosition := 0
	for _, j := range sorted {
		if !j.Type.IsCategory() {
			continue
		}
		categoryPosition++
		category := j.toChannel(nil, categoryPosition)
		categories[category.ID] = &category
	}

	channels := make([]domain.Channel, 0, len(sorted))
	position := 0
	for _, j := range sorted {
		if j.Type.IsCategory() {
			channels = append(channels, *categories[j.ID])
			continue
		}

		// Неразрешенный родитель (не категория или отсутствует) дает Parent == nil.
		parent := categories[j.ParentID]
		channels = append(channels, j.toChannel(parent, position))
		position++
	}

	return channels
}
