package discord

import "time"

// rangeProgress вычисляет |current-first| / |last-first|.
// Если все сообщения имеют одно и то же время (например, в канале одно сообщение), прогресс равен 1.
func rangeProgress(first, current, last time.Time) float64 {
	total := absDuration(last.Sub(first))
	if total <= 0 {
		return 1
	}

	fraction := float64(absDuration(current.Sub(first))) / float64(total)
	if fraction > 1 {
		return 1
	}
	return fraction
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
