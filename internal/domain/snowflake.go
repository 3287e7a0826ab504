package domain

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// discordEpoch — начало отсчета временной компоненты идентификаторов (2015-01-01T00:00:00Z).
const discordEpoch int64 = 1420070400000

func init() {
	snowflake.Epoch = discordEpoch
}

// Snowflake — 64-битный идентификатор, монотонно растущий в порядке создания сущностей.
// Используется и как идентичность, и как курсор пагинации. Нулевое значение означает "начало коллекции".
// Допустимы значения от 0 до 2^63-1: строки и JSON разбираются одинаково.
type Snowflake uint64

// ZeroSnowflake — курсор, указывающий на начало любой коллекции.
const ZeroSnowflake Snowflake = 0

// SnowflakeFromTime возвращает наименьший идентификатор, созданный в момент t.
func SnowflakeFromTime(t time.Time) Snowflake {
	ms := t.UnixMilli() - snowflake.Epoch
	if ms < 0 {
		return ZeroSnowflake
	}
	return Snowflake(snowflake.ParseInt64(ms << (snowflake.NodeBits + snowflake.StepBits)))
}

// ParseSnowflake разбирает идентификатор из строки.
// Помимо числа принимается дата (RFC 3339 или YYYY-MM-DD), которая переводится в идентификатор.
func ParseSnowflake(s string) (Snowflake, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroSnowflake, fmt.Errorf("empty snowflake")
	}

	if id, err := parseID(s); err == nil {
		return id, nil
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return SnowflakeFromTime(t), nil
		}
	}

	return ZeroSnowflake, fmt.Errorf("invalid snowflake %q", s)
}

// parseID разбирает десятичную запись идентификатора.
func parseID(raw string) (Snowflake, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return ZeroSnowflake, fmt.Errorf("invalid snowflake %q: %w", raw, err)
	}
	if id < 0 {
		return ZeroSnowflake, fmt.Errorf("negative snowflake %q", raw)
	}
	return Snowflake(id), nil
}

func (s Snowflake) id() snowflake.ID {
	return snowflake.ParseInt64(int64(s))
}

// Time возвращает момент создания, закодированный в идентификаторе.
func (s Snowflake) Time() time.Time {
	return time.UnixMilli(s.id().Time()).UTC()
}

// IsZero сообщает, является ли идентификатор нулевым.
func (s Snowflake) IsZero() bool {
	return s == ZeroSnowflake
}

func (s Snowflake) String() string {
	return s.id().String()
}

// MarshalJSON кодирует идентификатор строкой, как это делает удаленный сервис.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return s.id().MarshalJSON()
}

// UnmarshalJSON принимает строку, число или null. Пустая строка и null дают нулевой идентификатор.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*s = ZeroSnowflake
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var id snowflake.ID
		if err := id.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("invalid snowflake %s: %w", data, err)
		}
		raw = id.String()
	}

	v, err := parseID(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
