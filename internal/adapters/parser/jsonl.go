package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"discord-chat-exporter/internal/domain"
	"discord-chat-exporter/internal/ports"
)

// maxLineSize ограничивает длину одной строки выгрузки.
const maxLineSize = 16 << 20

// JSONLinesParser реализует интерфейс Parser для выгрузок в формате JSON Lines.
type JSONLinesParser struct{}

// NewJSONLinesParser создает новый экземпляр JSONLinesParser.
func NewJSONLinesParser() ports.Parser {
	return &JSONLinesParser{}
}

// LastMessageID читает выгрузку построчно и возвращает наибольший идентификатор сообщения.
// Оборванная последняя строка (выгрузка была прервана) игнорируется.
func (p *JSONLinesParser) LastMessageID(r io.Reader) (domain.Snowflake, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	var (
		last    domain.Snowflake
		pending error
		lineNo  int
	)

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// Ошибка разбора допустима только в последней строке.
		if pending != nil {
			return domain.ZeroSnowflake, pending
		}

		var msg struct {
			ID domain.Snowflake `json:"id"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			pending = fmt.Errorf("failed to unmarshal line %d: %w", lineNo, err)
			continue
		}
		last = max(last, msg.ID)
	}

	if err := scanner.Err(); err != nil {
		return domain.ZeroSnowflake, fmt.Errorf("failed to read export: %w", err)
	}

	return last, nil
}
