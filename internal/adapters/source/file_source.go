package source

import (
	"fmt"
	"io"
	"os"

	"discord-chat-exporter/internal/ports"
)

// FileSource реализует интерфейс DataSource для чтения ранее выгруженного файла.
type FileSource struct {
	filePath string
}

// NewFileSource создает новый экземпляр FileSource.
func NewFileSource(filePath string) ports.DataSource {
	return &FileSource{filePath: filePath}
}

// Open открывает файл для чтения. Отсутствие файла не оборачивается,
// чтобы вызывающий мог проверить его через errors.Is(err, fs.ErrNotExist).
func (s *FileSource) Open() (io.ReadCloser, error) {
	if s.filePath == "" {
		return nil, fmt.Errorf("не указан путь к файлу")
	}

	f, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open file %s: %w", s.filePath, err)
	}

	return f, nil
}
