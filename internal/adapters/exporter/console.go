package exporter

import (
	"fmt"
	"io"
	"os"

	"discord-chat-exporter/internal/domain"
	"discord-chat-exporter/internal/ports"
)

// ConsoleExporter реализует интерфейс Exporter для вывода списков в консоль.
type ConsoleExporter struct {
	out io.Writer
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter.
// Если out равен nil, вывод идет в os.Stdout.
func NewConsoleExporter(out io.Writer) ports.Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleExporter{out: out}
}

// ExportGuilds выводит список серверов.
func (e *ConsoleExporter) ExportGuilds(guilds []domain.Guild) error {
	if len(guilds) == 0 {
		_, err := fmt.Fprintln(e.out, "No guilds found.")
		return err
	}

	for _, guild := range guilds {
		if _, err := fmt.Fprintf(e.out, "%s | %s\n", guild.ID, guild.Name); err != nil {
			return err
		}
	}
	return nil
}

// ExportChannels выводит список каналов вместе с их ветками.
func (e *ConsoleExporter) ExportChannels(channels []domain.ChannelNode) error {
	if len(channels) == 0 {
		_, err := fmt.Fprintln(e.out, "No channels found.")
		return err
	}

	for _, node := range channels {
		ch := node.Channel
		if _, err := fmt.Fprintf(e.out, "%s | %s / %s\n", ch.ID, ch.ParentNameWithFallback(), ch.Name); err != nil {
			return err
		}

		for _, thread := range node.Threads {
			state := "Active"
			if thread.IsArchived {
				state = "Archived"
			}
			if _, err := fmt.Fprintf(e.out, " * %s | Thread / %s | %s\n", thread.ID, thread.Name, state); err != nil {
				return err
			}
		}
	}
	return nil
}
