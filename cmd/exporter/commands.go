package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"discord-chat-exporter/internal/adapters/exporter"
	"discord-chat-exporter/internal/adapters/parser"
	"discord-chat-exporter/internal/core/services"
	"discord-chat-exporter/internal/domain"
)

// cli хранит глобальные флаги и зависимости, созданные перед выполнением команды.
type cli struct {
	token  string
	prompt tokenPrompt
	app    *app
}

func newRootCommand(prompt tokenPrompt) *cobra.Command {
	c := &cli{prompt: prompt}

	root := &cobra.Command{
		Use:           "exporter",
		Short:         "Export channels and messages from Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.token, cmd.ErrOrStderr(), c.prompt)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.token, "token", "t", "", "authentication token (overrides DISCORD_TOKEN)")

	root.AddCommand(
		c.guildsCommand(),
		c.dmCommand(),
		c.channelsCommand(),
		c.exportCommand(),
		c.reactionsCommand(),
		c.rolesCommand(),
		c.userCommand(),
		c.inviteCommand(),
	)
	return root
}

func (c *cli) guildsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List accessible guilds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			guilds, err := services.NewChannelService(c.app.client, c.app.log).ListGuilds(cmd.Context())
			if err != nil {
				return err
			}
			return exporter.NewConsoleExporter(cmd.OutOrStdout()).ExportGuilds(guilds)
		},
	}
}

func (c *cli) dmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dm",
		Short: "List direct message channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.listChannels(cmd, domain.DirectMessages.ID, services.ChannelFilter{})
		},
	}
}

func (c *cli) channelsCommand() *cobra.Command {
	var (
		guild          string
		includeVoice   bool
		includeThreads string
	)

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels of a guild",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			guildID, err := domain.ParseSnowflake(guild)
			if err != nil {
				return fmt.Errorf("invalid --guild: %w", err)
			}
			threads, err := services.ParseThreadInclusion(includeThreads)
			if err != nil {
				return err
			}
			return c.listChannels(cmd, guildID, services.ChannelFilter{IncludeVoice: includeVoice, Threads: threads})
		},
	}

	cmd.Flags().StringVarP(&guild, "guild", "g", "", "guild ID")
	cmd.Flags().BoolVar(&includeVoice, "include-vc", false, "include voice channels")
	cmd.Flags().StringVar(&includeThreads, "include-threads", "none", "include threads: none, active or all")
	_ = cmd.MarkFlagRequired("guild")
	return cmd
}

func (c *cli) listChannels(cmd *cobra.Command, guildID domain.Snowflake, filter services.ChannelFilter) error {
	nodes, err := services.NewChannelService(c.app.client, c.app.log).ListChannels(cmd.Context(), guildID, filter)
	if err != nil {
		return err
	}
	return exporter.NewConsoleExporter(cmd.OutOrStdout()).ExportChannels(nodes)
}

func (c *cli) exportCommand() *cobra.Command {
	var (
		channels     []string
		after        string
		before       string
		parallel     int
		output       string
		resume       bool
		totalTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export messages of one or more channels as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.app.cfg.Export
			if cmd.Flags().Changed("parallel") {
				cfg.Parallel = parallel
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = output
			}
			if cmd.Flags().Changed("resume") {
				cfg.Resume = resume
			}
			if cmd.Flags().Changed("timeout") {
				cfg.TotalTimeout = totalTimeout
			}

			req, err := parseExportRequest(channels, after, before)
			if err != nil {
				return err
			}

			opts := []services.Option{
				services.WithLogger(c.app.log),
				services.WithParallel(cfg.Parallel),
				services.WithTotalTimeout(cfg.TotalTimeout),
				services.WithProgressStep(cfg.ProgressStep),
			}
			if cfg.Resume {
				opts = append(opts, services.WithResume(parser.NewJSONLinesParser()))
			}

			sink := exporter.NewJSONLinesSink(cfg.OutputDir, exporter.WithAppend(cfg.Resume))
			results, err := services.NewExportService(c.app.client, sink, opts...).Export(cmd.Context(), req)
			printResults(cmd, results)
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&channels, "channel", "c", nil, "channel IDs to export (repeatable or comma-separated)")
	cmd.Flags().StringVar(&after, "after", "", "export messages after this ID or date")
	cmd.Flags().StringVar(&before, "before", "", "export messages up to and including this ID or date")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of channels exported concurrently")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue previous exports instead of overwriting them")
	cmd.Flags().DurationVar(&totalTimeout, "timeout", 0, "limit for the whole export, 0 for none")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func parseExportRequest(channels []string, after, before string) (services.ExportRequest, error) {
	var req services.ExportRequest
	for _, raw := range channels {
		id, err := domain.ParseSnowflake(raw)
		if err != nil {
			return req, fmt.Errorf("invalid --channel: %w", err)
		}
		req.ChannelIDs = append(req.ChannelIDs, id)
	}

	var err error
	if after != "" {
		if req.After, err = domain.ParseSnowflake(after); err != nil {
			return req, fmt.Errorf("invalid --after: %w", err)
		}
	}
	if before != "" {
		if req.Before, err = domain.ParseSnowflake(before); err != nil {
			return req, fmt.Errorf("invalid --before: %w", err)
		}
	}
	if !req.After.IsZero() && !req.Before.IsZero() && req.Before <= req.After {
		return req, fmt.Errorf("--before must be later than --after")
	}
	return req, nil
}

func printResults(cmd *cobra.Command, results []services.ChannelResult) {
	out := cmd.OutOrStdout()
	for _, res := range results {
		if res.Skipped {
			fmt.Fprintf(out, "%s | skipped: %s\n", res.ChannelID, res.Reason)
			continue
		}
		fmt.Fprintf(out, "%s | %s | %d messages\n", res.ChannelID, res.Channel.Name, res.Messages)
	}
}

func (c *cli) reactionsCommand() *cobra.Command {
	var channel, message, emoji string

	cmd := &cobra.Command{
		Use:   "reactions",
		Short: "List users who reacted to a message with an emoji",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channelID, err := domain.ParseSnowflake(channel)
			if err != nil {
				return fmt.Errorf("invalid --channel: %w", err)
			}
			messageID, err := domain.ParseSnowflake(message)
			if err != nil {
				return fmt.Errorf("invalid --message: %w", err)
			}
			e, err := parseEmoji(emoji)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for user, err := range c.app.client.GetMessageReactions(cmd.Context(), channelID, messageID, e) {
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s | %s\n", user.ID, user.FullName())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", "", "channel ID")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message ID")
	cmd.Flags().StringVarP(&emoji, "emoji", "e", "", "emoji: unicode character or name:id for custom emoji")
	for _, name := range []string{"channel", "message", "emoji"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// parseEmoji разбирает стандартный эмодзи ("👍") или пользовательский ("name:id").
func parseEmoji(s string) (domain.Emoji, error) {
	s = strings.Trim(strings.TrimSpace(s), "<>")
	if s == "" {
		return domain.Emoji{}, fmt.Errorf("empty emoji")
	}

	name, rawID, custom := strings.Cut(strings.TrimPrefix(s, "a:"), ":")
	if !custom {
		return domain.Emoji{Name: s}, nil
	}

	id, err := domain.ParseSnowflake(rawID)
	if err != nil || name == "" {
		return domain.Emoji{}, fmt.Errorf("invalid custom emoji %q, expected name:id", s)
	}
	return domain.Emoji{ID: id, Name: name, IsAnimated: strings.HasPrefix(s, "a:")}, nil
}

func (c *cli) rolesCommand() *cobra.Command {
	var guild string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List roles of a guild",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			guildID, err := domain.ParseSnowflake(guild)
			if err != nil {
				return fmt.Errorf("invalid --guild: %w", err)
			}
			roles, err := c.app.client.GetGuildRoles(cmd.Context(), guildID)
			if err != nil {
				return err
			}
			for _, role := range roles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %d | %s\n", role.ID, role.Position, role.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&guild, "guild", "g", "", "guild ID")
	_ = cmd.MarkFlagRequired("guild")
	return cmd
}

func (c *cli) userCommand() *cobra.Command {
	var guild string

	cmd := &cobra.Command{
		Use:   "user <id>",
		Short: "Show a user, or a guild member with --guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := domain.ParseSnowflake(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			out := cmd.OutOrStdout()

			if guild != "" {
				guildID, err := domain.ParseSnowflake(guild)
				if err != nil {
					return fmt.Errorf("invalid --guild: %w", err)
				}
				member, err := c.app.client.TryGetGuildMember(cmd.Context(), guildID, userID)
				if err != nil {
					return err
				}
				if member == nil {
					_, err = fmt.Fprintln(out, "Member not found.")
					return err
				}
				_, err = fmt.Fprintf(out, "%s | %s | %s\n", member.User.ID, member.User.FullName(), member.DisplayName())
				return err
			}

			user, err := c.app.client.TryGetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if user == nil {
				_, err = fmt.Fprintln(out, "User not found.")
				return err
			}
			_, err = fmt.Fprintf(out, "%s | %s\n", user.ID, user.FullName())
			return err
		},
	}

	cmd.Flags().StringVarP(&guild, "guild", "g", "", "guild ID")
	return cmd
}

func (c *cli) inviteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <code>",
		Short: "Resolve an invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invite, err := c.app.client.TryGetInvite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if invite == nil {
				_, err = fmt.Fprintln(out, "Invite not found.")
				return err
			}
			channel := "-"
			if invite.Channel != nil {
				channel = invite.Channel.Name
			}
			_, err = fmt.Fprintf(out, "%s | %s | %s\n", invite.Guild.ID, invite.Guild.Name, channel)
			return err
		},
	}
}
