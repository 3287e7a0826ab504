package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"discord-chat-exporter/internal/domain"
)

const cdnBaseURL = "https://cdn.discordapp.com"

// Формы JSON-ответов удаленного сервиса. Преобразуются в доменные значения сразу после разбора.

type userJSON struct {
	ID            domain.Snowflake `json:"id"`
	Bot           bool             `json:"bot"`
	Discriminator string           `json:"discriminator"`
	Username      string           `json:"username"`
	GlobalName    string           `json:"global_name"`
	Avatar        string           `json:"avatar"`
}

func (u userJSON) toDomain() domain.User {
	discriminator, _ := strconv.Atoi(u.Discriminator)

	user := domain.User{
		ID:            u.ID,
		IsBot:         u.Bot,
		Discriminator: discriminator,
		Name:          u.Username,
		DisplayName:   u.GlobalName,
	}
	if u.Avatar != "" {
		user.AvatarURL = fmt.Sprintf("%s/avatars/%s/%s.png", cdnBaseURL, u.ID, u.Avatar)
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Name
	}
	return user
}

type guildJSON struct {
	ID   domain.Snowflake `json:"id"`
	Name string           `json:"name"`
	Icon string           `json:"icon"`
}

func (g guildJSON) toDomain() domain.Guild {
	guild := domain.Guild{ID: g.ID, Name: g.Name}
	if g.Icon != "" {
		guild.IconURL = fmt.Sprintf("%s/icons/%s/%s.png", cdnBaseURL, g.ID, g.Icon)
	}
	return guild
}

type threadMetadataJSON struct {
	Archived bool `json:"archived"`
}

type channelJSON struct {
	ID             domain.Snowflake    `json:"id"`
	Type           domain.ChannelKind  `json:"type"`
	GuildID        domain.Snowflake    `json:"guild_id"`
	ParentID       domain.Snowflake    `json:"parent_id"`
	Name           string              `json:"name"`
	Topic          string              `json:"topic"`
	Position       int                 `json:"position"`
	Icon           string              `json:"icon"`
	LastMessageID  domain.Snowflake    `json:"last_message_id"`
	Recipients     []userJSON          `json:"recipients"`
	ThreadMetadata *threadMetadataJSON `json:"thread_metadata"`
}

// toChannel строит доменный канал. parent может быть nil, даже если ParentID задан:
// это означает, что родитель не разрешен.
func (j channelJSON) toChannel(parent *domain.Channel, position int) domain.Channel {
	ch := domain.Channel{
		ID:            j.ID,
		Kind:          j.Type,
		GuildID:       j.GuildID,
		ParentID:      j.ParentID,
		Parent:        parent,
		Name:          j.displayName(),
		Topic:         j.Topic,
		Position:      position,
		LastMessageID: j.LastMessageID,
	}
	if parent != nil && ch.ParentID.IsZero() {
		ch.ParentID = parent.ID
	}
	if j.ThreadMetadata != nil {
		ch.IsArchived = j.ThreadMetadata.Archived
	}
	if j.Icon != "" {
		ch.IconURL = fmt.Sprintf("%s/channel-icons/%s/%s.png", cdnBaseURL, j.ID, j.Icon)
	}
	return ch
}

func (j channelJSON) displayName() string {
	if j.Name != "" {
		return j.Name
	}

	if len(j.Recipients) > 0 {
		names := make([]string, 0, len(j.Recipients))
		for _, r := range j.Recipients {
			names = append(names, r.toDomain().DisplayName)
		}
		return strings.Join(names, ", ")
	}

	return j.ID.String()
}

// threadListJSON — обертка ответов поиска и списков веток.
type threadListJSON struct {
	Threads []channelJSON `json:"threads"`
	HasMore bool          `json:"has_more"`
}

type roleJSON struct {
	ID       domain.Snowflake `json:"id"`
	Name     string           `json:"name"`
	Position int              `json:"position"`
	Color    int              `json:"color"`
}

func (r roleJSON) toDomain() domain.Role {
	return domain.Role{ID: r.ID, Name: r.Name, Position: r.Position, Color: r.Color}
}

type memberJSON struct {
	User  userJSON           `json:"user"`
	Nick  string             `json:"nick"`
	Roles []domain.Snowflake `json:"roles"`
}

func (m memberJSON) toDomain(guildID domain.Snowflake) domain.Member {
	return domain.Member{
		User:    m.User.toDomain(),
		GuildID: guildID,
		Nick:    m.Nick,
		RoleIDs: m.Roles,
	}
}

type inviteJSON struct {
	Code    string       `json:"code"`
	Guild   *guildJSON   `json:"guild"`
	Channel *channelJSON `json:"channel"`
}

func (i inviteJSON) toDomain() domain.Invite {
	invite := domain.Invite{Code: i.Code, Guild: domain.DirectMessages}
	if i.Guild != nil {
		invite.Guild = i.Guild.toDomain()
	}
	if i.Channel != nil {
		ch := i.Channel.toChannel(nil, i.Channel.Position)
		invite.Channel = &ch
	}
	return invite
}

type emojiJSON struct {
	ID       domain.Snowflake `json:"id"`
	Name     string           `json:"name"`
	Animated bool             `json:"animated"`
}

type reactionJSON struct {
	Emoji emojiJSON `json:"emoji"`
	Count int       `json:"count"`
}

type attachmentJSON struct {
	ID       domain.Snowflake `json:"id"`
	URL      string           `json:"url"`
	Filename string           `json:"filename"`
	Size     int64            `json:"size"`
}

type messageReferenceJSON struct {
	MessageID domain.Snowflake `json:"message_id"`
}

type messageJSON struct {
	ID               domain.Snowflake      `json:"id"`
	ChannelID        domain.Snowflake      `json:"channel_id"`
	Type             domain.MessageKind    `json:"type"`
	Author           userJSON              `json:"author"`
	Timestamp        time.Time             `json:"timestamp"`
	EditedTimestamp  *time.Time            `json:"edited_timestamp"`
	Pinned           bool                  `json:"pinned"`
	Content          string                `json:"content"`
	Attachments      []attachmentJSON      `json:"attachments"`
	Reactions        []reactionJSON        `json:"reactions"`
	Mentions         []userJSON            `json:"mentions"`
	MessageReference *messageReferenceJSON `json:"message_reference"`
}

func (m messageJSON) toDomain() domain.Message {
	msg := domain.Message{
		ID:              m.ID,
		ChannelID:       m.ChannelID,
		Kind:            m.Type,
		Author:          m.Author.toDomain(),
		Timestamp:       m.Timestamp,
		EditedTimestamp: m.EditedTimestamp,
		IsPinned:        m.Pinned,
		Content:         m.Content,
	}
	// Время создания можно вывести из идентификатора, если сервис его не вернул.
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.ID.Time()
	}
	if m.MessageReference != nil {
		msg.ReferenceID = m.MessageReference.MessageID
	}

	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ID:            a.ID,
			URL:           a.URL,
			FileName:      a.Filename,
			FileSizeBytes: a.Size,
		})
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, domain.Reaction{
			Emoji: domain.Emoji{ID: r.Emoji.ID, Name: r.Emoji.Name, IsAnimated: r.Emoji.Animated},
			Count: r.Count,
		})
	}
	for _, u := range m.Mentions {
		msg.MentionedUsers = append(msg.MentionedUsers, u.toDomain())
	}

	return msg
}
