package domain

// ChannelKind — тип канала в терминах удаленного сервиса.
type ChannelKind int

const (
	ChannelKindGuildTextChat       ChannelKind = 0
	ChannelKindDirectTextChat      ChannelKind = 1
	ChannelKindGuildVoiceChat      ChannelKind = 2
	ChannelKindDirectGroupTextChat ChannelKind = 3
	ChannelKindGuildCategory       ChannelKind = 4
	ChannelKindGuildNews           ChannelKind = 5
	ChannelKindGuildNewsThread     ChannelKind = 10
	ChannelKindGuildPublicThread   ChannelKind = 11
	ChannelKindGuildPrivateThread  ChannelKind = 12
	ChannelKindGuildStageVoice     ChannelKind = 13
	ChannelKindGuildDirectory      ChannelKind = 14
	ChannelKindGuildForum          ChannelKind = 15
)

// IsThread сообщает, является ли канал веткой.
func (k ChannelKind) IsThread() bool {
	switch k {
	case ChannelKindGuildNewsThread, ChannelKindGuildPublicThread, ChannelKindGuildPrivateThread:
		return true
	default:
		return false
	}
}

// IsVoice сообщает, является ли канал голосовым.
func (k ChannelKind) IsVoice() bool {
	return k == ChannelKindGuildVoiceChat || k == ChannelKindGuildStageVoice
}

// IsDirect сообщает, является ли канал личной или групповой перепиской.
func (k ChannelKind) IsDirect() bool {
	return k == ChannelKindDirectTextChat || k == ChannelKindDirectGroupTextChat
}

// IsCategory сообщает, является ли канал категорией.
func (k ChannelKind) IsCategory() bool {
	return k == ChannelKindGuildCategory
}

func (k ChannelKind) String() string {
	switch k {
	case ChannelKindGuildTextChat:
		return "text"
	case ChannelKindDirectTextChat:
		return "dm"
	case ChannelKindGuildVoiceChat:
		return "voice"
	case ChannelKindDirectGroupTextChat:
		return "group_dm"
	case ChannelKindGuildCategory:
		return "category"
	case ChannelKindGuildNews:
		return "news"
	case ChannelKindGuildNewsThread:
		return "news_thread"
	case ChannelKindGuildPublicThread:
		return "public_thread"
	case ChannelKindGuildPrivateThread:
		return "private_thread"
	case ChannelKindGuildStageVoice:
		return "stage"
	case ChannelKindGuildDirectory:
		return "directory"
	case ChannelKindGuildForum:
		return "forum"
	default:
		return "unknown"
	}
}

// Channel представляет канал или ветку.
//
// Родитель хранится как слабая ссылка: ParentID всегда заполнен, если сервис его сообщил,
// а Parent заполняется только если родителя удалось найти в индексе текущего обхода.
// ParentID != 0 при Parent == nil — штатное состояние "родитель не разрешен".
type Channel struct {
	ID            Snowflake   `json:"id"`
	Kind          ChannelKind `json:"kind"`
	GuildID       Snowflake   `json:"guild_id"`
	ParentID      Snowflake   `json:"parent_id,omitempty"`
	Parent        *Channel    `json:"parent,omitempty"`
	Name          string      `json:"name"`
	Topic         string      `json:"topic,omitempty"`
	Position      int         `json:"position"`
	IconURL       string      `json:"icon_url,omitempty"`
	IsArchived    bool        `json:"is_archived,omitempty"`
	LastMessageID Snowflake   `json:"last_message_id,omitempty"`
}

// HasParent сообщает, объявил ли сервис родителя у канала.
func (c Channel) HasParent() bool {
	return !c.ParentID.IsZero()
}

// IsParentResolved сообщает, найден ли объявленный родитель.
func (c Channel) IsParentResolved() bool {
	return c.Parent != nil
}

// ParentNameWithFallback возвращает имя родителя или заглушку, если родителя нет.
func (c Channel) ParentNameWithFallback() string {
	switch {
	case c.Parent != nil:
		return c.Parent.Name
	case c.Kind.IsDirect():
		return "Private"
	case c.HasParent():
		return "Unknown"
	default:
		return "Default"
	}
}

// IsEmpty сообщает, что в канале заведомо нет сообщений.
func (c Channel) IsEmpty() bool {
	return c.LastMessageID.IsZero()
}

// MayHaveMessagesAfter сообщает, могут ли в канале быть сообщения позже указанной границы.
func (c Channel) MayHaveMessagesAfter(after Snowflake) bool {
	return !c.IsEmpty() && c.LastMessageID > after
}

// ChannelNode — канал вместе с найденными в нем ветками, для вывода списков.
type ChannelNode struct {
	Channel Channel   `json:"channel"`
	Threads []Channel `json:"threads,omitempty"`
}
