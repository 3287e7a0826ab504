package domain

import "fmt"

// Guild представляет сервер (или псевдо-сервер личных сообщений).
type Guild struct {
	ID      Snowflake `json:"id"`
	Name    string    `json:"name"`
	IconURL string    `json:"icon_url,omitempty"`
}

// DirectMessages — псевдо-сервер, объединяющий личные и групповые переписки.
var DirectMessages = Guild{
	ID:   ZeroSnowflake,
	Name: "Direct Messages",
}

// IsDirect сообщает, является ли сервер псевдо-сервером личных сообщений.
func (g Guild) IsDirect() bool {
	return g.ID == DirectMessages.ID
}

// User представляет пользователя удаленного сервиса.
type User struct {
	ID            Snowflake `json:"id"`
	IsBot         bool      `json:"is_bot"`
	Discriminator int       `json:"discriminator,omitempty"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
}

// FullName возвращает имя с дискриминатором, если он есть.
func (u User) FullName() string {
	if u.Discriminator == 0 {
		return u.Name
	}
	return fmt.Sprintf("%s#%04d", u.Name, u.Discriminator)
}

// Member представляет участника сервера.
type Member struct {
	User    User        `json:"user"`
	GuildID Snowflake   `json:"guild_id"`
	Nick    string      `json:"nick,omitempty"`
	RoleIDs []Snowflake `json:"role_ids,omitempty"`
}

// DisplayName возвращает ник на сервере, отображаемое имя или имя пользователя.
func (m Member) DisplayName() string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User.DisplayName != "":
		return m.User.DisplayName
	default:
		return m.User.Name
	}
}

// Role представляет роль на сервере.
type Role struct {
	ID       Snowflake `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Color    int       `json:"color,omitempty"`
}

// Invite представляет приглашение.
type Invite struct {
	Code    string   `json:"code"`
	Guild   Guild    `json:"guild"`
	Channel *Channel `json:"channel,omitempty"`
}

// Emoji представляет стандартный или пользовательский эмодзи.
type Emoji struct {
	// ID равен нулю для стандартных эмодзи.
	ID         Snowflake `json:"id,omitempty"`
	Name       string    `json:"name"`
	IsAnimated bool      `json:"is_animated,omitempty"`
}

// IsCustom сообщает, является ли эмодзи пользовательским.
func (e Emoji) IsCustom() bool {
	return !e.ID.IsZero()
}

// ReactionName возвращает идентичность эмодзи для пути запроса реакций:
// name для стандартных и name:id для пользовательских.
func (e Emoji) ReactionName() string {
	if e.IsCustom() {
		return e.Name + ":" + e.ID.String()
	}
	return e.Name
}
