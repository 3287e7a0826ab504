// Package discordtest содержит фейковый сервер удаленного API для тестов клиента.
package discordtest

import (
	"cmp"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"discord-chat-exporter/internal/domain"
)

// APIPrefix — путь, под которым смонтированы маршруты.
const APIPrefix = "/api/v10"

// SearchPageSize — размер страницы поиска веток.
const SearchPageSize = 25

// Kind — схема авторизации, которую принимает сервер.
type Kind int

const (
	// UserToken — сервер принимает токен без префикса.
	UserToken Kind = iota
	// BotToken — сервер принимает токен с префиксом "Bot ".
	BotToken
)

// User описывает пользователя в формате API.
type User struct {
	ID         domain.Snowflake `json:"id"`
	Username   string           `json:"username"`
	GlobalName string           `json:"global_name,omitempty"`
	Bot        bool             `json:"bot,omitempty"`
}

type Guild struct {
	ID   domain.Snowflake `json:"id"`
	Name string           `json:"name"`
}

type ThreadMetadata struct {
	Archived bool `json:"archived"`
}

// Channel описывает канал или ветку в формате API.
type Channel struct {
	ID             domain.Snowflake   `json:"id"`
	Type           domain.ChannelKind `json:"type"`
	GuildID        domain.Snowflake   `json:"guild_id,omitempty"`
	ParentID       domain.Snowflake   `json:"parent_id,omitempty"`
	Name           string             `json:"name,omitempty"`
	Position       int                `json:"position"`
	Recipients     []User             `json:"recipients,omitempty"`
	ThreadMetadata *ThreadMetadata    `json:"thread_metadata,omitempty"`
}

type Message struct {
	ID        domain.Snowflake `json:"id"`
	ChannelID domain.Snowflake `json:"channel_id"`
	Author    User             `json:"author"`
	Timestamp time.Time        `json:"timestamp"`
	Content   string           `json:"content"`
}

type Role struct {
	ID       domain.Snowflake `json:"id"`
	Name     string           `json:"name"`
	Position int              `json:"position"`
}

type Member struct {
	User  User               `json:"user"`
	Nick  string             `json:"nick,omitempty"`
	Roles []domain.Snowflake `json:"roles"`
}

type Invite struct {
	Code    string   `json:"code"`
	Guild   *Guild   `json:"guild,omitempty"`
	Channel *Channel `json:"channel,omitempty"`
}

type threadList struct {
	Threads []Channel `json:"threads"`
	HasMore bool      `json:"has_more"`
}

// Request хранит запрос, полученный сервером.
type Request struct {
	Path          string
	Query         url.Values
	Authorization string
}

type statusOverride struct {
	status    int
	body      string
	remaining int
}

// Server — фейковый API. Данные задаются методами Add*/Set*, маршруты отвечают
// так же, как настоящий сервис, в том числе по порядку элементов в страницах.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	token string
	kind  Kind

	me         User
	users      map[domain.Snowflake]User
	guilds     []Guild
	channels   map[domain.Snowflake][]Channel
	dmChannels []Channel
	roles      map[domain.Snowflake][]Role
	members    map[domain.Snowflake]map[domain.Snowflake]Member
	invites    map[string]Invite
	messages   map[domain.Snowflake][]Message
	reactions  map[string][]User

	activeThreads   map[domain.Snowflake][]Channel
	archivedThreads map[string][]Channel
	searchThreads   map[string][]Channel

	overrides map[string]*statusOverride
	rateLimit http.Header
	requests  []Request
}

// NewServer запускает фейковый сервер, принимающий token по схеме kind.
// Сервер нужно закрыть через Close.
func NewServer(token string, kind Kind) *Server {
	s := &Server{
		token:           token,
		kind:            kind,
		me:              User{ID: 1, Username: "me"},
		users:           make(map[domain.Snowflake]User),
		channels:        make(map[domain.Snowflake][]Channel),
		roles:           make(map[domain.Snowflake][]Role),
		members:         make(map[domain.Snowflake]map[domain.Snowflake]Member),
		invites:         make(map[string]Invite),
		messages:        make(map[domain.Snowflake][]Message),
		reactions:       make(map[string][]User),
		activeThreads:   make(map[domain.Snowflake][]Channel),
		archivedThreads: make(map[string][]Channel),
		searchThreads:   make(map[string][]Channel),
		overrides:       make(map[string]*statusOverride),
		rateLimit:       make(http.Header),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL возвращает базовый адрес API для клиента.
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix + "/"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.applyRateLimit, s.authorize, s.applyOverrides)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/users/@me", s.handleMe)
		r.Get("/users/@me/guilds", s.handleUserGuilds)
		r.Get("/users/@me/channels", s.handleDMChannels)
		r.Get("/users/{userID}", s.handleUser)

		r.Get("/guilds/{guildID}", s.handleGuild)
		r.Get("/guilds/{guildID}/channels", s.handleGuildChannels)
		r.Get("/guilds/{guildID}/roles", s.handleGuildRoles)
		r.Get("/guilds/{guildID}/members/{userID}", s.handleGuildMember)
		r.Get("/guilds/{guildID}/threads/active", s.handleActiveThreads)

		r.Get("/channels/{channelID}", s.handleChannel)
		r.Get("/channels/{channelID}/threads/search", s.handleThreadSearch)
		r.Get("/channels/{channelID}/threads/archived/{visibility}", s.handleArchivedThreads)
		r.Get("/channels/{channelID}/messages", s.handleMessages)
		r.Get("/channels/{channelID}/messages/{messageID}/reactions/{emoji}", s.handleReactions)

		r.Get("/invites/{code}", s.handleInvite)
	})

	return r
}

// Настройка данных.

// SetMe задает пользователя, которому принадлежит токен.
func (s *Server) SetMe(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.me = u
}

// AddUser добавляет пользователя.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddGuild добавляет сервер.
func (s *Server) AddGuild(g Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds = append(s.guilds, g)
	slices.SortFunc(s.guilds, func(a, b Guild) int { return cmp.Compare(a.ID, b.ID) })
}

// AddChannels добавляет каналы сервера в порядке, в котором их вернет сервис.
func (s *Server) AddChannels(guildID domain.Snowflake, channels ...Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		ch.GuildID = guildID
		s.channels[guildID] = append(s.channels[guildID], ch)
	}
}

// AddDMChannels добавляет личные переписки.
func (s *Server) AddDMChannels(channels ...Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dmChannels = append(s.dmChannels, channels...)
}

// AddRoles добавляет роли сервера.
func (s *Server) AddRoles(guildID domain.Snowflake, roles ...Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[guildID] = append(s.roles[guildID], roles...)
}

// AddMember добавляет участника сервера.
func (s *Server) AddMember(guildID domain.Snowflake, m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[guildID] == nil {
		s.members[guildID] = make(map[domain.Snowflake]Member)
	}
	s.members[guildID][m.User.ID] = m
}

// AddInvite добавляет приглашение.
func (s *Server) AddInvite(inv Invite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[inv.Code] = inv
}

// AddMessages добавляет сообщения канала. Нулевое время заменяется временем из идентификатора.
func (s *Server) AddMessages(channelID domain.Snowflake, msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		m.ChannelID = channelID
		if m.Timestamp.IsZero() {
			m.Timestamp = m.ID.Time()
		}
		s.messages[channelID] = append(s.messages[channelID], m)
	}
	slices.SortFunc(s.messages[channelID], func(a, b Message) int { return cmp.Compare(a.ID, b.ID) })
}

// SetReactionUsers задает пользователей реакции emoji (имя или имя:id) на сообщение.
func (s *Server) SetReactionUsers(channelID, messageID domain.Snowflake, emoji string, users ...User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := slices.Clone(users)
	slices.SortFunc(sorted, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	s.reactions[reactionKey(channelID, messageID, emoji)] = sorted
}

// SetActiveThreads задает активные ветки сервера (список для токена бота).
func (s *Server) SetActiveThreads(guildID domain.Snowflake, threads ...Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeThreads[guildID] = threads
}

// SetArchivedThreads задает архивные ветки канала; visibility — "public" или "private".
// Канал без заданного списка отвечает 404.
func (s *Server) SetArchivedThreads(channelID domain.Snowflake, visibility string, threads ...Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archivedThreads[channelID.String()+"/"+visibility] = threads
}

// SetSearchThreads задает результаты поиска веток канала (для пользовательского токена).
// Канал без заданных результатов отвечает 404.
func (s *Server) SetSearchThreads(channelID domain.Snowflake, archived bool, threads ...Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchThreads[channelID.String()+"/"+strconv.FormatBool(archived)] = threads
}

// SetStatus заставляет запросы к path (без префикса API, например "channels/5") отвечать status.
// times < 0 — всегда, иначе только ближайшие times запросов.
func (s *Server) SetStatus(path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[strings.Trim(path, "/")] = &statusOverride{status: status, remaining: times}
}

// SetRawResponse заставляет запросы к path всегда отвечать 200 с телом body как есть.
func (s *Server) SetRawResponse(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[strings.Trim(path, "/")] = &statusOverride{status: http.StatusOK, body: body, remaining: -1}
}

// SetRateLimit задает заголовки ограничения частоты для всех последующих ответов.
// Пустое значение убирает заголовок.
func (s *Server) SetRateLimit(remaining, resetAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit = make(http.Header)
	if remaining != "" {
		s.rateLimit.Set("X-RateLimit-Remaining", remaining)
	}
	if resetAfter != "" {
		s.rateLimit.Set("X-RateLimit-Reset-After", resetAfter)
	}
}

// Requests возвращает копию журнала запросов.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// RequestsTo возвращает запросы к path (без префикса API).
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == strings.Trim(path, "/") {
			out = append(out, r)
		}
	}
	return out
}

// Middleware.

func apiPath(r *http.Request) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, APIPrefix), "/")
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Path:          apiPath(r),
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) applyRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		for k, v := range s.rateLimit {
			w.Header()[k] = slices.Clone(v)
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.token
		if s.kind == BotToken {
			want = "Bot " + s.token
		}
		if r.Header.Get("Authorization") != want {
			writeError(w, http.StatusUnauthorized, "401: Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) applyOverrides(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		o, ok := s.overrides[apiPath(r)]
		var active statusOverride
		if ok && o.remaining != 0 {
			active = *o
			if o.remaining > 0 {
				o.remaining--
			}
		}
		s.mu.Unlock()

		switch {
		case active.status == 0:
		case active.body != "":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(active.status)
			_, _ = w.Write([]byte(active.body))
			return
		default:
			writeError(w, active.status, http.StatusText(active.status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Обработчики.

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.me)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "userID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[id]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown User")
		return
	}
	writeJSON(w, u)
}

func (s *Server) handleUserGuilds(w http.ResponseWriter, r *http.Request) {
	after, limit := cursorQuery(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	page := make([]Guild, 0, limit)
	for _, g := range s.guilds {
		if g.ID > after && len(page) < limit {
			page = append(page, g)
		}
	}
	writeJSON(w, page)
}

func (s *Server) handleDMChannels(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, nonNil(s.dmChannels))
}

func (s *Server) handleGuild(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "guildID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.guilds {
		if g.ID == id {
			writeJSON(w, g)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Unknown Guild")
}

func (s *Server) handleGuildChannels(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "guildID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	channels, found := s.channels[id]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown Guild")
		return
	}
	writeJSON(w, channels)
}

func (s *Server) handleGuildRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "guildID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, nonNil(s.roles[id]))
}

func (s *Server) handleGuildMember(w http.ResponseWriter, r *http.Request) {
	guildID, ok := snowflakeParam(w, r, "guildID")
	if !ok {
		return
	}
	userID, ok := snowflakeParam(w, r, "userID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, found := s.members[guildID][userID]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown Member")
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleActiveThreads(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "guildID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, threadList{Threads: nonNil(s.activeThreads[id])})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "channelID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, channels := range s.channels {
		for _, ch := range channels {
			if ch.ID == id {
				writeJSON(w, ch)
				return
			}
		}
	}
	for _, ch := range s.dmChannels {
		if ch.ID == id {
			writeJSON(w, ch)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Unknown Channel")
}

func (s *Server) handleThreadSearch(w http.ResponseWriter, r *http.Request) {
	archived := r.URL.Query().Get("archived")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	s.mu.Lock()
	defer s.mu.Unlock()
	threads, found := s.searchThreads[chi.URLParam(r, "channelID")+"/"+archived]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown Channel")
		return
	}

	offset = min(max(offset, 0), len(threads))
	end := min(offset+SearchPageSize, len(threads))
	writeJSON(w, threadList{
		Threads: nonNil(threads[offset:end]),
		HasMore: end < len(threads),
	})
}

func (s *Server) handleArchivedThreads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, found := s.archivedThreads[chi.URLParam(r, "channelID")+"/"+chi.URLParam(r, "visibility")]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown Channel")
		return
	}
	writeJSON(w, threadList{Threads: nonNil(threads)})
}

// handleMessages отдает страницу сообщений от новых к старым, как настоящий сервис:
// с before — последние limit сообщений до курсора, с after — первые limit после курсора,
// без курсора — последние limit сообщений канала.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := snowflakeParam(w, r, "channelID")
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := queryLimit(q)

	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[id]

	var page []Message
	switch {
	case q.Has("before"):
		before, _ := domain.ParseSnowflake(q.Get("before"))
		var older []Message
		for _, m := range all {
			if m.ID < before {
				older = append(older, m)
			}
		}
		page = older[max(len(older)-limit, 0):]
	case q.Has("after"):
		after, _ := domain.ParseSnowflake(q.Get("after"))
		for _, m := range all {
			if m.ID > after && len(page) < limit {
				page = append(page, m)
			}
		}
	default:
		page = all[max(len(all)-limit, 0):]
	}

	page = slices.Clone(page)
	slices.Reverse(page)
	writeJSON(w, nonNil(page))
}

func (s *Server) handleReactions(w http.ResponseWriter, r *http.Request) {
	channelID, ok := snowflakeParam(w, r, "channelID")
	if !ok {
		return
	}
	messageID, ok := snowflakeParam(w, r, "messageID")
	if !ok {
		return
	}
	emoji, err := url.PathUnescape(chi.URLParam(r, "emoji"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid emoji")
		return
	}
	after, limit := cursorQuery(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	users, found := s.reactions[reactionKey(channelID, messageID, emoji)]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown Emoji")
		return
	}

	page := make([]User, 0, limit)
	for _, u := range users {
		if u.ID > after && len(page) < limit {
			page = append(page, u)
		}
	}
	writeJSON(w, page)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, found := s.invites[chi.URLParam(r, "code")]
	if !found {
		writeError(w, http.StatusNotFound, "Unknown Invite")
		return
	}
	writeJSON(w, inv)
}

// Вспомогательные функции.

func reactionKey(channelID, messageID domain.Snowflake, emoji string) string {
	return channelID.String() + "/" + messageID.String() + "/" + emoji
}

func snowflakeParam(w http.ResponseWriter, r *http.Request, name string) (domain.Snowflake, bool) {
	id, err := domain.ParseSnowflake(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func cursorQuery(r *http.Request) (domain.Snowflake, int) {
	q := r.URL.Query()
	after, _ := domain.ParseSnowflake(q.Get("after"))
	return after, queryLimit(q)
}

func queryLimit(q url.Values) int {
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": message, "code": 0})
}
