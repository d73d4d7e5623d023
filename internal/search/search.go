package search

// Result is a single message hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	GuildID   string `json:"guildId"`
	AuthorID  string `json:"authorId"`
	Snippet   string `json:"snippet"`
}

// Query describes a message search request.
type Query struct {
	Text            string
	FilterGuildID   string // empty = all guilds
	FilterChannelID string // empty = all channels
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over messages.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push messages into a search index.
type Indexer interface {
	IndexMessage(m MessageRecord) error
	DeleteMessage(id string) error
}

// MessageRecord is the data we index for a message.
type MessageRecord struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	GuildID   string `json:"guildId"`
	AuthorID  string `json:"authorId"`
	Content   string `json:"content"`
}
