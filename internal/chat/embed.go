package chat

// Embed is the rich card attached to a message.
type Embed struct {
	Title       string
	Description string
	Color       int
	Thumbnail   string
	Author      *EmbedAuthor
	Footer      string
	Fields      []EmbedField
}

// EmbedAuthor is the author line of an embed. The URL carries entity state.
type EmbedAuthor struct {
	Name    string
	IconURL string
	URL     string
}

// EmbedField is one name/value block.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// AddField appends a field and returns the embed for chaining.
func (e *Embed) AddField(name, value string, inline bool) *Embed {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	return e
}

// AuthorURL returns the author link or "".
func (e *Embed) AuthorURL() string {
	if e == nil || e.Author == nil {
		return ""
	}
	return e.Author.URL
}

// Clone returns a deep copy.
func (e *Embed) Clone() *Embed {
	if e == nil {
		return nil
	}
	c := *e
	if e.Author != nil {
		a := *e.Author
		c.Author = &a
	}
	c.Fields = append([]EmbedField(nil), e.Fields...)
	return &c
}
