package simplenote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tonimelisma/notesync/internal/note"
)

// Default endpoints.
const (
	DefaultAPIURL  = "https://app.simplenote.com/api2"
	DefaultAuthURL = "https://app.simplenote.com/api/login"
)

// indexPageSize is the number of resumes requested per index page.
const indexPageSize = 100

// timestamp is a server date. The API sends dates as decimal strings but
// older responses use plain numbers; both decode.
type timestamp float64

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(t), 'f', 6, 64))
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}

	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}

	if s == "" {
		*t = 0
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("simplenote: invalid timestamp %s: %w", b, err)
	}

	*t = timestamp(f)

	return nil
}

// flag is the API's 0/1 boolean.
type flag bool

func (f flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}

	return []byte("0"), nil
}

func (f *flag) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "1", "true":
		*f = true
	case "0", "false", "null":
		*f = false
	default:
		return fmt.Errorf("simplenote: invalid flag %s", b)
	}

	return nil
}

// wireNote is a note as the API sends and receives it.
type wireNote struct {
	Key        string    `json:"key,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Deleted    flag      `json:"deleted"`
	ModifyDate timestamp `json:"modifydate,omitempty"`
	CreateDate timestamp `json:"createdate,omitempty"`
	Version    int       `json:"version,omitempty"`
	SyncNum    int       `json:"syncnum,omitempty"`
	Tags       []string  `json:"tags"`
	SystemTags []string  `json:"systemtags"`
}

func (w *wireNote) toNote() *note.Note {
	n := &note.Note{
		Key:        w.Key,
		Deleted:    bool(w.Deleted),
		ModifyDate: float64(w.ModifyDate),
		CreateDate: float64(w.CreateDate),
		Version:    w.Version,
		Tags:       w.Tags,
		SystemTags: w.SystemTags,
	}

	if w.Content != nil {
		n.Content = *w.Content
	}

	return n
}

func fromNote(n *note.Note) wireNote {
	content := n.Content

	w := wireNote{
		Key:        n.Key,
		Content:    &content,
		Deleted:    flag(n.Deleted),
		ModifyDate: timestamp(n.ModifyDate),
		CreateDate: timestamp(n.CreateDate),
		Version:    n.Version,
		Tags:       n.Tags,
		SystemTags: n.SystemTags,
	}

	if w.Tags == nil {
		w.Tags = []string{}
	}

	if w.SystemTags == nil {
		w.SystemTags = []string{}
	}

	return w
}

// indexPage is one page of the note index.
type indexPage struct {
	Count int        `json:"count"`
	Data  []wireNote `json:"data"`
	Mark  string     `json:"mark"`
}

// GetNote downloads a note with its content.
func (c *Client) GetNote(ctx context.Context, key string) (*note.Note, error) {
	var w wireNote
	if err := c.doJSON(ctx, "get note", http.MethodGet, "/data/"+url.PathEscape(key), nil, nil, &w); err != nil {
		return nil, err
	}

	return w.toNote(), nil
}

// GetNoteList downloads the resumes of every note, following index pages.
// Trashed notes are included with Deleted set.
func (c *Client) GetNoteList(ctx context.Context) ([]note.Resume, error) {
	var (
		resumes []note.Resume
		mark    string
	)

	for {
		q := url.Values{"length": {strconv.Itoa(indexPageSize)}}
		if mark != "" {
			q.Set("mark", mark)
		}

		var page indexPage
		if err := c.doJSON(ctx, "list notes", http.MethodGet, "/index", q, nil, &page); err != nil {
			return nil, err
		}

		for i := range page.Data {
			resumes = append(resumes, page.Data[i].toNote().Resume())
		}

		c.logger.Debug("note index page",
			slog.Int("entries", len(page.Data)),
			slog.Bool("more", page.Mark != ""),
		)

		if page.Mark == "" || page.Mark == mark {
			return resumes, nil
		}

		mark = page.Mark
	}
}

// AddNote creates a note with content.
func (c *Client) AddNote(ctx context.Context, content string) (*note.Note, error) {
	now := note.Timestamp(c.nowFunc())

	return c.post(ctx, "add note", "/data", &note.Note{Content: content, CreateDate: now, ModifyDate: now})
}

// UpdateNote pushes n. The response carries the server's metadata and,
// when the server merged changes, the merged content.
func (c *Client) UpdateNote(ctx context.Context, n *note.Note) (*note.Note, error) {
	if n.Key == "" {
		return nil, errors.New("simplenote: update note: missing key")
	}

	return c.post(ctx, "update note", "/data/"+url.PathEscape(n.Key), n)
}

// TrashNote moves a note to the trash.
func (c *Client) TrashNote(ctx context.Context, key string) error {
	body, err := json.Marshal(struct {
		Deleted    flag      `json:"deleted"`
		ModifyDate timestamp `json:"modifydate"`
	}{Deleted: true, ModifyDate: timestamp(note.Timestamp(c.nowFunc()))})
	if err != nil {
		return fmt.Errorf("simplenote: trash note: encoding: %w", err)
	}

	var w wireNote

	return c.doJSON(ctx, "trash note", http.MethodPost, "/data/"+url.PathEscape(key), nil, body, &w)
}

func (c *Client) post(ctx context.Context, op, path string, n *note.Note) (*note.Note, error) {
	body, err := json.Marshal(fromNote(n))
	if err != nil {
		return nil, fmt.Errorf("simplenote: %s: encoding: %w", op, err)
	}

	var w wireNote
	if err := c.doJSON(ctx, op, http.MethodPost, path, nil, body, &w); err != nil {
		return nil, err
	}

	return w.toNote(), nil
}

// doJSON performs a request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body []byte, out any) error {
	resp, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("simplenote: %s: reading response: %w", op, err)
	}

	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return &APIError{Op: op, Code: resp.StatusCode, Message: err.Error(), Err: ErrUnexpected}
	}

	return nil
}
