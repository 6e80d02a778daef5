package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cexll/structgen/pkg/message"
)

var (
	// ErrInvalidID reports a conversation id unusable as a file name.
	ErrInvalidID = errors.New("session: invalid conversation id")
	// ErrClosed reports use of a closed journal.
	ErrClosed = errors.New("session: journal closed")
)

// Journal is an append-only JSONL transcript for one conversation. Each
// line is one message with its append timestamp. Every append is fsynced;
// a torn final line from a crash is truncated away on reopen.
type Journal struct {
	id   string
	path string

	mu       sync.Mutex
	file     *os.File
	messages []message.Message
	closed   bool
	now      func() time.Time
}

type record struct {
	At      time.Time       `json:"at"`
	Message message.Message `json:"message"`
}

// Open creates or reopens the journal for id under root. An empty id
// allocates a fresh conversation id.
func Open(id, root string) (*Journal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("session: mkdir %s: %w", root, err)
	}
	path := filepath.Join(root, id+".jsonl")

	msgs, validLen, err := replay(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	if err := file.Truncate(validLen); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("session: truncate torn tail: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("session: seek: %w", err)
	}

	return &Journal{
		id:       id,
		path:     path,
		file:     file,
		messages: msgs,
		now:      time.Now,
	}, nil
}

// replay reads every complete line and reports the byte length of the
// valid prefix. A final line that does not parse, or that lacks its
// newline, is treated as torn.
func replay(path string) ([]message.Message, int64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("session: read %s: %w", path, err)
	}

	var msgs []message.Message
	var validLen int64
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	offset := int64(0)
	for scanner.Scan() {
		line := scanner.Bytes()
		lineLen := int64(len(line)) + 1
		if offset+lineLen > int64(len(data)) {
			// Last line has no trailing newline: a torn append.
			break
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			break
		}
		msgs = append(msgs, rec.Message)
		offset += lineLen
		validLen = offset
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("session: scan %s: %w", path, err)
	}
	return msgs, validLen, nil
}

// ID returns the conversation id.
func (j *Journal) ID() string { return j.id }

// Append durably writes one message to the transcript.
func (j *Journal) Append(msg message.Message) error {
	return j.AppendAll(msg)
}

// AppendAll durably writes a batch of messages, typically one committed
// generation turn. The batch is written and synced as a unit.
func (j *Journal) AppendAll(msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	var buf bytes.Buffer
	at := j.now().UTC()
	for _, msg := range msgs {
		line, err := json.Marshal(record{At: at, Message: msg})
		if err != nil {
			return fmt.Errorf("session: marshal message: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if _, err := j.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("session: append: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("session: sync: %w", err)
	}
	j.messages = append(j.messages, msgs...)
	return nil
}

// Snapshot returns a copy of the transcript.
func (j *Journal) Snapshot() []message.Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]message.Message, len(j.messages))
	copy(out, j.messages)
	return out
}

// Len returns the number of persisted messages.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.messages)
}

// History builds an in-memory history seeded from the transcript.
func (j *Journal) History() *message.History {
	return message.NewHistory(j.Snapshot()...)
}

// Close releases the underlying file. Further appends fail with ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
