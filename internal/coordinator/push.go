package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gazecue/internal/domain"
	"gazecue/internal/log"
)

// PushConfig controls the websocket instruction feed.
type PushConfig struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

// PushFeed implements ports.InstructionSource over a websocket. The
// coordinator pushes instruction payloads; the feed keeps only the most
// recent one and hands it out on the next NextInstruction call. An empty slot
// answers wait.
type PushFeed struct {
	cfg    PushConfig
	logger zerolog.Logger

	mu     sync.Mutex
	stream *pushStream
}

func NewPushFeed(cfg PushConfig) *PushFeed {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &PushFeed{
		cfg:    cfg,
		logger: cfg.Logger.With().Str(log.FieldComponent, "push_feed").Logger(),
	}
}

// NextInstruction connects on first use for studentID and redials after the
// previous connection failed.
func (f *PushFeed) NextInstruction(ctx context.Context, studentID string) (domain.Instruction, error) {
	f.mu.Lock()
	stream := f.stream
	if stream != nil && stream.studentID != studentID {
		f.stream = nil
		f.mu.Unlock()
		_ = stream.close()
		f.mu.Lock()
		stream = nil
	}
	if stream == nil {
		dialed, err := f.dial(ctx, studentID)
		if err != nil {
			f.mu.Unlock()
			return domain.Instruction{}, err
		}
		if err := ctx.Err(); err != nil {
			// Session ended mid-dial.
			f.mu.Unlock()
			_ = dialed.close()
			return domain.Instruction{}, err
		}
		f.stream = dialed
		stream = dialed
	}
	f.mu.Unlock()

	if instruction, ok := stream.take(); ok {
		return instruction, nil
	}

	select {
	case <-stream.done:
		f.mu.Lock()
		if f.stream == stream {
			f.stream = nil
		}
		f.mu.Unlock()
		if err := stream.waitErr(); err != nil {
			return domain.Instruction{}, err
		}
		return domain.Instruction{}, errors.New("instruction feed closed")
	default:
	}
	return domain.Instruction{Kind: domain.InstructionWait}, nil
}

// ResetSession drops the connection and any instruction it buffered. The next
// NextInstruction call dials afresh, so pushes received between sessions are
// never handed to a new session.
func (f *PushFeed) ResetSession() {
	_ = f.Close()
}

// Close drops the current connection and waits for its reader to exit.
func (f *PushFeed) Close() error {
	f.mu.Lock()
	stream := f.stream
	f.stream = nil
	f.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.close()
}

func (f *PushFeed) dial(ctx context.Context, studentID string) (*pushStream, error) {
	feedURL, err := buildFeedURL(f.cfg.URL, studentID)
	if err != nil {
		return nil, err
	}

	conn, _, err := f.cfg.Dialer.DialContext(ctx, feedURL, f.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to instruction feed: %w", err)
	}
	f.logger.Info().Str(log.FieldStudentID, studentID).Msg("instruction feed connected")

	stream := &pushStream{
		conn:      conn,
		studentID: studentID,
		logger:    f.logger,
		done:      make(chan struct{}),
	}
	go stream.readLoop()
	return stream, nil
}

type pushStream struct {
	conn      *websocket.Conn
	studentID string
	logger    zerolog.Logger
	done      chan struct{}

	mu     sync.Mutex
	latest *domain.Instruction
	err    error

	closeOnce sync.Once
}

func (s *pushStream) take() (domain.Instruction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return domain.Instruction{}, false
	}
	instruction := *s.latest
	s.latest = nil
	return instruction, true
}

func (s *pushStream) store(instruction domain.Instruction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &instruction
}

func (s *pushStream) close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *pushStream) waitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *pushStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *pushStream) readLoop() {
	defer close(s.done)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read instruction feed: %w", err))
			return
		}

		var message instructionPayload
		if err := json.Unmarshal(payload, &message); err != nil {
			s.logger.Debug().Err(err).Msg("ignoring malformed feed message")
			continue
		}
		instruction, err := message.instruction()
		if err != nil {
			s.logger.Warn().Err(err).Msg("ignoring feed message")
			continue
		}
		if instruction.Kind == domain.InstructionWait {
			continue
		}
		s.store(instruction)
	}
}

func buildFeedURL(base, studentID string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("instruction feed URL is not configured")
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	feedURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid instruction feed URL: %w", err)
	}
	query := feedURL.Query()
	query.Set("student_id", studentID)
	feedURL.RawQuery = query.Encode()
	return feedURL.String(), nil
}
