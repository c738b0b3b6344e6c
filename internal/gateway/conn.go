package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/session"
	"github.com/MrWong99/ordervox/internal/speech"
	"github.com/MrWong99/ordervox/pkg/audio"
)

// ErrDisconnected is returned by the listener once the client has gone.
var ErrDisconnected = errors.New("gateway: client disconnected")

// utterance is one listening result queued by the read loop.
type utterance struct {
	texts []string
	clip  *audio.Clip
	err   error
}

// client is one websocket connection. It is the session's Listener and
// Speaker and the Voice's Sink.
type client struct {
	ws          *websocket.Conn
	transcriber *speech.Transcriber
	speaker     session.Speaker
	cancel      context.CancelFunc

	inbox chan utterance

	// wmu keeps a say frame and its audio frame adjacent.
	wmu sync.Mutex
}

func newClient(ws *websocket.Conn, tr *speech.Transcriber, voice *speech.Voice, cancel context.CancelFunc) *client {
	c := &client{
		ws:          ws,
		transcriber: tr,
		cancel:      cancel,
		inbox:       make(chan utterance, 8),
	}
	if voice != nil {
		c.speaker = voice.Speaker(c)
	}
	return c
}

// readLoop reads client frames until the connection fails or ctx ends. It
// owns inbox. On exit it cancels the session before closing inbox, so a
// listener never mistakes a disconnect for a failure.
func (c *client) readLoop(ctx context.Context) {
	defer func() {
		c.cancel()
		close(c.inbox)
	}()

	log := observe.Logger(ctx)
	var pending *clientFrame
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				log.Debug("gateway: read failed", "err", err)
			}
			return
		}

		if typ == websocket.MessageBinary {
			if pending == nil {
				log.Warn("gateway: binary frame without audio header", "bytes", len(data))
				continue
			}
			u := utterance{}
			clip, err := decodeAudio(*pending, data)
			if err != nil {
				u.err = fmt.Errorf("gateway: decode audio: %w: %w", session.ErrTranscription, err)
			} else {
				u.clip = &clip
			}
			pending = nil
			if !c.push(ctx, u) {
				return
			}
			continue
		}

		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn("gateway: malformed frame", "err", err)
			_ = c.ws.Close(websocket.StatusUnsupportedData, "malformed frame")
			return
		}
		var u utterance
		switch f.Type {
		case frameTranscript:
			u.texts = f.Texts
		case frameAudio:
			pending = &f
			continue
		case frameError:
			u.err = errorForKind(f.Kind)
		default:
			log.Warn("gateway: unknown frame type", "type", f.Type)
			continue
		}
		if !c.push(ctx, u) {
			return
		}
	}
}

func (c *client) push(ctx context.Context, u utterance) bool {
	select {
	case c.inbox <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// Listen implements [session.Listener].
func (c *client) Listen(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case u, ok := <-c.inbox:
		switch {
		case !ok:
			return nil, ErrDisconnected
		case u.err != nil:
			return nil, u.err
		case u.clip != nil:
			if c.transcriber == nil {
				return nil, fmt.Errorf("gateway: no speech-to-text provider configured: %w", session.ErrTranscription)
			}
			return c.transcriber.Transcribe(ctx, *u.clip)
		}
		return u.texts, nil
	}
}

// Speak implements [session.Speaker]. With a voice configured the prompt is
// followed by its audio.
func (c *client) Speak(ctx context.Context, text string) error {
	if c.speaker != nil {
		return c.speaker.Speak(ctx, text)
	}
	return c.Play(ctx, text, audio.Clip{})
}

// Play implements [speech.Sink].
func (c *client) Play(ctx context.Context, text string, clip audio.Clip) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	f := serverFrame{Type: frameSay, Text: text}
	if !clip.Empty() {
		f.Audio = &audioInfo{SampleRate: clip.SampleRate, Channels: clip.Channels}
	}
	if err := c.writeJSON(ctx, f); err != nil {
		return err
	}
	if f.Audio != nil {
		if err := c.ws.Write(ctx, websocket.MessageBinary, clip.Data); err != nil {
			return fmt.Errorf("gateway: write audio: %w", err)
		}
	}
	return nil
}

func (c *client) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gateway: marshal: %w", err)
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("gateway: write: %w", err)
	}
	return nil
}

// send writes one standalone frame.
func (c *client) send(ctx context.Context, f serverFrame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.writeJSON(ctx, f)
}
