package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/stt"
	sttmock "github.com/MrWong99/ordervox/pkg/provider/stt/mock"
)

func sttRequest() stt.Request {
	return stt.Request{
		Clip:  audio.Clip{Data: make([]byte, 320), Format: audio.SpeechFormat},
		Hints: []string{"Burger"},
	}
}

func TestSTTFallback_Transcribe(t *testing.T) {
	t.Parallel()

	errDown := errors.New("primary down")
	tests := []struct {
		name          string
		primary       sttmock.Result
		wantText      string
		wantErr       error
		wantSecondary int
	}{
		{
			name:     "primary succeeds",
			primary:  sttmock.Result{Transcript: stt.Transcript{Text: "a burger"}},
			wantText: "a burger",
		},
		{
			name:          "primary fails over",
			primary:       sttmock.Result{Err: errDown},
			wantText:      "from secondary",
			wantSecondary: 1,
		},
		{
			name:    "no speech is not a failure",
			primary: sttmock.Result{Err: stt.ErrNoSpeech},
			wantErr: stt.ErrNoSpeech,
		},
		{
			name:    "deadline is not a failure",
			primary: sttmock.Result{Err: context.DeadlineExceeded},
			wantErr: context.DeadlineExceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			primary := &sttmock.Provider{Default: tt.primary}
			secondary := &sttmock.Provider{Default: sttmock.Result{Transcript: stt.Transcript{Text: "from secondary"}}}

			fb := NewSTTFallback(primary, "primary", FallbackConfig{
				CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
			})
			fb.AddFallback("secondary", secondary)

			got, err := fb.Transcribe(context.Background(), sttRequest())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if errors.Is(err, ErrAllFailed) {
					t.Errorf("non-failure should not be reported as ErrAllFailed: %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			if n := secondary.CallCount(); n != tt.wantSecondary {
				t.Errorf("secondary called %d times, want %d", n, tt.wantSecondary)
			}
			if primary.CallCount() != 1 {
				t.Errorf("primary called %d times, want 1", primary.CallCount())
			}
			if len(primary.TranscribeCalls) == 1 && primary.TranscribeCalls[0].Req.Hints[0] != "Burger" {
				t.Error("request not forwarded unchanged")
			}
		})
	}
}

func TestSTTFallback_AllFailKeepsUnavailable(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{Default: sttmock.Result{Err: stt.ErrUnavailable}}
	secondary := &sttmock.Provider{Default: sttmock.Result{Err: stt.ErrUnavailable}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), sttRequest())
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, stt.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrAllFailed wrapping stt.ErrUnavailable", err)
	}
}

func TestIsSTTFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want bool
	}{
		{stt.ErrUnavailable, true},
		{errors.New("boom"), true},
		{stt.ErrNoSpeech, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		if got := IsSTTFailure(tt.err); got != tt.want {
			t.Errorf("IsSTTFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
