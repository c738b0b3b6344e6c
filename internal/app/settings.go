package app

import (
	"github.com/MrWong99/ordervox/internal/config"
	"github.com/MrWong99/ordervox/internal/gateway"
	"github.com/MrWong99/ordervox/internal/session"
	"github.com/MrWong99/ordervox/internal/transcript"
	"github.com/MrWong99/ordervox/internal/transcript/phonetic"
)

// sessionSettings derives the hot-reloadable gateway settings from cfg.
func sessionSettings(cfg *config.Config) gateway.Settings {
	s := cfg.Session
	st := gateway.Settings{
		Session: session.Config{
			MaxRounds:          s.MaxRounds,
			MaxRetriesPerRound: s.MaxRetriesPerRound,
			TopN:               s.TopN,
			ListenTimeout:      s.ListenTimeout,
		},
		Confirm: []session.ConfirmOption{session.WithStopWords(s.StopWords...)},
	}
	if s.ConfirmTimeout > 0 {
		st.Confirm = append(st.Confirm, session.WithConfirmTimeout(s.ConfirmTimeout))
	}

	r := cfg.Recognition
	if r.PhoneticCorrection {
		st.Corrector = transcript.NewCorrector(phonetic.New(
			phonetic.WithPhoneticThreshold(r.PhoneticThreshold),
			phonetic.WithFuzzyThreshold(r.FuzzyThreshold),
		))
	}
	return st
}
