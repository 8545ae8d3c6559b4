package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"feedbackfast/internal/engine"
	"feedbackfast/internal/session"
)

// Script is a recorded sequence of user intents.
type Script struct {
	Intents []engine.Intent `yaml:"intents" json:"intents"`
}

func ParseScript(r io.Reader) (Script, error) {
	var sc Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && err != io.EOF {
		return Script{}, fmt.Errorf("parse replay script: %w", err)
	}
	return sc, nil
}

func ScriptFromFile(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, err
	}
	defer f.Close()
	return ParseScript(f)
}

type ReplayResult struct {
	Applied int           `json:"applied"`
	Events  int           `json:"events"`
	State   session.State `json:"state"`
}

// Replay applies the script's intents in order. It stops at the first
// rejected intent and reports its position; earlier intents stay applied.
func (s *Session) Replay(ctx context.Context, sc Script) (ReplayResult, error) {
	var res ReplayResult
	for i, in := range sc.Intents {
		st, out, err := s.Apply(ctx, in)
		if err != nil {
			res.State = st
			return res, fmt.Errorf("intent %d (%s): %w", i+1, in.Kind, err)
		}
		res.Applied++
		res.Events += len(out.Changes)
		res.State = st
	}
	if len(sc.Intents) == 0 {
		res.State = s.Store.Snapshot()
	}
	return res, nil
}
