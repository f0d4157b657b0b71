package models

import (
	"bufio"
	"os"
	"strings"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/utf8x"
)

// Backend is a single next-character model. Score returns the probability
// distribution over the next character given a context; Observe feeds a
// realized character back for online learning. Static backends implement
// Observe as a no-op and report Adaptive() == false.
//
// Backends are exclusively owned by one hub. Adaptive backends guard
// their count tables with an internal mutex taken by both Score and
// Observe, so a read never sees a half-applied update.
type Backend interface {
	Name() string
	Score(context []string) (Distribution, error)
	Observe(context []string, char string) error
	Adaptive() bool
}

// Load builds a ready backend from one model configuration. Unsupported
// types are configuration errors; unreadable storage is an IO error.
// This is the loader contract the hub consumes: everything about the
// on-disk formats stays behind this function.
func Load(cfg config.ModelConfig) (Backend, error) {
	switch cfg.Type {
	case config.ModelUniform:
		alphabet, err := loadVocabulary(cfg.Storage.VocabularyFile)
		if err != nil {
			return nil, err
		}
		return NewUniform(alphabet), nil
	case config.ModelCharNgram:
		return LoadNgram(cfg.Storage.ModelFile, cfg.Storage.VocabularyFile)
	case config.ModelPPM:
		return LoadPPM(cfg.Storage.ModelFile, cfg.Storage.PPMOptions)
	default:
		return nil, lmerror.Errorf(lmerror.KindConfig,
			"unsupported model type %q", cfg.Type)
	}
}

// loadVocabulary reads a one-character-per-line vocabulary file. An empty
// path returns a nil alphabet, which backends treat as "discover lazily"
// or "use the built-in default" depending on the model.
func loadVocabulary(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, lmerror.New(lmerror.KindIO, err)
	}
	defer f.Close()

	var alphabet []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		chars, err := utf8x.DecodeString(line)
		if err != nil {
			return nil, err
		}
		if len(chars) != 1 {
			return nil, lmerror.Errorf(lmerror.KindIO,
				"vocabulary file %s: line %q is not a single character",
				path, line)
		}
		alphabet = append(alphabet, chars[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, lmerror.New(lmerror.KindIO, err)
	}
	return alphabet, nil
}
