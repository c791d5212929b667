// Package artifact stores recorded and synthesized audio as files that the
// HTTP layer serves read-only.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/voicebridge/internal/audio"
)

const (
	RecordingsURLPrefix = "/recordings/"
	ResponsesURLPrefix  = "/responses/"
)

// Artifact is a stored file and the URL the UI can fetch it from.
type Artifact struct {
	Path string
	URL  string
}

// Key names the artifacts of one capture cycle. It is timestamp-keyed with a
// short random suffix so two cycles in the same second never collide.
type Key string

type Store struct {
	recordingsDir string
	responsesDir  string
	now           func() time.Time
}

func New(recordingsDir, responsesDir string) (*Store, error) {
	for _, dir := range []string{recordingsDir, responsesDir} {
		if strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("artifact directory must not be empty")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{
		recordingsDir: recordingsDir,
		responsesDir:  responsesDir,
		now:           time.Now,
	}, nil
}

func (s *Store) RecordingsDir() string { return s.recordingsDir }
func (s *Store) ResponsesDir() string  { return s.responsesDir }

// NewKey returns a fresh key such as 20250101_120000_1a2b3c4d.
func (s *Store) NewKey() Key {
	return Key(s.now().Format("20060102_150405") + "_" + uuid.NewString()[:8])
}

// SaveRecording writes pcm as rec_<key>.wav.
func (s *Store) SaveRecording(key Key, pcm []byte, sampleRate int) (Artifact, error) {
	name := "rec_" + string(key) + ".wav"
	path := filepath.Join(s.recordingsDir, name)
	if err := audio.WriteWAVPCM16LEFile(path, pcm, sampleRate); err != nil {
		return Artifact{}, fmt.Errorf("write recording: %w", err)
	}
	return Artifact{Path: path, URL: RecordingsURLPrefix + name}, nil
}

// SaveResponse writes synthesized audio as reply_<key>.<ext>.
func (s *Store) SaveResponse(key Key, data []byte, ext string) (Artifact, error) {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "mp3"
	}
	if len(data) == 0 {
		return Artifact{}, fmt.Errorf("write response: empty audio")
	}
	name := "reply_" + string(key) + "." + ext
	path := filepath.Join(s.responsesDir, name)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write response: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Artifact{}, fmt.Errorf("write response: %w", err)
	}
	return Artifact{Path: path, URL: ResponsesURLPrefix + name}, nil
}
