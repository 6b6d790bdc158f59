package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

// fakeRunner records invocations and returns a canned result.
type fakeRunner struct {
	calls  [][]string
	result commandResult
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.block {
		<-ctx.Done()
		return commandResult{ExitCode: -1}, ctx.Err()
	}
	return f.result, f.err
}

func TestBuildExtractArgs(t *testing.T) {
	args := buildExtractArgs("/data/alice_lecture.mp4", "/data/alice_lecture_audio.mp3")

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/data/alice_lecture.mp4",
		"-vn", "-ac", "1", "-ar", "16000",
		"-acodec", "libmp3lame", "-q:a", "2",
		"-map_metadata", "-1",
		"/data/alice_lecture_audio.mp3",
	}, args)
}

func TestAudioExtractor_Extract(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		runner := &fakeRunner{}
		e := NewAudioExtractor("/usr/bin/ffmpeg", time.Minute)
		e.runner = runner

		require.Nil(t, e.Extract(context.Background(), "in.mp4", "out.mp3"))
		require.Len(t, runner.calls, 1)
		assert.Equal(t, "/usr/bin/ffmpeg", runner.calls[0][0])
		assert.Equal(t, "out.mp3", runner.calls[0][len(runner.calls[0])-1])
	})

	t.Run("non-zero exit", func(t *testing.T) {
		runner := &fakeRunner{
			result: commandResult{ExitCode: 1, Stderr: "in.mp4: Invalid data found when processing input"},
			err:    errors.New("exit status 1"),
		}
		e := NewAudioExtractor("", 0)
		e.runner = runner

		err := e.Extract(context.Background(), "in.mp4", "out.mp3")
		require.NotNil(t, err)
		assert.Equal(t, domain.StageExtract, err.Stage)
		assert.Equal(t, "ExternalToolError", err.Kind())
		assert.Equal(t, 1, err.ExitCode)
		assert.Contains(t, err.Output, "Invalid data")
		assert.Equal(t, "extract: audio extraction failed (exit=1)", err.Error())
		assert.Equal(t, "ffmpeg", runner.calls[0][0])
	})

	t.Run("binary missing", func(t *testing.T) {
		e := NewAudioExtractor("ffmpeg-missing", time.Minute)
		e.runner = &fakeRunner{
			result: commandResult{ExitCode: -1},
			err:    errors.New(`exec: "ffmpeg-missing": executable file not found in $PATH`),
		}

		err := e.Extract(context.Background(), "in.mp4", "out.mp3")
		require.NotNil(t, err)
		assert.Contains(t, err.Message, "failed to start ffmpeg-missing")
	})

	t.Run("timeout", func(t *testing.T) {
		e := NewAudioExtractor("ffmpeg", 20*time.Millisecond)
		e.runner = &fakeRunner{block: true}

		err := e.Extract(context.Background(), "in.mp4", "out.mp3")
		require.NotNil(t, err)
		assert.Contains(t, err.Message, "timed out")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("canceled", func(t *testing.T) {
		e := NewAudioExtractor("ffmpeg", time.Minute)
		e.runner = &fakeRunner{block: true}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := e.Extract(ctx, "in.mp4", "out.mp3")
		require.NotNil(t, err)
		assert.Equal(t, "audio extraction canceled", err.Message)
	})
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "cde", tail("abcde", 3))

	// "é" is two bytes; a cut inside it moves to the next rune
	got := tail("café au lait", 9)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, " au lait", got)
	assert.Equal(t, "ü", tail("aü", 2))
	assert.Equal(t, "", tail("aü", 1))
}
