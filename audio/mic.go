package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"
	"syscall"

	"github.com/gordonklaus/portaudio"
)

// PortAudioMic reads 16-bit mono PCM from the default input device.
type PortAudioMic struct {
	logger    *slog.Logger
	recording atomic.Bool
	done      chan struct{} // closed when the capture loop exits
}

func (m *PortAudioMic) Start(sampleRate int, sink *bytes.Buffer) error {
	// ALSA spews warnings on stderr during init, which wrecks the TUI
	origStderr, err := syscall.Dup(syscall.Stderr)
	if err != nil {
		return fmt.Errorf("failed to dup stderr: %w", err)
	}
	nullFD, err := syscall.Open("/dev/null", syscall.O_WRONLY, 0)
	if err != nil {
		syscall.Close(origStderr)
		return fmt.Errorf("failed to open /dev/null: %w", err)
	}
	syscall.Dup2(nullFD, syscall.Stderr)
	defer func() {
		syscall.Dup2(origStderr, syscall.Stderr)
		syscall.Close(origStderr)
		syscall.Close(nullFD)
	}()
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init failed: %w", err)
	}
	in := make([]int16, 64)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(in), in)
	if err != nil {
		if paErr := portaudio.Terminate(); paErr != nil {
			return fmt.Errorf("failed to open microphone: %w; terminate error: %w", err, paErr)
		}
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	m.recording.Store(true)
	m.done = make(chan struct{})
	go func(stream *portaudio.Stream, done chan struct{}) {
		defer close(done)
		if err := stream.Start(); err != nil {
			m.logger.Error("failed to start mic stream", "error", err)
			return
		}
		defer func() {
			if err := stream.Close(); err != nil {
				m.logger.Error("failed to close mic stream", "error", err)
			}
		}()
		for m.recording.Load() {
			if err := stream.Read(); err != nil {
				m.logger.Error("reading mic stream", "error", err)
				return
			}
			if err := binary.Write(sink, binary.LittleEndian, in); err != nil {
				m.logger.Error("writing mic buffer", "error", err)
				return
			}
		}
	}(stream, m.done)
	return nil
}

// Stop ends capture and waits for the loop to make its last write, so the
// sink is safe to read once Stop returns.
func (m *PortAudioMic) Stop() error {
	m.recording.Store(false)
	if m.done != nil {
		<-m.done
	}
	return nil
}
