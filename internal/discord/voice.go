package discord

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// voiceSession streams local audio files into one voice connection. It
// decodes with ffmpeg to raw s16le and encodes Opus frames itself, so pause
// and volume work on the PCM stream without touching the file.
type voiceSession struct {
	vc *discordgo.VoiceConnection

	mu       sync.Mutex
	playing  bool
	paused   bool
	volume   float64
	stop     chan struct{}
	stopOnce *sync.Once
	done     chan struct{}
}

func newVoiceSession(vc *discordgo.VoiceConnection) *voiceSession {
	return &voiceSession{vc: vc, volume: 1.0}
}

// Play starts streaming the file, stopping any stream already running.
func (v *voiceSession) Play(path string) error {
	_ = v.Stop()

	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"-loglevel", "quiet",
		"pipe:1",
	)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	v.mu.Lock()
	v.playing = true
	v.paused = false
	v.stop = make(chan struct{})
	v.stopOnce = &sync.Once{}
	v.done = make(chan struct{})
	stop, done := v.stop, v.done
	v.mu.Unlock()

	go v.stream(cmd, out, stop, done)
	return nil
}

func (v *voiceSession) stream(cmd *exec.Cmd, out io.ReadCloser, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		v.mu.Lock()
		v.playing = false
		v.paused = false
		v.mu.Unlock()
		close(done)
	}()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		log.Error().Err(err).Msg("opus encoder init failed")
		return
	}

	_ = v.vc.Speaking(true)
	defer func() { _ = v.vc.Speaking(false) }()

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if v.IsPaused() {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		if _, err := io.ReadFull(out, pcmBuf); err != nil {
			// EOF is the normal end of the file.
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Warn().Err(err).Msg("pcm read failed")
			}
			return
		}

		volume := v.currentVolume()
		for i := range intBuf {
			sample := int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
			intBuf[i] = scaleSample(sample, volume)
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			log.Warn().Err(err).Msg("opus encode failed")
			return
		}

		select {
		case v.vc.OpusSend <- opus:
		case <-stop:
			return
		}
	}
}

func scaleSample(sample int16, volume float64) int16 {
	if volume == 1.0 {
		return sample
	}
	scaled := float64(sample) * volume
	switch {
	case scaled > 32767:
		return 32767
	case scaled < -32768:
		return -32768
	default:
		return int16(scaled)
	}
}

func (v *voiceSession) currentVolume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *voiceSession) Pause() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.playing {
		return nil
	}
	v.paused = true
	return nil
}

func (v *voiceSession) Resume() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
	return nil
}

// Stop ends the running stream and waits for the streaming goroutine to
// finish, so a following Play cannot interleave frames.
func (v *voiceSession) Stop() error {
	v.mu.Lock()
	if !v.playing && !v.paused {
		v.mu.Unlock()
		return nil
	}
	once, stop, done := v.stopOnce, v.stop, v.done
	v.mu.Unlock()

	once.Do(func() { close(stop) })
	<-done
	return nil
}

func (v *voiceSession) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing && !v.paused
}

func (v *voiceSession) IsPaused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing && v.paused
}

func (v *voiceSession) SetVolume(volume float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.volume = volume
	return nil
}

func (v *voiceSession) Disconnect() error {
	_ = v.Stop()
	return v.vc.Disconnect()
}
