package opus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/jonas747/ogg"
)

// ErrNoEncoder is returned when none of the encoder binaries is installed.
var ErrNoEncoder = errors.New("no audio encoder found, install ffmpeg or avconv")

// DefaultEncoders are tried in order by LookupEncoder.
var DefaultEncoders = []string{"ffmpeg", "avconv"}

// LookupEncoder returns the path of the first binary found on PATH.
func LookupEncoder(names ...string) (string, error) {
	if len(names) == 0 {
		names = DefaultEncoders
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoEncoder
}

// EncoderArgs are the arguments turning any audio on stdin into 20ms Opus
// frames in an ogg container on stdout.
func EncoderArgs(channels, bitrate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", strconv.Itoa(48000),
		"-ac", strconv.Itoa(channels),
		"-b:a", strconv.Itoa(bitrate),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	}
}

// OggFrames demuxes Opus packets from an ogg stream, skipping the two
// header packets.
type OggFrames struct {
	dec  *ogg.PacketDecoder
	skip int
}

func NewOggFrames(r io.Reader) *OggFrames {
	return &OggFrames{dec: ogg.NewPacketDecoder(ogg.NewDecoder(r)), skip: 2}
}

func (o *OggFrames) ReadFrame() ([]byte, error) {
	for {
		packet, _, err := o.dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if o.skip > 0 {
			o.skip--
			continue
		}
		return packet, nil
	}
}

// Process is a running encoder: audio written to it comes back as frames.
type Process interface {
	io.Writer
	FrameSource
	// CloseInput signals the end of the audio written so far.
	CloseInput() error
	Close() error
}

// ProcessFactory starts a new encoder process.
type ProcessFactory func(ctx context.Context) (Process, error)

// CommandFactory runs binary with EncoderArgs.
func CommandFactory(binary string, channels, bitrate int) ProcessFactory {
	return func(ctx context.Context) (Process, error) {
		return StartProcess(ctx, binary, EncoderArgs(channels, bitrate)...)
	}
}

type commandProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames *OggFrames
	once   sync.Once
}

var _ Process = (*commandProcess)(nil)

// StartProcess starts binary with args and demuxes its stdout.
func StartProcess(ctx context.Context, binary string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to pipe encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to pipe encoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start encoder %s: %w", binary, err)
	}
	return &commandProcess{cmd: cmd, stdin: stdin, frames: NewOggFrames(stdout)}, nil
}

func (p *commandProcess) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *commandProcess) ReadFrame() ([]byte, error) {
	return p.frames.ReadFrame()
}

func (p *commandProcess) CloseInput() error {
	return p.stdin.Close()
}

// Close kills the encoder if it is still running and reaps it.
func (p *commandProcess) Close() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.cmd.Wait()
	})
	return nil
}

// Transcode runs audio from r through the encoder and returns a reader of
// length-prefixed frames. The returned io.ReadCloser must be closed to clean
// up the process.
func Transcode(ctx context.Context, factory ProcessFactory, r io.Reader) (io.ReadCloser, error) {
	proc, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		_, _ = io.Copy(proc, r)
		_ = proc.CloseInput()
	}()

	pr, pw := io.Pipe()
	go func() {
		_, err := CopyFrames(pw, proc)
		pw.CloseWithError(err)
	}()

	return &transcodeCloser{ReadCloser: pr, proc: proc}, nil
}

type transcodeCloser struct {
	io.ReadCloser
	proc Process
}

func (t *transcodeCloser) Close() error {
	err := t.ReadCloser.Close()
	_ = t.proc.Close()
	return err
}
