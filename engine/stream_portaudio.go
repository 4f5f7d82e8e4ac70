package engine

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paInitOnce sync.Once
	paInitErr  error
	paTermOnce sync.Once
)

// initPortAudio initializes the PortAudio library exactly once per process.
// PortAudio has no reference-counted init, so every stream opened through
// this file shares one process-lifetime initialization.
func initPortAudio() error {
	paInitOnce.Do(func() {
		paInitErr = portaudio.Initialize()
	})
	return paInitErr
}

// TerminatePortAudio releases the PortAudio library. Call once at process
// shutdown, after every stream opened via this package has been closed.
func TerminatePortAudio() {
	paTermOnce.Do(func() {
		portaudio.Terminate()
	})
}

// DeviceInfo describes one enumerated audio device.
type DeviceInfo struct {
	Index      int
	Name       string
	MaxInputs  int
	MaxOutputs int
	DefaultSR  float64
}

// ListInputDevices returns every device PortAudio reports with at least one
// input channel.
func ListInputDevices() ([]DeviceInfo, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("engine: portaudio init: %w", err)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("engine: enumerate devices: %w", err)
	}
	var out []DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, DeviceInfo{
				Index: i, Name: d.Name,
				MaxInputs: d.MaxInputChannels, MaxOutputs: d.MaxOutputChannels,
				DefaultSR: d.DefaultSampleRate,
			})
		}
	}
	return out, nil
}

// ListOutputDevices returns every device PortAudio reports with at least
// one output channel.
func ListOutputDevices() ([]DeviceInfo, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("engine: portaudio init: %w", err)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("engine: enumerate devices: %w", err)
	}
	var out []DeviceInfo
	for i, d := range devices {
		if d.MaxOutputChannels > 0 {
			out = append(out, DeviceInfo{
				Index: i, Name: d.Name,
				MaxInputs: d.MaxInputChannels, MaxOutputs: d.MaxOutputChannels,
				DefaultSR: d.DefaultSampleRate,
			})
		}
	}
	return out, nil
}

// portaudioOutputStream adapts a blocking PortAudio output stream to
// RealtimeOutputStream.
type portaudioOutputStream struct {
	stream     *portaudio.Stream
	outBuf     []float32
	sampleRate int
	channels   int
}

// OpenPortAudioOutput opens a blocking-write output stream on deviceIndex at
// sampleRate with the given channel count and per-block frame count.
func OpenPortAudioOutput(deviceIndex, sampleRate, channels, framesPerBlock int) (RealtimeOutputStream, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("engine: portaudio init: %w", err)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("engine: enumerate devices: %w", err)
	}
	var dev *portaudio.DeviceInfo
	if deviceIndex < 0 {
		dev, err = portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default output device: %v", ErrStreamOpen, err)
		}
	} else if deviceIndex >= len(devices) {
		return nil, fmt.Errorf("%w: output device index %d out of range", ErrStreamOpen, deviceIndex)
	} else {
		dev = devices[deviceIndex]
	}

	outBuf := make([]float32, framesPerBlock*channels)
	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = channels
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = framesPerBlock

	stream, err := portaudio.OpenStream(params, &outBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: open output stream: %v", ErrStreamOpen, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start output stream: %v", ErrStreamOpen, err)
	}
	return &portaudioOutputStream{stream: stream, outBuf: outBuf, sampleRate: sampleRate, channels: channels}, nil
}

func (s *portaudioOutputStream) Write(out []float32) error {
	copy(s.outBuf, out)
	if err := s.stream.Write(); err != nil {
		return fmt.Errorf("engine: output write: %w", err)
	}
	return nil
}

func (s *portaudioOutputStream) SampleRate() int { return s.sampleRate }
func (s *portaudioOutputStream) Channels() int    { return s.channels }

func (s *portaudioOutputStream) Close() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}

// portaudioInputStream adapts a blocking PortAudio input stream to
// RealtimeInputStream. PortAudio's blocking Read always returns the
// requested frame count; AvailableToRead passes through PortAudio's count of
// frames that can be read without blocking, which may be any value.
type portaudioInputStream struct {
	stream     *portaudio.Stream
	inBuf      []float32
	sampleRate int
	channels   int
	blockSize  int
}

// OpenPortAudioInput opens a blocking-read input stream on deviceIndex at
// sampleRate with the given channel count and per-block frame count.
func OpenPortAudioInput(deviceIndex, sampleRate, channels, framesPerBlock int) (RealtimeInputStream, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("engine: portaudio init: %w", err)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("engine: enumerate devices: %w", err)
	}
	var dev *portaudio.DeviceInfo
	if deviceIndex < 0 {
		dev, err = portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default input device: %v", ErrStreamOpen, err)
		}
	} else if deviceIndex >= len(devices) {
		return nil, fmt.Errorf("%w: input device index %d out of range", ErrStreamOpen, deviceIndex)
	} else {
		dev = devices[deviceIndex]
	}

	inBuf := make([]float32, framesPerBlock*channels)
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = framesPerBlock

	stream, err := portaudio.OpenStream(params, &inBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: open input stream: %v", ErrStreamOpen, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start input stream: %v", ErrStreamOpen, err)
	}
	return &portaudioInputStream{
		stream: stream, inBuf: inBuf,
		sampleRate: sampleRate, channels: channels, blockSize: framesPerBlock,
	}, nil
}

// AvailableToRead returns the number of input frames PortAudio reports as
// readable without blocking. A full block is available immediately when the
// result is at least the block size.
func (s *portaudioInputStream) AvailableToRead() (int, error) {
	n, err := s.stream.AvailableToRead()
	if err != nil {
		return 0, fmt.Errorf("engine: available to read: %w", err)
	}
	return n, nil
}

func (s *portaudioInputStream) Read(buf []float32) error {
	if err := s.stream.Read(); err != nil {
		return fmt.Errorf("engine: input read: %w", err)
	}
	copy(buf, s.inBuf)
	return nil
}

func (s *portaudioInputStream) SampleRate() int { return s.sampleRate }
func (s *portaudioInputStream) Channels() int    { return s.channels }

func (s *portaudioInputStream) Close() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}
