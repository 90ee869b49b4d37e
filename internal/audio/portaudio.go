package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	// DefaultMicrophoneReadSeconds is how much audio a Read of 0 frames records.
	DefaultMicrophoneReadSeconds = 5

	microphoneChannels   = 1
	microphoneBitDepth   = 16
	microphoneBufferSize = 512
)

// Microphone is an infinite Source recording mono 16-bit audio from an input
// device at the device's default sample rate. The stream is opened on the
// first Read and stays open until Close so consecutive reads are gapless.
type Microphone struct {
	device *portaudio.DeviceInfo

	mu        sync.Mutex
	stream    *portaudio.Stream
	buffer    []int16
	collector frameCollector
	closed    bool
}

// NewMicrophone opens the input device at deviceIndex, or the system default
// input device when deviceIndex is nil. The index is validated against the
// number of devices PortAudio reports.
func NewMicrophone(deviceIndex *int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	device, err := lookupDevice(deviceIndex)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	return &Microphone{device: device}, nil
}

func lookupDevice(deviceIndex *int) (*portaudio.DeviceInfo, error) {
	if deviceIndex == nil {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if err := validateDeviceIndex(*deviceIndex, len(devices)); err != nil {
		return nil, err
	}
	return devices[*deviceIndex], nil
}

func validateDeviceIndex(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: device index must be between 0 and %d, got %d", ErrInvalidArgument, count, index)
	}
	return nil
}

// DeviceName is the name PortAudio reports for the selected device.
func (m *Microphone) DeviceName() string { return m.device.Name }

// FrameRate is the device's default sample rate.
func (m *Microphone) FrameRate() int { return int(m.device.DefaultSampleRate) }

// Format is the fixed recording format of the microphone.
func (m *Microphone) Format() Format {
	return Format{FrameRate: m.FrameRate(), Channels: microphoneChannels, BitDepth: microphoneBitDepth}
}

// Read blocks until nFrames frames have been recorded. nFrames of 0 records
// DefaultMicrophoneReadSeconds worth of audio. An in-flight device read is not
// interrupted by ctx; cancellation is observed between buffers.
func (m *Microphone) Read(ctx context.Context, nFrames int) (Sample, error) {
	if nFrames < 0 {
		return Sample{}, fmt.Errorf("%w: frame count must be positive, got %d", ErrInvalidArgument, nFrames)
	}
	if nFrames == 0 {
		nFrames = DefaultMicrophoneReadSeconds * m.FrameRate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Sample{}, ErrEndOfStream
	}
	if err := m.openLocked(); err != nil {
		return Sample{}, err
	}

	for m.collector.buffered() < nFrames {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		// Overflow only means frames were dropped by the driver; keep recording.
		if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return Sample{}, fmt.Errorf("failed to read audio stream: %w", err)
		}
		m.collector.push(m.buffer)
	}

	return FromInts(m.collector.take(nFrames), m.Format())
}

func (m *Microphone) openLocked() error {
	if m.stream != nil {
		return nil
	}

	m.buffer = make([]int16, microphoneBufferSize)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   m.device,
			Channels: microphoneChannels,
			Latency:  m.device.DefaultLowInputLatency,
		},
		SampleRate:      m.device.DefaultSampleRate,
		FramesPerBuffer: len(m.buffer),
	}, m.buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	m.stream = stream
	return nil
}

// Close stops recording and releases PortAudio. Reads after Close report
// ErrEndOfStream.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.stream != nil {
		err = m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}
	portaudio.Terminate()
	return err
}

// Devices lists every device PortAudio knows about, in index order. It does
// not depend on any open Microphone.
func Devices() ([]AudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]AudioDevice, 0, len(devices))
	for i, d := range devices {
		result = append(result, AudioDevice{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           defaultDevice != nil && d.Name == defaultDevice.Name,
		})
	}
	return result, nil
}

// DeviceNames returns the name of every device, indexed like Devices.
func DeviceNames() ([]string, error) {
	devices, err := Devices()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names, nil
}

// InputDevices filters devices down to those that can record.
func InputDevices(devices []AudioDevice) []AudioDevice {
	var out []AudioDevice
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, d)
		}
	}
	return out
}

// frameCollector accumulates fixed-size driver buffers and hands out exact
// frame counts, carrying any surplus over to the next read.
type frameCollector struct {
	pending []int
}

func (c *frameCollector) buffered() int { return len(c.pending) }

func (c *frameCollector) push(buf []int16) {
	for _, v := range buf {
		c.pending = append(c.pending, int(v))
	}
}

func (c *frameCollector) take(n int) []int {
	n = min(n, len(c.pending))
	out := make([]int, n)
	copy(out, c.pending[:n])
	c.pending = append(c.pending[:0], c.pending[n:]...)
	return out
}
