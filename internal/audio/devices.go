package audio

import (
	"fmt"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio device in a Go-friendly way.
type Device struct {
	Name            string
	MaxOutput       int
	DefaultSampleHz float64
	HostAPI         string
	IsDefaultOutput bool
}

// ListOutputDevices returns every device that can play audio, sorted by
// host and name.
func ListOutputDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	var defaultOutputIndex = -1
	if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultOutputIndex = def.Index
	}

	devices := make([]Device, 0, len(hosts)*4)
	for _, host := range hosts {
		for _, d := range host.Devices {
			if d.MaxOutputChannels == 0 {
				continue
			}
			devices = append(devices, Device{
				Name:            d.Name,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefaultOutput: d.Index == defaultOutputIndex,
			})
		}
	}

	sortDevices(devices)
	return devices, nil
}

func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
}
