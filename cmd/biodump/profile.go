package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ghodss/yaml"

	"github.com/oy3o/binio"
)

// Profile describes the framing of an input file.
type Profile struct {
	// Length is the frame length prefix format: raw, raw-le, raw-be, or
	// compressed.
	Length string `yaml:"length"`
	// Order is the byte order for raw prefixes and is informational for
	// compressed ones: big or little.
	Order string `yaml:"order"`
	// Preview is how many leading payload bytes to print per frame.
	Preview int `yaml:"preview"`
	// MaxFrames stops after this many frames; 0 means all.
	MaxFrames int `yaml:"maxFrames"`
}

func defaultProfile() Profile {
	return Profile{Length: "compressed", Order: "big", Preview: 16}
}

func loadProfile(path string) (Profile, error) {
	p := defaultProfile()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) lengthFormat() (binio.LengthFormat, error) {
	switch p.Length {
	case "raw":
		return binio.Raw, nil
	case "raw-le":
		return binio.RawLittleEndian, nil
	case "raw-be":
		return binio.RawBigEndian, nil
	case "compressed", "":
		return binio.Compressed, nil
	}
	return 0, fmt.Errorf("unknown length format %q", p.Length)
}

func (p Profile) byteOrder() (binary.ByteOrder, error) {
	switch p.Order {
	case "big", "":
		return binio.BE, nil
	case "little":
		return binio.LE, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", p.Order)
}
