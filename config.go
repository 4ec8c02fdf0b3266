package mp4atom

import (
	"bytes"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// CountPolicy decides what happens when a count property disagrees with
// the number of entries it counts.
type CountPolicy string

const (
	// CountRepair logs a warning and rewrites the count.
	CountRepair CountPolicy = "repair"
	// CountStrict fails with a ValidationError.
	CountStrict CountPolicy = "strict"
)

// Config holds the knobs that change how files are read and written.
type Config struct {
	CountPolicy CountPolicy `yaml:"count_policy"`
	// LargeSize lists atom types that are always written with a 64-bit size.
	LargeSize []string `yaml:"large_size"`
	// Time64 forces version 1 time fields in mvhd, tkhd, mdhd and mehd.
	Time64 bool `yaml:"time64"`
	// FtypReserve is the size of the free atom placed after ftyp when
	// streaming a root.
	FtypReserve int `yaml:"ftyp_reserve"`
	// CompactDescriptorLength writes the shortest descriptor length form
	// instead of the fixed 4-byte one.
	CompactDescriptorLength bool `yaml:"compact_descriptor_length"`
	Verbosity               int  `yaml:"verbosity"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		CountPolicy: CountRepair,
		FtypReserve: 128,
	}
}

// LoadConfig reads a YAML configuration from fs. Missing fields keep their
// defaults; unknown fields are an error.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, Error.Wrap(err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, Error.New("config %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the policy, the ftyp reserve and the large size types.
func (c Config) Validate() error {
	switch c.CountPolicy {
	case CountRepair, CountStrict:
	default:
		return Error.New("unknown count_policy %q", c.CountPolicy)
	}
	if c.FtypReserve < 8 {
		return Error.New("ftyp_reserve must be at least 8, got %d", c.FtypReserve)
	}
	for _, t := range c.LargeSize {
		if len(t) != 4 {
			return Error.New("large_size entry %q is not a four character code", t)
		}
	}
	return nil
}

func (c Config) largeSize(t BoxType) bool {
	for _, l := range c.LargeSize {
		if l == t.String() {
			return true
		}
	}
	return false
}
