package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// GnbConfig is the node identity, coverage advertisement, AMF peers and
// local endpoints of one simulated gNB.
type GnbConfig struct {
	Name        string        `toml:"name" yaml:"name"`
	Nci         uint64        `toml:"nci" yaml:"nci"`
	IDLength    int           `toml:"id_length" yaml:"id-length"`
	Mcc         int           `toml:"mcc" yaml:"mcc"`
	Mnc         int           `toml:"mnc" yaml:"mnc"`
	LongMnc     bool          `toml:"long_mnc" yaml:"long-mnc"`
	Tac         uint32        `toml:"tac" yaml:"tac"`
	PagingDrx   string        `toml:"paging_drx" yaml:"paging-drx"`
	Slices      []SliceConfig `toml:"slices" yaml:"slices"`
	Amfs        []AmfConfig   `toml:"amfs" yaml:"amfs"`
	AdminAddr   string        `toml:"admin_addr" yaml:"admin-addr"`
	HTTPAddr    string        `toml:"http_addr" yaml:"http-addr"`
	RlsAddr     string        `toml:"rls_addr" yaml:"rls-addr"`
	CorsOrigins []string      `toml:"cors_origins" yaml:"cors-origins"`
	PauseMS     int           `toml:"pause_timeout_ms" yaml:"pause-timeout-ms"`
	PollMS      int           `toml:"pause_poll_ms" yaml:"pause-poll-ms"`
	InStreams   int           `toml:"in_streams" yaml:"in-streams"`
	OutStreams  int           `toml:"out_streams" yaml:"out-streams"`
}

type SliceConfig struct {
	Sst uint8  `toml:"sst" yaml:"sst"`
	Sd  uint32 `toml:"sd" yaml:"sd"`
}

type AmfConfig struct {
	Address string `toml:"address" yaml:"address"`
	Port    int    `toml:"port" yaml:"port"`
}

// Addr is the dialable host:port of the AMF.
func (a AmfConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Address, a.Port)
}

// DefaultGnbConfig mirrors the shipped template.
func DefaultGnbConfig() GnbConfig {
	return GnbConfig{
		Name:       "UERANSIM-gnb-1-1-1",
		Nci:        0x000000010,
		IDLength:   32,
		Mcc:        1,
		Mnc:        1,
		Tac:        1,
		PagingDrx:  "v128",
		Slices:     []SliceConfig{{Sst: 1}},
		Amfs:       []AmfConfig{{Address: "127.0.0.1", Port: 38412}},
		AdminAddr:  "127.0.0.1:4997",
		HTTPAddr:   "127.0.0.1:4998",
		RlsAddr:    "127.0.0.1:4999",
		PauseMS:    3000,
		PollMS:     10,
		InStreams:  2,
		OutStreams: 2,
	}
}

// GnbID is the left-most IDLength bits of the 36-bit NR cell identity.
func (c GnbConfig) GnbID() uint32 {
	return uint32(c.Nci >> (36 - uint(c.IDLength)))
}

// PauseTimeout is the admin pause barrier bound.
func (c GnbConfig) PauseTimeout() time.Duration {
	return time.Duration(c.PauseMS) * time.Millisecond
}

// PausePoll is the admin pause barrier poll interval.
func (c GnbConfig) PausePoll() time.Duration {
	return time.Duration(c.PollMS) * time.Millisecond
}

func LoadGnbConfig(path string) (GnbConfig, error) {
	cfg := DefaultGnbConfig()
	cfg.Slices = nil
	cfg.Amfs = nil
	if err := loadToml(path, &cfg); err != nil {
		return GnbConfig{}, err
	}
	if len(cfg.Slices) == 0 {
		cfg.Slices = DefaultGnbConfig().Slices
	}
	if err := ValidateGnbConfig(cfg); err != nil {
		return GnbConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateGnbConfig(cfg GnbConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("gnb config missing name")
	}
	if cfg.IDLength < 22 || cfg.IDLength > 32 {
		return fmt.Errorf("gnb config id_length %d outside 22..32", cfg.IDLength)
	}
	if cfg.Nci >= 1<<36 {
		return fmt.Errorf("gnb config nci does not fit 36 bits")
	}
	if cfg.Mcc < 0 || cfg.Mcc > 999 {
		return fmt.Errorf("gnb config mcc %d out of range", cfg.Mcc)
	}
	if cfg.Mnc < 0 || (!cfg.LongMnc && cfg.Mnc > 99) || cfg.Mnc > 999 {
		return fmt.Errorf("gnb config mnc %d out of range", cfg.Mnc)
	}
	if cfg.Tac >= 1<<24 {
		return fmt.Errorf("gnb config tac %d out of range", cfg.Tac)
	}
	if strings.TrimSpace(cfg.PagingDrx) == "" {
		return fmt.Errorf("gnb config missing paging_drx")
	}
	if len(cfg.Amfs) == 0 {
		return fmt.Errorf("gnb config requires at least one amf")
	}
	for i, amf := range cfg.Amfs {
		if err := ValidateAmfEntry(amf); err != nil {
			return fmt.Errorf("amfs[%d] invalid: %w", i, err)
		}
	}
	for i, s := range cfg.Slices {
		if s.Sd >= 1<<24 {
			return fmt.Errorf("slices[%d] invalid: sd does not fit 24 bits", i)
		}
	}
	if cfg.PauseMS <= 0 || cfg.PollMS <= 0 {
		return fmt.Errorf("gnb config pause timings must be positive")
	}
	if cfg.InStreams <= 0 || cfg.OutStreams <= 0 {
		return fmt.Errorf("gnb config stream counts must be positive")
	}
	return nil
}

func ValidateAmfEntry(cfg AmfConfig) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	return nil
}
