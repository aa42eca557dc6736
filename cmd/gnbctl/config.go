package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ransim/internal/config"
)

type fileConfig struct {
	Name        string               `toml:"name"`
	Nci         uint64               `toml:"nci"`
	IDLength    int                  `toml:"id_length"`
	Mcc         int                  `toml:"mcc"`
	Mnc         int                  `toml:"mnc"`
	LongMnc     bool                 `toml:"long_mnc"`
	Tac         uint32               `toml:"tac"`
	PagingDrx   string               `toml:"paging_drx"`
	Slices      []config.SliceConfig `toml:"slices"`
	Amfs        []config.AmfConfig   `toml:"amfs"`
	AdminAddr   string               `toml:"admin_addr"`
	HTTPAddr    string               `toml:"http_addr"`
	RlsAddr     string               `toml:"rls_addr"`
	CorsOrigins []string             `toml:"cors_origins"`
	PauseMS     int                  `toml:"pause_timeout_ms"`
	PollMS      int                  `toml:"pause_poll_ms"`
	InStreams   int                  `toml:"in_streams"`
	OutStreams  int                  `toml:"out_streams"`
}

func loadGnbConfig(path string) (config.GnbConfig, error) {
	cfg := config.DefaultGnbConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.GnbConfig{}, fmt.Errorf("load gnb config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("nci") {
		cfg.Nci = raw.Nci
	}
	if meta.IsDefined("id_length") {
		cfg.IDLength = raw.IDLength
	}
	if meta.IsDefined("mcc") {
		cfg.Mcc = raw.Mcc
	}
	if meta.IsDefined("mnc") {
		cfg.Mnc = raw.Mnc
	}
	if meta.IsDefined("long_mnc") {
		cfg.LongMnc = raw.LongMnc
	}
	if meta.IsDefined("tac") {
		cfg.Tac = raw.Tac
	}
	if meta.IsDefined("paging_drx") {
		cfg.PagingDrx = strings.TrimSpace(raw.PagingDrx)
	}
	if meta.IsDefined("slices") && len(raw.Slices) > 0 {
		cfg.Slices = raw.Slices
	}
	if meta.IsDefined("amfs") {
		cfg.Amfs = normalizeAmfs(raw.Amfs)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("rls_addr") {
		cfg.RlsAddr = strings.TrimSpace(raw.RlsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("pause_timeout_ms") {
		cfg.PauseMS = raw.PauseMS
	}
	if meta.IsDefined("pause_poll_ms") {
		cfg.PollMS = raw.PollMS
	}
	if meta.IsDefined("in_streams") {
		cfg.InStreams = raw.InStreams
	}
	if meta.IsDefined("out_streams") {
		cfg.OutStreams = raw.OutStreams
	}

	if err := config.ValidateGnbConfig(cfg); err != nil {
		return config.GnbConfig{}, fmt.Errorf("load gnb config: %w", err)
	}
	return cfg, nil
}

func normalizeAmfs(in []config.AmfConfig) []config.AmfConfig {
	out := make([]config.AmfConfig, 0, len(in))
	for _, amf := range in {
		amf.Address = strings.TrimSpace(amf.Address)
		out = append(out, amf)
	}
	return out
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
