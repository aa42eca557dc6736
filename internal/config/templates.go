package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "gnb":
		return gnbTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const gnbTemplate = `name = "UERANSIM-gnb-1-1-1"
nci = 16
id_length = 32
mcc = 1
mnc = 1
tac = 1
paging_drx = "v128"
admin_addr = "127.0.0.1:4997"
http_addr = "127.0.0.1:4998"
rls_addr = "127.0.0.1:4999"
cors_origins = ["http://localhost:3000"]
pause_timeout_ms = 3000
pause_poll_ms = 10
in_streams = 2
out_streams = 2

[[slices]]
sst = 1

[[amfs]]
address = "127.0.0.1"
port = 38412
`
