package config

import (
	"fmt"
	"os"
)

// Template is a commented proxy config holding the defaults.
func Template() string { return proxyTemplate }

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(proxyTemplate), 0o600)
}

const proxyTemplate = `name = "backwire"
listen = ":25566"
upstream = "127.0.0.1:25565"
# protocol version the upstream server speaks
server_version = "1.19.4"
# forward packets that have no descriptor unchanged instead of failing them
passthrough = false
# drop the connection on the first packet that fails to translate
fail_fast = false
max_frame_bytes = 2097152
worker_buffer = 64
dial_timeout = "5s"
dial_attempts = 3
log_level = "info"

[admin]
# leave empty to disable
addr = "127.0.0.1:9090"
cors_origins = ["http://localhost:3000"]
# bearer token for admin routes other than /healthz; empty disables
token = ""
`
