package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/rumor/pkg/config"
	"github.com/andydunstall/rumor/pkg/log"
)

// Tests the default configuration is valid.
func TestConfig_Default(t *testing.T) {
	conf := Default()
	assert.NoError(t, conf.Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Run("missing retry interval", func(t *testing.T) {
		conf := Default()
		conf.Broadcast.RetryInterval = 0
		assert.EqualError(t, conf.Validate(), "broadcast: missing retry interval")
	})

	t.Run("unsupported id format", func(t *testing.T) {
		conf := Default()
		conf.IDs.Format = "foo"
		assert.EqualError(t, conf.Validate(), "ids: unsupported format: foo")
	})

	t.Run("missing grace period", func(t *testing.T) {
		conf := Default()
		conf.GracePeriod = 0
		assert.EqualError(t, conf.Validate(), "missing grace period")
	})
}

// Tests loading the node configuration from YAML.
func TestConfig_LoadYAML(t *testing.T) {
	yaml := `
broadcast:
  retry_interval: 500ms

ids:
  format: uuid

admin:
  bind_addr: 10.15.104.25:8002

log:
  level: debug
  subsystems:
    - broadcast.engine
    - broadcast.tracker

grace_period: 2m
`

	path := filepath.Join(t.TempDir(), "rumor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	var loadedConf Config
	assert.NoError(t, config.Load(path, &loadedConf, false))

	expectedConf := Config{
		Broadcast: BroadcastConfig{
			RetryInterval: time.Millisecond * 500,
		},
		IDs: IDsConfig{
			Format: IDFormatUUID,
		},
		Admin: AdminConfig{
			BindAddr: "10.15.104.25:8002",
		},
		Log: log.Config{
			Level: "debug",
			Subsystems: []string{
				"broadcast.engine",
				"broadcast.tracker",
			},
		},
		GracePeriod: 2 * time.Minute,
	}
	assert.Equal(t, expectedConf, loadedConf)
}

func TestConfig_RegisterFlags(t *testing.T) {
	conf := Default()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	conf.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--broadcast.retry-interval", "1s",
		"--ids.format", "uuid",
		"--admin.bind-addr", ":8002",
		"--log.subsystems", "node,broadcast.tracker",
	}))

	assert.Equal(t, time.Second, conf.Broadcast.RetryInterval)
	assert.Equal(t, IDFormatUUID, conf.IDs.Format)
	assert.Equal(t, ":8002", conf.Admin.BindAddr)
	assert.Equal(t, "info", conf.Log.Level)
	assert.Equal(t, []string{"node", "broadcast.tracker"}, conf.Log.Subsystems)
	assert.Equal(t, time.Second*10, conf.GracePeriod)
	assert.NoError(t, conf.Validate())
}
