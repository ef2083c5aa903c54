package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dacirco/dacirco/internal/config"
)

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		yaml   string
		env    map[string]string
		check  func(t *testing.T, cfg *config.Config)
		expErr bool
	}{
		"A minimal configuration should load with defaults.": {
			yaml: `
transcoder:
  image: registry.example.org/shared/transcode:latest
`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "registry.example.org/shared/transcode:latest", cfg.Transcoder.Image)
				assert.Equal(t, "default", cfg.Transcoder.Namespace)
				assert.Equal(t, "4", cfg.Transcoder.CPULimit)
				assert.Equal(t, "2Gi", cfg.Transcoder.MemoryLimit)
				assert.Equal(t, "controller", cfg.Transcoder.ControllerHost)
				assert.Equal(t, "ubuntu", cfg.VM.SSHUser)
				assert.Equal(t, "dacirco.pem", cfg.VM.KeyFile)
			},
		},

		"A full configuration should keep its values.": {
			yaml: `
transcoder:
  image: registry.example.org/shared/transcode:latest
  namespace: transcoding
  cpuLimit: "2"
  memoryLimit: 1Gi
  controllerHost: controller
  controllerIP: 10.30.9.12
openstack:
  cloud: dacirco
  projectDomainName: Default
  userDomainName: Default
  projectName: demo
  username: demo
  password: usr
  authURL: http://controller:5000/v3
  identityAPIVersion: "3"
vm:
  image: ubuntu-transcoder
  flavor: m1.medium
  network: private
  floatingIPNetwork: public
`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "transcoding", cfg.Transcoder.Namespace)
				assert.Equal(t, "10.30.9.12", cfg.Transcoder.ControllerIP)
				assert.Equal(t, "usr", cfg.OpenStack.Password)
				assert.Equal(t, "m1.medium", cfg.VM.Flavor)
				assert.Equal(t, "public", cfg.VM.FloatingIPNetwork)
			},
		},

		"The OpenStack password should fall back to the environment.": {
			yaml: `
transcoder:
  image: registry.example.org/shared/transcode:latest
openstack:
  username: demo
`,
			env: map[string]string{"OS_PASSWORD": "from-env"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "from-env", cfg.OpenStack.Password)
			},
		},

		"A configuration without a transcoder image should fail.": {
			yaml: `
transcoder:
  namespace: default
`,
			expErr: true,
		},

		"A configuration with unknown fields should fail.": {
			yaml: `
transcoder:
  image: registry.example.org/shared/transcode:latest
  unknownSetting: true
`,
			expErr: true,
		},

		"A malformed configuration should fail.": {
			yaml:   "transcoder: [",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range test.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load(strings.NewReader(test.yaml))

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			test.check(t, cfg)
		})
	}
}

func TestStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dacirco.yaml")
	writeConfig := func(image string) {
		err := os.WriteFile(path, []byte("transcoder:\n  image: "+image+"\n"), 0o600)
		require.NoError(t, err)
	}

	writeConfig("transcode:v1")
	store, err := config.NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, "transcode:v1", store.Get().Transcoder.Image)

	writeConfig("transcode:v2")
	require.NoError(t, store.Reload())
	assert.Equal(t, "transcode:v2", store.Get().Transcoder.Image)

	// An invalid file keeps the previous configuration.
	require.NoError(t, os.WriteFile(path, []byte("transcoder: ["), 0o600))
	assert.Error(t, store.Reload())
	assert.Equal(t, "transcode:v2", store.Get().Transcoder.Image)
}

func TestNewStoreMissingFile(t *testing.T) {
	_, err := config.NewStore(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
