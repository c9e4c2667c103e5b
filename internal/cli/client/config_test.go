package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.NotEmpty(t, dir)
	assert.True(t, filepath.IsAbs(dir))
	assert.True(t, strings.HasSuffix(dir, "burrow"))
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, "config.json"))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testConfig := GlobalConfig{
		SessionToken: "brw_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		APIURL:       "http://127.0.0.1:8642",
	}
	data, _ := json.MarshalIndent(testConfig, "", "  ")
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, testConfig.SessionToken, config.SessionToken)
	assert.Equal(t, testConfig.APIURL, config.APIURL)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	require.NoError(t, os.WriteFile(configPath, []byte("{invalid json}"), 0600))

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	config, err := LoadGlobalConfig()
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "burrow")
	configPath := filepath.Join(configDir, "config.json")

	oldGetConfigDir := getConfigDirFunc
	oldGetConfigPath := getConfigPathFunc
	getConfigDirFunc = func() (string, error) {
		return configDir, nil
	}
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() {
		getConfigDirFunc = oldGetConfigDir
		getConfigPathFunc = oldGetConfigPath
	}()

	config := &GlobalConfig{
		SessionToken: "brw_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		APIURL:       "http://127.0.0.1:8642",
	}

	err := SaveGlobalConfig(config)
	require.NoError(t, err)

	assert.DirExists(t, configDir)
	assert.FileExists(t, configPath)
}

func TestSaveGlobalConfig_SetCorrectPermissions(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	oldGetConfigDir := getConfigDirFunc
	oldGetConfigPath := getConfigPathFunc
	getConfigDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() {
		getConfigDirFunc = oldGetConfigDir
		getConfigPathFunc = oldGetConfigPath
	}()

	config := &GlobalConfig{
		SessionToken: "brw_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		APIURL:       "http://127.0.0.1:8642",
	}

	err := SaveGlobalConfig(config)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	err := SaveGlobalConfig(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestDeleteGlobalConfig_FileExists(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0600))

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	err := DeleteGlobalConfig()
	require.NoError(t, err)
	assert.NoFileExists(t, configPath)
}

func TestDeleteGlobalConfig_FileNotExists(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nonexistent.json")

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	err := DeleteGlobalConfig()
	require.NoError(t, err)
}

func TestIsValidSessionToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"generated token", "brw_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", true},
		{"operator secret", "my-shared-secret-for-local-dev", true},
		{"short but valid", "abc123", true},
		{"empty", "", false},
		{"contains space", "brw_0123 4567", false},
		{"contains tab", "brw_0123\t4567", false},
		{"contains newline", "brw_01234567\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidSessionToken(tt.token))
		})
	}
}

func TestGetCredentialSource_FlagPriority(t *testing.T) {
	t.Setenv("BURROW_SESSION_TOKEN", "env-token-0123456789abcdef")
	t.Setenv("BURROW_API_URL", "http://env:8642")

	source, token, url := GetCredentialSource("flag-token-0123456789abcdef", "http://flag:8642")

	assert.Equal(t, SourceFlag, source)
	assert.Equal(t, "flag-token-0123456789abcdef", token)
	assert.Equal(t, "http://flag:8642", url)
}

func TestGetCredentialSource_EnvPriority(t *testing.T) {
	t.Setenv("BURROW_SESSION_TOKEN", "env-token-0123456789abcdef")
	t.Setenv("BURROW_API_URL", "http://env:8642")

	source, token, url := GetCredentialSource("", "")

	assert.Equal(t, SourceEnv, source)
	assert.Equal(t, "env-token-0123456789abcdef", token)
	assert.Equal(t, "http://env:8642", url)
}

func TestGetCredentialSource_TokenAloneSuffices(t *testing.T) {
	t.Setenv("BURROW_SESSION_TOKEN", "env-token-0123456789abcdef")
	t.Setenv("BURROW_API_URL", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	source, token, url := GetCredentialSource("", "")

	assert.Equal(t, SourceEnv, source)
	assert.Equal(t, "env-token-0123456789abcdef", token)
	assert.Equal(t, "http://127.0.0.1:8642", url)
}

func TestGetCredentialSource_GlobalConfigPriority(t *testing.T) {
	t.Setenv("BURROW_SESSION_TOKEN", "")
	t.Setenv("BURROW_API_URL", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testConfig := GlobalConfig{
		SessionToken: "config-token-0123456789abcdef",
		APIURL:       "http://global:8642",
	}
	data, _ := json.MarshalIndent(testConfig, "", "  ")
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	source, token, url := GetCredentialSource("", "")

	assert.Equal(t, SourceGlobalConfig, source)
	assert.Equal(t, testConfig.SessionToken, token)
	assert.Equal(t, testConfig.APIURL, url)
}

func TestGetCredentialSource_NoCredentials(t *testing.T) {
	t.Setenv("BURROW_SESSION_TOKEN", "")
	t.Setenv("BURROW_API_URL", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	source, token, url := GetCredentialSource("", "")

	assert.Equal(t, SourceNone, source)
	assert.Empty(t, token)
	assert.Empty(t, url)
}

func TestGetCredentialSource_EnvOverridesGlobalConfig(t *testing.T) {
	t.Setenv("BURROW_SESSION_TOKEN", "env-token-0123456789abcdef")
	t.Setenv("BURROW_API_URL", "http://env:8642")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testConfig := GlobalConfig{
		SessionToken: "config-token-0123456789abcdef",
		APIURL:       "http://global:8642",
	}
	data, _ := json.MarshalIndent(testConfig, "", "  ")
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	source, token, url := GetCredentialSource("", "")

	assert.Equal(t, SourceEnv, source)
	assert.Equal(t, "env-token-0123456789abcdef", token)
	assert.Equal(t, "http://env:8642", url)
}

func TestRoundTrip_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	oldGetConfigDir := getConfigDirFunc
	oldGetConfigPath := getConfigPathFunc
	getConfigDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	defer func() {
		getConfigDirFunc = oldGetConfigDir
		getConfigPathFunc = oldGetConfigPath
	}()

	originalConfig := &GlobalConfig{
		SessionToken: "brw_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		APIURL:       "http://127.0.0.1:8642",
	}
	err := SaveGlobalConfig(originalConfig)
	require.NoError(t, err)

	loadedConfig, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, loadedConfig)

	assert.Equal(t, originalConfig.SessionToken, loadedConfig.SessionToken)
	assert.Equal(t, originalConfig.APIURL, loadedConfig.APIURL)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("short"))
	assert.Equal(t, "brw_012...cdef", maskToken("brw_0123456789abcdef"))
}
