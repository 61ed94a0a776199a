package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server struct {
		Host    string        `toml:"host"`
		Port    int           `toml:"port"`
		Timeout time.Duration `toml:"timeout"`
	} `toml:"server"`
	Debug bool     `toml:"debug"`
	Tags  []string `toml:"tags"`
}

func testDefaults() *testConfig {
	d := &testConfig{Tags: []string{"a"}}
	d.Server.Host = "localhost"
	d.Server.Port = 8080
	d.Server.Timeout = 5 * time.Second
	return d
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRegister(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterStruct("", testDefaults()))
	assert.Equal(t, []string{"debug", "server.host", "server.port", "server.timeout", "tags"}, c.Paths())

	v, ok := c.Get("server.port")
	require.True(t, ok)
	assert.Equal(t, 8080, v)

	_, ok = c.Get("server")
	assert.False(t, ok)

	assert.Error(t, c.Register("", 1))
	assert.Error(t, c.Register("bad key", 1))
	assert.Error(t, c.RegisterStruct("", nil))
	assert.Error(t, c.RegisterStruct("", 5))

	var nilDefaults *testConfig
	assert.Error(t, c.RegisterStruct("", nilDefaults))
}

func TestSourcePrecedence(t *testing.T) {
	file := writeFile(t, "app.toml", `
debug = true

[server]
host = "filehost"
port = 9000
`)
	t.Setenv("TEST_SERVER_PORT", "9100")

	cfg, err := NewBuilder().
		WithDefaults(testDefaults()).
		WithEnvPrefix("TEST_").
		WithFile(file).
		WithArgs([]string{"--server.host=clihost"}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, file, cfg.File())

	var got testConfig
	require.NoError(t, cfg.Scan("", &got))
	assert.Equal(t, "clihost", got.Server.Host)
	assert.Equal(t, 9100, got.Server.Port)
	assert.True(t, got.Debug)
	assert.Equal(t, 5*time.Second, got.Server.Timeout)

	for path, want := range map[string]Source{
		"server.host":    SourceCLI,
		"server.port":    SourceEnv,
		"debug":          SourceFile,
		"server.timeout": SourceDefault,
	} {
		src, err := cfg.Source(path)
		require.NoError(t, err)
		assert.Equal(t, want, src, path)
	}
	_, err = cfg.Source("missing")
	assert.ErrorIs(t, err, ErrPathNotRegistered)
}

func TestCustomSourceOrder(t *testing.T) {
	file := writeFile(t, "app.toml", "[server]\nport = 9000\n")
	t.Setenv("TEST_SERVER_PORT", "9100")

	cfg, err := NewBuilder().
		WithDefaults(testDefaults()).
		WithEnvPrefix("TEST_").
		WithFile(file).
		WithSources(SourceFile, SourceEnv, SourceDefault).
		Build()
	require.NoError(t, err)

	v, _ := cfg.Get("server.port")
	assert.Equal(t, int64(9000), v)
}

func TestFileFormats(t *testing.T) {
	cases := map[string]string{
		"app.toml": "[server]\nhost = \"h\"\nport = 1\n",
		"app.json": `{"server": {"host": "h", "port": 1}}`,
		"app.yaml": "server:\n  host: h\n  port: 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			var got testConfig
			err := NewBuilder().
				WithDefaults(testDefaults()).
				WithFile(writeFile(t, name, content)).
				BuildAndScan(&got)
			require.NoError(t, err)
			assert.Equal(t, "h", got.Server.Host)
			assert.Equal(t, 1, got.Server.Port)
		})
	}

	t.Run("UnknownExtension", func(t *testing.T) {
		_, err := NewBuilder().WithDefaults(testDefaults()).WithFile(writeFile(t, "app.ini", "x=1")).Build()
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := NewBuilder().WithDefaults(testDefaults()).WithFile(writeFile(t, "app.toml", "[server")).Build()
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestMissingFile(t *testing.T) {
	var got testConfig
	err := NewBuilder().
		WithDefaults(testDefaults()).
		WithFile(filepath.Join(t.TempDir(), "missing.toml")).
		WithArgs([]string{"--debug"}).
		BuildAndScan(&got)
	require.ErrorIs(t, err, ErrConfigNotFound)

	// other sources still apply
	assert.True(t, got.Debug)
	assert.Equal(t, "localhost", got.Server.Host)
}

func TestCLI(t *testing.T) {
	t.Run("Forms", func(t *testing.T) {
		var got testConfig
		err := NewBuilder().
			WithDefaults(testDefaults()).
			WithArgs([]string{"positional", "--server.host", "spaced", "--server.port=7", "--debug", "--tags=x,y"}).
			BuildAndScan(&got)
		require.NoError(t, err)
		assert.Equal(t, "spaced", got.Server.Host)
		assert.Equal(t, 7, got.Server.Port)
		assert.True(t, got.Debug)
		assert.Equal(t, []string{"x", "y"}, got.Tags)
	})

	t.Run("QuotedValue", func(t *testing.T) {
		assert.Equal(t, "true", parseValue(`"true"`))
		assert.Equal(t, false, parseValue("false"))
		assert.Equal(t, "8080", parseValue("8080"))
	})

	t.Run("UnregisteredPath", func(t *testing.T) {
		_, err := NewBuilder().WithDefaults(testDefaults()).WithArgs([]string{"--server.name=x"}).Build()
		assert.ErrorIs(t, err, ErrCLIParse)
		assert.ErrorIs(t, err, ErrPathNotRegistered)
	})

	t.Run("InvalidSegment", func(t *testing.T) {
		_, err := NewBuilder().WithDefaults(testDefaults()).WithArgs([]string{"--server..host=x"}).Build()
		assert.ErrorIs(t, err, ErrCLIParse)
	})

	t.Run("FatalEvenWithMissingFile", func(t *testing.T) {
		_, err := NewBuilder().
			WithDefaults(testDefaults()).
			WithFile(filepath.Join(t.TempDir(), "missing.toml")).
			WithArgs([]string{"--nope=1"}).
			Build()
		assert.ErrorIs(t, err, ErrCLIParse)
		assert.NotErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestScanSection(t *testing.T) {
	cfg, err := NewBuilder().WithDefaults(testDefaults()).Build()
	require.NoError(t, err)

	var server struct {
		Host string `toml:"host"`
		Port int    `toml:"port"`
	}
	require.NoError(t, cfg.Scan("server", &server))
	assert.Equal(t, "localhost", server.Host)

	assert.Error(t, cfg.Scan("debug", &server))
	assert.Error(t, cfg.Scan("", server))
}

func TestValidator(t *testing.T) {
	_, err := NewBuilder().
		WithDefaults(testDefaults()).
		WithArgs([]string{"--server.port=0"}).
		WithValidator(func(c *Config) error {
			var got testConfig
			if err := c.Scan("", &got); err != nil {
				return err
			}
			if got.Server.Port == 0 {
				return assert.AnError
			}
			return nil
		}).
		Build()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHelpers(t *testing.T) {
	flat := flattenMap(map[string]any{
		"a": 1,
		"b": map[string]any{"c": 2, "d": map[string]any{"e": 3}},
	}, "")
	assert.Equal(t, map[string]any{"a": 1, "b.c": 2, "b.d.e": 3}, flat)

	nested := map[string]any{"b": "scalar"}
	setNestedValue(nested, "b.c", 1)
	assert.Equal(t, map[string]any{"b": map[string]any{"c": 1}}, nested)

	for s, want := range map[string]bool{"max_size": true, "a-b": true, "": false, "a.b": false, "a b": false} {
		assert.Equal(t, want, isValidKeySegment(s), s)
	}
}
