// Copyright © 2026 The ELPS authors

package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/luthersystems/v8bridge/bridgetest"
	"github.com/luthersystems/v8bridge/debugger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("host", defaultHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("request-timeout", defaultRequestTimeout)
	v.SetDefault("connect-timeout", defaultConnectTimeout)
	v.SetDefault("log-level", "warn")
	v.SetDefault("log-format", "text")
	v.SetDefault("telemetry", "none")
	v.SetDefault("color", "auto")
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(defaultViper())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5858", cfg.Addr())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v8bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"host: debuggee.local",
		"port: 9229",
		"request-timeout: 3s",
		"source-root: /srv/app",
		"telemetry: otel",
		"log-format: json",
	}, "\n")), 0o600))

	v := defaultViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "debuggee.local:9229", cfg.Addr())
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/srv/app", cfg.SourceRoot)
	assert.Equal(t, "otel", cfg.Telemetry)

	log, err := newLogger(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]interface{}{
		"port":            0,
		"request-timeout": "0s",
		"color":           "sometimes",
		"telemetry":       "zipkin",
	}
	for key, val := range tests {
		v := defaultViper()
		v.Set(key, val)
		_, err := loadConfig(v)
		assert.Error(t, err, key)
	}

	cfg, err := loadConfig(defaultViper())
	require.NoError(t, err)
	cfg.LogLevel = "loud"
	_, err = newLogger(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseCatch(t *testing.T) {
	mode, err := parseCatch("Uncaught")
	require.NoError(t, err)
	assert.Equal(t, debugger.ExceptionBreakUncaught, mode)
	_, err = parseCatch("some")
	assert.Error(t, err)
}

func TestFaultDiagnostic(t *testing.T) {
	d := faultDiagnostic(&debugger.CommandError{Command: "evaluate", Message: "ReferenceError"})
	assert.Equal(t, "evaluate: ReferenceError", d.Message)
	assert.Equal(t, []string{"the debuggee refused evaluate"}, d.Notes)

	d = faultDiagnostic(&debugger.TerminatedError{Cause: errors.New("EOF")})
	assert.Equal(t, []string{"the connection to the debuggee was lost"}, d.Notes)
}

func TestScriptsCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), nil, 0o600))
	config := filepath.Join(t.TempDir(), "v8bridge.yaml")
	require.NoError(t, os.WriteFile(config, []byte("log-level: debug\n"), 0o600))

	ln := bridgetest.Listen(t)
	host, port, err := net.SplitHostPort(ln.Addr())
	require.NoError(t, err)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(bridgetest.NewLogger(t))
	rootCmd.SetArgs([]string{"scripts", "--host", host, "--port", port, "--source-root", root, "--config", config})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	errc := make(chan error, 1)
	go func() { errc <- rootCmd.ExecuteContext(context.Background()) }()

	d := ln.Accept()
	d.Handshake("3.28.71.19", "node v0.12.7")
	d.Respond(d.Expect("scripts"), []map[string]interface{}{
		{"id": 30, "name": "/remote/app.js"},
		{"id": 31, "name": "node.js"},
	})
	d.Respond(d.Expect("disconnect"), nil)

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scripts did not finish")
	}
	assert.Contains(t, out.String(), "  30 /remote/app.js -> "+filepath.Join(root, "app.js"))
	assert.Contains(t, out.String(), "  31 node.js\n")
}
