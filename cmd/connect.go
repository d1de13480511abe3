// Copyright © 2026 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/luthersystems/v8bridge/debugger"
	"github.com/luthersystems/v8bridge/debugger/transport"
	"github.com/luthersystems/v8bridge/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// scriptExts are the local files offered to the path mapper.
var scriptExts = []string{".js", ".mjs", ".cjs"}

// client bundles a connected session with the resources it owns.
type client struct {
	cfg      *Config
	log      *logrus.Logger
	session  *debugger.Session
	shutdown func(context.Context) error
}

// setup loads the configuration and logger shared by every command.
func setup(stderr io.Writer) (*Config, *logrus.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("using config file")
	}
	return cfg, log, nil
}

// connect dials the debuggee described by cfg and waits for its
// handshake.
func connect(ctx context.Context, cfg *Config, log *logrus.Logger, opts ...debugger.Option) (*client, error) {
	paths := debugger.NewPathMapper()
	if cfg.SourceRoot != "" {
		files, err := debugger.ScanDir(cfg.SourceRoot, scriptExts...)
		if err != nil {
			return nil, fmt.Errorf("scan source root: %w", err)
		}
		paths.Add(files...)
		log.WithField("files", len(files)).Debug("scanned source root")
	}

	kind, err := telemetry.ParseKind(cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	sink, shutdown := telemetry.Setup(kind, log)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	var tr transport.Transport
	if cfg.WSURL != "" {
		tr, err = transport.DialWebSocket(dialCtx, cfg.WSURL, nil)
	} else {
		tr, err = transport.DialTCP(dialCtx, cfg.Addr(), cfg.ConnectTimeout)
	}
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}

	opts = append([]debugger.Option{
		debugger.WithLogger(log),
		debugger.WithTelemetry(sink),
		debugger.WithRequestTimeout(cfg.RequestTimeout),
		debugger.WithPathMapper(paths),
	}, opts...)
	s := debugger.New(tr, opts...)
	hs, err := s.WaitHandshake(dialCtx)
	if err != nil {
		_ = s.Close()
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("waiting for debuggee handshake: %w", err)
	}
	log.WithFields(logrus.Fields{
		"session":  s.ID(),
		"v8":       hs.V8Version,
		"protocol": hs.ProtocolVersion,
		"host":     hs.EmbeddingHost,
	}).Info("attached")
	return &client{cfg: cfg, log: log, session: s, shutdown: shutdown}, nil
}

// close detaches from the debuggee and flushes telemetry.
func (c *client) close(ctx context.Context) {
	if err := c.session.Disconnect(ctx); err != nil {
		c.log.WithError(err).Debug("disconnect")
	}
	if err := c.shutdown(ctx); err != nil {
		c.log.WithError(err).Debug("telemetry shutdown")
	}
}
