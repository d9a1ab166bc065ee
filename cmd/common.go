package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/OpenBazaar/openbazaar-index/core"
	"github.com/OpenBazaar/openbazaar-index/schema"
	"github.com/natefinch/lumberjack"
	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
)

var log = logging.MustGetLogger("cmd")

var stdoutLogFormat = logging.MustStringFormatter(
	`%{color:reset}%{color}%{time:2006-01-02 15:04:05.000} [%{level}] [%{module}/%{shortfunc}] %{message}`,
)

var fileLogFormat = logging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} [%{level}] [%{module}/%{shortfunc}] %{message}`,
)

// RepoOptions are shared by every command that works on a data directory.
type RepoOptions struct {
	DataDir    string `short:"d" long:"datadir" description:"specify the data directory to be used"`
	Testnet    bool   `short:"t" long:"testnet" description:"use the testnet data directory"`
	LogLevel   string `short:"l" long:"loglevel" description:"set the logging level [debug, info, notice, warning, error, critical]" default:"info"`
	Verbose    bool   `short:"v" long:"verbose" description:"print logs to stdout"`
	NoLogFiles bool   `long:"nologfiles" description:"disable logging to files"`
}

func (x *RepoOptions) repoPath() (string, error) {
	if x.DataDir != "" {
		return x.DataDir, nil
	}
	nodeSchema, err := schema.NewCustomSchemaManager(schema.SchemaContext{TestModeEnabled: x.Testnet})
	if err != nil {
		return "", err
	}
	return nodeSchema.DataPath(), nil
}

func (x *RepoOptions) setupLogging(repoPath string) {
	var backends []logging.Backend
	if x.Verbose {
		backendStdout := logging.NewLogBackend(os.Stdout, "", 0)
		backends = append(backends, logging.NewBackendFormatter(backendStdout, stdoutLogFormat))
	}
	if !x.NoLogFiles {
		nodeSchema, err := schema.NewCustomSchemaManager(schema.SchemaContext{DataPath: repoPath})
		if err == nil {
			w := &lumberjack.Logger{
				Filename:   nodeSchema.LogPath(),
				MaxSize:    10, // Megabytes
				MaxBackups: 3,
				MaxAge:     30, // Days
			}
			backendFile := logging.NewLogBackend(w, "", 0)
			backends = append(backends, logging.NewBackendFormatter(backendFile, fileLogFormat))
		}
	}
	if len(backends) == 0 {
		backends = append(backends, logging.NewLogBackend(&DummyWriter{}, "", 0))
	}
	logging.SetBackend(backends...)
	logging.SetLevel(parseLevel(x.LogLevel), "")
}

func parseLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.DEBUG
	case "notice":
		return logging.NOTICE
	case "warning":
		return logging.WARNING
	case "error":
		return logging.ERROR
	case "critical":
		return logging.CRITICAL
	}
	return logging.INFO
}

// openNode opens the data directory and sets core.Node.
func (x *RepoOptions) openNode() (*core.IndexNode, error) {
	repoPath, err := x.repoPath()
	if err != nil {
		return nil, err
	}
	x.setupLogging(repoPath)
	n, err := core.NewNode(repoPath, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	core.Node = n
	return n, nil
}

// withNode runs fn against an opened node and closes it afterwards.
func (x *RepoOptions) withNode(fn func(ctx context.Context, n *core.IndexNode) error) error {
	n, err := x.openNode()
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Errorf("closing data directory: %s", err)
		}
		core.Node = nil
	}()
	return fn(context.Background(), n)
}

// DummyWriter - discards log output when no backend is enabled
type DummyWriter struct{}

// Write - pretend to write
func (d *DummyWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}
