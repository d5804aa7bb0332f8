// Command docbridged runs the document bridge: it loads configuration, wires
// up the plugin set, and serves the web dashboard and JSON API.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/bigcapital"
	"github.com/docbridge/docbridge/plugins/docstore"
	"github.com/docbridge/docbridge/plugins/docstore/memstore"
	"github.com/docbridge/docbridge/plugins/docstore/postgres"
	"github.com/docbridge/docbridge/plugins/docstore/sqlite"
	"github.com/docbridge/docbridge/plugins/invoiceninja"
	"github.com/docbridge/docbridge/plugins/invoiceplane"
	"github.com/docbridge/docbridge/plugins/ocr"
	"github.com/docbridge/docbridge/plugins/paperless"
	"github.com/docbridge/docbridge/plugins/webui"
	"github.com/docbridge/docbridge/plugins/workqueue"
	"github.com/docbridge/docbridge/plugins/workqueue/memqueue"
	"github.com/docbridge/docbridge/plugins/workqueue/redisqueue"
	"github.com/docbridge/docbridge/server"
)

func init() {
	docbridge.RegisterConfigKeys(
		docbridge.ConfigKeyInfo{
			Key:         "plugins.docstore.backend",
			Description: "Document store backend: sqlite, postgres or memory",
			Type:        "string",
			Default:     "sqlite",
		},
		docbridge.ConfigKeyInfo{
			Key:         "plugins.docstore.dsn",
			Description: "Connection string for the document store backend",
			Type:        "string",
		},
		docbridge.ConfigKeyInfo{
			Key:         "plugins.workqueue.backend",
			Description: "Work queue backend: memory or redis",
			Type:        "string",
			Default:     "memory",
		},
		docbridge.ConfigKeyInfo{
			Key:         "plugins.workqueue.workers",
			Description: "Worker goroutines for the in-memory queue",
			Type:        "int",
			Default:     20,
		},
		docbridge.ConfigKeyInfo{
			Key:         "plugins.workqueue.redis.address",
			Description: "Redis address for the redis queue backend",
			Type:        "string",
			Default:     "localhost:6379",
		},
		docbridge.ConfigKeyInfo{
			Key:         "plugins.workqueue.redis.password",
			Description: "Redis password for the redis queue backend",
			Type:        "string",
		},
		docbridge.ConfigKeyInfo{
			Key:         "plugins.workqueue.redis.db",
			Description: "Redis database number for the redis queue backend",
			Type:        "int",
			Default:     0,
		},
	)
}

func main() {
	ctx := logging.With(context.Background(), newLogger())

	// Additional plugin config, typically the file watched for reloads.
	if path := docbridge.ConfigString("plugins.configFile"); path != "" {
		docbridge.LoadConfigFile(path)
	}

	s := server.New(
		server.WithBaseContext(ctx),
		server.WithPlugin(func() docbridge.Plugin { return docstore.Plugin(newStore()) }),
		server.WithPlugin(func() docbridge.Plugin { return workqueue.PluginFunc(newQueue) }),
		server.WithPlugin(func() docbridge.Plugin { return ocr.Plugin() }),
		server.WithPlugin(func() docbridge.Plugin { return paperless.Plugin() }),
		server.WithPlugin(func() docbridge.Plugin { return bigcapital.Plugin() }),
		server.WithPlugin(func() docbridge.Plugin { return invoiceninja.Plugin() }),
		server.WithPlugin(func() docbridge.Plugin { return invoiceplane.Plugin() }),
		server.WithPlugin(func() docbridge.Plugin { return webui.Plugin() }),
	)

	if err := s.Start(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	if docbridge.ConfigBool("logging.dev") {
		return logging.NewDevLogger()
	}
	return logging.NewProdLogger()
}

// newStore picks the document store backend from config. The default is a
// SQLite database under the data directory.
func newStore() docstore.Store {
	switch docbridge.ConfigString("plugins.docstore.backend") {
	case "postgres":
		return postgres.New(docbridge.ConfigString("plugins.docstore.dsn"))
	case "memory":
		return memstore.New()
	default:
		dsn := docbridge.ConfigString("plugins.docstore.dsn")
		if dsn == "" {
			dataDir := docbridge.ConfigString("storage.dataDir")
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				panic("unable to create data dir: " + err.Error())
			}
			dsn = filepath.Join(dataDir, "docbridge.db")
		}
		return sqlite.New(dsn)
	}
}

// newQueue picks the work queue backend from config. Runs at plugin Init so a
// broker connection failure shows up as a Failed plugin, not a crashed boot.
func newQueue(ctx context.Context, app *docbridge.AppContext) (workqueue.Queue, error) {
	if docbridge.ConfigString("plugins.workqueue.backend") == "redis" {
		return redisqueue.New(ctx, redisqueue.Config{
			Address:  docbridge.ConfigString("plugins.workqueue.redis.address"),
			Password: docbridge.ConfigString("plugins.workqueue.redis.password"),
			DB:       docbridge.ConfigInt("plugins.workqueue.redis.db"),
		})
	}
	workers := docbridge.ConfigInt("plugins.workqueue.workers")
	return memqueue.New(ctx, memqueue.WithWorkerPool(workers)), nil
}
