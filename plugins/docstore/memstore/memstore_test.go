package memstore

import (
	"testing"

	"github.com/docbridge/docbridge/plugins/docstore"
	"github.com/docbridge/docbridge/plugins/docstore/storetests"
)

func TestMemStore(t *testing.T) {
	storetests.Run(t, func(t *testing.T) docstore.Store {
		return New()
	})
}
