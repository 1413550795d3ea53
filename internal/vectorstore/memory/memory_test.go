package memory

import (
	"testing"

	"docsearch/internal/vectorstore"
	"docsearch/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store { return NewStorage() })
}
