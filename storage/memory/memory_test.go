package memory

import (
	"testing"

	"github.com/jmcleod/folio/storage/storagetest"
)

func TestMemoryRepository(t *testing.T) {
	storagetest.Run(t, NewRepository())
}
