package storage

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  fmt.Sprintf("test-db-%d", time.Now().UnixNano()),
	}

	ctx := t.Context()
	require.NoError(t, f.Validate())
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	testDatabase(t, ctx, f)
}
