//go:build integration

package matchmaking_test

import (
	"log"
	"os"
	"testing"

	"github.com/Black-And-White-Club/frag-arena/integration_tests/testutils"
)

var testEnv *testutils.TestEnvironment

func TestMain(m *testing.M) {
	env, err := testutils.NewTestEnvironment(testutils.Options{Postgres: true})
	if err != nil {
		log.Fatalf("failed to set up test environment: %v", err)
	}
	testEnv = env

	code := m.Run()
	env.Cleanup()
	os.Exit(code)
}
