package lockx

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// A leaked waiter is the characteristic failure of a lock library.
	goleak.VerifyTestMain(m)
}
