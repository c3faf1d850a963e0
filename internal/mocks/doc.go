// Package mocks provides hand-written test doubles shared across packages.
//
// Most mocks expose ...Fn fields that override one method each and fall
// back to an in-memory default, so a test only stubs what it asserts on:
//
//	jobs := mocks.NewMockContentJobStore()
//	jobs.FinalizeFn = func(ctx context.Context, jobID uuid.UUID, o store.Outcome) (bool, error) {
//	    return false, errors.New("connection reset")
//	}
//
// TestifyMockUserStore is the exception; it records expectations with
// testify/mock for tests that check call order and arguments.
package mocks
