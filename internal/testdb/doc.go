// Package testdb provides utilities for PostgreSQL integration tests.
//
// Each test runs inside its own transaction, which is rolled back when the
// test completes, so tests can run in parallel against one database without
// cleanup:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        sessions := postgres.NewPostgresSessionStore(tx, nil)
//	        ...
//	    })
//	}
//
// GetTestDBWithT skips the test when DATABASE_URL is not set and applies the
// embedded migrations once per process.
package testdb
