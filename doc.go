// Package pgephemeral provides isolated, disposable PostgreSQL environments
// for automated tests. It covers two composable concerns: standing up a
// throwaway database server in a container, and carving out a throwaway
// logical database inside an already-running server.
//
// Both follow the same acquire-use-release shape: the scope provisions its
// resource, hands connection parameters to a caller-supplied callback, and
// tears the resource down on every exit path, including callback errors and
// panics. Teardown failures are reported in a separate result slot so they
// never mask the callback's own outcome.
//
// Usage:
//
//	result := pgephemeral.WithServer("postgres:16-alpine", func(admin pgephemeral.ConnParams) (int, error) {
//	    inner := pgephemeral.WithDatabase(admin, pgephemeral.TLSDisable, func(params pgephemeral.ConnParams) (int, error) {
//	        db, err := sql.Open("pgx", params.URL())
//	        if err != nil {
//	            return 0, err
//	        }
//	        defer func() { _ = db.Close() }()
//
//	        if _, err := db.Exec("CREATE TABLE test()"); err != nil {
//	            return 0, err
//	        }
//	        return 42, nil
//	    })
//	    return inner.Unwrap()
//	})
//
// The outer callback sees administrative parameters pointing at the
// bootstrap database; the inner callback sees parameters pointing at a
// freshly created, uniquely named database. Both resources are gone by the
// time the corresponding With* call returns.
//
// Scopes are synchronous and self-contained: concurrent invocations get
// their own container port or their own database name, so no coordination
// between parallel test processes is required.
package pgephemeral
