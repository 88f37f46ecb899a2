// Package ociadapt adapts a positional-placeholder SQL API onto an
// Oracle-style native client whose parameters are named and whose cursors
// and LOBs are first-class resources.
//
// # Placeholder rewriting
//
// Rewrite turns every "?" outside a quoted literal into a uniquely named
// marker and reports the occurrence-order map:
//
//	text, params := ociadapt.Rewrite("SELECT * FROM t WHERE a = ? AND b = '?'", ociadapt.Base0)
//	// text   = "SELECT * FROM t WHERE a = :param0 AND b = '?'"
//	// params = {0: ":param0"}
//
// # Statements
//
// Prepare wires the rewrite and the native handle together:
//
//	st, err := ociadapt.Prepare(conn, "SELECT name, bio FROM users WHERE id = ?",
//	    ociadapt.WithLowercaseKeys(),
//	    ociadapt.WithLobPreload(),
//	)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	if err := st.ExecArgs([]any{42}); err != nil {
//	    return err
//	}
//	st.SetFetchMode(ociadapt.FetchAssoc)
//	for {
//	    row, ok, err := st.Fetch()
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        break
//	    }
//	    // row is a map[string]any
//	}
//
// Fetch modes cover positional rows, associative rows, single-column
// projection, and object hydration into maps, constructed values or a
// caller-supplied instance. FetchAll additionally expands output cursors
// returned by stored procedures into the surrounding result.
//
// The native side of the contract lives in the oci package; see oci.Conn
// for the operations an implementation must provide.
package ociadapt
