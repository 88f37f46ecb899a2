package ociadapt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DamienR91/ociadapt/oci"
	"github.com/DamienR91/ociadapt/oci/ocimock"
)

func TestPrepareRewritesText(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT * FROM users WHERE id = :param0")

	st, err := Prepare(conn, "SELECT * FROM users WHERE id = ?")
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, "SELECT * FROM users WHERE id = :param0", st.Text())
	assert.Equal(t, []string{"SELECT * FROM users WHERE id = :param0"}, conn.Prepared)
}

func TestPrepareError(t *testing.T) {
	conn := ocimock.New()
	_, err := Prepare(conn, "SELECT * FROM nowhere")
	require.Error(t, err)
	assert.True(t, IsDriverError(err))
}

func TestPrepareRejectsUnknownFetchMode(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT 1 FROM dual").Columns("1").AddRow(int64(1))

	_, err := Prepare(conn, "SELECT 1 FROM dual", WithFetchMode(FetchMode(99)))
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
	assert.Empty(t, conn.Prepared, "nothing reaches the native client")
}

func TestBindTranslatesIdentity(t *testing.T) {
	conn := ocimock.New()
	conn.Script("UPDATE t SET a = :param0 WHERE b = :param1")

	st, err := Prepare(conn, "UPDATE t SET a = ? WHERE b = ?")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Bind(0, "new"))
	require.NoError(t, st.Bind(1, 42, WithMaxLen(8)))
	require.NoError(t, st.Bind(":param1", 43)) // named identity passes through

	require.Len(t, conn.Prepared, 1)
	handle := connStmt(t, conn, "UPDATE t SET a = :param0 WHERE b = :param1")
	assert.Equal(t, "new", handle.Binds[":param0"].Value)
	assert.Equal(t, 43, handle.Binds[":param1"].Value)
	assert.Equal(t, []string{":param0", ":param1"}, handle.BindOrder)
}

func TestExecFetchAssocSingleRow(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT id, name FROM users WHERE id = :param0").
		Columns("ID", "NAME").
		AddRow(int64(1), "ada")

	st, err := Prepare(conn, "SELECT id, name FROM users WHERE id = ?")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SetFetchMode(FetchAssoc))
	require.NoError(t, st.ExecArgs([]any{1}))

	v, ok, err := st.Fetch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"ID": int64(1), "NAME": "ada"}, v)

	_, ok, err = st.Fetch()
	require.NoError(t, err)
	assert.False(t, ok, "exhausted result set must signal no more rows")
}

func TestExecNamed(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT a FROM t WHERE b = :param0").Columns("A").AddRow("x")

	st, err := Prepare(conn, "SELECT a FROM t WHERE b = ?")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.ExecNamed(map[string]any{":param0": "hello"}))
	handle := connStmt(t, conn, "SELECT a FROM t WHERE b = :param0")
	assert.Equal(t, "hello", handle.Binds[":param0"].Value)
	assert.Equal(t, 1, handle.Executed)
}

func TestExecArgsBaseOne(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT a FROM t WHERE b = :param1 AND c = :param2").Columns("A")

	st, err := Prepare(conn, "SELECT a FROM t WHERE b = ? AND c = ?", WithBase(Base1))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.ExecArgs([]any{"b", "c"}))
	handle := connStmt(t, conn, "SELECT a FROM t WHERE b = :param1 AND c = :param2")
	assert.Equal(t, "b", handle.Binds[":param1"].Value)
	assert.Equal(t, "c", handle.Binds[":param2"].Value)
}

func TestExecErrorWrapsDescriptor(t *testing.T) {
	conn := ocimock.New()
	conn.Script("DELETE FROM t").FailExec(942, "table or view does not exist")

	st, err := Prepare(conn, "DELETE FROM t")
	require.NoError(t, err)
	defer st.Close()

	err = st.Exec()
	require.Error(t, err)
	require.True(t, IsDriverError(err))
	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 942, de.Code())
	assert.Contains(t, err.Error(), "table or view does not exist")
}

func TestFetchModes(t *testing.T) {
	script := func() *ocimock.Conn {
		conn := ocimock.New()
		conn.Script("SELECT id, name FROM users").
			Columns("ID", "NAME").
			AddRow(int64(7), "grace").
			AddRow(int64(8), "ada")
		return conn
	}

	t.Run("both", func(t *testing.T) {
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		row, isRow := v.(Row)
		require.True(t, isRow)
		assert.Equal(t, int64(7), row.Index(0))
		name, found := row.Get("NAME")
		require.True(t, found)
		assert.Equal(t, "grace", name)
	})

	t.Run("numeric", func(t *testing.T) {
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.SetFetchMode(FetchNumeric))
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []any{int64(7), "grace"}, v)
	})

	t.Run("column default index", func(t *testing.T) {
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.SetFetchMode(FetchColumn))
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(7), v)
	})

	t.Run("column explicit index", func(t *testing.T) {
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.SetFetchMode(FetchColumn, 1))
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "grace", v)
	})

	t.Run("column index out of range signals no more rows", func(t *testing.T) {
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.SetFetchMode(FetchColumn, 5))
		require.NoError(t, st.Exec())
		_, ok, err := st.Fetch()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("object", func(t *testing.T) {
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.SetFetchMode(FetchObject))
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"ID": int64(7), "NAME": "grace"}, v)
	})

	t.Run("class", func(t *testing.T) {
		type user struct {
			ID   int64
			Name string
		}
		st := prepared(t, script(), "SELECT id, name FROM users")
		ctor := func(args ...any) any { return &user{} }
		require.NoError(t, st.SetFetchMode(FetchClass, Constructor(ctor)))
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		u, isUser := v.(*user)
		require.True(t, isUser)
		assert.Equal(t, int64(7), u.ID)
		assert.Equal(t, "grace", u.Name)
	})

	t.Run("into reuses the same instance", func(t *testing.T) {
		type user struct {
			ID   int64
			Name string
		}
		target := &user{}
		st := prepared(t, script(), "SELECT id, name FROM users")
		require.NoError(t, st.SetFetchMode(FetchInto, target))
		require.NoError(t, st.Exec())

		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, target, v)
		assert.Equal(t, "grace", target.Name)

		_, ok, err = st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "ada", target.Name, "second row overwrites the same instance")
	})
}

func TestFetchWithOverrideDoesNotPersist(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT id, name FROM users").
		Columns("ID", "NAME").
		AddRow(int64(1), "a").
		AddRow(int64(2), "b")

	st := prepared(t, conn, "SELECT id, name FROM users")
	require.NoError(t, st.SetFetchMode(FetchAssoc))
	require.NoError(t, st.Exec())

	v, ok, err := st.FetchWith(FetchNumeric)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), "a"}, v)

	// Active mode is still assoc.
	v, ok, err = st.Fetch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"ID": int64(2), "NAME": "b"}, v)
}

func TestFetchWithClassWithoutConstructor(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT id FROM t").Columns("ID").AddRow(int64(1))
	st := prepared(t, conn, "SELECT id FROM t")
	require.NoError(t, st.Exec())

	_, _, err := st.FetchWith(FetchClass)
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
}

func TestLowercaseKeys(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT id, name FROM users").
		Columns("ID", "NAME").
		AddRow(int64(1), "a")

	st, err := Prepare(conn, "SELECT id, name FROM users", WithLowercaseKeys(), WithFetchMode(FetchAssoc))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Exec())

	v, ok, err := st.Fetch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "a"}, v)
}

func TestLobMaterialization(t *testing.T) {
	newConn := func() *ocimock.Conn {
		conn := ocimock.New()
		conn.Script("SELECT id, bio, avatar FROM users").
			Columns("ID", "BIO", "AVATAR").
			AddRow(int64(1), oci.NewLob(oci.BindClob, []byte("a long story")), oci.NewLob(oci.BindBlob, []byte{0xCA, 0xFE}))
		return conn
	}

	t.Run("preload on", func(t *testing.T) {
		for _, mode := range []FetchMode{FetchBoth, FetchAssoc, FetchNumeric, FetchObject} {
			st, err := Prepare(newConn(), "SELECT id, bio, avatar FROM users", WithLobPreload(), WithFetchMode(mode))
			require.NoError(t, err)
			require.NoError(t, st.Exec())
			v, ok, err := st.Fetch()
			require.NoError(t, err, "mode %s", mode)
			require.True(t, ok)
			var bio, avatar any
			switch row := v.(type) {
			case Row:
				bio, avatar = row.Index(1), row.Index(2)
			case map[string]any:
				bio, avatar = row["BIO"], row["AVATAR"]
			case []any:
				bio, avatar = row[1], row[2]
			}
			assert.Equal(t, "a long story", bio, "mode %s", mode)
			assert.Equal(t, []byte{0xCA, 0xFE}, avatar, "mode %s", mode)
			st.Close()
		}
	})

	t.Run("preload off keeps descriptors", func(t *testing.T) {
		st, err := Prepare(newConn(), "SELECT id, bio, avatar FROM users", WithFetchMode(FetchNumeric))
		require.NoError(t, err)
		defer st.Close()
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		row := v.([]any)
		_, isLob := row[1].(*oci.Lob)
		assert.True(t, isLob)
	})

	t.Run("column mode materializes", func(t *testing.T) {
		st, err := Prepare(newConn(), "SELECT id, bio, avatar FROM users", WithLobPreload())
		require.NoError(t, err)
		defer st.Close()
		require.NoError(t, st.SetFetchMode(FetchColumn, 1))
		require.NoError(t, st.Exec())
		v, ok, err := st.Fetch()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "a long story", v)
	})
}

func TestFetchAllExpandsCursors(t *testing.T) {
	conn := ocimock.New()
	conn.Script("BEGIN report(:param0); END;").
		Columns("RESULTS").
		AddRow(ocimock.CursorRef("inner-1")).
		AddRow(ocimock.CursorRef("inner-2"))
	conn.Script("inner-1").
		Columns("N").
		AddRow(int64(1)).
		AddRow(int64(2))
	conn.Script("inner-2").
		Columns("N").
		AddRow(int64(3))

	st := prepared(t, conn, "BEGIN report(?); END;")
	require.NoError(t, st.SetFetchMode(FetchNumeric))
	require.NoError(t, st.ExecArgs([]any{"daily"}))

	rows, err := st.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "total rows equal the sum across expanded cursors")
	assert.Equal(t, []any{int64(1)}, rows[0])
	assert.Equal(t, []any{int64(2)}, rows[1])
	assert.Equal(t, []any{int64(3)}, rows[2])

	// Cursor sub-statements were executed and released.
	for _, text := range []string{"inner-1", "inner-2"} {
		handle := connStmt(t, conn, text)
		assert.Equal(t, 1, handle.Executed, "%s executed once", text)
		assert.GreaterOrEqual(t, handle.CloseCalls, 1, "%s released", text)
	}
}

func TestFetchAllNestedCursors(t *testing.T) {
	conn := ocimock.New()
	conn.Script("outer").Columns("C").AddRow(ocimock.CursorRef("mid"))
	conn.Script("mid").Columns("C").AddRow(ocimock.CursorRef("leaf")).AddRow(int64(10))
	conn.Script("leaf").Columns("N").AddRow(int64(1)).AddRow(int64(2))

	st := prepared(t, conn, "outer")
	require.NoError(t, st.SetFetchMode(FetchNumeric))
	require.NoError(t, st.Exec())

	rows, err := st.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1)}, []any{int64(2)}, []any{int64(10)}}, rows)
}

func TestFetchAllPlain(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT n FROM t").Columns("N").AddRow(int64(1)).AddRow(int64(2))

	st := prepared(t, conn, "SELECT n FROM t")
	require.NoError(t, st.SetFetchMode(FetchColumn))
	require.NoError(t, st.Exec())

	rows, err := st.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, rows)
	assert.Equal(t, int64(2), st.RowCount())
}

func TestBindCursorOutParameter(t *testing.T) {
	conn := ocimock.New()
	conn.Script("BEGIN open_users(:param0); END;").
		OutCursor(":param0", "users-cursor")
	conn.Script("users-cursor").
		Columns("NAME").
		AddRow("ada").
		AddRow("grace")

	st := prepared(t, conn, "BEGIN open_users(?); END;")
	cur, err := st.BindCursor(0)
	require.NoError(t, err)
	require.NoError(t, st.SetFetchMode(FetchAssoc))
	require.NoError(t, st.Exec())

	// The populated cursor is consumable as its own statement.
	require.NotNil(t, cur.Stmt())
	sub := &Statement{conn: conn, stmt: cur.Stmt(), params: newParamMap(), binds: map[string]any{}, cfg: fetchConfig{mode: FetchAssoc}}
	require.NoError(t, sub.Exec())
	rows, err := sub.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"NAME": "ada"}, rows[0])
	require.NoError(t, sub.Close())
}

func TestRowCountFromNative(t *testing.T) {
	conn := ocimock.New()
	conn.Script("DELETE FROM t WHERE a = :param0").Affected(3)

	st := prepared(t, conn, "DELETE FROM t WHERE a = ?")
	require.NoError(t, st.ExecArgs([]any{1}))
	assert.Equal(t, int64(3), st.RowCount())
}

func TestBufferedFetch(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT n FROM t").Columns("N").AddRow(int64(1)).AddRow(int64(2))

	st, err := Prepare(conn, "SELECT n FROM t", WithBuffered(), WithFetchMode(FetchNumeric))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Exec())

	v, ok, err := st.Fetch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1)}, v)

	// The full set was drained on the first fetch.
	handle := connStmt(t, conn, "SELECT n FROM t")
	_, more, err := handle.Fetch(oci.ShapeBoth)
	require.NoError(t, err)
	assert.False(t, more)

	v, ok, err = st.Fetch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(2)}, v)

	_, ok, err = st.Fetch()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCloseIdempotent(t *testing.T) {
	conn := ocimock.New()
	conn.Script("SELECT 1 FROM dual").Columns("1")

	st := prepared(t, conn, "SELECT 1 FROM dual")
	handle := connStmt(t, conn, "SELECT 1 FROM dual")

	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	assert.Equal(t, 1, handle.CloseCalls, "native free happens exactly once")

	_, _, err := st.Fetch()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, st.Exec(), ErrClosed)
}

func TestCloseReleasesResources(t *testing.T) {
	conn := ocimock.New()
	conn.Script("BEGIN p(:param0, :param1); END;")

	st := prepared(t, conn, "BEGIN p(?, ?); END;")
	_, err := st.BindCursor(0)
	require.NoError(t, err)
	lob, err := st.BindLob(1, oci.BindClob, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, st.Close())
	_, err = lob.Load()
	assert.Error(t, err, "lob descriptor was freed with the statement")
}

func TestBindLobWritesContent(t *testing.T) {
	conn := ocimock.New()
	conn.Script("INSERT INTO docs (body) VALUES (:param0)")

	st := prepared(t, conn, "INSERT INTO docs (body) VALUES (?)")
	lob, err := st.BindLob(0, oci.BindClob, []byte("document body"))
	require.NoError(t, err)

	content, err := lob.Load()
	require.NoError(t, err)
	assert.Equal(t, "document body", string(content))

	handle := connStmt(t, conn, "INSERT INTO docs (body) VALUES (:param0)")
	bound := handle.Binds[":param0"]
	assert.Equal(t, oci.BindClob, bound.Type)
	assert.Equal(t, len("document body"), bound.MaxLen)
	assert.Same(t, lob, bound.Value)
}

func TestBindLobRejectsScalarKind(t *testing.T) {
	conn := ocimock.New()
	conn.Script("INSERT INTO docs (body) VALUES (:param0)")

	st := prepared(t, conn, "INSERT INTO docs (body) VALUES (?)")
	_, err := st.BindLob(0, oci.BindDefault, []byte("x"))
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
}

// prepared is a test helper returning an executed-ready statement whose
// close is taken care of by cleanup.
func prepared(t *testing.T, conn oci.Conn, query string, opts ...Option) *Statement {
	t.Helper()
	st, err := Prepare(conn, query, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// connStmt returns the most recent mock handle prepared for text.
func connStmt(t *testing.T, conn *ocimock.Conn, text string) *ocimock.Stmt {
	t.Helper()
	script := conn.ScriptFor(text)
	require.NotNil(t, script, "no script registered for %q", text)
	stmts := script.Stmts()
	require.NotEmpty(t, stmts, "no handle prepared for %q", text)
	return stmts[len(stmts)-1]
}
