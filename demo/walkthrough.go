// Package demo exercises the db facade end to end: table creation, positional
// and named binding, prepared statement reuse, every row mode, a scalar
// function, and transaction and savepoint rollback.
package demo

import (
	"errors"
	"fmt"

	"github.com/go-pkgz/lgr"
	jsoniter "github.com/json-iterator/go"

	"github.com/viant/sqlite-facade/db"
	"github.com/viant/sqlite-facade/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errTransaction = errors.New("demonstrating transaction rollback")
	errSavepoint   = errors.New("demonstrating nested savepoint rollback")
)

// Run drives conn through the walkthrough, reporting progress to log at INFO
// and expected failures at WARN. The demonstrated failures do not fail Run.
func Run(conn *db.Connection, log lgr.L) error {
	w := &walk{conn: conn, log: log}
	steps := []func() error{
		w.createTable,
		w.insertExec,
		w.insertPrepared,
		w.queryArray,
		w.queryObject,
		w.queryStatement,
		w.queryColumnIndex,
		w.queryColumnName,
		w.queryRows,
		w.scalarFunction,
		w.arityMismatch,
		w.transaction,
		w.savepoint,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("demo on %s: %w", conn.Name(), err)
		}
	}
	return nil
}

// Twice returns its argument added to itself: numbers double, text repeats.
func Twice(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Type() {
	case value.Integer:
		return value.IntegerValue(v.Int64() + v.Int64()), nil
	case value.Real:
		return value.RealValue(v.Float64() + v.Float64()), nil
	case value.Text:
		return value.TextValue(v.Text() + v.Text()), nil
	case value.Blob:
		return value.BlobValue(append(v.Bytes(), v.Bytes()...)), nil
	}
	return value.NullValue(), nil
}

type walk struct {
	conn *db.Connection
	log  lgr.L
}

type counter struct{ n int }

func (w *walk) info(format string, args ...any) { w.log.Logf("[INFO] "+format, args...) }

func (w *walk) warn(format string, args ...any) { w.log.Logf("[WARN] "+format, args...) }

func (w *walk) createTable() error {
	w.info("create a table...")
	if err := w.conn.Exec("CREATE TABLE IF NOT EXISTS t(a,b)"); err != nil {
		return err
	}
	_, err := w.conn.Execute("CREATE TABLE IF NOT EXISTS t(a,b)", &db.ExecOptions{})
	return err
}

func (w *walk) insertExec() error {
	w.info("insert some data using exec...")
	for i := 20; i <= 25; i++ {
		if _, err := w.conn.Execute("insert into t(a,b) values (?,?)", &db.ExecOptions{Bind: []any{i, i * 2}}); err != nil {
			return err
		}
		if _, err := w.conn.Execute("insert into t(a,b) values ($a,$b)", &db.ExecOptions{Bind: map[string]any{"$a": i * 10, "$b": i * 20}}); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) insertPrepared() (err error) {
	w.info("insert using a prepared statement...")
	q, err := w.conn.Prepare([]string{"insert into t(a,b) ", "values(?,?)"})
	if err != nil {
		return err
	}
	defer func() {
		if ferr := q.Finalize(); err == nil {
			err = ferr
		}
	}()
	for i := 100; i < 103; i++ {
		if err := q.Bind([]any{i, i * 2}); err != nil {
			return err
		}
		if _, err := q.Step(); err != nil {
			return err
		}
		if err := q.Reset(); err != nil {
			return err
		}
	}
	for i := 103; i <= 105; i++ {
		if err := q.BindIndex(1, i); err != nil {
			return err
		}
		if err := q.BindIndex(2, i*2); err != nil {
			return err
		}
		if _, err := q.StepReset(); err != nil {
			return err
		}
	}
	return nil
}

// printRow is the per-row callback of the query steps; acc counts rows.
func (w *walk) printRow(label string) db.RowFunc {
	return func(row any, acc any) error {
		c := acc.(*counter)
		c.n++
		out, err := json.MarshalToString(row)
		if err != nil {
			return err
		}
		w.info("row %d %s %s", c.n, label, out)
		return nil
	}
}

func (w *walk) queryArray() error {
	w.info("query data with exec using row mode array...")
	_, err := w.conn.Execute("select a from t order by a limit 3", &db.ExecOptions{
		RowMode: db.RowArray, Callback: w.printRow("="), Accumulator: &counter{},
	})
	return err
}

func (w *walk) queryObject() error {
	w.info("query data with exec using row mode object...")
	_, err := w.conn.Execute("select a as aa, b as bb from t order by aa limit 3", &db.ExecOptions{
		RowMode: db.RowObject, Callback: w.printRow("="), Accumulator: &counter{},
	})
	return err
}

func (w *walk) queryStatement() error {
	w.info("query data with exec using row mode stmt...")
	_, err := w.conn.Execute("select a from t order by a limit 3", &db.ExecOptions{
		RowMode:     db.RowStatement,
		Accumulator: &counter{},
		Callback: func(row any, acc any) error {
			c := acc.(*counter)
			c.n++
			w.info("row %d get(0) = %v", c.n, row.(*db.Statement).Get(0))
			return nil
		},
	})
	return err
}

func (w *walk) queryColumnIndex() error {
	w.info("query data with exec using row mode column index...")
	_, err := w.conn.Execute("select a, b from t order by a limit 3", &db.ExecOptions{
		RowMode: db.ColumnIndex(1), Callback: w.printRow("b ="), Accumulator: &counter{},
	})
	return err
}

func (w *walk) queryColumnName() error {
	w.info("query data with exec using row mode column name...")
	_, err := w.conn.Execute("select a a, b from t order by a limit 3", &db.ExecOptions{
		RowMode: db.ColumnName("a"), Callback: w.printRow("a ="), Accumulator: &counter{},
	})
	return err
}

func (w *walk) queryRows() error {
	w.info("query data with exec without a callback...")
	rows, err := w.conn.Execute("select a, b from t order by a limit 3", &db.ExecOptions{RowMode: db.RowObject})
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	w.info("result rows: %s", out)
	return nil
}

func (w *walk) scalarFunction() error {
	w.info("create a scalar function...")
	if err := w.conn.CreateFunction("twice", 1, Twice, db.Deterministic()); err != nil {
		return err
	}
	w.info("run scalar function and collect result column names...")
	var columns []string
	_, err := w.conn.Execute("select a, twice(a), twice(''||a) from t order by a desc limit 3", &db.ExecOptions{
		RowMode:     db.RowStatement,
		ColumnNames: &columns,
		Callback: func(row any, _ any) error {
			st := row.(*db.Statement)
			w.info("a = %v twice(a) = %v twice(''||a) = %v", st.Get(0), st.Get(1), st.Get(2))
			return nil
		},
	})
	if err != nil {
		return err
	}
	w.info("result column names: %v", columns)
	return nil
}

func (w *walk) arityMismatch() error {
	w.info("the following use of twice will fail because of incorrect arg count...")
	err := w.conn.Exec("select twice(1,2,3)")
	if err == nil {
		return errors.New("twice(1,2,3) unexpectedly succeeded")
	}
	if !db.IsKind(err, db.KindSQL) {
		return err
	}
	w.warn("got expected error: %v", err)
	return nil
}

func (w *walk) count(c *db.Connection) (int64, error) {
	v, err := c.SelectValue("select count(*) from t")
	return v.Int64(), err
}

func (w *walk) transaction() error {
	err := w.conn.Scope(func(c *db.Connection) error {
		if err := c.Exec("delete from t"); err != nil {
			return err
		}
		n, err := w.count(c)
		if err != nil {
			return err
		}
		w.info("in transaction: count(*) from t = %d", n)
		return errTransaction
	})
	if !errors.Is(err, errTransaction) {
		return err
	}
	w.info("got expected error from transaction: %v", err)
	n, err := w.count(w.conn)
	if err != nil {
		return err
	}
	w.info("count(*) from t = %d", n)
	return nil
}

func (w *walk) savepoint() error {
	err := w.conn.Savepoint(func(c *db.Connection) error {
		if err := c.Exec("delete from t"); err != nil {
			return err
		}
		n, err := w.count(c)
		if err != nil {
			return err
		}
		w.info("in savepoint: count(*) from t = %d", n)
		return c.Savepoint(func(cc *db.Connection) error {
			rows, err := cc.Execute([]string{
				"insert into t(a,b) values(99,100);",
				"select count(*) from t",
			}, &db.ExecOptions{RowMode: db.ColumnIndex(0)})
			if err != nil {
				return err
			}
			w.info("in nested savepoint. row count = %v", rows[0])
			return errSavepoint
		})
	})
	if !errors.Is(err, errSavepoint) {
		return err
	}
	w.info("got expected error from nested savepoint: %v", err)
	n, err := w.count(w.conn)
	if err != nil {
		return err
	}
	w.info("count(*) from t = %d", n)
	return nil
}
