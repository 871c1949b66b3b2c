package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
	"github.com/hashicorp/go-multierror"

	"github.com/viant/sqlite-facade/config"
	"github.com/viant/sqlite-facade/db"
	"github.com/viant/sqlite-facade/storage"
)

// BackupDir is the backend directory that receives snapshots when
// Runner.Backup is set.
const BackupDir = "backup"

// Runner runs the walkthrough on every configured database, one goroutine per
// database with limited concurrency. Each database gets its own Connection.
type Runner struct {
	Config  *config.Config
	Backend storage.Backend
	Log     lgr.L
	Metrics *db.Metrics
	// Backup snapshots each database to BackupDir/<name> after its walkthrough.
	Backup bool
}

// Result describes one finished database run.
type Result struct {
	Name     string
	Rows     int64
	Backup   int64
	Duration time.Duration
}

// Run processes all databases and returns their results in configuration
// order. Failing databases do not stop the others; their errors are combined.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	log := r.Log
	if log == nil {
		log = lgr.NoOp
	}
	concurrency := r.Config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(r.Config.Databases))
	wg := syncs.NewErrSizedGroup(concurrency, syncs.Context(ctx), syncs.Preemptive)
	for i, d := range r.Config.Databases {
		i, d := i, d
		wg.Go(func() error {
			res, err := r.runDatabase(ctx, d, prefixed(log, d.Name))
			results[i] = res
			if err != nil {
				log.Logf("[WARN] database %s failed: %v", d.Name, err)
			}
			return err
		})
	}
	return results, wg.Wait()
}

func (r *Runner) runDatabase(ctx context.Context, d config.Database, log lgr.L) (res Result, err error) {
	res.Name = d.Name
	st := time.Now()
	opts := append(r.Config.Options(d, r.Backend), db.WithLogger(log), db.WithMetrics(r.Metrics))
	conn, err := db.Open(d.Name, opts...)
	if err != nil {
		return res, fmt.Errorf("can't open %s: %w", d.Name, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("can't close %s: %w", d.Name, cerr))
		}
		res.Duration = time.Since(st).Truncate(time.Millisecond)
	}()

	if err = Run(conn, log); err != nil {
		return res, err
	}
	count, err := conn.SelectValue("select count(*) from t")
	if err != nil {
		return res, err
	}
	res.Rows = count.Int64()
	if r.Backup {
		if res.Backup, err = conn.Backup(ctx, r.Backend, BackupDir+"/"+d.Name); err != nil {
			return res, err
		}
	}
	log.Logf("[INFO] completed, %d rows in t", res.Rows)
	return res, nil
}

// prefixed tags every line with the database name, keeping the level prefix
// in front so lgr still recognizes it.
func prefixed(log lgr.L, name string) lgr.L {
	return lgr.Func(func(format string, args ...interface{}) {
		if strings.HasPrefix(format, "[") {
			if idx := strings.Index(format, "] "); idx > 0 {
				log.Logf(format[:idx+2]+"{"+name+"} "+format[idx+2:], args...)
				return
			}
		}
		log.Logf("{"+name+"} "+format, args...)
	})
}
