package cli

import (
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"sqlite-browser/internal/console"
	"sqlite-browser/internal/grid"
	"sqlite-browser/internal/session"
	"sqlite-browser/internal/stream"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <db>",
		Short: "List every catalog entry of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return wrapOpen(args[0], err)
			}
			defer sess.Close()

			return a.renderer(cmd).Schema(sess.Schema())
		},
	}
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <db>",
		Short: "List the database's tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return wrapOpen(args[0], err)
			}
			defer sess.Close()

			return a.renderer(cmd).Tables(sess.Tables())
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <db> <sql>",
		Short: "Stream a query's result into a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return wrapOpen(args[0], err)
			}
			defer sess.Close()

			return a.streamInto(cmd, sess, func(sink grid.Sink, cb stream.Callbacks) error {
				return sess.RunQueryStreaming(args[1], sink, cb)
			})
		},
	}
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <db> <table>",
		Short: "Show every row of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return wrapOpen(args[0], err)
			}
			defer sess.Close()

			return a.streamInto(cmd, sess, func(sink grid.Sink, cb stream.Callbacks) error {
				return sess.BrowseTable(args[1], sink, cb)
			})
		},
	}
}

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <db> <sql>",
		Short: "Show the engine's query plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return wrapOpen(args[0], err)
			}
			defer sess.Close()

			tbl := grid.NewTable(nil)
			defer tbl.Close()

			elapsed, err := sess.Explain(cmd.Context(), args[1], tbl)
			if err != nil {
				return err
			}
			r := a.renderer(cmd)
			if err := r.Grid(tbl.Snapshot()); err != nil {
				return err
			}
			r.Success(console.Elapsed(elapsed))
			return nil
		},
	}
}

type outcome struct {
	elapsed time.Duration
	err     error
}

// streamInto runs one streaming request against a private table, waits for
// it to finish and prints the result. An interrupt closes the session, which
// cancels the stream.
func (a *app) streamInto(cmd *cobra.Command, sess *session.Session, start func(grid.Sink, stream.Callbacks) error) error {
	tbl := grid.NewTable(nil)
	defer tbl.Close()

	spin := progress(cmd, "Running query")
	var rows atomic.Int64
	done := make(chan outcome, 1)

	cb := stream.Callbacks{
		OnRow: func(n int) {
			rows.Store(int64(n))
			spin.Update(n)
		},
		OnComplete: func(d time.Duration) { done <- outcome{elapsed: d} },
		OnError:    func(err error) { done <- outcome{err: err} },
	}
	if err := start(tbl, cb); err != nil {
		spin.Fail(err)
		return err
	}

	var res outcome
	select {
	case res = <-done:
	case <-cmd.Context().Done():
		_ = sess.Close()
		spin.Fail(cmd.Context().Err())
		return cmd.Context().Err()
	}

	r := a.renderer(cmd)
	if res.err != nil {
		spin.Fail(res.err)
		// rows committed before the failure stay visible
		if rows.Load() > 0 {
			_ = r.Grid(tbl.Snapshot())
		}
		return res.err
	}

	spin.Done(console.LoadedRows(int(rows.Load())))
	if err := r.Grid(tbl.Snapshot()); err != nil {
		return err
	}
	r.Success(console.Elapsed(res.elapsed))
	return nil
}
