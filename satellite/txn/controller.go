// Package txn implements the transaction controller from spec.md §4.4:
// it assigns a transaction id to every write, appends the record to the
// durable log before applying it, re-authorizes at apply time rather
// than trusting the pre-commit check alone, and publishes the affected
// index set once the write-txn commits.
package txn

import (
	"context"
	"time"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/store"
)

// ReadRequest is the read-path request shape spec.md §4.4 names:
// Context() for authorization and Run() for execution against a
// snapshot read transaction.
type ReadRequest interface {
	Context() auth.Context
	Run(rtxn *store.ReadTxn, requester *auth.Requester) (interface{}, error)
}

// WriteRequest is the write-path request shape: Context() for the
// pre-commit check, IntoTx() to build the record the controller
// appends to the log, and Apply() to perform the mutation once the
// record is durable.
type WriteRequest interface {
	Context() auth.Context
	// IntoTx serializes the request body into the bytes the log
	// stores. The controller fills in TransactionID/Requester/
	// SubmittedAt itself; IntoTx need only set RequestTag and Payload.
	IntoTx(requester *auth.Requester) (resource.TransactionRecord, error)
	// Apply performs the mutation inside the exclusive write-txn,
	// returning the primary affected index plus any secondary ones
	// (e.g. a parent whose Count changed) for Commit's affected set.
	Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (primary store.Idx, additional []store.Idx, err error)
}

// GraphMutation is implemented by write requests that add a node or
// edge the in-memory graph must also learn about. Submit calls
// MutateGraph only after the corresponding store write has committed,
// so the graph is never mutated ahead of (or independently of) the
// durable store, matching spec.md §4.2's "the graph is never mutated
// without a corresponding store change."
type GraphMutation interface {
	MutateGraph(b *graph.Builder)
}

// Notifier publishes an affected-node set to whatever subscribers
// spec.md §4.4 describes: cache invalidation, search re-indexing,
// endpoint notification.
type Notifier interface {
	Notify(ctx context.Context, affected store.AffectedSet) error
}

// NoopNotifier discards every affected set — the default for tests and
// for deployments with no external subscriber wired up yet.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, store.AffectedSet) error { return nil }

// Controller is the write/read entry point every request type is
// submitted through.
type Controller struct {
	DB       *store.DB
	Graph    *graph.Graph
	Notifier Notifier
	// Now is injected rather than calling time.Now directly so the
	// controller's expiry/ordering behavior stays deterministic under
	// test; production callers set it to time.Now.
	Now func() time.Time
}

// New builds a Controller. notifier may be nil, defaulting to
// NoopNotifier.
func New(db *store.DB, g *graph.Graph, notifier Notifier, now func() time.Time) *Controller {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Controller{DB: db, Graph: g, Notifier: notifier, Now: now}
}

// Query runs a read request: authorize against the current graph, then
// execute Run inside a snapshot read transaction.
func (c *Controller) Query(requester *auth.Requester, req ReadRequest) (interface{}, error) {
	if err := auth.Authorize(c.Graph, requester, req.Context()); err != nil {
		return nil, err
	}

	var resp interface{}
	err := c.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		resp, err = req.Run(rtxn, requester)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Submit runs the write path spec.md §4.4 describes: pre-commit
// authorization, transaction-id assignment, append-then-apply inside
// one exclusive write-txn (so a rejected re-authorization or a failed
// Apply leaves the log record uncommitted along with everything else,
// since store.DB.Update discards the whole transaction on error), and
// notification of the affected set on success.
func (c *Controller) Submit(ctx context.Context, requester *auth.Requester, req WriteRequest) (store.AffectedSet, error) {
	if err := auth.Authorize(c.Graph, requester, req.Context()); err != nil {
		return store.AffectedSet{}, err
	}

	record, err := req.IntoTx(requester)
	if err != nil {
		return store.AffectedSet{}, err
	}

	eventID := arunaid.New()
	record.TransactionID = eventID
	record.Requester = requester.UserID
	record.SubmittedAt = c.Now()

	var affected store.AffectedSet
	err = c.DB.Update(func(wtxn *store.WriteTxn) error {
		reauthorized, err := auth.ResolveRequesterByUserToken(&wtxn.ReadTxn, record.Requester, requester.TokenIndex, record.SubmittedAt)
		if err != nil {
			return err
		}
		if err := auth.Authorize(c.Graph, reauthorized, req.Context()); err != nil {
			return err
		}

		primary, additional, err := req.Apply(wtxn, eventID, reauthorized)
		if err != nil {
			return err
		}

		affected, err = wtxn.Commit(eventID, record, primary, additional)
		return err
	})
	if err != nil {
		return store.AffectedSet{}, err
	}

	if gm, ok := req.(GraphMutation); ok {
		b := c.Graph.Begin()
		gm.MutateGraph(b)
		b.Publish()
	}

	if err := c.Notifier.Notify(ctx, affected); err != nil {
		return affected, apierr.ServerError.Wrap(err)
	}
	return affected, nil
}
