// Package reconcile merges the two copies of an entity set: the records
// cached in the local store and the records fetched from the hosted
// document store.
//
// The remote store is the source of truth. Merging is last-fetch-wins at
// record granularity: when both sides carry the same external id, the
// remote record replaces the local one wholesale. There is no field-level
// merge and no conflict detection. Records that exist only locally, which
// is the shape of anything created offline and not yet uploaded, always
// survive the merge.
//
// Merge is a pure function of its inputs. It never mutates either slice,
// so it is safe to invoke concurrently for the same entity set from
// interleaved fetch callbacks.
//
// FetchMerged layers the failure policy on top: a remote fetch error
// degrades to the local records unmodified and reports a recoverable
// error, rather than emptying the user's view.
//
// Example:
//
//	merged := reconcile.Merge(remoteNotes, localNotes)
//	for _, n := range merged {
//	    fmt.Println(n.Title)
//	}
package reconcile
