// Package track owns the stateful side of visual tracking: object identity,
// the previous-output feedback record, and dispatch to an external tracker.
//
// The tracker itself is opaque and reached through the [Tracker] interface.
// A [Session] threads each frame's [Output] back in as the next frame's
// [FrameInfo.Previous], so a tracker always sees its own prior result:
//
//	sess, _ := track.NewSession(track.ModeDefault, factory)
//	id := sess.NextID()
//	sess.AddTarget(id, track.Box(100, 100, 50, 50))
//	out, err := sess.Track(ctx, f) // initialises and tracks id in one step
//
// # Multi-object modes
//
// [ModeDefault] hands every object to one tracker instance. [ModeParallel]
// runs one instance per object and merges their results.
//
// # Thread Safety
//
// Session is NOT thread-safe. It belongs to the single control goroutine
// that drives it.
package track
