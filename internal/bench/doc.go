// Package bench drives a tracking session from a benchmark harness instead
// of a live camera.
//
// Two handshakes are supported. [PolygonAdapter] takes a polygon (or
// rectangle) annotation, converts it to a box and reports rectangles.
// [RegionAdapter] takes a rectangle or a run-length mask and reports a
// rectangle or mask with a confidence. Both stop, without error, when the
// harness hands out an empty frame path.
//
// [SequenceHarness] plays a sequence directory from disk through the same
// [Harness] interface.
package bench
