// Package cv binds the tracking pipeline to OpenCV through gocv.
//
// It provides a capture [Source] for cameras and video files, an image
// loader for benchmark sequences, and [MIL], a track.Tracker backed by
// OpenCV's MIL tracker. Frames produced here carry a *gocv.Mat as their
// pixel payload; releasing the frame closes the Mat.
package cv
