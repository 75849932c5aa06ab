// Package analysis inspects recorded control signals.
//
// [Spectrum] computes the one-sided amplitude spectrum of a uniformly
// sampled signal, and [Dominant] picks its strongest non-DC component. A
// strong peak in the centring error usually means the gains make the mount
// hunt around the target.
package analysis
