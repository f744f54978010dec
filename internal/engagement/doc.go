// Package engagement scores a participant message on depth, kindness,
// and novelty, and maps the combined score to a quality tier with a
// payout multiplier. Scoring is pure: the same message and vocabulary
// set always yield the same score.
package engagement
