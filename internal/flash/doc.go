// Package flash implements the notification center every console workflow
// reports through.
//
// A Center keeps transient messages in insertion order. Each message owns a
// removal timer; hovering cancels it, pinning makes its expiry a no-op, and
// leaving or unpinning re-arms a short grace timer. Observers subscribe to
// post, update and removal events.
package flash
