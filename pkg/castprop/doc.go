// Package castprop minimizes the number of precision-conversion (Cast)
// operations in a dataflow graph whose floating-point values are either wide
// (32-bit) or narrow (16-bit).
//
// Given a graph already annotated with casts, [Apply] rewrites it into an
// equivalent graph that computes the same results with fewer casts, by
// moving, cancelling and fusing them according to a per-operator [Policy]:
//
//   - Forward propagation sinks wide-targeting casts past pass-through
//     consumers to the points where wide precision is actually required,
//     and collapses the input casts of precision-safe operators into a
//     single output cast.
//   - Back-to-back cancellation removes adjacent cast pairs that annul or
//     duplicate each other.
//   - Backward propagation pushes narrow-targeting casts upstream past
//     pass-through and precision-safe producers.
//   - Sibling fusion merges duplicate casts sharing an input value and a
//     target precision into one multi-output cast.
//
// Apply performs a single sweep and reports whether the graph changed; the
// caller re-invokes it until it reports no change. A single call is not
// guaranteed to reach the global fixed point.
package castprop
