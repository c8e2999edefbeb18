// Package proxy defines the portable records that stand in for host blocks
// and their placements: atomic object references, instance proxies,
// definition proxies, and the per-operation aggregates produced by unpacking
// (UnpackResult) and baking (BakeResult).
//
// Proxies carry no host types on the wire; the only host handle, the object
// on an AtomicObjectRef, is excluded from serialization.
package proxy
